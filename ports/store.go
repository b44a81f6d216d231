package ports

import (
	"context"

	"github.com/layer-3/vaultgate/core"
)

// IdentityStore is the row store holding identities.
// FindByAddress returns core.ErrNotFound when absent, Create returns
// core.ErrConflict when the address is already taken.
type IdentityStore interface {
	FindByAddress(ctx context.Context, address string) (*core.Identity, error)
	Create(ctx context.Context, identity *core.Identity) (*core.Identity, error)
	UpdateNonce(ctx context.Context, id int64, nonce uint64) (*core.Identity, error)
}

package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"sync"

	"github.com/layer-3/vaultgate/core"
	"github.com/layer-3/vaultgate/ports"
)

// maxNonce keeps nonces inside the integer range JSON clients can represent exactly
var maxNonce = new(big.Int).Lsh(big.NewInt(1), 53)

// DefaultMaxFailedAttempts is how many consecutive bad signatures burn a nonce
const DefaultMaxFailedAttempts = 5

// NonceLedger owns the per-identity login nonce. Callers serialize access per
// address; the ledger itself only guards its failure counters.
type NonceLedger struct {
	store       ports.IdentityStore
	random      io.Reader
	maxFailures int

	mu       sync.Mutex
	failures map[string]int
}

// NewNonceLedger creates a ledger writing through store
func NewNonceLedger(store ports.IdentityStore, maxFailures int) *NonceLedger {
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailedAttempts
	}
	return &NonceLedger{
		store:       store,
		random:      rand.Reader,
		maxFailures: maxFailures,
		failures:    make(map[string]int),
	}
}

// Issue rotates the nonce of address, provisioning the identity on first contact
func (l *NonceLedger) Issue(ctx context.Context, address string) (*core.Identity, error) {
	identity, err := l.store.FindByAddress(ctx, address)
	switch {
	case errors.Is(err, core.ErrNotFound):
		identity, err = l.register(ctx, address)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("failed to load identity: %w", err)
	default:
		identity, err = l.Rotate(ctx, identity)
		if err != nil {
			return nil, err
		}
	}

	l.resetFailures(address)
	return identity, nil
}

// Rotate burns the current nonce of identity and stores a fresh one
func (l *NonceLedger) Rotate(ctx context.Context, identity *core.Identity) (*core.Identity, error) {
	nonce, err := l.nextNonce(identity.Nonce)
	if err != nil {
		return nil, err
	}

	updated, err := l.store.UpdateNonce(ctx, identity.ID, nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to rotate nonce: %w", err)
	}

	return updated, nil
}

// RecordFailure counts a failed verification and rotates the nonce once the
// limit is reached. It reports whether a rotation happened.
func (l *NonceLedger) RecordFailure(ctx context.Context, identity *core.Identity) (bool, error) {
	l.mu.Lock()
	l.failures[identity.Address]++
	count := l.failures[identity.Address]
	l.mu.Unlock()

	if count < l.maxFailures {
		return false, nil
	}

	if _, err := l.Rotate(ctx, identity); err != nil {
		return false, err
	}
	l.resetFailures(identity.Address)

	return true, nil
}

// RecordSuccess burns the nonce that was just used and clears the failure count
func (l *NonceLedger) RecordSuccess(ctx context.Context, identity *core.Identity) (*core.Identity, error) {
	updated, err := l.Rotate(ctx, identity)
	if err != nil {
		return nil, err
	}
	l.resetFailures(identity.Address)

	return updated, nil
}

func (l *NonceLedger) register(ctx context.Context, address string) (*core.Identity, error) {
	nonce, err := l.nextNonce(0)
	if err != nil {
		return nil, err
	}

	created, err := l.store.Create(ctx, &core.Identity{
		Address: address,
		Nonce:   nonce,
		Role:    core.DefaultRole,
		Status:  core.DefaultStatus,
	})
	if err == nil {
		return created, nil
	}
	if !errors.Is(err, core.ErrConflict) {
		return nil, fmt.Errorf("failed to register identity: %w", err)
	}

	// Another instance registered it first, rotate that record instead
	existing, err := l.store.FindByAddress(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}

	return l.Rotate(ctx, existing)
}

func (l *NonceLedger) nextNonce(previous uint64) (uint64, error) {
	for {
		n, err := rand.Int(l.random, maxNonce)
		if err != nil {
			return 0, fmt.Errorf("failed to generate nonce: %w", err)
		}
		if v := n.Uint64(); v != 0 && v != previous {
			return v, nil
		}
	}
}

func (l *NonceLedger) resetFailures(address string) {
	l.mu.Lock()
	delete(l.failures, address)
	l.mu.Unlock()
}

func (l *NonceLedger) failureCount(address string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failures[address]
}

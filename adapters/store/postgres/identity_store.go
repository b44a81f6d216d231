// Package postgres implements the identity store on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/layer-3/vaultgate/core"
)

const uniqueViolation = "23505"

const (
	identityColumns = `id, eth_address, nonce, role, status, created_at`

	findByAddressSQL = `SELECT ` + identityColumns + ` FROM identities WHERE eth_address = $1`

	insertSQL = `
INSERT INTO identities (eth_address, nonce, role, status)
VALUES ($1, $2, $3, $4)
RETURNING ` + identityColumns

	updateNonceSQL = `
UPDATE identities SET nonce = $2
WHERE id = $1
RETURNING ` + identityColumns
)

// IdentityStore persists identities in the identities table
type IdentityStore struct {
	pool *pgxpool.Pool
}

// NewIdentityStore constructs an IdentityStore backed by the provided pool
func NewIdentityStore(pool *pgxpool.Pool) *IdentityStore {
	return &IdentityStore{pool: pool}
}

// FindByAddress looks an identity up by its normalized address
func (s *IdentityStore) FindByAddress(ctx context.Context, address string) (*core.Identity, error) {
	identity, err := scanIdentity(s.pool.QueryRow(ctx, findByAddressSQL, address))
	if err != nil {
		return nil, wrapErr("find identity", err)
	}
	return identity, nil
}

// Create inserts a new identity
func (s *IdentityStore) Create(ctx context.Context, identity *core.Identity) (*core.Identity, error) {
	row := s.pool.QueryRow(ctx, insertSQL, identity.Address, int64(identity.Nonce), identity.Role, identity.Status)
	created, err := scanIdentity(row)
	if err != nil {
		return nil, wrapErr("create identity", err)
	}
	return created, nil
}

// UpdateNonce replaces the nonce of the identity with the given id
func (s *IdentityStore) UpdateNonce(ctx context.Context, id int64, nonce uint64) (*core.Identity, error) {
	updated, err := scanIdentity(s.pool.QueryRow(ctx, updateNonceSQL, id, int64(nonce)))
	if err != nil {
		return nil, wrapErr("update nonce", err)
	}
	return updated, nil
}

func scanIdentity(row pgx.Row) (*core.Identity, error) {
	var (
		identity core.Identity
		nonce    int64
	)
	if err := row.Scan(&identity.ID, &identity.Address, &nonce, &identity.Role, &identity.Status, &identity.CreatedAt); err != nil {
		return nil, err
	}
	identity.Nonce = uint64(nonce)
	return &identity, nil
}

func wrapErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("identity store: %s: %w", op, core.ErrConflict)
	}
	return fmt.Errorf("identity store: %s: %w: %v", op, core.ErrStoreOperation, err)
}

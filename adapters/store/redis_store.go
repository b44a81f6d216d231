package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/layer-3/vaultgate/core"
	"github.com/layer-3/vaultgate/ports"
	"github.com/redis/go-redis/v9"
)

// RedisStore is a Redis implementation of the IdentityStore interface.
// Records live under <prefix>id:<id>, with <prefix>addr:<address> as the unique index.
type RedisStore struct {
	client *redis.Client
	prefix string
}

type identityRecord struct {
	ID        int64     `json:"id"`
	Address   string    `json:"eth_address"`
	Nonce     uint64    `json:"nonce"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRedisStore creates a new Redis store
func NewRedisStore(client *redis.Client) ports.IdentityStore {
	return &RedisStore{
		client: client,
		prefix: "vaultgate:identity:",
	}
}

func (s *RedisStore) idKey(id int64) string {
	return s.prefix + "id:" + strconv.FormatInt(id, 10)
}

func (s *RedisStore) addrKey(address string) string {
	return s.prefix + "addr:" + address
}

func (s *RedisStore) seqKey() string {
	return s.prefix + "seq"
}

// FindByAddress looks an identity up by its normalized address
func (s *RedisStore) FindByAddress(ctx context.Context, address string) (*core.Identity, error) {
	rawID, err := s.client.Get(ctx, s.addrKey(address)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("%w: find identity: %v", core.ErrStoreOperation, err)
	}

	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt address index for %s", core.ErrStoreOperation, address)
	}

	return s.load(ctx, id)
}

// Create stores a new identity, claiming its address atomically.
// The record is written before the address index so a visible index always resolves.
func (s *RedisStore) Create(ctx context.Context, identity *core.Identity) (*core.Identity, error) {
	id, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: allocate identity id: %v", core.ErrStoreOperation, err)
	}

	stored := identity.Clone()
	stored.ID = id
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	if err := s.save(ctx, stored); err != nil {
		return nil, err
	}

	claimed, err := s.client.SetNX(ctx, s.addrKey(identity.Address), strconv.FormatInt(id, 10), 0).Result()
	if err != nil {
		s.discard(ctx, id)
		return nil, fmt.Errorf("%w: claim address: %v", core.ErrStoreOperation, err)
	}
	if !claimed {
		s.discard(ctx, id)
		return nil, fmt.Errorf("identity %s: %w", identity.Address, core.ErrConflict)
	}

	return stored, nil
}

// discard drops a record whose address claim was lost
func (s *RedisStore) discard(ctx context.Context, id int64) {
	_ = s.client.Del(context.WithoutCancel(ctx), s.idKey(id)).Err()
}

// UpdateNonce replaces the nonce of the identity with the given id
func (s *RedisStore) UpdateNonce(ctx context.Context, id int64, nonce uint64) (*core.Identity, error) {
	identity, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	identity.Nonce = nonce
	if err := s.save(ctx, identity); err != nil {
		return nil, err
	}

	return identity, nil
}

func (s *RedisStore) load(ctx context.Context, id int64) (*core.Identity, error) {
	payload, err := s.client.Get(ctx, s.idKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("%w: load identity: %v", core.ErrStoreOperation, err)
	}

	var rec identityRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("%w: decode identity %d: %v", core.ErrStoreOperation, id, err)
	}

	return &core.Identity{
		ID:        rec.ID,
		Address:   rec.Address,
		Nonce:     rec.Nonce,
		Role:      rec.Role,
		Status:    rec.Status,
		CreatedAt: rec.CreatedAt,
	}, nil
}

func (s *RedisStore) save(ctx context.Context, identity *core.Identity) error {
	payload, err := json.Marshal(identityRecord{
		ID:        identity.ID,
		Address:   identity.Address,
		Nonce:     identity.Nonce,
		Role:      identity.Role,
		Status:    identity.Status,
		CreatedAt: identity.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("%w: encode identity: %v", core.ErrStoreOperation, err)
	}

	if err := s.client.Set(ctx, s.idKey(identity.ID), payload, 0).Err(); err != nil {
		return fmt.Errorf("%w: save identity: %v", core.ErrStoreOperation, err)
	}

	return nil
}

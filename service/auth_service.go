package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/vaultgate/core"
	"github.com/layer-3/vaultgate/internal/eth"
	"github.com/layer-3/vaultgate/ports"
	"go.uber.org/zap"
)

// DefaultSessionTTL is how long a session token stays valid
const DefaultSessionTTL = 24 * time.Hour

// AuthOptions tunes the authentication service
type AuthOptions struct {
	SessionTTL        time.Duration
	MaxFailedAttempts int
}

// AuthService handles authentication business logic
type AuthService struct {
	tokenizer ports.Tokenizer
	store     ports.IdentityStore
	eventPub  ports.EventPublisher
	logger    *zap.Logger

	ledger *NonceLedger
	locks  *keyLock
	now    func() time.Time

	sessionTTL time.Duration
}

// NewAuthService creates a new authentication service
func NewAuthService(
	store ports.IdentityStore,
	tokenizer ports.Tokenizer,
	eventPub ports.EventPublisher,
	logger *zap.Logger,
	opts AuthOptions,
) *AuthService {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}

	return &AuthService{
		tokenizer:  tokenizer,
		store:      store,
		eventPub:   eventPub,
		logger:     logger.Named("auth"),
		ledger:     NewNonceLedger(store, opts.MaxFailedAttempts),
		locks:      newKeyLock(),
		now:        time.Now,
		sessionTTL: opts.SessionTTL,
	}
}

// CreateChallenge issues a fresh nonce for address, registering it on first contact.
// Any nonce issued earlier for the same address stops being accepted.
func (s *AuthService) CreateChallenge(ctx context.Context, address string) (uint64, error) {
	addr, err := normalize(address)
	if err != nil {
		return 0, err
	}

	unlock := s.locks.Lock(addr)
	defer unlock()

	identity, err := s.ledger.Issue(ctx, addr)
	if err != nil {
		return 0, err
	}

	s.logger.Debug("challenge issued", zap.String("address", addr), zap.Int64("identity_id", identity.ID))
	return identity.Nonce, nil
}

// Login verifies that signature personal-signs the current challenge of address.
// On success the nonce is burned and a session token is returned.
func (s *AuthService) Login(ctx context.Context, address, signature string) (*core.Identity, string, error) {
	addr, err := normalize(address)
	if err != nil {
		return nil, "", err
	}

	unlock := s.locks.Lock(addr)
	defer unlock()

	identity, err := s.store.FindByAddress(ctx, addr)
	if errors.Is(err, core.ErrNotFound) {
		return nil, "", core.ErrUnknownIdentity
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to load identity: %w", err)
	}

	recovered, err := eth.RecoverAddress(eth.ChallengeMessage(identity.Nonce), signature)
	if err != nil {
		s.recordFailure(ctx, identity)
		return nil, "", fmt.Errorf("%w: %w", core.ErrInvalidSignature, err)
	}

	if !sameAddress(recovered.Hex(), addr) {
		s.recordFailure(ctx, identity)
		return nil, "", core.ErrSignatureMismatch
	}

	updated, err := s.ledger.RecordSuccess(ctx, identity)
	if err != nil {
		return nil, "", err
	}

	token, err := s.issueSession(updated)
	if err != nil {
		return nil, "", err
	}

	if err := s.eventPub.PublishLogin(ctx, updated.ID, updated.Address); err != nil {
		s.logger.Warn("failed to publish login event", zap.Int64("identity_id", updated.ID), zap.Error(err))
	}

	s.logger.Info("login succeeded", zap.String("address", addr), zap.Int64("identity_id", updated.ID))
	return updated, token, nil
}

// ValidateSession parses a session token and checks its expiry
func (s *AuthService) ValidateSession(_ context.Context, token string) (*core.Session, error) {
	session, err := s.tokenizer.TokenToSession(token)
	if err != nil {
		return nil, err
	}

	if s.now().After(session.ExpiresAt) {
		return nil, core.ErrTokenExpired
	}

	return session, nil
}

// Identity loads the identity a session was issued for
func (s *AuthService) Identity(ctx context.Context, session *core.Session) (*core.Identity, error) {
	identity, err := s.store.FindByAddress(ctx, session.Address)
	if err != nil {
		return nil, err
	}
	if identity.ID != session.IdentityID {
		return nil, core.ErrInvalidToken
	}
	return identity, nil
}

func (s *AuthService) issueSession(identity *core.Identity) (string, error) {
	now := s.now()
	token, err := s.tokenizer.SessionToToken(&core.Session{
		ID:         uuid.New().String(),
		IdentityID: identity.ID,
		Address:    identity.Address,
		IssuedAt:   now,
		ExpiresAt:  now.Add(s.sessionTTL),
	})
	if err != nil {
		return "", fmt.Errorf("failed to create session token: %w", err)
	}

	return token, nil
}

func (s *AuthService) recordFailure(ctx context.Context, identity *core.Identity) {
	rotated, err := s.ledger.RecordFailure(ctx, identity)
	if err != nil {
		s.logger.Error("failed to rotate nonce after repeated failures", zap.String("address", identity.Address), zap.Error(err))
		return
	}
	if rotated {
		s.logger.Warn("nonce rotated after repeated failed logins",
			zap.String("address", identity.Address),
			zap.Int("limit", s.ledger.maxFailures),
		)
	}
}

func normalize(address string) (string, error) {
	addr, err := eth.NormalizeAddress(address)
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrInvalidAddress, err)
	}
	return addr, nil
}

func sameAddress(a, b string) bool {
	na, errA := eth.NormalizeAddress(a)
	nb, errB := eth.NormalizeAddress(b)
	return errA == nil && errB == nil && na == nb
}

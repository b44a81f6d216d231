package venue

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/vaultgate/core"
)

// NonceSource reports the next sequence number the venue expects from an account
type NonceSource interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// Sequencer hands out transaction sequence numbers for one signing account.
// Numbers are assigned and submitted under one lock, so concurrent writers never
// share or skip a number. The lock is a one-slot semaphore so waiting writers
// give up when their context ends.
type Sequencer struct {
	sem     chan struct{}
	source  NonceSource
	account common.Address
	timeout time.Duration

	next   uint64
	synced bool
}

// NewSequencer creates a sequencer that syncs lazily from source. Every remote
// step run under the lock is bounded by timeout.
func NewSequencer(source NonceSource, account common.Address, timeout time.Duration) *Sequencer {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Sequencer{
		sem:     make(chan struct{}, 1),
		source:  source,
		account: account,
		timeout: timeout,
	}
}

func (s *Sequencer) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting for sequence number: %w", core.ErrRemoteFailure, ctx.Err())
	}
}

func (s *Sequencer) release() {
	<-s.sem
}

// Submit runs send with the next sequence number. The counter only advances when
// send succeeds; on failure it is resynced from the venue before the next use.
// send receives a context bounded by the sequencer timeout.
func (s *Sequencer) Submit(ctx context.Context, send func(ctx context.Context, nonce uint64) error) (uint64, error) {
	if err := s.acquire(ctx); err != nil {
		return 0, err
	}
	defer s.release()

	if !s.synced {
		syncCtx, cancel := context.WithTimeout(ctx, s.timeout)
		pending, err := s.source.PendingNonceAt(syncCtx, s.account)
		cancel()
		if err != nil {
			return 0, fmt.Errorf("%w: failed to sync sequence number: %w", core.ErrRemoteFailure, err)
		}
		s.next = pending
		s.synced = true
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	nonce := s.next
	if err := send(sendCtx, nonce); err != nil {
		s.synced = false
		return 0, err
	}
	s.next++

	return nonce, nil
}

// Peek returns the number the next submission would use, if known
func (s *Sequencer) Peek() (uint64, bool) {
	s.sem <- struct{}{}
	defer s.release()
	return s.next, s.synced
}

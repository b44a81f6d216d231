package venue

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/vaultgate/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stallingBackend never answers sends until the caller's context ends
type stallingBackend struct {
	*fakeBackend
	entered chan struct{}
}

func (b *stallingBackend) SendTransaction(ctx context.Context, _ *types.Transaction) error {
	select {
	case b.entered <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestStalledSendIsBounded(t *testing.T) {
	backend := &stallingBackend{fakeBackend: newFakeBackend(), entered: make(chan struct{}, 1)}
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	const callTimeout = 300 * time.Millisecond
	signer := NewSigner(key, big.NewInt(1337), backend, callTimeout)
	spot := NewSpot(NewClient(core.VenueSpot, backend, signer, newTestBook(t), zap.NewNop(), Options{
		CallTimeout:    callTimeout,
		ConfirmTimeout: 200 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
	}), spotContracts)

	first := make(chan error, 1)
	start := time.Now()
	go func() {
		_, err := spot.CreateOrder(context.Background(), validOrder)
		first <- err
	}()

	select {
	case <-backend.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first write never reached the venue")
	}

	// A second writer waits behind the stalled one and gives up at its own deadline
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = spot.CreateOrder(ctx, validOrder)
	require.ErrorIs(t, err, core.ErrRemoteFailure)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.NotErrorIs(t, err, core.ErrTxTimeout)

	select {
	case err := <-first:
		require.ErrorIs(t, err, core.ErrTxTimeout)
		require.NotErrorIs(t, err, core.ErrTxRejected)
		assert.Less(t, time.Since(start), 2*time.Second)
	case <-time.After(3 * time.Second):
		t.Fatal("stalled send was not bounded by the call timeout")
	}

	// The sequencer is released and marked for resync
	_, synced := signer.seq.Peek()
	assert.False(t, synced)
}

func TestSequencerWaitHonoursContext(t *testing.T) {
	backend := newFakeBackend()
	seq := NewSequencer(backend, common.Address{}, time.Second)

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_, _ = seq.Submit(context.Background(), func(context.Context, uint64) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := seq.Submit(ctx, func(context.Context, uint64) error { return nil })
	require.ErrorIs(t, err, core.ErrRemoteFailure)
	require.ErrorIs(t, err, context.Canceled)

	close(release)
	n, err := seq.Submit(context.Background(), func(context.Context, uint64) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestSendOutcomeUnknown(t *testing.T) {
	assert.True(t, sendOutcomeUnknown(context.DeadlineExceeded))
	assert.True(t, sendOutcomeUnknown(fmt.Errorf("post: %w", context.Canceled)))
	assert.True(t, sendOutcomeUnknown(&net.OpError{Op: "read", Err: errors.New("connection reset by peer")}))
	assert.False(t, sendOutcomeUnknown(errors.New("nonce too low")))
	assert.False(t, sendOutcomeUnknown(errors.New("insufficient funds for gas * price + value")))
}

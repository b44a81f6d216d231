package venue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequencerConcurrentSubmissions(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.pendingNonce = 5
	seq := NewSequencer(backend, common.Address{}, time.Second)

	const writers = 50
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		nonces []uint64
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := seq.Submit(ctx, func(context.Context, uint64) error { return nil })
			assert.NoError(t, err)
			mu.Lock()
			nonces = append(nonces, n)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(nonces, func(i, j int) bool { return nonces[i] < nonces[j] })
	require.Len(t, nonces, writers)
	for i, n := range nonces {
		assert.Equal(t, uint64(5+i), n)
	}
	assert.Equal(t, 1, backend.nonceSyncs)
}

func TestSequencerResyncsAfterFailure(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.pendingNonce = 3
	seq := NewSequencer(backend, common.Address{}, time.Second)

	n, err := seq.Submit(ctx, func(context.Context, uint64) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)

	_, err = seq.Submit(ctx, func(context.Context, uint64) error { return errors.New("nonce too low") })
	require.Error(t, err)
	_, synced := seq.Peek()
	assert.False(t, synced)

	// Another writer advanced the account meanwhile
	backend.mu.Lock()
	backend.pendingNonce = 9
	backend.mu.Unlock()

	n, err = seq.Submit(ctx, func(context.Context, uint64) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, uint64(9), n)

	next, synced := seq.Peek()
	assert.True(t, synced)
	assert.Equal(t, uint64(10), next)
	assert.Equal(t, 2, backend.nonceSyncs)
}

package venue

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/vaultgate/core"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	tokenBTC  = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	tokenETH  = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	tokenUSDT = common.HexToAddress("0x00000000000000000000000000000000000000d1")

	testUser = "0x00000000000000000000000000000000000000aa"
)

type callHandler func(data []byte) ([]byte, error)

// fakeBackend is an in-memory venue. Calls are answered by selector, sent
// transactions get the receipt produced by receiptFor.
type fakeBackend struct {
	mu sync.Mutex

	pendingNonce uint64
	nonceSyncs   int
	sent         []*types.Transaction

	calls       map[[4]byte]callHandler
	sendErr     error
	estimateErr error
	receiptFor  func(tx *types.Transaction) *types.Receipt
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{calls: make(map[[4]byte]callHandler)}
}

func (b *fakeBackend) handle(parsed *abi.ABI, method string, h callHandler) {
	var sel [4]byte
	copy(sel[:], parsed.Methods[method].ID)
	b.calls[sel] = h
}

// returns answers method with the given packed outputs
func (b *fakeBackend) returns(t *testing.T, parsed *abi.ABI, method string, values ...any) {
	t.Helper()
	out, err := parsed.Methods[method].Outputs.Pack(values...)
	require.NoError(t, err)
	b.handle(parsed, method, func([]byte) ([]byte, error) { return out, nil })
}

func (b *fakeBackend) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	var sel [4]byte
	copy(sel[:], call.Data)

	b.mu.Lock()
	h, ok := b.calls[sel]
	b.mu.Unlock()
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return h(call.Data[4:])
}

func (b *fakeBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nonceSyncs++
	return b.pendingNonce, nil
}

func (b *fakeBackend) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *fakeBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	if b.estimateErr != nil {
		return 0, b.estimateErr
	}
	return 100_000, nil
}

func (b *fakeBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, tx)
	b.pendingNonce = tx.Nonce() + 1
	return nil
}

func (b *fakeBackend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, tx := range b.sent {
		if tx.Hash() != hash {
			continue
		}
		if b.receiptFor == nil {
			return nil, ethereum.NotFound
		}
		if r := b.receiptFor(tx); r != nil {
			return r, nil
		}
	}
	return nil, ethereum.NotFound
}

func (b *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(1337), nil
}

func (b *fakeBackend) sentCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sent)
}

// confirmWith makes every sent transaction confirm with the given status and logs
func (b *fakeBackend) confirmWith(status uint64, logs ...*types.Log) {
	b.receiptFor = func(tx *types.Transaction) *types.Receipt {
		return &types.Receipt{Status: status, TxHash: tx.Hash(), GasUsed: 21_000, Logs: logs}
	}
}

func newTestBook(t *testing.T) *AddressBook {
	t.Helper()
	book, err := NewAddressBook([]AssetEntry{
		{Symbol: "BTC", Address: tokenBTC.Hex()},
		{Symbol: "ETH", Address: tokenETH.Hex()},
		{Symbol: "USDT", Address: tokenUSDT.Hex()},
	})
	require.NoError(t, err)
	return book
}

func newTestClient(t *testing.T, venue core.Venue, backend *fakeBackend) *Client {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	signer := NewSigner(key, big.NewInt(1337), backend, time.Second)
	return NewClient(venue, backend, signer, newTestBook(t), zap.NewNop(), Options{
		CallTimeout:    time.Second,
		ConfirmTimeout: 200 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
	})
}

// eventLog builds a raw log for event of contract with the given indexed topics
// and non-indexed values
func eventLog(t *testing.T, contract *abi.ABI, event string, topics []common.Hash, values ...any) *types.Log {
	t.Helper()
	ev := contract.Events[event]
	data, err := ev.Inputs.NonIndexed().Pack(values...)
	require.NoError(t, err)
	return &types.Log{Topics: append([]common.Hash{ev.ID}, topics...), Data: data}
}

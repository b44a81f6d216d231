package venue

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/layer-3/vaultgate/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var futuresContracts = FuturesContracts{
	Vault:    common.HexToAddress("0x0000000000000000000000000000000000000201"),
	Exchange: common.HexToAddress("0x0000000000000000000000000000000000000202"),
}

func newTestFutures(t *testing.T, backend *fakeBackend) *Futures {
	t.Helper()
	return NewFutures(newTestClient(t, core.VenueFutures, backend), futuresContracts)
}

func TestOpenAndClosePosition(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	opened := eventLog(t, FuturesExchangeABI, "PositionOpened",
		[]common.Hash{common.BigToHash(big.NewInt(17)), common.BytesToHash(common.HexToAddress(testUser).Bytes())},
		tokenBTC, big.NewInt(3), true, big.NewInt(500),
	)
	backend.confirmWith(types.ReceiptStatusSuccessful, opened)
	futures := newTestFutures(t, backend)

	id, err := futures.OpenPosition(ctx, OpenPositionRequest{
		Asset:            "BTC",
		Size:             "3",
		IsLong:           true,
		CollateralToken:  "usdt",
		CollateralAmount: "500",
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(17), id)

	args, err := FuturesExchangeABI.Methods["openPosition"].Inputs.Unpack(backend.sent[0].Data()[4:])
	require.NoError(t, err)
	assert.Equal(t, tokenBTC, args[0])
	assert.Equal(t, tokenUSDT, args[3])

	hash, err := futures.ClosePosition(ctx, ClosePositionRequest{PositionID: id, CollateralToken: "USDT", CollateralAmount: "500"})
	require.NoError(t, err)
	assert.Equal(t, backend.sent[1].Hash().Hex(), hash)
	assert.Equal(t, uint64(1), backend.sent[1].Nonce())

	_, err = futures.OpenPosition(ctx, OpenPositionRequest{Asset: "DOGE", Size: "1", CollateralToken: "USDT", CollateralAmount: "1"})
	require.ErrorIs(t, err, core.ErrUnknownAsset)
	assert.Equal(t, 2, backend.sentCount())
}

func TestFuturesVaults(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	backend.handle(FuturesVaultABI, "balanceOf", func(data []byte) ([]byte, error) {
		args, err := FuturesVaultABI.Methods["balanceOf"].Inputs.Unpack(data)
		if err != nil {
			return nil, err
		}
		if args[1].(common.Address) == tokenUSDT {
			return nil, errors.New("rpc unavailable")
		}
		return FuturesVaultABI.Methods["balanceOf"].Outputs.Pack(big.NewInt(900))
	})
	backend.returns(t, FuturesVaultABI, "freeBalanceOf", big.NewInt(400))
	futures := newTestFutures(t, backend)

	free, err := futures.GetFreeBalance(ctx, "eth", testUser)
	require.NoError(t, err)
	assert.Equal(t, "400", free.Amount.String())

	_, err = futures.GetBalance(ctx, "BTC", "0x123")
	require.ErrorIs(t, err, core.ErrInvalidInput)

	vaults := futures.GetVaults(ctx, testUser)
	require.Len(t, vaults, 3)
	assert.Equal(t, "BTC", vaults[0].Asset)
	assert.Equal(t, "900", vaults[0].Collateral.String())
	assert.Equal(t, "400", vaults[0].Free.String())
	assert.True(t, vaults[0].PnL.IsZero())
	assert.True(t, vaults[0].Available)
	assert.Equal(t, "USDT", vaults[2].Asset)
	assert.False(t, vaults[2].Available)
	assert.True(t, vaults[2].Collateral.IsZero())
}

func TestGetPosition(t *testing.T) {
	backend := newFakeBackend()
	backend.returns(t, FuturesExchangeABI, "getPosition", positionTuple{
		Id:         big.NewInt(17),
		Trader:     common.HexToAddress(testUser),
		Asset:      tokenBTC,
		Size:       big.NewInt(3),
		EntryPrice: big.NewInt(65000),
		IsLong:     true,
		Collateral: big.NewInt(500),
		Open:       true,
	})

	position, err := newTestFutures(t, backend).GetPosition(context.Background(), 17)
	require.NoError(t, err)
	assert.Equal(t, uint64(17), position.ID)
	assert.Equal(t, "65000", position.EntryPrice.String())
	assert.True(t, position.Open)
}

func TestOraclePrice(t *testing.T) {
	backend := newFakeBackend()
	router := common.HexToAddress("0x0000000000000000000000000000000000000301")
	var seen [32]byte
	backend.handle(OracleRouterABI, "getPrice", func(data []byte) ([]byte, error) {
		args, err := OracleRouterABI.Methods["getPrice"].Inputs.Unpack(data)
		if err != nil {
			return nil, err
		}
		seen = args[0].([32]byte)
		return OracleRouterABI.Methods["getPrice"].Outputs.Pack(big.NewInt(6_500_000))
	})
	oracle := NewOracle(newTestClient(t, core.VenueSpot, backend), router)

	price, err := oracle.GetPrice(context.Background(), "btc")
	require.NoError(t, err)
	assert.Equal(t, "6500000", price.String())

	want, err := PriceID("BTC")
	require.NoError(t, err)
	assert.Equal(t, want, seen)

	_, err = PriceID("0x1234")
	require.ErrorIs(t, err, core.ErrInvalidInput)
}

package gateway

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/layer-3/vaultgate/core"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var assets = []string{"BTC", "ETH", "USDT", "SOL", "ADA"}

type stubSpot struct{ calls atomic.Int32 }

func (s *stubSpot) Assets() []string { return assets }

func (s *stubSpot) GetVaults(_ context.Context, _ string) []core.SpotVaultItem {
	s.calls.Add(1)
	items := zeroSpot(assets)
	items[0].Balance = decimal.NewFromInt(7)
	items[0].Available = true
	return items
}

type stubFutures struct{ calls atomic.Int32 }

func (s *stubFutures) Assets() []string { return assets }

func (s *stubFutures) GetVaults(_ context.Context, _ string) []core.FuturesVaultItem {
	s.calls.Add(1)
	items := zeroFutures(assets)
	items[1].Collateral = decimal.NewFromInt(3)
	items[1].Available = true
	return items
}

func TestMalformedUserGetsZeroRows(t *testing.T) {
	spot, futures := &stubSpot{}, &stubFutures{}
	facade := NewFacade(spot, futures, zap.NewNop())

	for _, user := range []string{"", "bob", "0x1234", "0xZZ00000000000000000000000000000000000000"} {
		rows := facade.SpotVaults(context.Background(), user)
		require.Len(t, rows, len(assets))
		for i, row := range rows {
			assert.Equal(t, assets[i], row.Asset)
			assert.True(t, row.Balance.IsZero())
			assert.True(t, row.Locked.IsZero())
			assert.False(t, row.Available)
		}

		frows := facade.FuturesVaults(context.Background(), user)
		require.Len(t, frows, len(assets))
		for _, row := range frows {
			assert.True(t, row.Collateral.IsZero())
			assert.True(t, row.PnL.IsZero())
		}
	}

	assert.Zero(t, spot.calls.Load())
	assert.Zero(t, futures.calls.Load())
}

func TestPortfolioQueriesBothVenues(t *testing.T) {
	spot, futures := &stubSpot{}, &stubFutures{}
	facade := NewFacade(spot, futures, zap.NewNop())

	p := facade.Portfolio(context.Background(), " 0x00000000000000000000000000000000000000aa ")
	require.Len(t, p.Spot, len(assets))
	require.Len(t, p.Futures, len(assets))
	assert.Equal(t, "7", p.Spot[0].Balance.String())
	assert.Equal(t, "3", p.Futures[1].Collateral.String())
	assert.Equal(t, int32(1), spot.calls.Load())
	assert.Equal(t, int32(1), futures.calls.Load())
}

// Package gateway aggregates venue reads for display. Reads here never fail:
// anything that cannot be queried shows up as a zero row.
package gateway

import (
	"context"
	"strings"

	"github.com/layer-3/vaultgate/core"
	"github.com/layer-3/vaultgate/internal/eth"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// SpotReader is the read side of the spot venue
type SpotReader interface {
	Assets() []string
	GetVaults(ctx context.Context, user string) []core.SpotVaultItem
}

// FuturesReader is the read side of the futures venue
type FuturesReader interface {
	Assets() []string
	GetVaults(ctx context.Context, user string) []core.FuturesVaultItem
}

// Portfolio is the combined vault view of one user
type Portfolio struct {
	Spot    []core.SpotVaultItem    `json:"spot"`
	Futures []core.FuturesVaultItem `json:"futures"`
}

// Facade serves the aggregate vault views
type Facade struct {
	spot    SpotReader
	futures FuturesReader
	logger  *zap.Logger
}

// NewFacade creates a facade over both venues
func NewFacade(spot SpotReader, futures FuturesReader, logger *zap.Logger) *Facade {
	return &Facade{spot: spot, futures: futures, logger: logger.Named("gateway")}
}

// SpotVaults returns one row per configured asset
func (f *Facade) SpotVaults(ctx context.Context, user string) []core.SpotVaultItem {
	clean, ok := f.checkUser(user, core.VenueSpot)
	if !ok {
		return zeroSpot(f.spot.Assets())
	}
	return f.spot.GetVaults(ctx, clean)
}

// FuturesVaults returns one row per configured asset
func (f *Facade) FuturesVaults(ctx context.Context, user string) []core.FuturesVaultItem {
	clean, ok := f.checkUser(user, core.VenueFutures)
	if !ok {
		return zeroFutures(f.futures.Assets())
	}
	return f.futures.GetVaults(ctx, clean)
}

// Portfolio queries both venues concurrently
func (f *Facade) Portfolio(ctx context.Context, user string) Portfolio {
	var (
		wg  conc.WaitGroup
		out Portfolio
	)
	wg.Go(func() { out.Spot = f.SpotVaults(ctx, user) })
	wg.Go(func() { out.Futures = f.FuturesVaults(ctx, user) })
	wg.Wait()

	return out
}

func (f *Facade) checkUser(user string, venue core.Venue) (string, bool) {
	clean := strings.TrimSpace(user)
	if !eth.IsAddress(clean) {
		f.logger.Warn("invalid user address, returning zeroed balances",
			zap.String("venue", string(venue)),
			zap.String("user", user),
		)
		return "", false
	}
	return clean, true
}

func zeroSpot(assets []string) []core.SpotVaultItem {
	items := make([]core.SpotVaultItem, len(assets))
	for i, asset := range assets {
		items[i] = core.SpotVaultItem{Asset: asset, Balance: decimal.Zero, Locked: decimal.Zero}
	}
	return items
}

func zeroFutures(assets []string) []core.FuturesVaultItem {
	items := make([]core.FuturesVaultItem, len(assets))
	for i, asset := range assets {
		items[i] = core.FuturesVaultItem{Asset: asset, Collateral: decimal.Zero, Free: decimal.Zero, PnL: decimal.Zero}
	}
	return items
}

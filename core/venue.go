package core

import "github.com/shopspring/decimal"

// Venue names a remote trading system
type Venue string

const (
	VenueSpot    Venue = "spot"
	VenueFutures Venue = "futures"
)

// Balance is the outcome of a read-only balance query. Available is false when
// the venue could not be queried and Amount is only a placeholder zero.
type Balance struct {
	Asset     string          `json:"asset"`
	Amount    decimal.Decimal `json:"amount"`
	Available bool            `json:"available"`
}

// UnavailableBalance is the placeholder used when a read degrades
func UnavailableBalance(asset string) Balance {
	return Balance{Asset: asset, Amount: decimal.Zero, Available: false}
}

// SpotVaultItem is one asset row of a spot vault view
type SpotVaultItem struct {
	Asset     string          `json:"asset"`
	Balance   decimal.Decimal `json:"balance"`
	Locked    decimal.Decimal `json:"locked"`
	Available bool            `json:"available"`
}

// FuturesVaultItem is one asset row of a futures vault view
type FuturesVaultItem struct {
	Asset      string          `json:"asset"`
	Collateral decimal.Decimal `json:"collateral"`
	Free       decimal.Decimal `json:"free"`
	PnL        decimal.Decimal `json:"pnl"`
	Available  bool            `json:"available"`
}

// Order is the venue's view of a spot order
type Order struct {
	ID     uint64          `json:"id"`
	Trader string          `json:"trader"`
	Base   string          `json:"base"`
	Quote  string          `json:"quote"`
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
	Filled decimal.Decimal `json:"filled"`
	IsBuy  bool            `json:"isBuy"`
	Active bool            `json:"active"`
}

// Position is the venue's view of a futures position
type Position struct {
	ID         uint64          `json:"id"`
	Trader     string          `json:"trader"`
	Asset      string          `json:"asset"`
	Size       decimal.Decimal `json:"size"`
	EntryPrice decimal.Decimal `json:"entryPrice"`
	IsLong     bool            `json:"isLong"`
	Collateral decimal.Decimal `json:"collateral"`
	Open       bool            `json:"open"`
}

package venue

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/vaultgate/core"
	"github.com/shopspring/decimal"
)

// Oracle reads prices from the price router contract
type Oracle struct {
	*Client
	router common.Address
}

// NewOracle creates a read-only oracle client
func NewOracle(client *Client, router common.Address) *Oracle {
	return &Oracle{Client: client, router: router}
}

// PriceID returns the feed id of asset: a raw 32-byte hex id passes through,
// anything else is hashed as an uppercase symbol
func PriceID(asset string) ([32]byte, error) {
	clean := strings.TrimSpace(asset)
	if clean == "" {
		return [32]byte{}, fmt.Errorf("%w: empty price id", core.ErrInvalidInput)
	}

	if strings.HasPrefix(clean, "0x") || strings.HasPrefix(clean, "0X") {
		raw, err := hexutil.Decode(clean)
		if err != nil || len(raw) != common.HashLength {
			return [32]byte{}, fmt.Errorf("%w: price id %q", core.ErrInvalidInput, clean)
		}
		return common.BytesToHash(raw), nil
	}

	return crypto.Keccak256Hash([]byte(strings.ToUpper(clean))), nil
}

// GetPrice returns the latest price of asset as the router reports it
func (o *Oracle) GetPrice(ctx context.Context, asset string) (decimal.Decimal, error) {
	id, err := PriceID(asset)
	if err != nil {
		return decimal.Zero, err
	}

	out, err := o.call(ctx, o.router, OracleRouterABI, "getPrice", id)
	if err != nil {
		return decimal.Zero, err
	}

	if len(out) != 1 {
		return decimal.Zero, fmt.Errorf("%w: getPrice returned %d values", core.ErrRemoteFailure, len(out))
	}
	price, ok := out[0].(*big.Int)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: getPrice returned %T", core.ErrRemoteFailure, out[0])
	}

	return decimal.NewFromBigInt(price, 0), nil
}

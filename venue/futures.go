package venue

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/vaultgate/core"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// FuturesContracts holds the futures venue contract addresses
type FuturesContracts struct {
	Vault    common.Address
	Exchange common.Address
}

// OpenPositionRequest describes a new futures position
type OpenPositionRequest struct {
	Asset            string
	Size             string
	IsLong           bool
	CollateralToken  string
	CollateralAmount string
}

// ClosePositionRequest closes a position and releases collateral
type ClosePositionRequest struct {
	PositionID       uint64
	CollateralToken  string
	CollateralAmount string
}

// Futures is the futures venue client
type Futures struct {
	*Client
	contracts      FuturesContracts
	positionOpened Schema
}

// NewFutures creates a futures venue client on top of the shared client core
func NewFutures(client *Client, contracts FuturesContracts) *Futures {
	return &Futures{
		Client:         client,
		contracts:      contracts,
		positionOpened: mustSchema(FuturesExchangeABI, "PositionOpened"),
	}
}

// GetBalance reads the collateral user holds in asset
func (f *Futures) GetBalance(ctx context.Context, asset, user string) (core.Balance, error) {
	return f.vaultRead(ctx, "balanceOf", asset, user)
}

// GetFreeBalance reads the collateral of user not locked in positions
func (f *Futures) GetFreeBalance(ctx context.Context, asset, user string) (core.Balance, error) {
	return f.vaultRead(ctx, "freeBalanceOf", asset, user)
}

func (f *Futures) vaultRead(ctx context.Context, method, asset, user string) (core.Balance, error) {
	token, err := f.ResolveAsset(asset)
	if err != nil {
		return core.Balance{}, err
	}
	account, err := f.ValidateUser(user)
	if err != nil {
		return core.Balance{}, err
	}

	return f.readBalance(ctx, asset, f.contracts.Vault, FuturesVaultABI, method, account, token), nil
}

// GetVaults reads collateral and free collateral of every configured asset
// concurrently. PnL is not tracked by the vault and stays zero.
func (f *Futures) GetVaults(ctx context.Context, user string) []core.FuturesVaultItem {
	symbols := f.Assets()
	items := make([]core.FuturesVaultItem, len(symbols))

	p := pool.New().WithMaxGoroutines(2*len(symbols) + 1)
	for i, symbol := range symbols {
		items[i] = core.FuturesVaultItem{Asset: symbol, Collateral: decimal.Zero, Free: decimal.Zero, PnL: decimal.Zero}

		p.Go(func() {
			collateral, err := f.GetBalance(ctx, symbol, user)
			if err != nil {
				f.logger.Warn("vault row degraded", zap.String("asset", symbol), zap.Error(err))
				return
			}
			items[i].Collateral = collateral.Amount
			items[i].Available = collateral.Available
		})
		p.Go(func() {
			free, err := f.GetFreeBalance(ctx, symbol, user)
			if err != nil {
				return
			}
			items[i].Free = free.Amount
		})
	}
	p.Wait()

	return items
}

// OpenPosition opens a position and returns the id the venue assigned to it
func (f *Futures) OpenPosition(ctx context.Context, req OpenPositionRequest) (uint64, error) {
	asset, err := f.ResolveAsset(req.Asset)
	if err != nil {
		return 0, err
	}
	collateralToken, err := f.ResolveAsset(req.CollateralToken)
	if err != nil {
		return 0, err
	}
	size, err := ParseAmount("size", req.Size)
	if err != nil {
		return 0, err
	}
	collateral, err := ParseAmount("collateralAmount", req.CollateralAmount)
	if err != nil {
		return 0, err
	}

	receipt, err := f.transact(ctx, f.contracts.Exchange, FuturesExchangeABI, "openPosition", asset, size, req.IsLong, collateralToken, collateral)
	if err != nil {
		return 0, err
	}

	positionID, err := DecodeID(receipt.Logs, f.positionOpened, "positionId")
	if err != nil {
		f.logger.Error("position confirmed but id not decodable",
			zap.String("txHash", receipt.TxHash.Hex()),
			zap.Error(err),
		)
		return 0, fmt.Errorf("position tx %s: %w", receipt.TxHash.Hex(), err)
	}

	f.announce(ctx, "openPosition", FormatID(positionID), receipt.TxHash.Hex())
	return positionID, nil
}

// ClosePosition closes a position and returns the transaction hash
func (f *Futures) ClosePosition(ctx context.Context, req ClosePositionRequest) (string, error) {
	collateralToken, err := f.ResolveAsset(req.CollateralToken)
	if err != nil {
		return "", err
	}
	collateral, err := ParseAmount("collateralAmount", req.CollateralAmount)
	if err != nil {
		return "", err
	}

	receipt, err := f.transact(ctx, f.contracts.Exchange, FuturesExchangeABI, "closePosition",
		new(big.Int).SetUint64(req.PositionID), collateralToken, collateral)
	if err != nil {
		return "", err
	}

	f.announce(ctx, "closePosition", FormatID(req.PositionID), receipt.TxHash.Hex())
	return receipt.TxHash.Hex(), nil
}

type positionTuple struct {
	Id         *big.Int
	Trader     common.Address
	Asset      common.Address
	Size       *big.Int
	EntryPrice *big.Int
	IsLong     bool
	Collateral *big.Int
	Open       bool
}

// GetPosition reads one position
func (f *Futures) GetPosition(ctx context.Context, positionID uint64) (*core.Position, error) {
	out, err := f.call(ctx, f.contracts.Exchange, FuturesExchangeABI, "getPosition", new(big.Int).SetUint64(positionID))
	if err != nil {
		f.logger.Error("getPosition failed", zap.Uint64("positionId", positionID), zap.Error(err))
		return nil, err
	}

	p := *abi.ConvertType(out[0], new(positionTuple)).(*positionTuple)
	if p.Id == nil || p.Id.Sign() == 0 {
		return nil, fmt.Errorf("position %d: %w", positionID, core.ErrNotFound)
	}

	return &core.Position{
		ID:         p.Id.Uint64(),
		Trader:     p.Trader.Hex(),
		Asset:      p.Asset.Hex(),
		Size:       decimal.NewFromBigInt(p.Size, 0),
		EntryPrice: decimal.NewFromBigInt(p.EntryPrice, 0),
		IsLong:     p.IsLong,
		Collateral: decimal.NewFromBigInt(p.Collateral, 0),
		Open:       p.Open,
	}, nil
}

package venue

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/vaultgate/core"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
)

// SpotContracts holds the spot venue contract addresses
type SpotContracts struct {
	Vault     common.Address
	OrderBook common.Address
	Exchange  common.Address
}

// OrderRequest describes a new spot order. Price and Amount are integer strings
// in the smallest unit.
type OrderRequest struct {
	Base   string
	Quote  string
	Price  string
	Amount string
	IsBuy  bool
}

// MatchRequest pairs a buy and a sell order for settlement
type MatchRequest struct {
	BuyOrderID  uint64
	SellOrderID uint64
	Amount      string
	Price       string
}

// Spot is the spot venue client
type Spot struct {
	*Client
	contracts    SpotContracts
	orderCreated Schema
}

// NewSpot creates a spot venue client on top of the shared client core
func NewSpot(client *Client, contracts SpotContracts) *Spot {
	return &Spot{
		Client:       client,
		contracts:    contracts,
		orderCreated: mustSchema(SpotOrderBookABI, "OrderCreated"),
	}
}

// GetBalance reads the vault balance of user for asset
func (s *Spot) GetBalance(ctx context.Context, asset, user string) (core.Balance, error) {
	token, err := s.ResolveAsset(asset)
	if err != nil {
		return core.Balance{}, err
	}
	account, err := s.ValidateUser(user)
	if err != nil {
		return core.Balance{}, err
	}

	return s.readBalance(ctx, asset, s.contracts.Vault, SpotVaultABI, "balances", token, account), nil
}

// GetVaults reads the balance of every configured asset concurrently. A failed
// asset becomes an unavailable zero row instead of failing the whole view.
func (s *Spot) GetVaults(ctx context.Context, user string) []core.SpotVaultItem {
	symbols := s.Assets()
	items := make([]core.SpotVaultItem, len(symbols))

	p := pool.New().WithMaxGoroutines(len(symbols) + 1)
	for i, symbol := range symbols {
		p.Go(func() {
			items[i] = core.SpotVaultItem{Asset: symbol, Balance: decimal.Zero, Locked: decimal.Zero}

			balance, err := s.GetBalance(ctx, symbol, user)
			if err != nil {
				s.logger.Warn("vault row degraded", zap.String("asset", symbol), zap.Error(err))
				return
			}
			items[i].Balance = balance.Amount
			items[i].Available = balance.Available
		})
	}
	p.Wait()

	return items
}

// CreateOrder places an order and returns the id the venue assigned to it
func (s *Spot) CreateOrder(ctx context.Context, req OrderRequest) (uint64, error) {
	base, err := s.ResolveAsset(req.Base)
	if err != nil {
		return 0, err
	}
	quote, err := s.ResolveAsset(req.Quote)
	if err != nil {
		return 0, err
	}
	price, err := ParseAmount("price", req.Price)
	if err != nil {
		return 0, err
	}
	amount, err := ParseAmount("amount", req.Amount)
	if err != nil {
		return 0, err
	}

	receipt, err := s.transact(ctx, s.contracts.OrderBook, SpotOrderBookABI, "createOrder", base, quote, price, amount, req.IsBuy)
	if err != nil {
		return 0, err
	}

	orderID, err := DecodeID(receipt.Logs, s.orderCreated, "orderId")
	if err != nil {
		s.logger.Error("order confirmed but id not decodable",
			zap.String("txHash", receipt.TxHash.Hex()),
			zap.Error(err),
		)
		return 0, fmt.Errorf("order tx %s: %w", receipt.TxHash.Hex(), err)
	}

	s.announce(ctx, "createOrder", FormatID(orderID), receipt.TxHash.Hex())
	return orderID, nil
}

// CancelOrder cancels an order and returns the transaction hash
func (s *Spot) CancelOrder(ctx context.Context, orderID uint64) (string, error) {
	receipt, err := s.transact(ctx, s.contracts.OrderBook, SpotOrderBookABI, "cancelOrder", new(big.Int).SetUint64(orderID))
	if err != nil {
		return "", err
	}

	s.announce(ctx, "cancelOrder", FormatID(orderID), receipt.TxHash.Hex())
	return receipt.TxHash.Hex(), nil
}

// ExecuteMatch settles a buy and a sell order against each other
func (s *Spot) ExecuteMatch(ctx context.Context, req MatchRequest) (string, error) {
	amount, err := ParseAmount("matchAmount", req.Amount)
	if err != nil {
		return "", err
	}
	price, err := ParseAmount("matchPrice", req.Price)
	if err != nil {
		return "", err
	}

	receipt, err := s.transact(ctx, s.contracts.Exchange, SpotExchangeABI, "executeMatch",
		new(big.Int).SetUint64(req.BuyOrderID),
		new(big.Int).SetUint64(req.SellOrderID),
		amount,
		price,
	)
	if err != nil {
		return "", err
	}

	s.announce(ctx, "executeMatch", FormatID(req.BuyOrderID)+"/"+FormatID(req.SellOrderID), receipt.TxHash.Hex())
	return receipt.TxHash.Hex(), nil
}

type orderTuple struct {
	Id     *big.Int
	Trader common.Address
	Base   common.Address
	Quote  common.Address
	Price  *big.Int
	Amount *big.Int
	Filled *big.Int
	IsBuy  bool
	Active bool
}

// GetOrder reads one order. An order the venue does not know comes back with id 0
// and is reported as not found.
func (s *Spot) GetOrder(ctx context.Context, orderID uint64) (*core.Order, error) {
	out, err := s.call(ctx, s.contracts.OrderBook, SpotOrderBookABI, "getOrder", new(big.Int).SetUint64(orderID))
	if err != nil {
		s.logger.Error("getOrder failed", zap.Uint64("orderId", orderID), zap.Error(err))
		return nil, err
	}

	o := *abi.ConvertType(out[0], new(orderTuple)).(*orderTuple)
	if o.Id == nil || o.Id.Sign() == 0 {
		return nil, fmt.Errorf("order %d: %w", orderID, core.ErrNotFound)
	}

	return &core.Order{
		ID:     o.Id.Uint64(),
		Trader: o.Trader.Hex(),
		Base:   o.Base.Hex(),
		Quote:  o.Quote.Hex(),
		Price:  decimal.NewFromBigInt(o.Price, 0),
		Amount: decimal.NewFromBigInt(o.Amount, 0),
		Filled: decimal.NewFromBigInt(o.Filled, 0),
		IsBuy:  o.IsBuy,
		Active: o.Active,
	}, nil
}

// GetUserOrders lists the order ids the venue holds for user
func (s *Spot) GetUserOrders(ctx context.Context, user string) ([]uint64, error) {
	account, err := s.ValidateUser(user)
	if err != nil {
		return nil, err
	}

	out, err := s.call(ctx, s.contracts.OrderBook, SpotOrderBookABI, "getUserOrders", account)
	if err != nil {
		s.logger.Error("getUserOrders failed", zap.String("user", user), zap.Error(err))
		return nil, err
	}

	raw := *abi.ConvertType(out[0], new([]*big.Int)).(*[]*big.Int)
	ids := make([]uint64, 0, len(raw))
	for _, id := range raw {
		if !id.IsUint64() {
			return nil, fmt.Errorf("%w: order id %s overflows", core.ErrRemoteFailure, id.String())
		}
		ids = append(ids, id.Uint64())
	}

	return ids, nil
}

// FormatID renders a venue identifier the way HTTP responses carry it
func FormatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

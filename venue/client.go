// Package venue talks to the spot and futures trading venues over their
// contract RPC interface.
package venue

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/layer-3/vaultgate/core"
	"github.com/layer-3/vaultgate/internal/eth"
	"github.com/layer-3/vaultgate/ports"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Backend is the RPC surface of a venue. *ethclient.Client satisfies it.
type Backend interface {
	TxSender
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

const (
	// DefaultCallTimeout bounds each RPC round trip
	DefaultCallTimeout = 10 * time.Second
	// DefaultConfirmTimeout bounds waiting for a receipt
	DefaultConfirmTimeout = 2 * time.Minute
	// DefaultPollInterval is the gap between receipt polls
	DefaultPollInterval = 500 * time.Millisecond

	maxPollInterval = 5 * time.Second
)

// Options bounds the time spent on remote calls
type Options struct {
	CallTimeout    time.Duration
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

func (o Options) withDefaults() Options {
	if o.CallTimeout <= 0 {
		o.CallTimeout = DefaultCallTimeout
	}
	if o.ConfirmTimeout <= 0 {
		o.ConfirmTimeout = DefaultConfirmTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	return o
}

// Client is the part shared by every venue: asset resolution, user checks,
// read calls and confirmed writes
type Client struct {
	venue   core.Venue
	backend Backend
	signer  *Signer
	book    *AddressBook
	logger  *zap.Logger
	metrics *metrics
	events  ports.EventPublisher
	opts    Options
}

// NewClient creates a venue client. signer may be nil for read-only venues.
func NewClient(venue core.Venue, backend Backend, signer *Signer, book *AddressBook, logger *zap.Logger, opts Options) *Client {
	return &Client{
		venue:   venue,
		backend: backend,
		signer:  signer,
		book:    book,
		logger:  logger.Named(string(venue)),
		metrics: newMetrics(),
		opts:    opts.withDefaults(),
	}
}

// SetEventPublisher makes confirmed writes publish a venue write event
func (c *Client) SetEventPublisher(pub ports.EventPublisher) {
	c.events = pub
}

// announce publishes a confirmed write. Publishing is best effort.
func (c *Client) announce(ctx context.Context, operation, reference, txHash string) {
	if c.events == nil {
		return
	}
	if err := c.events.PublishVenueWrite(ctx, string(c.venue), operation, reference, txHash); err != nil {
		c.logger.Warn("failed to publish venue write",
			zap.String("operation", operation),
			zap.String("txHash", txHash),
			zap.Error(err),
		)
	}
}

// Assets returns the configured asset set
func (c *Client) Assets() []string {
	return c.book.Symbols()
}

// ResolveAsset turns a symbol or raw address into a token address
func (c *Client) ResolveAsset(symbolOrAddress string) (common.Address, error) {
	return c.book.Resolve(symbolOrAddress)
}

// ValidateUser checks that user is a well-formed address. The venue is not queried.
func (c *Client) ValidateUser(user string) (common.Address, error) {
	if !eth.IsAddress(user) {
		return common.Address{}, fmt.Errorf("%w: user %q", core.ErrInvalidAddress, user)
	}
	return common.HexToAddress(user), nil
}

// ParseAmount parses a non-negative integer amount in the asset's smallest unit
func ParseAmount(name, value string) (*big.Int, error) {
	d, err := decimal.NewFromString(value)
	if err != nil || d.IsNegative() || !d.IsInteger() {
		return nil, fmt.Errorf("%w: %s=%q", core.ErrInvalidAmount, name, value)
	}
	return d.BigInt(), nil
}

func (c *Client) call(ctx context.Context, contract common.Address, parsed *abi.ABI, method string, args ...any) ([]any, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrInvalidInput, method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()

	msg := ethereum.CallMsg{To: &contract, Data: data}
	if c.signer != nil {
		msg.From = c.signer.Address()
	}

	raw, err := c.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrRemoteFailure, method, err)
	}

	out, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s returned malformed data: %w", core.ErrRemoteFailure, method, err)
	}

	return out, nil
}

// readBalance never fails. A failed read is logged and reported as unavailable.
func (c *Client) readBalance(ctx context.Context, asset string, contract common.Address, parsed *abi.ABI, method string, args ...any) core.Balance {
	out, err := c.call(ctx, contract, parsed, method, args...)
	if err == nil && len(out) == 1 {
		if amount, ok := out[0].(*big.Int); ok {
			return core.Balance{Asset: asset, Amount: decimal.NewFromBigInt(amount, 0), Available: true}
		}
		err = fmt.Errorf("%w: %s returned %T", core.ErrRemoteFailure, method, out[0])
	}
	if err == nil {
		err = fmt.Errorf("%w: %s returned %d values", core.ErrRemoteFailure, method, len(out))
	}

	c.metrics.recordReadFailure(string(c.venue), method)
	c.logger.Warn("balance read failed",
		zap.String("method", method),
		zap.String("asset", asset),
		zap.Error(err),
	)
	return core.UnavailableBalance(asset)
}

// transact sends a state-changing call and waits until it is confirmed.
// The error is ErrTxRejected when the venue refuses or reverts it and ErrTxTimeout
// when no receipt shows up in time.
func (c *Client) transact(ctx context.Context, contract common.Address, parsed *abi.ABI, method string, args ...any) (*types.Receipt, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("%s venue has no signing key configured", c.venue)
	}

	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", core.ErrInvalidInput, method, err)
	}

	gasLimit, gasPrice, err := c.estimate(ctx, contract, data)
	if err != nil {
		c.metrics.recordTransaction(string(c.venue), method, outcomeRejected)
		return nil, fmt.Errorf("%w: %s: %w", core.ErrTxRejected, method, err)
	}

	tx, err := c.signer.Send(ctx, contract, data, gasLimit, gasPrice)
	if err != nil {
		outcome := outcomeRejected
		switch {
		case errors.Is(err, core.ErrTxTimeout):
			outcome = outcomeTimeout
		case !errors.Is(err, core.ErrTxRejected):
			outcome = outcomeFailed
		}
		c.metrics.recordTransaction(string(c.venue), method, outcome)
		c.logger.Error("transaction not accepted", zap.String("method", method), zap.String("outcome", outcome), zap.Error(err))
		if !errors.Is(err, core.ErrRemoteFailure) {
			err = fmt.Errorf("%w: %w", core.ErrTxRejected, err)
		}
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	c.logger.Info("transaction sent",
		zap.String("method", method),
		zap.String("txHash", tx.Hash().Hex()),
		zap.Uint64("nonce", tx.Nonce()),
	)

	receipt, err := c.waitMined(ctx, tx.Hash())
	if err != nil {
		outcome := outcomeFailed
		if errors.Is(err, core.ErrTxTimeout) {
			outcome = outcomeTimeout
		}
		c.metrics.recordTransaction(string(c.venue), method, outcome)
		c.logger.Error("transaction not confirmed",
			zap.String("method", method),
			zap.String("txHash", tx.Hash().Hex()),
			zap.Error(err),
		)
		return nil, err
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		c.metrics.recordTransaction(string(c.venue), method, outcomeRejected)
		c.logger.Error("transaction reverted",
			zap.String("method", method),
			zap.String("txHash", receipt.TxHash.Hex()),
			zap.Uint64("gasUsed", receipt.GasUsed),
		)
		return nil, fmt.Errorf("%w: %s reverted in %s", core.ErrTxRejected, method, receipt.TxHash.Hex())
	}

	c.metrics.recordTransaction(string(c.venue), method, outcomeConfirmed)
	return receipt, nil
}

func (c *Client) estimate(ctx context.Context, contract common.Address, data []byte) (uint64, *big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.CallTimeout)
	defer cancel()

	gasLimit, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{
		From: c.signer.Address(),
		To:   &contract,
		Data: data,
	})
	if err != nil {
		return 0, nil, fmt.Errorf("failed to estimate gas: %w", err)
	}

	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	return addGasBuffer(gasLimit), gasPrice, nil
}

// addGasBuffer adds 20% on top of the estimate
func addGasBuffer(gasLimit uint64) uint64 {
	return gasLimit + gasLimit/5
}

func (c *Client) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.ConfirmTimeout)
	defer cancel()

	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.InitialInterval = c.opts.PollInterval
	backoffCfg.MaxInterval = maxPollInterval

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) && ctx.Err() == nil {
			c.logger.Debug("receipt lookup failed, retrying", zap.String("txHash", hash.Hex()), zap.Error(err))
		}

		sleep := backoffCfg.NextBackOff()
		if sleep == backoff.Stop {
			sleep = maxPollInterval
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s after %s", core.ErrTxTimeout, hash.Hex(), c.opts.ConfirmTimeout)
		case <-time.After(sleep):
		}
	}
}

package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/vaultgate/core"
	"github.com/layer-3/vaultgate/gateway"
	"github.com/layer-3/vaultgate/venue"
	"github.com/shopspring/decimal"
)

// SpotVenue is what the spot routes need from the spot client
type SpotVenue interface {
	GetBalance(ctx context.Context, asset, user string) (core.Balance, error)
	CreateOrder(ctx context.Context, req venue.OrderRequest) (uint64, error)
	CancelOrder(ctx context.Context, orderID uint64) (string, error)
	ExecuteMatch(ctx context.Context, req venue.MatchRequest) (string, error)
	GetOrder(ctx context.Context, orderID uint64) (*core.Order, error)
	GetUserOrders(ctx context.Context, user string) ([]uint64, error)
}

// FuturesVenue is what the futures routes need from the futures client
type FuturesVenue interface {
	GetBalance(ctx context.Context, asset, user string) (core.Balance, error)
	GetFreeBalance(ctx context.Context, asset, user string) (core.Balance, error)
	OpenPosition(ctx context.Context, req venue.OpenPositionRequest) (uint64, error)
	ClosePosition(ctx context.Context, req venue.ClosePositionRequest) (string, error)
	GetPosition(ctx context.Context, positionID uint64) (*core.Position, error)
}

// PriceOracle reads asset prices
type PriceOracle interface {
	GetPrice(ctx context.Context, asset string) (decimal.Decimal, error)
}

// VaultViews serves the aggregated read-only vault views
type VaultViews interface {
	SpotVaults(ctx context.Context, user string) []core.SpotVaultItem
	FuturesVaults(ctx context.Context, user string) []core.FuturesVaultItem
	Portfolio(ctx context.Context, user string) gateway.Portfolio
}

// VenueHandlers contains HTTP handlers for venue endpoints
type VenueHandlers struct {
	spot    SpotVenue
	futures FuturesVenue
	oracle  PriceOracle
	vaults  VaultViews
}

// NewVenueHandlers creates new venue handlers. oracle may be nil.
func NewVenueHandlers(spot SpotVenue, futures FuturesVenue, oracle PriceOracle, vaults VaultViews) *VenueHandlers {
	return &VenueHandlers{spot: spot, futures: futures, oracle: oracle, vaults: vaults}
}

// writeBalance answers with the bare integer string, flagging degraded reads
func writeBalance(c *gin.Context, balance core.Balance, err error) {
	if err != nil {
		writeError(c, err)
		return
	}
	if !balance.Available {
		c.Header("X-Balance-Unavailable", "true")
	}
	c.String(http.StatusOK, balance.Amount.String())
}

func parseID(c *gin.Context, param string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 64)
	if err != nil {
		writeError(c, fmt.Errorf("%w: %s must be an unsigned integer", core.ErrInvalidInput, param))
		return 0, false
	}
	return id, true
}

// SpotBalance returns a user's spot vault balance for one asset
func (h *VenueHandlers) SpotBalance(c *gin.Context) {
	balance, err := h.spot.GetBalance(c.Request.Context(), c.Param("asset"), c.Param("user"))
	writeBalance(c, balance, err)
}

// FuturesBalance returns a user's futures vault balance for one asset
func (h *VenueHandlers) FuturesBalance(c *gin.Context) {
	balance, err := h.futures.GetBalance(c.Request.Context(), c.Param("asset"), c.Param("user"))
	writeBalance(c, balance, err)
}

// FuturesFreeBalance returns the futures balance not locked as margin
func (h *VenueHandlers) FuturesFreeBalance(c *gin.Context) {
	balance, err := h.futures.GetFreeBalance(c.Request.Context(), c.Param("asset"), c.Param("user"))
	writeBalance(c, balance, err)
}

// SpotVaults lists spot balances for every configured asset
func (h *VenueHandlers) SpotVaults(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"spot": h.vaults.SpotVaults(c.Request.Context(), c.Param("user"))})
}

// FuturesVaults lists futures balances for every configured asset
func (h *VenueHandlers) FuturesVaults(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"futures": h.vaults.FuturesVaults(c.Request.Context(), c.Param("user"))})
}

// Portfolio combines spot and futures vaults for one user
func (h *VenueHandlers) Portfolio(c *gin.Context) {
	c.JSON(http.StatusOK, h.vaults.Portfolio(c.Request.Context(), c.Param("user")))
}

// CreateOrder places a spot order
func (h *VenueHandlers) CreateOrder(c *gin.Context) {
	var req struct {
		Base   string      `json:"base" binding:"required"`
		Quote  string      `json:"quote" binding:"required"`
		Price  json.Number `json:"price" binding:"required"`
		Amount json.Number `json:"amount" binding:"required"`
		IsBuy  bool        `json:"isBuy"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	orderID, err := h.spot.CreateOrder(c.Request.Context(), venue.OrderRequest{
		Base:   req.Base,
		Quote:  req.Quote,
		Price:  req.Price.String(),
		Amount: req.Amount.String(),
		IsBuy:  req.IsBuy,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"orderId": venue.FormatID(orderID)})
}

// CancelOrder cancels a spot order
func (h *VenueHandlers) CancelOrder(c *gin.Context) {
	orderID, ok := parseID(c, "orderId")
	if !ok {
		return
	}

	txHash, err := h.spot.CancelOrder(c.Request.Context(), orderID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"txHash": txHash})
}

// ExecuteMatch settles two spot orders
func (h *VenueHandlers) ExecuteMatch(c *gin.Context) {
	var req struct {
		BuyOrderID  uint64      `json:"buyOrderId" binding:"required"`
		SellOrderID uint64      `json:"sellOrderId" binding:"required"`
		MatchAmount json.Number `json:"matchAmount" binding:"required"`
		MatchPrice  json.Number `json:"matchPrice" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	txHash, err := h.spot.ExecuteMatch(c.Request.Context(), venue.MatchRequest{
		BuyOrderID:  req.BuyOrderID,
		SellOrderID: req.SellOrderID,
		Amount:      req.MatchAmount.String(),
		Price:       req.MatchPrice.String(),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"txHash": txHash})
}

// GetOrder returns a single spot order by id
func (h *VenueHandlers) GetOrder(c *gin.Context) {
	orderID, ok := parseID(c, "orderId")
	if !ok {
		return
	}

	order, err := h.spot.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// GetUserOrders lists the order ids placed by a user
func (h *VenueHandlers) GetUserOrders(c *gin.Context) {
	ids, err := h.spot.GetUserOrders(c.Request.Context(), c.Param("user"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": ids})
}

// OpenPosition opens a futures position
func (h *VenueHandlers) OpenPosition(c *gin.Context) {
	var req struct {
		Asset            string      `json:"asset" binding:"required"`
		Size             json.Number `json:"size" binding:"required"`
		IsLong           bool        `json:"isLong"`
		CollateralToken  string      `json:"collateralToken" binding:"required"`
		CollateralAmount json.Number `json:"collateralAmount" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	positionID, err := h.futures.OpenPosition(c.Request.Context(), venue.OpenPositionRequest{
		Asset:            req.Asset,
		Size:             req.Size.String(),
		IsLong:           req.IsLong,
		CollateralToken:  req.CollateralToken,
		CollateralAmount: req.CollateralAmount.String(),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"positionId": venue.FormatID(positionID)})
}

// ClosePosition closes a futures position
func (h *VenueHandlers) ClosePosition(c *gin.Context) {
	var req struct {
		PositionID       json.Number `json:"positionId" binding:"required"`
		CollateralToken  string      `json:"collateralToken" binding:"required"`
		CollateralAmount json.Number `json:"collateralAmount" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	positionID, err := strconv.ParseUint(req.PositionID.String(), 10, 64)
	if err != nil {
		writeError(c, fmt.Errorf("%w: positionId must be an unsigned integer", core.ErrInvalidInput))
		return
	}

	txHash, err := h.futures.ClosePosition(c.Request.Context(), venue.ClosePositionRequest{
		PositionID:       positionID,
		CollateralToken:  req.CollateralToken,
		CollateralAmount: req.CollateralAmount.String(),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"txHash": txHash})
}

// GetPosition returns a single futures position by id
func (h *VenueHandlers) GetPosition(c *gin.Context) {
	positionID, ok := parseID(c, "positionId")
	if !ok {
		return
	}

	position, err := h.futures.GetPosition(c.Request.Context(), positionID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, position)
}

// Price returns the oracle price of an asset
func (h *VenueHandlers) Price(c *gin.Context) {
	if h.oracle == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Price oracle not configured"})
		return
	}

	asset := c.Query("asset")
	price, err := h.oracle.GetPrice(c.Request.Context(), asset)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"asset": asset, "price": price.String()})
}

package http

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/vaultgate/service"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Dependencies holds everything the router serves
type Dependencies struct {
	Auth    *service.AuthService
	Spot    SpotVenue
	Futures FuturesVenue
	Oracle  PriceOracle // optional
	Vaults  VaultViews
	Logger  *zap.Logger

	AuthRate  rate.Limit
	AuthBurst int

	// TrustedProxies may set the client IP through forwarding headers.
	// Empty means the peer address is always used.
	TrustedProxies []string
}

// SetupRouter sets up the Gin router
func SetupRouter(deps Dependencies) (*gin.Engine, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(deps.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}
	router.Use(RequestLogger(deps.Logger.Named("http")), gin.Recovery())

	// Create handlers
	authHandlers := NewAuthHandlers(deps.Auth)
	venueHandlers := NewVenueHandlers(deps.Spot, deps.Futures, deps.Oracle, deps.Vaults)
	requireSession := AuthMiddleware(deps.Auth)

	// Auth routes
	auth := router.Group("/auth")
	auth.Use(RateLimitMiddleware(deps.AuthRate, deps.AuthBurst))
	{
		auth.POST("/nonce", authHandlers.Nonce)
		auth.POST("/verify", authHandlers.Verify)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(requireSession)
	{
		api.GET("/me", authHandlers.Me)
	}

	spot := router.Group("/spot")
	{
		spot.GET("/balance/:user/:asset", venueHandlers.SpotBalance)
		spot.GET("/vaults/:user", venueHandlers.SpotVaults)
		spot.GET("/order/:orderId", venueHandlers.GetOrder)
		spot.GET("/orders/:user", venueHandlers.GetUserOrders)

		spot.POST("/order", requireSession, venueHandlers.CreateOrder)
		spot.POST("/cancel/:orderId", requireSession, venueHandlers.CancelOrder)
		spot.POST("/match", requireSession, venueHandlers.ExecuteMatch)
	}

	futures := router.Group("/futures")
	{
		futures.GET("/balance/:user/:asset", venueHandlers.FuturesBalance)
		futures.GET("/free-balance/:user/:asset", venueHandlers.FuturesFreeBalance)
		futures.GET("/vaults/:user", venueHandlers.FuturesVaults)
		futures.GET("/position/:positionId", venueHandlers.GetPosition)

		futures.POST("/open-position", requireSession, venueHandlers.OpenPosition)
		futures.POST("/close-position", requireSession, venueHandlers.ClosePosition)
	}

	router.GET("/portfolio/:user", venueHandlers.Portfolio)
	router.GET("/oracle/price", venueHandlers.Price)

	return router, nil
}

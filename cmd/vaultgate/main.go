package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/layer-3/vaultgate/adapters/events"
	"github.com/layer-3/vaultgate/adapters/store"
	"github.com/layer-3/vaultgate/adapters/store/postgres"
	"github.com/layer-3/vaultgate/adapters/tokenizer"
	"github.com/layer-3/vaultgate/config"
	"github.com/layer-3/vaultgate/core"
	"github.com/layer-3/vaultgate/gateway"
	"github.com/layer-3/vaultgate/internal/logger"
	"github.com/layer-3/vaultgate/ports"
	"github.com/layer-3/vaultgate/service"
	transport "github.com/layer-3/vaultgate/transport/http"
	"github.com/layer-3/vaultgate/venue"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	app := &cli.App{
		Name:    "vaultgate",
		Usage:   "Wallet-authenticated HTTP gateway for the spot and futures venues",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "listen-addr",
				Usage:   "HTTP listen address",
				Value:   ":9000",
				EnvVars: []string{config.EnvListenAddr},
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "Enable debug logging",
				EnvVars: []string{config.EnvDebug},
			},
			&cli.BoolFlag{
				Name:    "json-logs",
				Usage:   "Log in JSON instead of the console format",
				EnvVars: []string{config.EnvJSONLogs},
			},
			&cli.StringFlag{
				Name:    "store",
				Usage:   "Identity store: memory, redis or postgres",
				Value:   string(config.StoreMemory),
				EnvVars: []string{config.EnvStore},
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the identity store and login events",
				EnvVars: []string{config.EnvRedisURL},
			},
			&cli.StringFlag{
				Name:    "postgres-dsn",
				Usage:   "Postgres DSN for the identity store",
				EnvVars: []string{config.EnvPostgresDSN},
			},
			&cli.StringFlag{
				Name:    "jwt-key-file",
				Usage:   "PEM file holding the P-256 session signing key. A fresh key is generated when empty",
				EnvVars: []string{config.EnvJWTKeyFile},
			},
			&cli.StringFlag{
				Name:    "jwt-issuer",
				Usage:   "Issuer claim of session tokens",
				Value:   "vaultgate",
				EnvVars: []string{config.EnvJWTIssuer},
			},
			&cli.DurationFlag{
				Name:    "session-ttl",
				Usage:   "Session token lifetime",
				Value:   service.DefaultSessionTTL,
				EnvVars: []string{config.EnvSessionTTL},
			},
			&cli.IntFlag{
				Name:    "max-failed-logins",
				Usage:   "Failed logins after which the nonce is rotated",
				Value:   service.DefaultMaxFailedAttempts,
				EnvVars: []string{config.EnvMaxFailedLogins},
			},
			&cli.Float64Flag{
				Name:    "auth-rate",
				Usage:   "Auth requests per second allowed per client",
				Value:   5,
				EnvVars: []string{config.EnvAuthRate},
			},
			&cli.IntFlag{
				Name:    "auth-burst",
				Usage:   "Auth request burst allowed per client",
				Value:   10,
				EnvVars: []string{config.EnvAuthBurst},
			},
			&cli.StringSliceFlag{
				Name:    "trusted-proxies",
				Usage:   "Proxy IPs or CIDRs whose X-Forwarded-For is honoured. Empty trusts none",
				EnvVars: []string{config.EnvTrustedProxies},
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Aliases: []string{"rpc"},
				Usage:   "Venue RPC endpoint URL",
				Value:   "http://localhost:8545",
				EnvVars: []string{config.EnvRPCURL},
			},
			&cli.Uint64Flag{
				Name:    "chain-id",
				Usage:   "Chain id used for signing. Queried from the node when 0",
				EnvVars: []string{config.EnvChainID},
			},
			&cli.StringFlag{
				Name:     "spot-private-key",
				Usage:    "Hex private key signing spot writes",
				EnvVars:  []string{config.EnvSpotKey},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "futures-private-key",
				Usage:   "Hex private key signing futures writes. Defaults to the spot key",
				EnvVars: []string{config.EnvFuturesKey},
			},
			&cli.StringFlag{Name: "spot-vault", Usage: "Spot vault contract", EnvVars: []string{config.EnvSpotVault}},
			&cli.StringFlag{Name: "spot-order-book", Usage: "Spot order book contract", EnvVars: []string{config.EnvSpotOrderBook}},
			&cli.StringFlag{Name: "spot-exchange", Usage: "Spot exchange contract", EnvVars: []string{config.EnvSpotExchange}},
			&cli.StringFlag{Name: "futures-vault", Usage: "Futures vault contract", EnvVars: []string{config.EnvFuturesVault}},
			&cli.StringFlag{Name: "futures-exchange", Usage: "Futures exchange contract", EnvVars: []string{config.EnvFuturesExchange}},
			&cli.StringFlag{Name: "price-oracle-router", Usage: "Price oracle router contract (optional)", EnvVars: []string{config.EnvOracleRouter}},
			&cli.StringSliceFlag{
				Name:    "asset",
				Usage:   "SYMBOL=0xADDRESS asset mapping, repeatable. Defaults to BTC, ETH, USDT, SOL and ADA read from " + config.EnvTokenPrefix + "<SYMBOL>",
				EnvVars: []string{config.EnvAssets},
			},
			&cli.BoolFlag{
				Name:    "strict-assets",
				Usage:   "Refuse to start when an asset address is invalid",
				EnvVars: []string{config.EnvStrictAssets},
			},
			&cli.DurationFlag{
				Name:    "call-timeout",
				Usage:   "Timeout of read calls against the venues",
				Value:   venue.DefaultCallTimeout,
				EnvVars: []string{config.EnvCallTimeout},
			},
			&cli.DurationFlag{
				Name:    "confirm-timeout",
				Usage:   "How long to wait for a write to confirm",
				Value:   venue.DefaultConfirmTimeout,
				EnvVars: []string{config.EnvConfirmTimeout},
			},
		},
		Action: runGateway,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func parseConfig(c *cli.Context) (*config.Config, error) {
	cfg := &config.Config{
		ListenAddr:      c.String("listen-addr"),
		Debug:           c.Bool("debug"),
		JSONLogs:        c.Bool("json-logs"),
		Store:           config.StoreKind(c.String("store")),
		RedisURL:        c.String("redis-url"),
		PostgresDSN:     c.String("postgres-dsn"),
		JWTKeyFile:      c.String("jwt-key-file"),
		JWTIssuer:       c.String("jwt-issuer"),
		SessionTTL:      c.Duration("session-ttl"),
		MaxFailedLogins: c.Int("max-failed-logins"),
		AuthRate:        c.Float64("auth-rate"),
		AuthBurst:       c.Int("auth-burst"),
		TrustedProxies:  c.StringSlice("trusted-proxies"),
		RPCURL:          c.String("rpc-url"),
		ChainID:         c.Uint64("chain-id"),
		SpotKey:         c.String("spot-private-key"),
		FuturesKey:      c.String("futures-private-key"),
		SpotVault:       c.String("spot-vault"),
		SpotOrderBook:   c.String("spot-order-book"),
		SpotExchange:    c.String("spot-exchange"),
		FuturesVault:    c.String("futures-vault"),
		FuturesExchange: c.String("futures-exchange"),
		OracleRouter:    c.String("price-oracle-router"),
		StrictAssets:    c.Bool("strict-assets"),
		CallTimeout:     c.Duration("call-timeout"),
		ConfirmTimeout:  c.Duration("confirm-timeout"),
	}

	if entries := c.StringSlice("asset"); len(entries) > 0 {
		assets, err := config.ParseAssets(entries)
		if err != nil {
			return nil, err
		}
		cfg.Assets = assets
	} else {
		cfg.Assets = config.DefaultAssets(os.Getenv)
	}

	return cfg, nil
}

func runGateway(c *cli.Context) error {
	// Parse configuration from flags/environment
	cfg, err := parseConfig(c)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Create logger
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: cfg.Debug, JSON: cfg.JSONLogs})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer func() { _ = redisClient.Close() }()
	}

	identityStore, closeStore, err := openStore(ctx, cfg, redisClient, l)
	if err != nil {
		return err
	}
	defer closeStore()

	publisher, err := newPublisher(redisClient, cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to create event publisher: %w", err)
	}
	defer func() { _ = publisher.Close() }()
	eventPub := events.NewWatermillPublisher(publisher)

	signKey, err := loadSigningKey(cfg.JWTKeyFile, l)
	if err != nil {
		return err
	}

	authService := service.NewAuthService(
		identityStore,
		tokenizer.NewJWTTokenizer(signKey, cfg.JWTIssuer),
		eventPub,
		l,
		service.AuthOptions{SessionTTL: cfg.SessionTTL, MaxFailedAttempts: cfg.MaxFailedLogins},
	)

	// Venue RPC
	backend, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("failed to dial rpc %s: %w", cfg.RPCURL, err)
	}
	defer backend.Close()

	chainID := new(big.Int).SetUint64(cfg.ChainID)
	if cfg.ChainID == 0 {
		if chainID, err = backend.ChainID(ctx); err != nil {
			return fmt.Errorf("failed to query chain id: %w", err)
		}
	}
	l.Sugar().Infow("Using chain", "chain_id", chainID.String(), "rpc", cfg.RPCURL)

	spotKey, err := venue.ParsePrivateKey(cfg.SpotKey)
	if err != nil {
		return fmt.Errorf("spot signing key: %w", err)
	}
	spotSigner := venue.NewSigner(spotKey, chainID, backend, cfg.CallTimeout)
	futuresSigner := spotSigner
	if cfg.FuturesSigningKey() != cfg.SpotKey {
		futuresKey, err := venue.ParsePrivateKey(cfg.FuturesSigningKey())
		if err != nil {
			return fmt.Errorf("futures signing key: %w", err)
		}
		futuresSigner = venue.NewSigner(futuresKey, chainID, backend, cfg.CallTimeout)
	}

	book, err := venue.NewAddressBook(cfg.Assets)
	if err != nil {
		return fmt.Errorf("asset configuration: %w", err)
	}
	if err := book.Validate(); err != nil {
		if cfg.StrictAssets {
			return fmt.Errorf("asset configuration: %w", err)
		}
		l.Warn("Some assets have invalid addresses and will be rejected", zap.Error(err))
	}

	opts := venue.Options{CallTimeout: cfg.CallTimeout, ConfirmTimeout: cfg.ConfirmTimeout}

	spotClient := venue.NewClient(core.VenueSpot, backend, spotSigner, book, l, opts)
	spotClient.SetEventPublisher(eventPub)
	spot := venue.NewSpot(spotClient, venue.SpotContracts{
		Vault:     common.HexToAddress(cfg.SpotVault),
		OrderBook: common.HexToAddress(cfg.SpotOrderBook),
		Exchange:  common.HexToAddress(cfg.SpotExchange),
	})

	futuresClient := venue.NewClient(core.VenueFutures, backend, futuresSigner, book, l, opts)
	futuresClient.SetEventPublisher(eventPub)
	futures := venue.NewFutures(futuresClient, venue.FuturesContracts{
		Vault:    common.HexToAddress(cfg.FuturesVault),
		Exchange: common.HexToAddress(cfg.FuturesExchange),
	})

	var oracle transport.PriceOracle
	if cfg.OracleRouter != "" {
		oracle = venue.NewOracle(spotClient, common.HexToAddress(cfg.OracleRouter))
	}

	router, err := transport.SetupRouter(transport.Dependencies{
		Auth:           authService,
		Spot:           spot,
		Futures:        futures,
		Oracle:         oracle,
		Vaults:         gateway.NewFacade(spot, futures, l),
		Logger:         l,
		AuthRate:       rate.Limit(cfg.AuthRate),
		AuthBurst:      cfg.AuthBurst,
		TrustedProxies: cfg.TrustedProxies,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Sugar().Infow("Starting gateway",
			"addr", cfg.ListenAddr,
			"store", cfg.Store,
			"spot_signer", spotSigner.Address().Hex(),
			"futures_signer", futuresSigner.Address().Hex(),
			"assets", book.Symbols(),
		)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	l.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openStore(ctx context.Context, cfg *config.Config, redisClient *redis.Client, l *zap.Logger) (ports.IdentityStore, func(), error) {
	switch cfg.Store {
	case config.StoreRedis:
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("failed to reach redis: %w", err)
		}
		return store.NewRedisStore(redisClient), func() {}, nil

	case config.StorePostgres:
		if err := postgres.Migrate(ctx, cfg.PostgresDSN, l); err != nil {
			return nil, nil, fmt.Errorf("failed to migrate postgres: %w", err)
		}
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return postgres.NewIdentityStore(pool), pool.Close, nil

	default:
		l.Warn("Using the in-memory identity store, identities are lost on restart")
		return store.NewMemoryStore(), func() {}, nil
	}
}

// newPublisher publishes to redis streams when redis is configured and to an
// in-process channel otherwise
func newPublisher(redisClient *redis.Client, debug bool) (message.Publisher, error) {
	wmLogger := watermill.NewStdLogger(debug, false)
	if redisClient == nil {
		return gochannel.NewGoChannel(gochannel.Config{}, wmLogger), nil
	}
	return redisstream.NewPublisher(redisstream.PublisherConfig{Client: redisClient}, wmLogger)
}

func loadSigningKey(path string, l *zap.Logger) (*ecdsa.PrivateKey, error) {
	if path == "" {
		l.Warn("No JWT key file configured, generating an ephemeral key. Sessions will not survive a restart")
		return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read jwt key: %w", err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("jwt key %s is not PEM encoded", path)
	}

	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jwt key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok || key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("jwt key %s must be a P-256 ECDSA key", path)
	}
	return key, nil
}

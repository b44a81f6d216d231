package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/vaultgate/venue"
)

// Environment variable names for the gateway configuration
const (
	EnvListenAddr      = "VAULTGATE_LISTEN_ADDR"
	EnvDebug           = "VAULTGATE_DEBUG"
	EnvJSONLogs        = "VAULTGATE_JSON_LOGS"
	EnvStore           = "VAULTGATE_STORE"
	EnvRedisURL        = "VAULTGATE_REDIS_URL"
	EnvPostgresDSN     = "VAULTGATE_POSTGRES_DSN"
	EnvJWTKeyFile      = "VAULTGATE_JWT_KEY_FILE"
	EnvJWTIssuer       = "VAULTGATE_JWT_ISSUER"
	EnvSessionTTL      = "VAULTGATE_SESSION_TTL"
	EnvMaxFailedLogins = "VAULTGATE_MAX_FAILED_LOGINS"
	EnvAuthRate        = "VAULTGATE_AUTH_RATE"
	EnvAuthBurst       = "VAULTGATE_AUTH_BURST"
	EnvTrustedProxies  = "VAULTGATE_TRUSTED_PROXIES"
	EnvRPCURL          = "VAULTGATE_RPC_URL"
	EnvChainID         = "VAULTGATE_CHAIN_ID"
	EnvSpotKey         = "VAULTGATE_SPOT_PRIVATE_KEY"
	EnvFuturesKey      = "VAULTGATE_FUTURES_PRIVATE_KEY"
	EnvSpotVault       = "VAULTGATE_SPOT_VAULT"
	EnvSpotOrderBook   = "VAULTGATE_SPOT_ORDER_BOOK"
	EnvSpotExchange    = "VAULTGATE_SPOT_EXCHANGE"
	EnvFuturesVault    = "VAULTGATE_FUTURES_VAULT"
	EnvFuturesExchange = "VAULTGATE_FUTURES_EXCHANGE"
	EnvOracleRouter    = "VAULTGATE_PRICE_ORACLE_ROUTER"
	EnvAssets          = "VAULTGATE_ASSETS"
	EnvStrictAssets    = "VAULTGATE_STRICT_ASSETS"
	EnvCallTimeout     = "VAULTGATE_CALL_TIMEOUT"
	EnvConfirmTimeout  = "VAULTGATE_CONFIRM_TIMEOUT"

	// EnvTokenPrefix + SYMBOL supplies a default asset address, e.g. VAULTGATE_TOKEN_BTC
	EnvTokenPrefix = "VAULTGATE_TOKEN_"
)

// StoreKind selects the identity store backend
type StoreKind string

const (
	StoreMemory   StoreKind = "memory"
	StoreRedis    StoreKind = "redis"
	StorePostgres StoreKind = "postgres"
)

// DefaultAssetSymbols is the asset set used when none is configured explicitly
var DefaultAssetSymbols = []string{"BTC", "ETH", "USDT", "SOL", "ADA"}

// Config is the gateway configuration assembled from flags and environment
type Config struct {
	ListenAddr string
	Debug      bool
	JSONLogs   bool

	Store       StoreKind
	RedisURL    string
	PostgresDSN string

	JWTKeyFile      string
	JWTIssuer       string
	SessionTTL      time.Duration
	MaxFailedLogins int
	AuthRate        float64
	AuthBurst       int
	TrustedProxies  []string

	RPCURL     string
	ChainID    uint64 // 0 asks the node
	SpotKey    string
	FuturesKey string // empty reuses SpotKey

	SpotVault       string
	SpotOrderBook   string
	SpotExchange    string
	FuturesVault    string
	FuturesExchange string
	OracleRouter    string // optional

	Assets       []venue.AssetEntry
	StrictAssets bool

	CallTimeout    time.Duration
	ConfirmTimeout time.Duration
}

// ParseAssets parses SYMBOL=ADDRESS entries, keeping their order
func ParseAssets(entries []string) ([]venue.AssetEntry, error) {
	var out []venue.AssetEntry
	for _, raw := range entries {
		for _, entry := range strings.Split(raw, ",") {
			entry = strings.TrimSpace(entry)
			if entry == "" {
				continue
			}
			symbol, address, ok := strings.Cut(entry, "=")
			if !ok || strings.TrimSpace(symbol) == "" {
				return nil, fmt.Errorf("asset entry %q must look like SYMBOL=0xADDRESS", entry)
			}
			out = append(out, venue.AssetEntry{
				Symbol:  strings.ToUpper(strings.TrimSpace(symbol)),
				Address: strings.TrimSpace(address),
			})
		}
	}
	return out, nil
}

// DefaultAssets builds the default asset set, reading addresses through getenv
func DefaultAssets(getenv func(string) string) []venue.AssetEntry {
	out := make([]venue.AssetEntry, 0, len(DefaultAssetSymbols))
	for _, symbol := range DefaultAssetSymbols {
		out = append(out, venue.AssetEntry{
			Symbol:  symbol,
			Address: strings.TrimSpace(getenv(EnvTokenPrefix + symbol)),
		})
	}
	return out
}

// FuturesSigningKey returns the key futures writes are signed with
func (c *Config) FuturesSigningKey() string {
	if c.FuturesKey != "" {
		return c.FuturesKey
	}
	return c.SpotKey
}

// Validate reports every configuration problem at once
func (c *Config) Validate() error {
	var errs []error

	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen address cannot be empty"))
	}

	switch c.Store {
	case StoreMemory:
	case StoreRedis:
		if c.RedisURL == "" {
			errs = append(errs, errors.New("redis store requires a redis url"))
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("postgres store requires a postgres dsn"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q, expected memory, redis or postgres", c.Store))
	}

	if c.JWTIssuer == "" {
		errs = append(errs, errors.New("jwt issuer cannot be empty"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, fmt.Errorf("session ttl must be positive, got %s", c.SessionTTL))
	}
	if c.AuthRate <= 0 || c.AuthBurst <= 0 {
		errs = append(errs, fmt.Errorf("auth rate limit must be positive, got rate=%v burst=%d", c.AuthRate, c.AuthBurst))
	}

	for _, proxy := range c.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				errs = append(errs, fmt.Errorf("invalid trusted proxy %q", proxy))
			}
		}
	}

	if c.RPCURL == "" {
		errs = append(errs, errors.New("rpc url cannot be empty"))
	}
	if c.SpotKey == "" {
		errs = append(errs, errors.New("spot signing key cannot be empty"))
	}

	contracts := []struct {
		name, value string
		required    bool
	}{
		{"spot vault", c.SpotVault, true},
		{"spot order book", c.SpotOrderBook, true},
		{"spot exchange", c.SpotExchange, true},
		{"futures vault", c.FuturesVault, true},
		{"futures exchange", c.FuturesExchange, true},
		{"price oracle router", c.OracleRouter, false},
	}
	for _, ct := range contracts {
		if ct.value == "" && !ct.required {
			continue
		}
		if !strings.HasPrefix(ct.value, "0x") || !common.IsHexAddress(ct.value) {
			errs = append(errs, fmt.Errorf("invalid %s address: %q", ct.name, ct.value))
		}
	}

	if len(c.Assets) == 0 {
		errs = append(errs, errors.New("at least one asset must be configured"))
	}

	return errors.Join(errs...)
}

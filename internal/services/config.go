package services

import (
	"fmt"
	"strconv"
	"time"

	"github.com/benomayebu/Farmily-Docs/internal/app/trace/coordinator"
	"github.com/benomayebu/Farmily-Docs/internal/chain"
)

// Environment variable names.
const (
	EnvRPCURL            = "FARMILY_RPC_URL"
	EnvContractAddress   = "FARMILY_CONTRACT_ADDRESS"
	EnvWallet            = "FARMILY_WALLET"
	EnvKeystore          = "FARMILY_KEYSTORE"
	EnvPassphrase        = "FARMILY_PASSPHRASE"
	EnvPrivateKey        = "FARMILY_PRIVATE_KEY"
	EnvFromBlock         = "FARMILY_FROM_BLOCK"
	EnvBackendURL        = "FARMILY_BACKEND_URL"
	EnvStorePath         = "FARMILY_STORE_PATH"
	EnvSpannerDB         = "SPANNER_DATABASE"
	EnvNATSURL           = "FARMILY_NATS_URL"
	EnvGasMultiplier     = "FARMILY_GAS_MULTIPLIER"
	EnvGasRounding       = "FARMILY_GAS_ROUNDING"
	EnvReceiptTimeout    = "FARMILY_RECEIPT_TIMEOUT"
	EnvDebounce          = "FARMILY_DEBOUNCE"
	EnvPollInterval      = "FARMILY_POLL_INTERVAL"
	EnvReconcileInterval = "FARMILY_RECONCILE_INTERVAL"
	EnvRelayInterval     = "FARMILY_RELAY_INTERVAL"
	EnvPersistTimeout    = "FARMILY_PERSIST_TIMEOUT"
)

// Defaults for local development against a dev node and the backend on
// its usual port.
const (
	DefaultRPCURL     = "http://localhost:8545"
	DefaultBackendURL = "http://localhost:3000"
)

// LoadConfig reads Config from getenv, usually os.Getenv. Unset variables
// take their defaults; malformed ones are an error.
func LoadConfig(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := getenv(key); v != "" {
			return v
		}
		return def
	}

	cfg := Config{
		RPCURL:          get(EnvRPCURL, DefaultRPCURL),
		ContractAddress: get(EnvContractAddress, chain.DefaultContractAddress),
		Wallet:          get(EnvWallet, WalletRPC),
		Keystore:        getenv(EnvKeystore),
		Passphrase:      getenv(EnvPassphrase),
		PrivateKey:      getenv(EnvPrivateKey),
		BackendURL:      get(EnvBackendURL, DefaultBackendURL),
		StorePath:       getenv(EnvStorePath),
		SpannerDB:       getenv(EnvSpannerDB),
		NATSURL:         getenv(EnvNATSURL),
		GasMultiplier:   getenv(EnvGasMultiplier),
		GasRounding:     getenv(EnvGasRounding),
	}

	if v := getenv(EnvFromBlock); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvFromBlock, err)
		}
		cfg.FromBlock = n
	}

	durations := []struct {
		key string
		dst *time.Duration
		def time.Duration
	}{
		{EnvReceiptTimeout, &cfg.ReceiptTimeout, chain.DefaultReceiptTimeout},
		{EnvDebounce, &cfg.Debounce, time.Second},
		{EnvPollInterval, &cfg.PollInterval, 30 * time.Second},
		{EnvReconcileInterval, &cfg.ReconcileInterval, 0},
		{EnvRelayInterval, &cfg.RelayInterval, DefaultRelayInterval},
		{EnvPersistTimeout, &cfg.PersistTimeout, coordinator.DefaultPersistTimeout},
	}
	for _, d := range durations {
		*d.dst = d.def
		v := getenv(d.key)
		if v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return cfg, nil
}

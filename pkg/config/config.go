// Package config loads service configuration from environment variables and
// an optional YAML parameter seed file.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds server configuration.
type Config struct {
	Port     string
	LogLevel string

	// DatabaseDriver selects the ledger/params backend: "postgres", "sqlite"
	// or "memory".
	DatabaseDriver string
	DatabaseURL    string

	AttestorSeeds     string
	AttestorActiveKid string

	AdminToken     string
	DefaultCountry string
	ParamsFile     string

	WorldcheckURL       string
	WorldcheckLatencyMS int
	TLSInsecureSkip     bool

	AnchorInterval time.Duration
	AnchorBatch    int

	OTelEnabled  bool
	OTelEndpoint string
}

// Load reads configuration from environment variables, applying defaults
// suitable for a local single-binary deployment.
func Load() *Config {
	cfg := &Config{
		Port:                getenv("PORT", "8080"),
		LogLevel:            getenv("LOG_LEVEL", "INFO"),
		DatabaseDriver:      getenv("DATABASE_DRIVER", "memory"),
		DatabaseURL:         getenv("DATABASE_URL", ""),
		AttestorSeeds:       getenv("ATTESTOR_SEEDS", "ed25519:k1:dev-seed-1"),
		AttestorActiveKid:   getenv("ATTESTOR_ACTIVE_KID", "k1"),
		AdminToken:          getenv("ADMIN_TOKEN", "admin-dev-token"),
		DefaultCountry:      getenv("DEFAULT_COUNTRY", ""),
		ParamsFile:          getenv("PARAMS_FILE", ""),
		WorldcheckURL:       getenv("WORLDCHECK_URL", ""),
		WorldcheckLatencyMS: getint("WC_LATENCY_MAX_MS", 1500),
		TLSInsecureSkip:     getbool("TLS_INSECURE_SKIP_VERIFY"),
		AnchorInterval:      getduration("ANCHOR_INTERVAL", 10*time.Second),
		AnchorBatch:         getint("ANCHOR_BATCH", 1000),
		OTelEnabled:         getbool("OTEL_ENABLED"),
		OTelEndpoint:        getenv("OTEL_ENDPOINT", "localhost:4317"),
	}
	if cfg.DatabaseDriver == "postgres" && cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "postgres://contramind@localhost:5432/contramind?sslmode=disable"
	}
	if cfg.DatabaseDriver == "sqlite" && cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "file:contramind.db"
	}
	return cfg
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getbool(key string) bool {
	return os.Getenv(key) == "true" || os.Getenv(key) == "1"
}

func getduration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

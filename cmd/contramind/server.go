package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cicconel11/contramind-pilot/pkg/anchor"
	"github.com/cicconel11/contramind-pilot/pkg/api"
	"github.com/cicconel11/contramind-pilot/pkg/attestor"
	"github.com/cicconel11/contramind-pilot/pkg/config"
	"github.com/cicconel11/contramind-pilot/pkg/engine"
	"github.com/cicconel11/contramind-pilot/pkg/ledger"
	"github.com/cicconel11/contramind-pilot/pkg/observability"
	"github.com/cicconel11/contramind-pilot/pkg/oracle"
	"github.com/cicconel11/contramind-pilot/pkg/params"
)

func runServer(stderr io.Writer) int {
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		_, _ = fmt.Fprintf(stderr, "contramind: %v\n", err)
		return 1
	}
	return 0
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:    "contramind-pilot",
		ServiceVersion: "1.0.0",
		Environment:    "production",
		OTLPEndpoint:   cfg.OTelEndpoint,
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
		Enabled:        cfg.OTelEnabled,
		Insecure:       true,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	keyring, err := attestor.FromSeedSpec(cfg.AttestorSeeds, cfg.AttestorActiveKid)
	if err != nil {
		return fmt.Errorf("keyring: %w", err)
	}
	signer := attestor.NewService(keyring, logger)

	ledgerStore, paramStore, closeDB, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	if err := seedParams(ctx, cfg, paramStore); err != nil {
		return err
	}

	var checker oracle.Checker
	mux := http.NewServeMux()
	if cfg.WorldcheckURL != "" {
		checker = oracle.NewClient(cfg.WorldcheckURL, engine.OracleTimeout, cfg.TLSInsecureSkip)
		logger.Info("oracle: remote worldcheck", "url", cfg.WorldcheckURL)
	} else {
		sim := oracle.NewSimulator(time.Duration(cfg.WorldcheckLatencyMS) * time.Millisecond)
		sim.Register(mux)
		checker = sim
		logger.Info("oracle: in-process simulator", "max_latency_ms", cfg.WorldcheckLatencyMS)
	}

	eng := engine.New(paramStore, ledgerStore, signer, checker, logger).WithObservability(obs)
	eng.Register(mux)
	signer.Register(mux)
	params.NewAdminHandler(paramStore, cfg.AdminToken).Register(mux)

	worker := anchor.New(ledgerStore, signer, cfg.AnchorInterval, cfg.AnchorBatch, logger)
	go worker.Run(ctx)

	limiter := api.NewRateLimiter(50, 100)
	handler := api.RequestID(api.Logging(logger)(limiter.Middleware(obs.Middleware(mux))))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Port, "driver", cfg.DatabaseDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openStores wires the ledger and parameter stores for the configured driver.
// The parameter store is database-backed only on Postgres; sqlite and memory
// deployments keep parameters in memory.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (ledger.Store, params.Store, func(), error) {
	noop := func() {}
	switch cfg.DatabaseDriver {
	case "postgres":
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("postgres open: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, nil, noop, fmt.Errorf("postgres ping: %w", err)
		}
		ls, err := ledger.NewPostgresStore(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, nil, noop, fmt.Errorf("ledger migrate: %w", err)
		}
		ps, err := params.NewPostgresStore(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, nil, noop, fmt.Errorf("params migrate: %w", err)
		}
		logger.Info("postgres connected")
		return ls, ps, func() { _ = db.Close() }, nil

	case "sqlite":
		db, err := sql.Open("sqlite", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, noop, fmt.Errorf("sqlite open: %w", err)
		}
		ls, err := ledger.NewSQLiteStore(ctx, db)
		if err != nil {
			_ = db.Close()
			return nil, nil, noop, fmt.Errorf("ledger migrate: %w", err)
		}
		ps, err := memoryParams()
		if err != nil {
			_ = db.Close()
			return nil, nil, noop, err
		}
		logger.Info("sqlite opened", "url", cfg.DatabaseURL)
		return ls, ps, func() { _ = db.Close() }, nil

	case "memory":
		ps, err := memoryParams()
		if err != nil {
			return nil, nil, noop, err
		}
		logger.Warn("memory stores: nothing persists across restarts")
		return ledger.NewMemoryStore(), ps, noop, nil

	default:
		return nil, nil, noop, fmt.Errorf("unknown DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}
}

func memoryParams() (params.Store, error) {
	thresholds, allowlist := params.Defaults()
	store, err := params.NewMemoryStore(thresholds, allowlist)
	if err != nil {
		return nil, fmt.Errorf("params: %w", err)
	}
	return store, nil
}

// seedParams applies the optional YAML seed file and DEFAULT_COUNTRY on boot.
func seedParams(ctx context.Context, cfg *config.Config, store params.Store) error {
	if cfg.ParamsFile != "" {
		pf, err := config.LoadParamsFile(cfg.ParamsFile)
		if err != nil {
			return err
		}
		for name, value := range pf.Thresholds {
			if _, err := store.SetThreshold(ctx, name, value); err != nil {
				return fmt.Errorf("seed threshold %s: %w", name, err)
			}
		}
		for _, country := range pf.Allowlist {
			if _, err := store.SetAllowlist(ctx, country, "add"); err != nil {
				return fmt.Errorf("seed allowlist %s: %w", country, err)
			}
		}
	}
	if cfg.DefaultCountry != "" {
		if _, err := store.SetAllowlist(ctx, strings.ToUpper(cfg.DefaultCountry), "add"); err != nil {
			return fmt.Errorf("seed default country: %w", err)
		}
	}
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

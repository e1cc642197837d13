package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/cicconel11/contramind-pilot/pkg/config"
	"github.com/cicconel11/contramind-pilot/pkg/replay"
)

func runReplay(stdout, stderr io.Writer) int {
	cfg := config.Load()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)
	ctx := context.Background()

	ledgerStore, paramStore, closeDB, err := openStores(ctx, cfg, logger)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "contramind replay: %v\n", err)
		return 1
	}
	defer closeDB()

	report, err := replay.New(ledgerStore, paramStore, logger).Run(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "contramind replay: %v\n", err)
		return 1
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "contramind replay: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(stdout, string(out))
	if report.Drift > 0 {
		return 3
	}
	return 0
}

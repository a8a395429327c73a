// Command ingest populates the bar store: either by collecting live
// ticks over websocket and aggregating them into bars, or by importing
// a CSV file.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"quant_go/internal/app"
	"quant_go/internal/domain"
	"quant_go/internal/ingest"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", "", "path to config.yaml (default: standard lookup)")
		csvPath    = flag.String("csv", "", "import bars from this CSV file instead of collecting")
		symbol     = flag.String("symbol", "", "symbol for CSV import")
		interval   = flag.String("interval", "1m", "bar interval for CSV import")
	)
	flag.Parse()

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("bootstrap failed", slog.Any("error", err))
		return 1
	}
	defer bootstrap.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *csvPath != "" {
		return importCSV(ctx, bootstrap, *csvPath, *symbol, *interval)
	}

	cfg := bootstrap.Config
	if cfg.Ingest.WSURL == "" || len(cfg.Ingest.Symbols) == 0 {
		slog.Error("ingest requires ws_url and symbols in the config")
		return 1
	}
	iv, _ := domain.ParseInterval(cfg.Ingest.Interval)

	collector := ingest.NewCollector(cfg.Ingest.WSURL, cfg.Ingest.Symbols, iv, bootstrap.Store, bootstrap.Logger)
	collector.Start(ctx)
	slog.Info("collector started",
		slog.String("url", cfg.Ingest.WSURL),
		slog.Int("symbols", len(cfg.Ingest.Symbols)))

	<-ctx.Done()
	slog.Info("shutting down")
	collector.Stop()
	return 0
}

func importCSV(ctx context.Context, bootstrap *app.Bootstrap, path, symbol, interval string) int {
	if symbol == "" {
		slog.Error("-csv requires -symbol")
		return 1
	}
	iv, ok := domain.ParseInterval(interval)
	if !ok {
		slog.Error("invalid interval", slog.String("interval", interval))
		return 1
	}

	f, err := os.Open(path)
	if err != nil {
		slog.Error("cannot open CSV", slog.Any("error", err))
		return 1
	}
	defer f.Close()

	n, err := bootstrap.Store.ImportCSV(ctx, f, symbol, iv)
	if err != nil {
		slog.Error("import failed", slog.Any("error", err))
		return 1
	}
	slog.Info("import finished", slog.String("symbol", symbol), slog.Int("bars", n))
	return 0
}

// Package app wires process startup shared by the binaries: config,
// logging, workspace directories and the bar store.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"quant_go/internal/domain"
	"quant_go/internal/engine"
	"quant_go/internal/infra"
	"quant_go/internal/sim"
	"quant_go/internal/storage"
	"quant_go/pkg/quant"
)

// Bootstrap carries the initialized process-level components.
type Bootstrap struct {
	Config *infra.Config
	Store  *storage.BarStore
	Logger *slog.Logger
}

// NewBootstrap creates an empty bootstrap.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration, installs the logger and opens the
// bar store. configPath may be empty to use the standard lookup.
func (b *Bootstrap) Initialize(configPath string) error {
	if configPath == "" {
		configPath = infra.ResolveConfigPath()
	}
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	b.Config = cfg

	b.Logger = infra.NewLogger(os.Stderr, cfg.Logging.Level)
	slog.SetDefault(b.Logger)

	dbPath := cfg.Data.DBPath
	if dbPath == "" {
		dataDir := filepath.Join(infra.GetWorkspaceDir(), "data")
		if err := infra.EnsureDir(dataDir); err != nil {
			return fmt.Errorf("creating data dir: %w", err)
		}
		dbPath = filepath.Join(dataDir, "bars.db")
	}

	store, err := storage.NewBarStore(dbPath)
	if err != nil {
		return fmt.Errorf("opening bar store: %w", err)
	}
	b.Store = store
	slog.Info("bar store opened", slog.String("path", dbPath))
	return nil
}

// Close releases process-level resources.
func (b *Bootstrap) Close() {
	if b.Store != nil {
		b.Store.Close()
	}
}

// EngineConfig translates the run profile into an engine config,
// parsing the date range and the decimal-valued cost parameters.
func (b *Bootstrap) EngineConfig() (engine.Config, error) {
	run := b.Config.Run
	var cfg engine.Config

	interval, ok := domain.ParseInterval(run.Interval)
	if !ok {
		return cfg, fmt.Errorf("invalid interval %q", run.Interval)
	}
	start, err := time.Parse("2006-01-02", run.Start)
	if err != nil {
		return cfg, fmt.Errorf("invalid start date %q: %w", run.Start, err)
	}
	end, err := time.Parse("2006-01-02", run.End)
	if err != nil {
		return cfg, fmt.Errorf("invalid end date %q: %w", run.End, err)
	}
	// The end date is inclusive: extend to the last microsecond of the
	// day.
	end = end.AddDate(0, 0, 1).Add(-time.Microsecond)

	cost := sim.CostModel{Size: run.Size}
	switch run.CommissionMode {
	case "fixed":
		cost.Mode = sim.CommissionFixed
		cost.Fixed = quant.ToMoney(run.CommissionFixed)
	case "per_unit":
		cost.Mode = sim.CommissionPerUnit
		if cost.PerUnit, err = parseDecimal(run.CommissionPerUnit, "commission_per_unit"); err != nil {
			return cfg, err
		}
	default:
		cost.Mode = sim.CommissionRate
		if cost.Rate, err = parseDecimal(run.CommissionRate, "commission_rate"); err != nil {
			return cfg, err
		}
	}
	if cost.Slippage, err = parseDecimal(run.Slippage, "slippage"); err != nil {
		return cfg, err
	}
	marginRate, err := parseDecimal(run.MarginRate, "margin_rate")
	if err != nil {
		return cfg, err
	}

	stopRule := sim.RuleNextAvailable
	if run.StopFillRule == "stop_price" {
		stopRule = sim.RuleStopPrice
	}

	return engine.Config{
		Symbol:     run.Symbol,
		Interval:   interval,
		Start:      start,
		End:        end,
		Capital:    quant.ToMoney(run.Capital),
		Size:       run.Size,
		PriceTick:  quant.ToPriceMicros(run.PriceTick),
		MarginRate: marginRate,
		StopRule:   stopRule,
		Cost:       cost,
		AnnualDays: run.AnnualDays,
		RiskFree:   run.RiskFree,
		Strategy:   run.Strategy,
		Log:        b.Logger,
	}, nil
}

func parseDecimal(s, name string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return d, nil
}

// Command app runs one backtest from the configured run profile,
// prints the performance summary and writes the run report.
//
// Exit codes: 0 success, 1 module load failure, 2 corrupt data feed,
// 3 strategy fault mid-run.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"quant_go/internal/app"
	"quant_go/internal/domain"
	"quant_go/internal/engine"
	"quant_go/internal/report"

	_ "quant_go/internal/strategy" // register builtin strategies
)

const (
	exitOK            = 0
	exitLoadError     = 1
	exitDataError     = 2
	exitStrategyFault = 3
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", "", "path to config.yaml (default: standard lookup)")
		symbol     = flag.String("symbol", "", "instrument symbol")
		interval   = flag.String("interval", "", "bar interval: 1m, 1h or d")
		start      = flag.String("start", "", "start date YYYY-MM-DD")
		end        = flag.String("end", "", "end date YYYY-MM-DD, inclusive")
		strategy   = flag.String("strategy", "", "module reference: builtin:<name> or plugin path")
		capital    = flag.Float64("capital", 0, "starting capital")
		commission = flag.String("commission-rate", "", "commission as a fraction of turnover")
		slippage   = flag.String("slippage", "", "slippage per contract, in price units")
		size       = flag.Int64("size", 0, "contract multiplier")
		priceTick  = flag.Float64("price-tick", 0, "minimum price increment")
		stopRule   = flag.String("stop-fill-rule", "", "stop fill price: next_available or stop_price")
		reportPath = flag.String("report", "", "write the run report JSON to this path")
		reference  = flag.String("reference", "", "compare daily balances against this trace file")
	)
	flag.Parse()

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("bootstrap failed", slog.Any("error", err))
		return exitLoadError
	}
	defer bootstrap.Close()

	// Flags override the run profile.
	cfg := bootstrap.Config
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "symbol":
			cfg.Run.Symbol = *symbol
		case "interval":
			cfg.Run.Interval = *interval
		case "start":
			cfg.Run.Start = *start
		case "end":
			cfg.Run.End = *end
		case "strategy":
			cfg.Run.Strategy = *strategy
		case "capital":
			cfg.Run.Capital = *capital
		case "commission-rate":
			cfg.Run.CommissionMode = "rate"
			cfg.Run.CommissionRate = *commission
		case "slippage":
			cfg.Run.Slippage = *slippage
		case "size":
			cfg.Run.Size = *size
		case "price-tick":
			cfg.Run.PriceTick = *priceTick
		case "stop-fill-rule":
			cfg.Run.StopFillRule = *stopRule
		case "report":
			cfg.Run.ReportPath = *reportPath
		case "reference":
			cfg.Run.ReferenceTrace = *reference
		}
	})

	engineCfg, err := bootstrap.EngineConfig()
	if err != nil {
		slog.Error("invalid run profile", slog.Any("error", err))
		return exitLoadError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bt, err := engine.New(engineCfg)
	if err != nil {
		slog.Error("cannot start run", slog.Any("error", err))
		return classify(err)
	}

	rep, runErr := bt.Run(ctx, bootstrap.Store)
	if rep != nil {
		finishReport(cfg.Run.ReferenceTrace, cfg.Run.ReportPath, rep)
	}
	if runErr != nil {
		slog.Error("run failed", slog.Any("error", runErr))
		return classify(runErr)
	}
	return exitOK
}

// finishReport prints the summary, runs the optional reference
// comparison and writes the report file.
func finishReport(tracePath, reportPath string, rep *report.Report) {
	if tracePath != "" {
		f, err := os.Open(tracePath)
		if err != nil {
			slog.Error("cannot open reference trace", slog.Any("error", err))
		} else {
			defer f.Close()
			trace, err := report.LoadTrace(f)
			if err != nil {
				slog.Error("cannot read reference trace", slog.Any("error", err))
			} else if n := rep.CompareTrace(trace); n > 0 {
				slog.Warn("reference comparison found divergences", slog.Int("mismatches", n))
			}
		}
	}

	printSummary(rep)

	if reportPath != "" {
		if err := rep.SaveFile(reportPath); err != nil {
			slog.Error("cannot write report", slog.Any("error", err))
		} else {
			slog.Info("report written", slog.String("path", reportPath))
		}
	}
}

func printSummary(rep *report.Report) {
	m := rep.Metrics
	fmt.Printf("run:              %s\n", rep.RunID)
	fmt.Printf("period:           %s .. %s (%d days)\n",
		m.StartDate.Format("2006-01-02"), m.EndDate.Format("2006-01-02"), m.TotalDays)
	fmt.Printf("capital:          %.2f\n", m.Capital)
	fmt.Printf("end balance:      %.2f\n", m.EndBalance)
	fmt.Printf("total return:     %.2f%%\n", m.TotalReturn)
	fmt.Printf("annual return:    %.2f%%\n", m.AnnualReturn)
	fmt.Printf("max drawdown:     %.2f (%.2f%%, %d days)\n",
		m.MaxDrawdown, m.MaxDDPercent, m.MaxDrawdownDuration)
	fmt.Printf("total net pnl:    %.2f\n", m.TotalNetPnL)
	fmt.Printf("commission:       %.2f\n", m.TotalCommission)
	fmt.Printf("slippage:         %.2f\n", m.TotalSlippage)
	fmt.Printf("trades:           %d\n", m.TotalTradeCount)
	fmt.Printf("sharpe ratio:     %.2f\n", m.SharpeRatio)
	fmt.Printf("return/drawdown:  %.2f\n", m.ReturnDrawdownRatio)
	for _, w := range rep.Warnings {
		fmt.Printf("warning:          %s\n", w)
	}
}

func classify(err error) int {
	var (
		loadErr  *domain.LoadError
		verErr   *domain.IncompatibleModuleError
		dataErr  *domain.DataError
		faultErr *domain.StrategyFaultError
	)
	switch {
	case errors.As(err, &loadErr), errors.As(err, &verErr):
		return exitLoadError
	case errors.As(err, &dataErr):
		return exitDataError
	case errors.As(err, &faultErr):
		return exitStrategyFault
	}
	return exitLoadError
}

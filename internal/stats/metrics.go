package stats

import (
	"log/slog"
	"math"
	"time"
)

// Metrics are the aggregate performance numbers of one run. Returns
// are percentages; PnL figures are in account currency.
type Metrics struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	TotalDays  int `json:"total_days"`
	ProfitDays int `json:"profit_days"`
	LossDays   int `json:"loss_days"`

	Capital    float64 `json:"capital"`
	EndBalance float64 `json:"end_balance"`

	MaxDrawdown         float64 `json:"max_drawdown"`
	MaxDDPercent        float64 `json:"max_ddpercent"`
	MaxDrawdownDuration int     `json:"max_drawdown_duration"` // calendar days

	TotalNetPnL     float64 `json:"total_net_pnl"`
	DailyNetPnL     float64 `json:"daily_net_pnl"`
	TotalCommission float64 `json:"total_commission"`
	TotalSlippage   float64 `json:"total_slippage"`
	TotalTurnover   float64 `json:"total_turnover"`
	TotalTradeCount int     `json:"total_trade_count"`
	DailyTradeCount float64 `json:"daily_trade_count"`

	TotalReturn  float64 `json:"total_return"`
	AnnualReturn float64 `json:"annual_return"`
	DailyReturn  float64 `json:"daily_return"`
	ReturnStd    float64 `json:"return_std"`

	SharpeRatio         float64 `json:"sharpe_ratio"`
	ReturnDrawdownRatio float64 `json:"return_drawdown_ratio"`

	// Liquidated is set when the balance went non-positive; the ratio
	// statistics above are meaningless then and left zero.
	Liquidated bool `json:"liquidated"`
}

// TODO: EWM-smoothed Sharpe once a halflife parameter lands in the run
// config.

// ComputeMetrics derives the aggregate metrics from the chained daily
// results, filling each day's balance, log return and drawdown fields
// in place. annualDays is the trading-day count used to annualize;
// riskFree is the annual risk-free rate.
func ComputeMetrics(daily []DailyResult, capital float64, annualDays int, riskFree float64) Metrics {
	m := Metrics{Capital: capital}
	if len(daily) == 0 || capital <= 0 {
		return m
	}

	// Balance curve and log returns.
	balance := capital
	for i := range daily {
		d := &daily[i]
		pre := balance
		balance += d.NetPnL
		d.Balance = balance
		if x := balance / pre; x > 0 {
			d.Return = math.Log(x)
		}
		if balance <= 0 {
			m.Liquidated = true
		}
	}

	// Running peak and drawdown.
	peak := math.Inf(-1)
	for i := range daily {
		d := &daily[i]
		peak = math.Max(peak, d.Balance)
		d.Drawdown = d.Balance - peak
		d.DDPercent = d.Drawdown / peak * 100
	}

	m.StartDate = daily[0].Date
	m.EndDate = daily[len(daily)-1].Date
	m.TotalDays = len(daily)
	m.EndBalance = daily[len(daily)-1].Balance

	if m.Liquidated {
		slog.Warn("account liquidated during run, ratio statistics unavailable")
		return m
	}

	var sumReturn float64
	troughIdx := 0
	for i, d := range daily {
		switch {
		case d.NetPnL > 0:
			m.ProfitDays++
		case d.NetPnL < 0:
			m.LossDays++
		}
		m.TotalNetPnL += d.NetPnL
		m.TotalCommission += d.Commission
		m.TotalSlippage += d.Slippage
		m.TotalTurnover += d.Turnover
		m.TotalTradeCount += d.TradeCount
		sumReturn += d.Return

		if d.Drawdown < daily[troughIdx].Drawdown {
			troughIdx = i
		}
		if d.Drawdown < m.MaxDrawdown {
			m.MaxDrawdown = d.Drawdown
			m.MaxDDPercent = d.DDPercent
		}
	}
	m.DailyNetPnL = m.TotalNetPnL / float64(m.TotalDays)
	m.DailyTradeCount = float64(m.TotalTradeCount) / float64(m.TotalDays)

	// Longest drawdown: from the balance peak preceding the deepest
	// trough to the trough itself, in calendar days.
	peakIdx := 0
	for i := 0; i <= troughIdx; i++ {
		if daily[i].Balance > daily[peakIdx].Balance {
			peakIdx = i
		}
	}
	m.MaxDrawdownDuration = int(daily[troughIdx].Date.Sub(daily[peakIdx].Date).Hours() / 24)

	m.TotalReturn = (m.EndBalance/capital - 1) * 100
	m.AnnualReturn = m.TotalReturn / float64(m.TotalDays) * float64(annualDays)
	m.DailyReturn = sumReturn / float64(m.TotalDays) * 100

	var sumSq float64
	mean := sumReturn / float64(m.TotalDays)
	for _, d := range daily {
		diff := d.Return - mean
		sumSq += diff * diff
	}
	m.ReturnStd = math.Sqrt(sumSq/float64(m.TotalDays)) * 100

	if m.ReturnStd != 0 {
		dailyRiskFree := riskFree / math.Sqrt(float64(annualDays))
		m.SharpeRatio = (m.DailyReturn - dailyRiskFree) / m.ReturnStd * math.Sqrt(float64(annualDays))
	}
	if m.MaxDDPercent != 0 {
		m.ReturnDrawdownRatio = -m.TotalReturn / m.MaxDDPercent
	}
	return m
}

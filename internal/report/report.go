// Package report assembles the artifacts of one finished run: the
// daily results, aggregate metrics, trade log and equity curve, under
// a unique run id.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/google/uuid"

	"quant_go/internal/domain"
	"quant_go/internal/stats"
)

// precisionTolerance is the relative divergence beyond which a
// reference comparison counts as a mismatch rather than float noise.
const precisionTolerance = 1e-6

// Report is the immutable output of one run.
type Report struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`

	Symbol   string    `json:"symbol"`
	Interval string    `json:"interval"`
	Strategy string    `json:"strategy"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`

	Metrics   stats.Metrics            `json:"metrics"`
	Daily     []stats.DailyResult      `json:"daily"`
	Trades    []domain.Trade           `json:"trades"`
	Snapshots []domain.AccountSnapshot `json:"snapshots"`

	// Warnings carry non-fatal findings: strategy faults, reference
	// divergences. An empty slice means a clean run.
	Warnings []string `json:"warnings,omitempty"`
}

// New stamps a report shell with a fresh run id.
func New(symbol, interval, strategy string, start, end time.Time) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Symbol:    symbol,
		Interval:  interval,
		Strategy:  strategy,
		Start:     start,
		End:       end,
	}
}

// AddWarning appends a non-fatal finding.
func (r *Report) AddWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// WriteJSON writes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// SaveFile writes the report to path, overwriting.
func (r *Report) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	defer f.Close()
	if err := r.WriteJSON(f); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return f.Close()
}

// TracePoint is one day of a reference balance trace produced by
// another implementation of the same run.
type TracePoint struct {
	Date    string  `json:"date"` // YYYY-MM-DD
	Balance float64 `json:"balance"`
}

// LoadTrace reads a reference trace from JSON.
func LoadTrace(rd io.Reader) ([]TracePoint, error) {
	var trace []TracePoint
	if err := json.NewDecoder(rd).Decode(&trace); err != nil {
		return nil, fmt.Errorf("decoding reference trace: %w", err)
	}
	return trace, nil
}

// CompareTrace checks the report's daily balances against a reference
// trace and records one warning per divergence beyond the relative
// tolerance. Returns the number of mismatches.
func (r *Report) CompareTrace(trace []TracePoint) int {
	byDate := make(map[string]float64, len(r.Daily))
	for _, d := range r.Daily {
		byDate[d.Date.Format("2006-01-02")] = d.Balance
	}

	mismatches := 0
	for _, p := range trace {
		got, ok := byDate[p.Date]
		if !ok {
			mismatches++
			r.AddWarning("precision mismatch on %s: reference balance %.6f, no local result", p.Date, p.Balance)
			continue
		}
		if relativeDiff(got, p.Balance) > precisionTolerance {
			mismatches++
			r.AddWarning("precision mismatch on %s: balance %.6f, reference %.6f", p.Date, got, p.Balance)
		}
	}
	return mismatches
}

func relativeDiff(a, b float64) float64 {
	scale := math.Max(math.Abs(b), 1)
	return math.Abs(a-b) / scale
}

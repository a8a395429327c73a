package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/glebarez/go-sqlite"

	"quant_go/internal/domain"
	"quant_go/pkg/quant"
)

// BarStore keeps historical bars in SQLite, keyed by
// (symbol, interval, timestamp).
type BarStore struct {
	db *sql.DB
}

// NewBarStore opens (and if needed initializes) a bar database.
func NewBarStore(dbPath string) (*BarStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;", // 2MB cache
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS bars (
			symbol   TEXT NOT NULL,
			interval TEXT NOT NULL,
			ts       INTEGER NOT NULL,
			open     INTEGER NOT NULL,
			high     INTEGER NOT NULL,
			low      INTEGER NOT NULL,
			close    INTEGER NOT NULL,
			volume   INTEGER NOT NULL,
			PRIMARY KEY (symbol, interval, ts)
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create bars table: %w", err)
	}

	return &BarStore{db: db}, nil
}

// SaveBars upserts a batch of bars inside one transaction.
func (s *BarStore) SaveBars(ctx context.Context, bars []domain.Bar) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (symbol, interval, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, interval, ts) DO UPDATE SET
			open=excluded.open, high=excluded.high, low=excluded.low,
			close=excluded.close, volume=excluded.volume
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range bars {
		_, err := stmt.ExecContext(ctx,
			b.Symbol, string(b.Interval), int64(b.Ts),
			int64(b.Open), int64(b.High), int64(b.Low), int64(b.Close),
			int64(b.Volume),
		)
		if err != nil {
			return fmt.Errorf("failed to insert bar ts=%d: %w", b.Ts, err)
		}
	}

	return tx.Commit()
}

// LoadBarsPage returns up to limit bars with from <= ts <= end, ordered
// by timestamp. The replayer pages through history with this call.
func (s *BarStore) LoadBarsPage(ctx context.Context, symbol string, interval domain.Interval, from, end quant.TimeStamp, limit int) ([]domain.Bar, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume FROM bars
		WHERE symbol = ? AND interval = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC LIMIT ?
	`, symbol, string(interval), int64(from), int64(end), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars: %w", err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		b := domain.Bar{Symbol: symbol, Interval: interval}
		var ts, open, high, low, closeP, volume int64
		if err := rows.Scan(&ts, &open, &high, &low, &closeP, &volume); err != nil {
			return nil, fmt.Errorf("failed to scan bar: %w", err)
		}
		b.Ts = quant.TimeStamp(ts)
		b.Open = quant.PriceMicros(open)
		b.High = quant.PriceMicros(high)
		b.Low = quant.PriceMicros(low)
		b.Close = quant.PriceMicros(closeP)
		b.Volume = quant.VolumeMilli(volume)
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return bars, nil
}

// CountBars returns the number of stored bars for a series.
func (s *BarStore) CountBars(ctx context.Context, symbol string, interval domain.Interval) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM bars WHERE symbol = ? AND interval = ?",
		symbol, string(interval),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count bars: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *BarStore) Close() error {
	return s.db.Close()
}

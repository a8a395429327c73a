package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"quant_go/internal/domain"
	"quant_go/pkg/quant"
)

// csvTimeLayout is the datetime format of exported candle files.
const csvTimeLayout = "2006-01-02 15:04:05"

// ImportCSV reads candle rows (datetime, open, high, low, close,
// volume) and saves them as bars. A header row is skipped when the
// first field does not parse as a datetime. Returns the number of bars
// imported.
func (s *BarStore) ImportCSV(ctx context.Context, r io.Reader, symbol string, interval domain.Interval) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = 6

	var bars []domain.Bar
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("csv read failed at line %d: %w", line+1, err)
		}
		line++

		ts, err := time.Parse(csvTimeLayout, record[0])
		if err != nil {
			if line == 1 {
				continue // header row
			}
			return 0, fmt.Errorf("bad datetime %q at line %d: %w", record[0], line, err)
		}

		bar := domain.Bar{
			Symbol:   symbol,
			Interval: interval,
			Ts:       quant.FromTime(ts.UTC()),
		}
		prices := []*quant.PriceMicros{&bar.Open, &bar.High, &bar.Low, &bar.Close}
		for i, dst := range prices {
			p, err := quant.ParsePrice(record[i+1])
			if err != nil {
				return 0, fmt.Errorf("bad price %q at line %d: %w", record[i+1], line, err)
			}
			*dst = p
		}
		v, err := quant.ParseVolume(record[5])
		if err != nil {
			return 0, fmt.Errorf("bad volume %q at line %d: %w", record[5], line, err)
		}
		bar.Volume = v

		bars = append(bars, bar)
	}

	if len(bars) == 0 {
		return 0, nil
	}
	if err := s.SaveBars(ctx, bars); err != nil {
		return 0, err
	}
	return len(bars), nil
}

package feed

import (
	"context"
	"fmt"
	"log/slog"

	"quant_go/internal/domain"
	"quant_go/pkg/quant"
)

// BarSource is the external storage collaborator the replayer reads
// from. Implementations must return bars ordered by timestamp.
type BarSource interface {
	LoadBarsPage(ctx context.Context, symbol string, interval domain.Interval, from, end quant.TimeStamp, limit int) ([]domain.Bar, error)
}

// defaultChunkSize is the page size fetched ahead of consumption.
const defaultChunkSize = 4096

// prefetchDepth bounds how many chunks may sit between the fetcher and
// the replay loop. The channel applies backpressure beyond that.
const prefetchDepth = 2

// Replayer streams historical bars for one instrument in strictly
// increasing timestamp order. Reading ahead happens on a side
// goroutine; ordering validation happens before anything is handed to
// the caller, so prefetch is invisible to the replay loop.
type Replayer struct {
	source    BarSource
	chunkSize int
}

// NewReplayer creates a replayer over the given source.
func NewReplayer(source BarSource) *Replayer {
	return &Replayer{source: source, chunkSize: defaultChunkSize}
}

type chunk struct {
	bars []domain.Bar
	err  error
}

// Stream is one run's lazy, finite bar sequence. Not goroutine-safe;
// it belongs to a single replay loop.
type Stream struct {
	cancel context.CancelFunc
	ch     chan chunk

	cur []domain.Bar
	idx int
	bar domain.Bar
	err error
	eof bool
}

// Open starts streaming bars in [start, end]. The returned stream is
// fresh per run and must be closed when the run ends.
func (r *Replayer) Open(ctx context.Context, symbol string, interval domain.Interval, start, end quant.TimeStamp) (*Stream, error) {
	if start > end {
		return nil, fmt.Errorf("start %d after end %d", start, end)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		cancel: cancel,
		ch:     make(chan chunk, prefetchDepth),
	}
	go r.fetch(ctx, symbol, interval, start, end, s.ch)
	return s, nil
}

// fetch pages through the source, validates each record, and feeds
// chunks to the consumer. It never reorders or skips records.
func (r *Replayer) fetch(ctx context.Context, symbol string, interval domain.Interval, start, end quant.TimeStamp, out chan<- chunk) {
	defer close(out)

	from := start
	lastTs := quant.TimeStamp(-1 << 62)
	total := 0

	for {
		bars, err := r.source.LoadBarsPage(ctx, symbol, interval, from, end, r.chunkSize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			out <- chunk{err: fmt.Errorf("loading bars for %s: %w", symbol, err)}
			return
		}
		if len(bars) == 0 {
			slog.Debug("replay stream exhausted", slog.String("symbol", symbol), slog.Int("bars", total))
			return
		}

		for i := range bars {
			if err := validateBar(&bars[i], lastTs); err != nil {
				// Deliver the validated prefix, then the error: records
				// before the corrupt one replay in order.
				if i > 0 {
					select {
					case out <- chunk{bars: bars[:i]}:
					case <-ctx.Done():
						return
					}
				}
				select {
				case out <- chunk{err: err}:
				case <-ctx.Done():
				}
				return
			}
			lastTs = bars[i].Ts
		}
		total += len(bars)
		from = lastTs + 1

		select {
		case out <- chunk{bars: bars}:
		case <-ctx.Done():
			return
		}
	}
}

func validateBar(b *domain.Bar, lastTs quant.TimeStamp) error {
	if b.Ts <= lastTs {
		return &domain.DataError{
			Symbol: b.Symbol,
			Record: fmt.Sprintf("%+v", *b),
			Reason: fmt.Sprintf("timestamp %d not after previous %d", b.Ts, lastTs),
		}
	}
	if b.High < b.Low || b.Open < b.Low || b.Open > b.High || b.Close < b.Low || b.Close > b.High {
		return &domain.DataError{
			Symbol: b.Symbol,
			Record: fmt.Sprintf("%+v", *b),
			Reason: "inconsistent OHLC range",
		}
	}
	if b.Volume < 0 {
		return &domain.DataError{
			Symbol: b.Symbol,
			Record: fmt.Sprintf("%+v", *b),
			Reason: "negative volume",
		}
	}
	return nil
}

// Next advances to the next bar. It returns false at end-of-data or on
// error; Err distinguishes the two.
func (s *Stream) Next() bool {
	if s.err != nil || s.eof {
		return false
	}
	for s.idx >= len(s.cur) {
		c, ok := <-s.ch
		if !ok {
			s.eof = true
			return false
		}
		if c.err != nil {
			s.err = c.err
			return false
		}
		s.cur = c.bars
		s.idx = 0
	}
	s.bar = s.cur[s.idx]
	s.idx++
	return true
}

// Bar returns the current bar after a successful Next.
func (s *Stream) Bar() domain.Bar { return s.bar }

// Err returns the terminal error, if any.
func (s *Stream) Err() error { return s.err }

// Close stops the prefetcher. Safe to call more than once.
func (s *Stream) Close() {
	s.cancel()
}

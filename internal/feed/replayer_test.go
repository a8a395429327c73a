package feed

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"quant_go/internal/domain"
	"quant_go/pkg/quant"
)

// sliceSource serves bars from memory, honoring the paging contract.
type sliceSource struct {
	bars  []domain.Bar
	calls atomic.Int64
}

func (s *sliceSource) LoadBarsPage(_ context.Context, symbol string, interval domain.Interval, from, end quant.TimeStamp, limit int) ([]domain.Bar, error) {
	s.calls.Add(1)
	var page []domain.Bar
	for _, b := range s.bars {
		if b.Ts >= from && b.Ts <= end {
			page = append(page, b)
			if len(page) == limit {
				break
			}
		}
	}
	return page, nil
}

func makeBars(n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	for i := range bars {
		p := quant.PriceMicros(100_000_000 + int64(i)*1_000_000)
		bars[i] = domain.Bar{
			Symbol:   "IF888.LOCAL",
			Interval: domain.IntervalDaily,
			Ts:       quant.TimeStamp(int64(i+1) * 1000),
			Open:     p, High: p + 500_000, Low: p - 500_000, Close: p,
			Volume: 1000,
		}
	}
	return bars
}

func collect(t *testing.T, st *Stream) ([]domain.Bar, error) {
	t.Helper()
	defer st.Close()
	var got []domain.Bar
	for st.Next() {
		got = append(got, st.Bar())
	}
	return got, st.Err()
}

func TestReplayer_StreamsInOrder(t *testing.T) {
	src := &sliceSource{bars: makeBars(10)}
	r := NewReplayer(src)
	r.chunkSize = 3 // force multiple pages

	st, err := r.Open(context.Background(), "IF888.LOCAL", domain.IntervalDaily, 0, 1<<62)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	got, err := collect(t, st)
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("got %d bars, want 10", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Ts <= got[i-1].Ts {
			t.Fatalf("bar %d ts %d not after %d", i, got[i].Ts, got[i-1].Ts)
		}
	}
}

func TestReplayer_RangeFilter(t *testing.T) {
	src := &sliceSource{bars: makeBars(10)}
	st, err := NewReplayer(src).Open(context.Background(), "IF888.LOCAL", domain.IntervalDaily, 3000, 7000)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	got, err := collect(t, st)
	if err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d bars, want 5", len(got))
	}
	if got[0].Ts != 3000 || got[4].Ts != 7000 {
		t.Errorf("range = [%d, %d], want [3000, 7000]", got[0].Ts, got[4].Ts)
	}
}

func TestReplayer_OutOfOrderIsDataError(t *testing.T) {
	bars := makeBars(5)
	bars[3].Ts = bars[1].Ts // duplicate/backwards timestamp
	src := &sliceSource{bars: bars}

	st, err := NewReplayer(src).Open(context.Background(), "IF888.LOCAL", domain.IntervalDaily, 0, 1<<62)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	got, err := collect(t, st)

	var dataErr *domain.DataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("expected DataError, got %v", err)
	}
	if dataErr.Record == "" {
		t.Error("DataError should carry the offending record")
	}
	// Records before the bad one were delivered in order.
	if len(got) != 3 {
		t.Errorf("delivered %d bars before the error, want 3", len(got))
	}
}

func TestReplayer_MalformedBarIsDataError(t *testing.T) {
	bars := makeBars(3)
	bars[1].Low = bars[1].High + 1 // impossible range
	src := &sliceSource{bars: bars}

	st, err := NewReplayer(src).Open(context.Background(), "IF888.LOCAL", domain.IntervalDaily, 0, 1<<62)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_, err = collect(t, st)

	var dataErr *domain.DataError
	if !errors.As(err, &dataErr) {
		t.Fatalf("expected DataError, got %v", err)
	}
}

func TestReplayer_CloseStopsPrefetch(t *testing.T) {
	src := &sliceSource{bars: makeBars(100)}
	r := NewReplayer(src)
	r.chunkSize = 1

	st, err := r.Open(context.Background(), "IF888.LOCAL", domain.IntervalDaily, 0, 1<<62)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if !st.Next() {
		t.Fatal("expected at least one bar")
	}
	st.Close()

	// Prefetch is bounded: far fewer pages were fetched than exist.
	if n := src.calls.Load(); n > prefetchDepth+3 {
		t.Errorf("prefetcher fetched %d pages after close, want bounded", n)
	}
}

package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"quant_go/internal/domain"
	"quant_go/internal/infra"
	"quant_go/pkg/quant"
)

// BarSink receives finished bars. Satisfied by storage.BarStore.
type BarSink interface {
	SaveBars(ctx context.Context, bars []domain.Bar) error
}

// wireTick is the feed's tick message. Prices and volumes arrive as
// strings so precision survives the JSON float path.
type wireTick struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
	Volume string `json:"volume"`
	Ts     int64  `json:"ts"` // unix microseconds
}

type subscribeMsg struct {
	Op      string   `json:"op"`
	Symbols []string `json:"symbols"`
}

// Collector maintains one websocket subscription, folds the tick
// stream into bars per symbol, and persists each finished bar. It
// reconnects with exponential backoff and resubscribes on connect.
type Collector struct {
	url      string
	symbols  []string
	interval domain.Interval
	sink     BarSink
	log      *slog.Logger

	ReadTimeout  time.Duration
	PingInterval time.Duration

	mu   sync.Mutex
	gens map[string]*BarGenerator

	// Guards the store: a broken database must not stall the read
	// loop behind per-bar write retries.
	breaker *infra.CircuitBreaker

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCollector creates a collector for the given symbols.
func NewCollector(url string, symbols []string, interval domain.Interval, sink BarSink, log *slog.Logger) *Collector {
	if log == nil {
		log = slog.Default()
	}
	return &Collector{
		url:          url,
		symbols:      symbols,
		interval:     interval,
		sink:         sink,
		log:          log,
		ReadTimeout:  60 * time.Second,
		PingInterval: 30 * time.Second,
		gens:         make(map[string]*BarGenerator),
		breaker:      infra.NewCircuitBreaker(infra.DefaultCircuitBreakerConfig("bar-store")),
	}
}

// Start launches the connection loop.
func (c *Collector) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go c.runLoop(ctx)
}

// Stop terminates the collector and flushes in-progress bars.
func (c *Collector) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, g := range c.gens {
		g.Flush()
	}
}

func (c *Collector) runLoop(ctx context.Context) {
	defer c.wg.Done()
	retry := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := c.connect(ctx)
		if err != nil {
			delay := infra.CalculateBackoff(retry)
			retry++
			c.log.Warn("feed connection failed",
				slog.String("url", c.url),
				slog.Int("retry", retry),
				slog.Any("err", err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
				continue
			}
		}

		retry = 0
		c.process(ctx, conn)
		conn.Close()
	}
}

func (c *Collector) connect(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, err
	}

	sub := subscribeMsg{Op: "subscribe", Symbols: c.symbols}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		return nil, fmt.Errorf("subscribing: %w", err)
	}
	c.log.Info("feed connected", slog.String("url", c.url), slog.Int("symbols", len(c.symbols)))
	return conn, nil
}

func (c *Collector) process(ctx context.Context, conn *websocket.Conn) {
	stopPing := make(chan struct{})
	defer close(stopPing)
	if c.PingInterval > 0 {
		go c.pingLoop(conn, stopPing)
	}
	// A pending ReadMessage only returns when the socket closes, so
	// shutdown must close it rather than wait out the read deadline.
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stopPing:
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(c.ReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.log.Warn("feed read error", slog.Any("err", err))
			}
			return
		}
		c.onMessage(ctx, msg)
	}
}

func (c *Collector) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			deadline := time.Now().Add(10 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}

func (c *Collector) onMessage(ctx context.Context, msg []byte) {
	tick, err := parseTick(msg)
	if err != nil {
		c.log.Warn("dropping malformed tick", slog.Any("err", err))
		return
	}

	c.mu.Lock()
	gen, ok := c.gens[tick.Symbol]
	if !ok {
		gen = NewBarGenerator(c.interval, func(b domain.Bar) { c.saveBar(ctx, b) })
		c.gens[tick.Symbol] = gen
	}
	gen.OnTick(tick)
	c.mu.Unlock()
}

func (c *Collector) saveBar(ctx context.Context, b domain.Bar) {
	if !c.breaker.Allow() {
		c.log.Warn("bar store unavailable, dropping bar",
			slog.String("symbol", b.Symbol))
		return
	}
	if err := c.sink.SaveBars(ctx, []domain.Bar{b}); err != nil {
		c.breaker.RecordFailure()
		c.log.Error("saving bar failed",
			slog.String("symbol", b.Symbol),
			slog.Any("err", err))
		return
	}
	c.breaker.RecordSuccess()
	c.log.Debug("bar saved",
		slog.String("symbol", b.Symbol),
		slog.String("close", b.Close.String()))
}

func parseTick(msg []byte) (domain.Tick, error) {
	var w wireTick
	if err := json.Unmarshal(msg, &w); err != nil {
		return domain.Tick{}, err
	}
	if w.Symbol == "" {
		return domain.Tick{}, fmt.Errorf("tick without symbol")
	}
	price, err := quant.ParsePrice(w.Price)
	if err != nil {
		return domain.Tick{}, fmt.Errorf("tick price %q: %w", w.Price, err)
	}
	volume, err := quant.ParseVolume(w.Volume)
	if err != nil {
		return domain.Tick{}, fmt.Errorf("tick volume %q: %w", w.Volume, err)
	}
	return domain.Tick{
		Symbol: w.Symbol,
		Ts:     quant.TimeStamp(w.Ts),
		Last:   price,
		Volume: volume,
	}, nil
}

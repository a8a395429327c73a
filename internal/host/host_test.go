package host

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quant_go/internal/domain"
	"quant_go/internal/event"
	"quant_go/pkg/contract"
	"quant_go/pkg/quant"
)

// scriptModule drives host tests with per-callback hooks.
type scriptModule struct {
	ctx     contract.Context
	bars    []contract.Bar
	updates []contract.OrderUpdate
	onBar   func(contract.Bar)
	stopped bool
}

func (m *scriptModule) Init(ctx contract.Context) error { m.ctx = ctx; return nil }
func (m *scriptModule) Start() error                    { return nil }
func (m *scriptModule) Stop() error                     { m.stopped = true; return nil }
func (m *scriptModule) OnBar(b contract.Bar) {
	m.bars = append(m.bars, b)
	if m.onBar != nil {
		m.onBar(b)
	}
}
func (m *scriptModule) OnTick(contract.Tick) {}
func (m *scriptModule) OnOrderUpdate(u contract.OrderUpdate) {
	m.updates = append(m.updates, u)
}
func (m *scriptModule) OnTradeFill(contract.TradeFill) {}

type seqIDs int

func (s *seqIDs) NextOrderID() string { *s++; return fmt.Sprintf("%d", *s) }

type flatPositions struct{}

func (flatPositions) Position(symbol string) domain.Position {
	return domain.Position{Symbol: symbol, Volume: 1500}
}

func newTestHost(m contract.Module) (*Host, *event.Bus) {
	bus := event.NewBus()
	ids := new(seqIDs)
	return NewHost(m, bus, ids, flatPositions{}, nil), bus
}

func testBar(ts int64) domain.Bar {
	return domain.Bar{Symbol: "ETH.LOCAL", Ts: quant.TimeStamp(ts), Open: 100, High: 110, Low: 90, Close: 105}
}

func TestHost_ForwardsBars(t *testing.T) {
	m := &scriptModule{}
	h, _ := newTestHost(m)
	require.NoError(t, h.Init())
	require.NoError(t, h.Start())

	h.OnBar(domain.Bar{Symbol: "ETH.LOCAL", Ts: 42, Close: 105_000_000})
	require.Len(t, m.bars, 1)
	assert.Equal(t, "ETH.LOCAL", m.bars[0].Symbol)
	assert.Equal(t, int64(105_000_000), m.bars[0].Close)

	require.NoError(t, h.Stop())
	assert.True(t, m.stopped)
}

func TestHost_PanicDetachesModule(t *testing.T) {
	m := &scriptModule{}
	m.onBar = func(b contract.Bar) {
		if len(m.bars) == 2 {
			panic("boom")
		}
	}
	h, _ := newTestHost(m)
	require.NoError(t, h.Init())

	h.OnBar(domain.Bar{Ts: 1})
	assert.False(t, h.Faulted())

	h.OnBar(domain.Bar{Ts: 2})
	require.True(t, h.Faulted())
	assert.Equal(t, "OnBar", h.Fault().Callback)

	// Nothing more reaches the module.
	h.OnBar(domain.Bar{Ts: 3})
	h.OnOrderUpdate(domain.Order{ID: "1"})
	assert.Len(t, m.bars, 2)
	assert.Empty(t, m.updates)

	// Stop still runs so the module can release resources, and the
	// fault survives it: the run's outcome depends on it afterwards.
	require.NoError(t, h.Stop())
	assert.True(t, m.stopped)
	require.NotNil(t, h.Fault())
	assert.Equal(t, "OnBar", h.Fault().Callback)
}

func TestHost_StopPanicDoesNotReplaceEarlierFault(t *testing.T) {
	m := &scriptModule{}
	m.onBar = func(contract.Bar) { panic("boom") }
	h, _ := newTestHost(m)
	require.NoError(t, h.Init())
	h.OnBar(domain.Bar{Ts: 1})
	require.True(t, h.Faulted())

	panicky := &panickyStop{scriptModule: m}
	h.module = panicky
	require.NoError(t, h.Stop())
	assert.Equal(t, "OnBar", h.Fault().Callback, "first fault wins")
}

type panickyStop struct{ *scriptModule }

func (p *panickyStop) Stop() error { panic("stop boom") }

func TestHost_SendOrderIsDeferred(t *testing.T) {
	var inCallback bool
	var dispatched []string

	m := &scriptModule{}
	m.onBar = func(contract.Bar) {
		inCallback = true
		id := m.ctx.SendOrder(contract.OrderSpec{
			Symbol: "ETH.LOCAL", Direction: contract.Long,
			Type: contract.Limit, Price: 100_000_000, Volume: 1000,
		})
		assert.Equal(t, "1", id) // id handed back synchronously
		assert.Empty(t, dispatched, "submission must not dispatch inside the callback")
		inCallback = false
	}

	h, bus := newTestHost(m)
	require.NoError(t, h.Init())

	bus.Subscribe(event.EvSubmitOrder, func(e event.Event) {
		assert.False(t, inCallback)
		sub := e.(event.SubmitOrderEvent)
		dispatched = append(dispatched, sub.AssignedID)
		assert.Equal(t, domain.Limit, sub.Request.Type)
	})
	bus.Subscribe(event.EvBar, func(e event.Event) {
		h.OnBar(e.(event.BarEvent).Bar)
	})

	bus.Publish(event.BarEvent{Bar: testBar(1)})
	require.Equal(t, []string{"1"}, dispatched)
}

func TestHost_PositionView(t *testing.T) {
	m := &scriptModule{}
	h, _ := newTestHost(m)
	require.NoError(t, h.Init())
	assert.Equal(t, int64(1500), m.ctx.Position("ETH.LOCAL"))
}

func TestLoad_Builtin(t *testing.T) {
	RegisterBuiltin("test-script", func() contract.Module { return &scriptModule{} })

	mod, err := Load("builtin:test-script")
	require.NoError(t, err)
	assert.IsType(t, &scriptModule{}, mod)
	assert.Contains(t, BuiltinNames(), "test-script")
}

func TestLoad_UnknownBuiltin(t *testing.T) {
	_, err := Load("builtin:no-such-strategy")
	var loadErr *domain.LoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/strategy.so")
	var loadErr *domain.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "/nonexistent/strategy.so", loadErr.Path)
}

package event

// Handler consumes one event during synchronous dispatch.
type Handler func(ev Event)

// Bus is the in-process, ordered publish/dispatch core. Publish is
// synchronous: every subscriber of the event's kind runs, in
// subscription order, before Publish returns to a non-reentrant caller.
// Publishes issued from inside a handler are enqueued and dispatched
// FIFO after the current dispatch completes, which keeps ordering
// deterministic and the call stack flat.
//
// The bus belongs to a single run's replay loop and is intentionally
// not goroutine-safe.
type Bus struct {
	handlers    map[Type][]Handler
	queue       []Event
	dispatching bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[Type][]Handler)}
}

// Subscribe registers a handler for one event kind. Handlers run in
// subscription order.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.handlers[t] = append(b.handlers[t], h)
}

// Publish dispatches the event to all subscribers of its kind. If a
// dispatch is already in progress the event is queued behind it.
func (b *Bus) Publish(ev Event) {
	b.queue = append(b.queue, ev)
	if b.dispatching {
		return
	}

	b.dispatching = true
	defer func() { b.dispatching = false }()

	for len(b.queue) > 0 {
		next := b.queue[0]
		b.queue = b.queue[1:]
		for _, h := range b.handlers[next.GetType()] {
			h(next)
		}
	}
}

// Drain discards queued events. Used when a run aborts mid-dispatch.
func (b *Bus) Drain() {
	b.queue = b.queue[:0]
}

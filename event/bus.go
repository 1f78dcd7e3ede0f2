package event

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/batonhq/baton"
	"github.com/batonhq/baton/id"
)

// Handler consumes one event. Handlers run sequentially on the bus's
// receive loop; a returned error (or panic) is logged and never stops
// delivery to the remaining handlers.
type Handler func(ctx context.Context, evt *Event) error

// Bus routes events from publishers to per-channel handlers through a
// Broker. A Bus with a nil broker is degraded: Publish reports false and
// nothing is delivered, but no call panics.
type Bus struct {
	broker Broker
	logger *slog.Logger

	mu       sync.RWMutex
	handlers map[string][]Handler

	history *historyRing

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started atomic.Bool

	published       atomic.Int64
	publishFailures atomic.Int64
	delivered       atomic.Int64
	handlerErrors   atomic.Int64
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithLogger sets the logger used for delivery failures and handler errors.
func WithLogger(logger *slog.Logger) BusOption {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithHistorySize sets how many published events Recent retains.
func WithHistorySize(n int) BusOption {
	return func(b *Bus) {
		if n > 0 {
			b.history = newHistoryRing(n)
		}
	}
}

// NewBus creates a bus over the given broker. A nil broker is allowed and
// produces a degraded bus.
func NewBus(broker Broker, opts ...BusOption) *Bus {
	b := &Bus{
		broker:   broker,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		handlers: make(map[string][]Handler),
		history:  newHistoryRing(100),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start launches the receive loop. It returns immediately; delivery
// continues until Stop is called or the context is cancelled. Starting a
// bus twice is a no-op.
func (b *Bus) Start(ctx context.Context) {
	if b.broker == nil || !b.started.CompareAndSwap(false, true) {
		return
	}
	ctx, b.cancel = context.WithCancel(ctx)
	b.wg.Add(1)
	go b.receive(ctx)
}

// Stop halts the receive loop and waits for in-flight handlers to return.
func (b *Bus) Stop() {
	if !b.started.CompareAndSwap(true, false) {
		return
	}
	b.cancel()
	b.wg.Wait()
}

// Publish marshals the event and hands it to the broker on the channel
// named by the event. Missing IDs and timestamps are stamped. The return
// reports whether the broker accepted the event; failures are logged, not
// returned.
func (b *Bus) Publish(ctx context.Context, evt *Event) bool {
	if evt == nil || evt.Name == "" {
		return false
	}
	if evt.ID.IsNil() {
		evt.ID = id.NewEventID()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	if b.broker == nil {
		b.publishFailures.Add(1)
		b.logger.Debug("event: no broker configured, dropping",
			slog.String("event", evt.Name))
		return false
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		b.publishFailures.Add(1)
		b.logger.Warn("event: marshal failed",
			slog.String("event", evt.Name),
			slog.String("error", err.Error()))
		return false
	}

	if err := b.broker.Publish(ctx, evt.Name, payload); err != nil {
		b.publishFailures.Add(1)
		b.logger.Warn("event: publish failed",
			slog.String("event", evt.Name),
			slog.String("error", err.Error()))
		return false
	}

	b.published.Add(1)
	b.history.add(evt)
	return true
}

// Emit builds an event from the arguments and publishes it.
func (b *Bus) Emit(ctx context.Context, name, source string, data map[string]any, opts ...EmitOption) bool {
	evt := New(name, source, data)
	for _, opt := range opts {
		opt(evt)
	}
	return b.Publish(ctx, evt)
}

// EmitOption attaches optional identity fields to an emitted event.
type EmitOption func(*Event)

// WithUser tags the event with the acting user.
func WithUser(userID string) EmitOption {
	return func(e *Event) { e.UserID = userID }
}

// WithSession tags the event with the originating session.
func WithSession(sessionID string) EmitOption {
	return func(e *Event) { e.SessionID = sessionID }
}

// WithCorrelation links the event to a related run or request.
func WithCorrelation(correlationID string) EmitOption {
	return func(e *Event) { e.CorrelationID = correlationID }
}

// Subscribe registers a handler for a channel and asks the broker to
// deliver it. The return reports whether the broker subscription succeeded.
func (b *Bus) Subscribe(channel string, h Handler) bool {
	if channel == "" || h == nil {
		return false
	}

	b.mu.Lock()
	b.handlers[channel] = append(b.handlers[channel], h)
	b.mu.Unlock()

	if b.broker == nil {
		return false
	}
	if err := b.broker.Subscribe(context.Background(), channel); err != nil {
		b.logger.Warn("event: subscribe failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()))
		return false
	}
	return true
}

// Unsubscribe drops every handler for the channel and stops broker
// delivery on it.
func (b *Bus) Unsubscribe(channel string) {
	b.mu.Lock()
	delete(b.handlers, channel)
	b.mu.Unlock()

	if b.broker == nil {
		return
	}
	if err := b.broker.Unsubscribe(context.Background(), channel); err != nil {
		b.logger.Warn("event: unsubscribe failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()))
	}
}

// Recent returns up to n of the most recently published events in
// chronological order.
func (b *Bus) Recent(n int) []*Event {
	return b.history.recent(n)
}

// Health reports broker reachability.
func (b *Bus) Health(ctx context.Context) baton.Health {
	if b.broker == nil {
		return baton.Health{Status: baton.HealthDegraded, Error: "no broker configured"}
	}
	start := time.Now()
	if err := b.broker.Ping(ctx); err != nil {
		return baton.Health{
			Status:  baton.HealthUnhealthy,
			Latency: time.Since(start),
			Error:   err.Error(),
		}
	}
	return baton.Health{Status: baton.HealthHealthy, Latency: time.Since(start)}
}

// BusStats is a point-in-time snapshot of bus activity.
type BusStats struct {
	Published       int64 `json:"published"`
	PublishFailures int64 `json:"publish_failures"`
	Delivered       int64 `json:"delivered"`
	HandlerErrors   int64 `json:"handler_errors"`
	Channels        int   `json:"channels"`
	HistorySize     int   `json:"history_size"`
}

// Stats returns a snapshot of the bus's counters.
func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	channels := len(b.handlers)
	b.mu.RUnlock()
	return BusStats{
		Published:       b.published.Load(),
		PublishFailures: b.publishFailures.Load(),
		Delivered:       b.delivered.Load(),
		HandlerErrors:   b.handlerErrors.Load(),
		Channels:        channels,
		HistorySize:     b.history.len(),
	}
}

// receive pulls messages off the broker until the context is cancelled or
// the broker closes.
func (b *Bus) receive(ctx context.Context) {
	defer b.wg.Done()
	for {
		msg, err := b.broker.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, baton.ErrBrokerClosed) {
				return
			}
			b.logger.Warn("event: receive failed", slog.String("error", err.Error()))
			select {
			case <-ctx.Done():
				return
			case <-time.After(250 * time.Millisecond):
			}
			continue
		}
		b.dispatch(ctx, msg)
	}
}

// dispatch decodes a delivery and fans it out to the channel's handlers.
func (b *Bus) dispatch(ctx context.Context, msg Message) {
	var evt Event
	if err := json.Unmarshal(msg.Payload, &evt); err != nil {
		b.logger.Warn("event: dropping undecodable message",
			slog.String("channel", msg.Channel),
			slog.String("error", err.Error()))
		return
	}

	b.mu.RLock()
	handlers := slices.Clone(b.handlers[msg.Channel])
	b.mu.RUnlock()

	for _, h := range handlers {
		b.invoke(ctx, h, &evt)
		b.delivered.Add(1)
	}
}

// invoke runs one handler, containing panics and logging errors so a bad
// handler cannot take down the receive loop or starve its siblings.
func (b *Bus) invoke(ctx context.Context, h Handler, evt *Event) {
	defer func() {
		if r := recover(); r != nil {
			b.handlerErrors.Add(1)
			b.logger.Error("event: handler panicked",
				slog.String("event", evt.Name),
				slog.Any("panic", r))
		}
	}()
	if err := h(ctx, evt); err != nil {
		b.handlerErrors.Add(1)
		b.logger.Warn("event: handler failed",
			slog.String("event", evt.Name),
			slog.String("error", err.Error()))
	}
}

// ──────────────────────────────────────────────────
// History ring
// ──────────────────────────────────────────────────

type historyRing struct {
	mu   sync.Mutex
	buf  []*Event
	next int
	full bool
}

func newHistoryRing(size int) *historyRing {
	return &historyRing{buf: make([]*Event, size)}
}

func (r *historyRing) add(evt *Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = evt
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

func (r *historyRing) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// recent returns up to n events, oldest first.
func (r *historyRing) recent(n int) []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ordered []*Event
	if r.full {
		ordered = append(ordered, r.buf[r.next:]...)
		ordered = append(ordered, r.buf[:r.next]...)
	} else {
		ordered = append(ordered, r.buf[:r.next]...)
	}
	if n <= 0 || n >= len(ordered) {
		return ordered
	}
	return ordered[len(ordered)-n:]
}

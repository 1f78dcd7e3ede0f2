package event

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/batonhq/baton"
)

// Message is a raw broker delivery: the channel it was published on and the
// marshalled event payload.
type Message struct {
	Channel string
	Payload []byte
}

// Broker is the transport under the Bus. Implementations deliver published
// payloads to every connected consumer that subscribed to the channel.
// Delivery is at-most-once; a publish with no subscribers vanishes.
type Broker interface {
	// Publish sends a payload on the given channel.
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe adds the channels to the set this broker receives on.
	Subscribe(ctx context.Context, channels ...string) error

	// Unsubscribe removes the channels from the receive set.
	Unsubscribe(ctx context.Context, channels ...string) error

	// Receive blocks until the next message on any subscribed channel
	// arrives, the context is cancelled, or the broker is closed.
	Receive(ctx context.Context) (Message, error)

	// Ping reports whether the broker's transport is reachable.
	Ping(ctx context.Context) error

	// Close releases the broker. Pending messages may be lost.
	Close() error
}

// ──────────────────────────────────────────────────
// In-memory broker
// ──────────────────────────────────────────────────

// MemoryBroker is a process-local Broker backed by a buffered channel.
// Publishing never blocks: when the buffer is full the message is dropped
// and counted.
type MemoryBroker struct {
	mu         sync.Mutex
	subscribed map[string]struct{}

	delivery chan Message
	closedCh chan struct{}
	stopOnce sync.Once

	published atomic.Int64
	delivered atomic.Int64
	dropped   atomic.Int64
}

// MemoryOption configures a MemoryBroker.
type MemoryOption func(*MemoryBroker)

// WithBuffer sets the delivery buffer size. Values below 1 are ignored.
func WithBuffer(n int) MemoryOption {
	return func(b *MemoryBroker) {
		if n > 0 {
			b.delivery = make(chan Message, n)
		}
	}
}

// NewMemoryBroker creates an in-memory broker with a 256-message buffer.
func NewMemoryBroker(opts ...MemoryOption) *MemoryBroker {
	b := &MemoryBroker{
		subscribed: make(map[string]struct{}),
		delivery:   make(chan Message, 256),
		closedCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var _ Broker = (*MemoryBroker)(nil)

// Publish enqueues the payload for delivery. Messages on channels nobody
// subscribed to are discarded, matching pub/sub transports.
func (b *MemoryBroker) Publish(_ context.Context, channel string, payload []byte) error {
	select {
	case <-b.closedCh:
		return baton.ErrBrokerClosed
	default:
	}

	b.mu.Lock()
	_, ok := b.subscribed[channel]
	b.mu.Unlock()

	b.published.Add(1)
	if !ok {
		return nil
	}

	select {
	case b.delivery <- Message{Channel: channel, Payload: payload}:
		b.delivered.Add(1)
	default:
		b.dropped.Add(1)
	}
	return nil
}

// Subscribe adds channels to the receive set.
func (b *MemoryBroker) Subscribe(_ context.Context, channels ...string) error {
	select {
	case <-b.closedCh:
		return baton.ErrBrokerClosed
	default:
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range channels {
		b.subscribed[ch] = struct{}{}
	}
	return nil
}

// Unsubscribe removes channels from the receive set.
func (b *MemoryBroker) Unsubscribe(_ context.Context, channels ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range channels {
		delete(b.subscribed, ch)
	}
	return nil
}

// Receive returns the next buffered message.
func (b *MemoryBroker) Receive(ctx context.Context) (Message, error) {
	select {
	case msg := <-b.delivery:
		return msg, nil
	case <-b.closedCh:
		return Message{}, baton.ErrBrokerClosed
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Ping reports readiness; an open in-memory broker is always reachable.
func (b *MemoryBroker) Ping(context.Context) error {
	select {
	case <-b.closedCh:
		return baton.ErrBrokerClosed
	default:
		return nil
	}
}

// Close shuts the broker down. Safe to call more than once.
func (b *MemoryBroker) Close() error {
	b.stopOnce.Do(func() { close(b.closedCh) })
	return nil
}

// BrokerStats is a point-in-time snapshot of broker throughput.
type BrokerStats struct {
	Published int64 `json:"published"`
	Delivered int64 `json:"delivered"`
	Dropped   int64 `json:"dropped"`
	Buffered  int   `json:"buffered"`
	Channels  int   `json:"channels"`
}

// Stats returns a snapshot of the broker's counters.
func (b *MemoryBroker) Stats() BrokerStats {
	b.mu.Lock()
	channels := len(b.subscribed)
	b.mu.Unlock()
	return BrokerStats{
		Published: b.published.Load(),
		Delivered: b.delivered.Load(),
		Dropped:   b.dropped.Load(),
		Buffered:  len(b.delivery),
		Channels:  channels,
	}
}

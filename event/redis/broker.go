// Package redis implements the event broker over Redis Pub/Sub, letting
// multiple processes share one bus.
package redis

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	goredis "github.com/redis/go-redis/v9"

	"github.com/batonhq/baton"
	"github.com/batonhq/baton/event"
)

// Broker publishes and receives bus messages through Redis Pub/Sub.
// Delivery follows Redis semantics: at-most-once, and only to consumers
// subscribed at publish time.
type Broker struct {
	client goredis.UniversalClient
	pubsub *goredis.PubSub
	prefix string

	closeOnce sync.Once
	closed    atomic.Bool
}

// Option configures a Broker.
type Option func(*Broker)

// WithChannelPrefix namespaces every channel, so multiple deployments can
// share one Redis. The prefix is stripped from received messages.
func WithChannelPrefix(prefix string) Option {
	return func(b *Broker) { b.prefix = prefix }
}

// New creates a broker on an existing Redis client. The caller owns the
// client; Close releases only the broker's subscription.
func New(client goredis.UniversalClient, opts ...Option) *Broker {
	b := &Broker{client: client}
	for _, opt := range opts {
		opt(b)
	}
	b.pubsub = client.Subscribe(context.Background())
	return b
}

var _ event.Broker = (*Broker)(nil)

func (b *Broker) channel(name string) string { return b.prefix + name }

// Publish sends the payload on the channel.
func (b *Broker) Publish(ctx context.Context, channel string, payload []byte) error {
	if b.closed.Load() {
		return baton.ErrBrokerClosed
	}
	if err := b.client.Publish(ctx, b.channel(channel), payload).Err(); err != nil {
		return fmt.Errorf("baton/event/redis: publish: %w", err)
	}
	return nil
}

// Subscribe adds channels to the broker's Redis subscription.
func (b *Broker) Subscribe(ctx context.Context, channels ...string) error {
	if b.closed.Load() {
		return baton.ErrBrokerClosed
	}
	prefixed := make([]string, len(channels))
	for i, ch := range channels {
		prefixed[i] = b.channel(ch)
	}
	if err := b.pubsub.Subscribe(ctx, prefixed...); err != nil {
		return fmt.Errorf("baton/event/redis: subscribe: %w", err)
	}
	return nil
}

// Unsubscribe removes channels from the broker's Redis subscription.
func (b *Broker) Unsubscribe(ctx context.Context, channels ...string) error {
	if b.closed.Load() {
		return baton.ErrBrokerClosed
	}
	prefixed := make([]string, len(channels))
	for i, ch := range channels {
		prefixed[i] = b.channel(ch)
	}
	if err := b.pubsub.Unsubscribe(ctx, prefixed...); err != nil {
		return fmt.Errorf("baton/event/redis: unsubscribe: %w", err)
	}
	return nil
}

// Receive blocks for the next message on any subscribed channel.
func (b *Broker) Receive(ctx context.Context) (event.Message, error) {
	if b.closed.Load() {
		return event.Message{}, baton.ErrBrokerClosed
	}
	msg, err := b.pubsub.ReceiveMessage(ctx)
	if err != nil {
		if b.closed.Load() {
			return event.Message{}, baton.ErrBrokerClosed
		}
		return event.Message{}, fmt.Errorf("baton/event/redis: receive: %w", err)
	}
	return event.Message{
		Channel: strings.TrimPrefix(msg.Channel, b.prefix),
		Payload: []byte(msg.Payload),
	}, nil
}

// Ping checks that Redis is reachable.
func (b *Broker) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("baton/event/redis: ping: %w", err)
	}
	return nil
}

// Close tears down the subscription. The Redis client stays open.
func (b *Broker) Close() error {
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		_ = b.pubsub.Close()
	})
	return nil
}

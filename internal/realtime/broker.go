package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
	"idleassets/api/internal/feed"
)

// Publisher publishes insert events to a channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, v any) error
}

// Broker fans insert events out over Redis pub/sub.
type Broker struct {
	rdb *redis.Client
}

func NewBroker(rdb *redis.Client) *Broker {
	return &Broker{rdb: rdb}
}

// Publish JSON-encodes v and publishes it on channel.
func (b *Broker) Publish(ctx context.Context, channel string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode event for %s: %w", channel, err)
	}
	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

// Subscribe opens a subscription on channel that decodes each event into T.
// ctx bounds the subscribe handshake only; the subscription lasts until Close.
func Subscribe[T any](ctx context.Context, b *Broker, channel string) (feed.Subscription[T], error) {
	ps := b.rdb.Subscribe(ctx, channel)
	// Wait for the confirmation so no event published after return is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	subCtx, cancel := context.WithCancel(context.Background())
	s := &subscription[T]{
		channel: channel,
		ps:      ps,
		events:  make(chan T, 16),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.run(subCtx)
	return s, nil
}

type subscription[T any] struct {
	channel string
	ps      *redis.PubSub
	events  chan T
	cancel  context.CancelFunc
	done    chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func (s *subscription[T]) run(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)

	in := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			var v T
			if err := json.Unmarshal([]byte(msg.Payload), &v); err != nil {
				log.Printf("realtime: dropping undecodable event on %s: %v", s.channel, err)
				continue
			}
			select {
			case s.events <- v:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *subscription[T]) Events() <-chan T {
	return s.events
}

func (s *subscription[T]) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.closeErr = s.ps.Close()
		<-s.done
	})
	return s.closeErr
}

// Stream adapts the broker to feed.Stream for one channel kind, mapping a
// feed key such as a conversation id to its channel name.
type Stream[T any] struct {
	broker    *Broker
	channelOf func(key string) string
}

func NewMessageStream[T any](b *Broker) *Stream[T] {
	return &Stream[T]{broker: b, channelOf: MessagesChannel}
}

func NewNotificationStream[T any](b *Broker) *Stream[T] {
	return &Stream[T]{broker: b, channelOf: NotificationsChannel}
}

// NewRawStream subscribes by full channel name and leaves events undecoded,
// for forwarding to websocket clients.
func NewRawStream(b *Broker) *Stream[json.RawMessage] {
	return &Stream[json.RawMessage]{broker: b, channelOf: func(channel string) string { return channel }}
}

func (s *Stream[T]) Subscribe(ctx context.Context, key string) (feed.Subscription[T], error) {
	return Subscribe[T](ctx, s.broker, s.channelOf(key))
}

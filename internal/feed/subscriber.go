package feed

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Subscriber maintains the entries of one active channel for one user.
// At most one push subscription is open at a time.
type Subscriber[T Item[T]] struct {
	source Source[T]
	stream Stream[T]
	userID string

	// lifecycle serializes Activate, Deactivate and Close.
	lifecycle sync.Mutex

	mu         sync.RWMutex
	channel    string
	entries    []T
	generation uint64
	sub        Subscription[T]
	cancel     context.CancelFunc
	done       chan struct{}

	updates chan struct{}
}

func NewSubscriber[T Item[T]](source Source[T], stream Stream[T], userID string) *Subscriber[T] {
	return &Subscriber[T]{
		source:  source,
		stream:  stream,
		userID:  userID,
		updates: make(chan struct{}, 1),
	}
}

// Activate switches the subscriber to channel. Any previous subscription is
// closed first. On error the subscriber is left inactive.
func (s *Subscriber[T]) Activate(ctx context.Context, channel string) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.deactivateLocked()

	snapshot, err := s.source.Snapshot(ctx, channel)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", channel, err)
	}
	sub, err := s.stream.Subscribe(ctx, channel)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	// The pump outlives ctx; it ends on Deactivate.
	pumpCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.channel = channel
	s.entries = append(make([]T, 0, len(snapshot)), snapshot...)
	s.sub = sub
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go s.pump(pumpCtx, gen, sub.Events(), done)
	s.notify()
	return nil
}

func (s *Subscriber[T]) pump(ctx context.Context, gen uint64, events <-chan T, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case item, ok := <-events:
			if !ok {
				return
			}
			s.mu.Lock()
			if s.generation != gen {
				s.mu.Unlock()
				return
			}
			s.entries = append(s.entries, item)
			s.mu.Unlock()
			s.notify()
		}
	}
}

// Deactivate closes the current subscription and clears the entries. It
// returns after the previous channel can no longer deliver events.
func (s *Subscriber[T]) Deactivate() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.deactivateLocked()
}

func (s *Subscriber[T]) deactivateLocked() {
	s.mu.Lock()
	sub, cancel, done := s.sub, s.cancel, s.done
	wasActive := sub != nil
	s.generation++
	s.channel = ""
	s.entries = nil
	s.sub = nil
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if !wasActive {
		return
	}
	cancel()
	if err := sub.Close(); err != nil {
		log.Printf("feed: failed to close subscription: %v", err)
	}
	<-done
	s.notify()
}

// Close releases the subscription. The subscriber may be activated again.
func (s *Subscriber[T]) Close() error {
	s.Deactivate()
	return nil
}

// Channel returns the active channel key, or "" when inactive.
func (s *Subscriber[T]) Channel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channel
}

// Entries returns a copy of the current sequence.
func (s *Subscriber[T]) Entries() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, len(s.entries))
	copy(out, s.entries)
	return out
}

// UnreadCount counts unread entries addressed to the user.
func (s *Subscriber[T]) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		if e.Unread() && e.Inbound(s.userID) {
			n++
		}
	}
	return n
}

// MarkRead submits a bulk read for the active channel and then flips every
// inbound entry to read, whatever the remote outcome. The remote error, if
// any, is returned and not retried.
func (s *Subscriber[T]) MarkRead(ctx context.Context) error {
	channel := s.Channel()
	if channel == "" {
		return ErrInactive
	}

	remoteErr := s.source.MarkRead(ctx, channel)

	s.mu.Lock()
	if s.channel == channel {
		for i, e := range s.entries {
			if e.Unread() && e.Inbound(s.userID) {
				s.entries[i] = e.AsRead()
			}
		}
	}
	s.mu.Unlock()
	s.notify()

	if remoteErr != nil {
		return fmt.Errorf("failed to mark %s read: %w", channel, remoteErr)
	}
	return nil
}

// MarkEntryRead marks one entry read, remotely when the source supports it
// and locally regardless.
func (s *Subscriber[T]) MarkEntryRead(ctx context.Context, entryID string) error {
	channel := s.Channel()
	if channel == "" {
		return ErrInactive
	}

	var remoteErr error
	if marker, ok := s.source.(EntryMarker); ok {
		remoteErr = marker.MarkEntryRead(ctx, channel, entryID)
	}

	s.mu.Lock()
	if s.channel == channel {
		for i, e := range s.entries {
			if e.EntryID() == entryID && e.Unread() {
				s.entries[i] = e.AsRead()
			}
		}
	}
	s.mu.Unlock()
	s.notify()

	if remoteErr != nil {
		return fmt.Errorf("failed to mark %s read: %w", entryID, remoteErr)
	}
	return nil
}

// Updates is signalled after the sequence or its read flags change.
// Signals coalesce; read the current state after receiving one.
func (s *Subscriber[T]) Updates() <-chan struct{} {
	return s.updates
}

func (s *Subscriber[T]) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// Package feed keeps a live, append-only view of one channel's messages or
// notifications: a snapshot fetched on activation, followed by pushed inserts.
package feed

import (
	"context"
	"errors"
)

// ErrInactive is returned by operations that need an active channel.
var ErrInactive = errors.New("feed: no active channel")

// Item is an entry of a feed.
type Item[T any] interface {
	EntryID() string
	// Inbound reports whether the entry counts toward userID's unread total.
	Inbound(userID string) bool
	Unread() bool
	AsRead() T
}

// Source loads snapshots and records bulk reads for a channel.
type Source[T any] interface {
	// Snapshot returns the channel's entries ascending by creation time.
	Snapshot(ctx context.Context, channel string) ([]T, error)
	MarkRead(ctx context.Context, channel string) error
}

// EntryMarker is implemented by sources that can mark a single entry read.
type EntryMarker interface {
	MarkEntryRead(ctx context.Context, channel, entryID string) error
}

// Stream opens push subscriptions for inserted entries.
type Stream[T any] interface {
	Subscribe(ctx context.Context, channel string) (Subscription[T], error)
}

// Subscription delivers inserted entries until closed. Events is closed once
// the subscription ends.
type Subscription[T any] interface {
	Events() <-chan T
	Close() error
}

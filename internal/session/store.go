// Package session holds the signed-in user's state for the lifetime of an
// app session: the principal, their profile and their live notifications.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"idleassets/api/internal/client"
	"idleassets/api/internal/feed"
	"idleassets/api/internal/models"
	"idleassets/api/internal/realtime"
)

var (
	ErrAlreadyInitialized = errors.New("session: store already initialized")
	ErrSignedOut          = errors.New("session: no signed-in user")
)

// Identity is the identity provider the store follows.
type Identity interface {
	CurrentUser() *models.User
	OnAuthStateChange(fn client.AuthListener) (unsubscribe func())
	GetProfile(ctx context.Context) (*models.Profile, error)
}

// NotificationFeed loads and streams the user's notifications.
type NotificationFeed interface {
	feed.Source[models.Notification]
	feed.Stream[models.Notification]
}

// Store is created once per app session and passed to whatever needs it.
// State changes only in response to auth events; callers read it through
// the accessors.
type Store struct {
	identity Identity
	feed     NotificationFeed

	lifecycle   sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()

	mu            sync.RWMutex
	user          *models.User
	profile       *models.Profile
	notifications *feed.Subscriber[models.Notification]
	lastErr       error

	updates chan struct{}
}

func NewStore(identity Identity, notifications NotificationFeed) *Store {
	return &Store{
		identity: identity,
		feed:     notifications,
		updates:  make(chan struct{}, 1),
	}
}

// Initialize starts following auth changes and loads the state of the
// current principal, if any. ctx bounds the whole session.
func (s *Store) Initialize(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.cancel != nil {
		return ErrAlreadyInitialized
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	s.unsubscribe = s.identity.OnAuthStateChange(s.onAuthChange)

	if user := s.identity.CurrentUser(); user != nil {
		return s.signIn(user)
	}
	return nil
}

// Teardown stops following auth changes and releases the notification
// subscription. The store may be initialized again afterwards.
func (s *Store) Teardown() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.cancel == nil {
		return
	}
	s.unsubscribe()
	s.cancel()
	s.cancel = nil
	s.unsubscribe = nil
	s.clear()
}

func (s *Store) onAuthChange(event client.AuthEvent, user *models.User) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.cancel == nil {
		return
	}

	switch event {
	case client.SignedIn:
		if user == nil {
			return
		}
		if err := s.signIn(user); err != nil {
			log.Printf("session: failed to load state for %s: %v", user.ID, err)
		}
	case client.SignedOut:
		s.clear()
	}
}

// signIn replaces the state with user's. A profile or feed failure leaves
// the user signed in with that part empty; the error is kept in Err.
func (s *Store) signIn(user *models.User) error {
	s.closeNotifications()

	u := *user
	s.mu.Lock()
	s.user = &u
	s.profile = nil
	s.lastErr = nil
	s.mu.Unlock()

	var errs []error
	profile, err := s.identity.GetProfile(s.ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("profile: %w", err))
	}

	sub := feed.NewSubscriber[models.Notification](s.feed, s.feed, user.ID)
	if err := sub.Activate(s.ctx, realtime.NotificationsChannel(user.ID)); err != nil {
		errs = append(errs, fmt.Errorf("notifications: %w", err))
		sub = nil
	}

	s.mu.Lock()
	s.profile = profile
	s.notifications = sub
	s.lastErr = errors.Join(errs...)
	s.mu.Unlock()
	s.notify()
	return s.Err()
}

func (s *Store) clear() {
	s.closeNotifications()
	s.mu.Lock()
	s.user = nil
	s.profile = nil
	s.lastErr = nil
	s.mu.Unlock()
	s.notify()
}

func (s *Store) closeNotifications() {
	s.mu.Lock()
	sub := s.notifications
	s.notifications = nil
	s.mu.Unlock()
	if sub != nil {
		if err := sub.Close(); err != nil {
			log.Printf("session: failed to close notifications: %v", err)
		}
	}
}

// User returns the signed-in principal, or nil.
func (s *Store) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Profile returns the signed-in user's profile, or nil when signed out or
// not loaded.
func (s *Store) Profile() *models.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return nil
	}
	p := *s.profile
	return &p
}

// Notifications returns the live notification feed, or nil when signed out.
func (s *Store) Notifications() *feed.Subscriber[models.Notification] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.notifications
}

// UnreadNotifications is the unread badge count.
func (s *Store) UnreadNotifications() int {
	if sub := s.Notifications(); sub != nil {
		return sub.UnreadCount()
	}
	return 0
}

// Refresh reloads the profile, for example after an edit.
func (s *Store) Refresh(ctx context.Context) error {
	if s.User() == nil {
		return ErrSignedOut
	}
	profile, err := s.identity.GetProfile(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh profile: %w", err)
	}
	s.mu.Lock()
	s.profile = profile
	s.mu.Unlock()
	s.notify()
	return nil
}

// Err returns the error of the last state load, if any.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Updates is signalled after the user or profile changes.
func (s *Store) Updates() <-chan struct{} {
	return s.updates
}

func (s *Store) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

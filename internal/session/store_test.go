package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"idleassets/api/internal/client"
	"idleassets/api/internal/feed"
	"idleassets/api/internal/models"
	"idleassets/api/internal/realtime"
)

type fakeIdentity struct {
	mu         sync.Mutex
	user       *models.User
	profileErr error
	listeners  map[int]client.AuthListener
	nextID     int
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{listeners: make(map[int]client.AuthListener)}
}

func (f *fakeIdentity) CurrentUser() *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user
}

func (f *fakeIdentity) OnAuthStateChange(fn client.AuthListener) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.listeners, id)
	}
}

func (f *fakeIdentity) GetProfile(ctx context.Context) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	if f.user == nil {
		return nil, errors.New("not signed in")
	}
	p := &models.Profile{FullName: "Ada Lovelace", Email: f.user.Email}
	p.ID = f.user.ID
	return p, nil
}

func (f *fakeIdentity) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func (f *fakeIdentity) set(event client.AuthEvent, user *models.User) {
	f.mu.Lock()
	f.user = user
	fns := make([]client.AuthListener, 0, len(f.listeners))
	for _, fn := range f.listeners {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(event, user)
	}
}

type fakeSubscription struct {
	events    chan models.Notification
	closeOnce sync.Once
	closed    chan struct{}
}

func (s *fakeSubscription) Events() <-chan models.Notification { return s.events }

func (s *fakeSubscription) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

type fakeFeed struct {
	mu       sync.Mutex
	snapshot []models.Notification
	subs     map[string]*fakeSubscription
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{subs: make(map[string]*fakeSubscription)}
}

func (f *fakeFeed) Snapshot(ctx context.Context, channel string) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Notification(nil), f.snapshot...), nil
}

func (f *fakeFeed) MarkRead(ctx context.Context, channel string) error { return nil }

func (f *fakeFeed) Subscribe(ctx context.Context, channel string) (feed.Subscription[models.Notification], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := &fakeSubscription{events: make(chan models.Notification), closed: make(chan struct{})}
	f.subs[channel] = sub
	return sub, nil
}

func (f *fakeFeed) sub(channel string) *fakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[channel]
}

var ada = &models.User{ID: "user-1", Email: "ada@example.com"}

func TestStore_InitializeSignedOut(t *testing.T) {
	identity := newFakeIdentity()
	s := NewStore(identity, newFakeFeed())

	require.NoError(t, s.Initialize(context.Background()))
	defer s.Teardown()

	assert.Nil(t, s.User())
	assert.Nil(t, s.Profile())
	assert.Nil(t, s.Notifications())
	assert.Zero(t, s.UnreadNotifications())
	assert.ErrorIs(t, s.Initialize(context.Background()), ErrAlreadyInitialized)
}

func TestStore_InitializeSignedIn(t *testing.T) {
	identity := newFakeIdentity()
	identity.user = ada
	notifications := newFakeFeed()
	notifications.snapshot = []models.Notification{
		{Base: models.Base{ID: "n-1"}, UserID: ada.ID, Title: "Welcome"},
		{Base: models.Base{ID: "n-2"}, UserID: ada.ID, Title: "Read already", IsRead: true},
	}
	s := NewStore(identity, notifications)

	require.NoError(t, s.Initialize(context.Background()))
	defer s.Teardown()

	assert.Equal(t, ada.ID, s.User().ID)
	assert.Equal(t, "Ada Lovelace", s.Profile().FullName)
	require.NotNil(t, s.Notifications())
	assert.Equal(t, realtime.NotificationsChannel(ada.ID), s.Notifications().Channel())
	assert.Equal(t, 1, s.UnreadNotifications())
}

func TestStore_FollowsAuthChanges(t *testing.T) {
	identity := newFakeIdentity()
	notifications := newFakeFeed()
	s := NewStore(identity, notifications)
	require.NoError(t, s.Initialize(context.Background()))
	defer s.Teardown()

	identity.set(client.SignedIn, ada)
	require.NotNil(t, s.User())
	require.NotNil(t, s.Profile())
	channel := realtime.NotificationsChannel(ada.ID)
	sub := notifications.sub(channel)
	require.NotNil(t, sub)

	sub.events <- models.Notification{Base: models.Base{ID: "n-3"}, UserID: ada.ID, Title: "New rental request"}
	assert.Eventually(t, func() bool { return s.UnreadNotifications() == 1 }, time.Second, 5*time.Millisecond)

	identity.set(client.SignedOut, nil)
	assert.Nil(t, s.User())
	assert.Nil(t, s.Profile())
	assert.Nil(t, s.Notifications())
	select {
	case <-sub.closed:
	default:
		t.Fatal("notification subscription still open after sign-out")
	}
}

func TestStore_ProfileFailureKeepsUser(t *testing.T) {
	identity := newFakeIdentity()
	identity.user = ada
	identity.profileErr = errors.New("profile service down")
	s := NewStore(identity, newFakeFeed())

	err := s.Initialize(context.Background())
	require.Error(t, err)
	defer s.Teardown()

	assert.NotNil(t, s.User())
	assert.Nil(t, s.Profile())
	assert.NotNil(t, s.Notifications())
	assert.ErrorContains(t, s.Err(), "profile service down")
}

func TestStore_TeardownStopsFollowing(t *testing.T) {
	identity := newFakeIdentity()
	s := NewStore(identity, newFakeFeed())
	require.NoError(t, s.Initialize(context.Background()))
	assert.Equal(t, 1, identity.listenerCount())

	s.Teardown()
	assert.Zero(t, identity.listenerCount())

	identity.set(client.SignedIn, ada)
	assert.Nil(t, s.User())

	// Teardown is idempotent and the store can be reused.
	s.Teardown()
	require.NoError(t, s.Initialize(context.Background()))
	defer s.Teardown()
	assert.Equal(t, ada.ID, s.User().ID)
}

func TestStore_Refresh(t *testing.T) {
	identity := newFakeIdentity()
	s := NewStore(identity, newFakeFeed())
	require.NoError(t, s.Initialize(context.Background()))
	defer s.Teardown()

	assert.ErrorIs(t, s.Refresh(context.Background()), ErrSignedOut)

	identity.set(client.SignedIn, ada)
	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, "Ada Lovelace", s.Profile().FullName)
}

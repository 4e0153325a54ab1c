package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"idleassets/api/internal/feed"
	"idleassets/api/internal/models"
	"idleassets/api/internal/realtime"
)

// Feeds are keyed by full channel name, such as "messages:<conversation>" or
// "notifications:<user>", for both snapshots and push subscriptions.

// MessageFeed is the feed source and stream for one user's conversations.
type MessageFeed struct {
	c *Client
	*wsStream[models.Message]
}

func (c *Client) Messages() *MessageFeed {
	return &MessageFeed{c: c, wsStream: &wsStream[models.Message]{c: c}}
}

func (f *MessageFeed) Snapshot(ctx context.Context, channel string) ([]models.Message, error) {
	id, err := scopeOf(channel, realtime.KindMessages)
	if err != nil {
		return nil, err
	}
	var messages []models.Message
	if err := f.c.do(ctx, http.MethodGet, "/v1/conversations/"+url.PathEscape(id)+"/messages", nil, &messages, true); err != nil {
		return nil, err
	}
	return messages, nil
}

func (f *MessageFeed) MarkRead(ctx context.Context, channel string) error {
	id, err := scopeOf(channel, realtime.KindMessages)
	if err != nil {
		return err
	}
	return f.c.do(ctx, http.MethodPost, "/v1/conversations/"+url.PathEscape(id)+"/read", nil, nil, true)
}

// SendMessage posts a message. The sent message reaches an active feed
// through the push stream, not through this call.
func (c *Client) SendMessage(ctx context.Context, conversationID, content string) (*models.Message, error) {
	var msg models.Message
	body := map[string]string{"content": content}
	if err := c.do(ctx, http.MethodPost, "/v1/conversations/"+url.PathEscape(conversationID)+"/messages", body, &msg, true); err != nil {
		return nil, err
	}
	return &msg, nil
}

// NotificationFeed is the feed source and stream for the signed-in user's
// notifications.
type NotificationFeed struct {
	c *Client
	*wsStream[models.Notification]
}

func (c *Client) Notifications() *NotificationFeed {
	return &NotificationFeed{c: c, wsStream: &wsStream[models.Notification]{c: c}}
}

func (f *NotificationFeed) Snapshot(ctx context.Context, channel string) ([]models.Notification, error) {
	if _, err := scopeOf(channel, realtime.KindNotifications); err != nil {
		return nil, err
	}
	var list []models.Notification
	if err := f.c.do(ctx, http.MethodGet, "/v1/notifications", nil, &list, true); err != nil {
		return nil, err
	}
	return list, nil
}

func (f *NotificationFeed) MarkRead(ctx context.Context, channel string) error {
	if _, err := scopeOf(channel, realtime.KindNotifications); err != nil {
		return err
	}
	return f.c.do(ctx, http.MethodPost, "/v1/notifications/read", nil, nil, true)
}

func (f *NotificationFeed) MarkEntryRead(ctx context.Context, channel, entryID string) error {
	if _, err := scopeOf(channel, realtime.KindNotifications); err != nil {
		return err
	}
	return f.c.do(ctx, http.MethodPost, "/v1/notifications/"+url.PathEscape(entryID)+"/read", nil, nil, true)
}

var (
	_ feed.Source[models.Message]      = (*MessageFeed)(nil)
	_ feed.Stream[models.Message]      = (*MessageFeed)(nil)
	_ feed.Source[models.Notification] = (*NotificationFeed)(nil)
	_ feed.Stream[models.Notification] = (*NotificationFeed)(nil)
	_ feed.EntryMarker                 = (*NotificationFeed)(nil)
)

func scopeOf(channel, wantKind string) (string, error) {
	kind, id, err := realtime.ParseChannel(channel)
	if err != nil {
		return "", err
	}
	if kind != wantKind {
		return "", fmt.Errorf("channel %q is not a %s channel", channel, wantKind)
	}
	return id, nil
}

// wsStream opens websocket subscriptions on GET /v1/realtime.
type wsStream[T any] struct {
	c *Client
}

func (s *wsStream[T]) Subscribe(ctx context.Context, channel string) (feed.Subscription[T], error) {
	token, ok := s.c.CurrentCredential()
	if !ok {
		return nil, ErrNotSignedIn
	}

	u := *s.c.baseURL
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/v1/realtime"
	u.RawQuery = url.Values{"channel": {channel}}.Encode()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, resp, err := s.c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, decodeAPIError(resp)
		}
		return nil, fmt.Errorf("failed to open stream %s: %w", channel, err)
	}

	sub := &wsSubscription[T]{
		channel: channel,
		conn:    conn,
		events:  make(chan T, 16),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go sub.run()
	return sub, nil
}

type wsSubscription[T any] struct {
	channel string
	conn    *websocket.Conn
	events  chan T
	stop    chan struct{}
	done    chan struct{}

	closeOnce sync.Once
}

func (s *wsSubscription[T]) run() {
	defer close(s.done)
	defer close(s.events)

	for {
		var frame realtime.Frame
		if err := s.conn.ReadJSON(&frame); err != nil {
			select {
			case <-s.stop:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("client: stream %s ended: %v", s.channel, err)
				}
			}
			return
		}
		if frame.Event != realtime.EventInsert {
			continue
		}
		var v T
		if err := json.Unmarshal(frame.Record, &v); err != nil {
			log.Printf("client: dropping undecodable event on %s: %v", s.channel, err)
			continue
		}
		select {
		case s.events <- v:
		case <-s.stop:
			return
		}
	}
}

func (s *wsSubscription[T]) Events() <-chan T {
	return s.events
}

func (s *wsSubscription[T]) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = s.conn.Close()
		<-s.done
	})
	return err
}

// Package realtime carries insert events from the services to connected
// clients over Redis pub/sub and websockets.
package realtime

import (
	"fmt"
	"strings"
)

const (
	KindMessages      = "messages"
	KindNotifications = "notifications"
)

// MessagesChannel names the channel that carries new messages of a conversation.
func MessagesChannel(conversationID string) string {
	return KindMessages + ":" + conversationID
}

// NotificationsChannel names the channel that carries a user's new notifications.
func NotificationsChannel(userID string) string {
	return KindNotifications + ":" + userID
}

// ParseChannel splits a channel name into its kind and scope id.
func ParseChannel(name string) (kind, id string, err error) {
	kind, id, ok := strings.Cut(name, ":")
	if !ok || id == "" {
		return "", "", fmt.Errorf("invalid channel %q", name)
	}
	switch kind {
	case KindMessages, KindNotifications:
		return kind, id, nil
	}
	return "", "", fmt.Errorf("unknown channel kind %q", kind)
}

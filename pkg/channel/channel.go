// Package channel bridges application notifications to the FCM dispatcher.
//
// A notification describes itself by implementing Notification. When the
// message it builds names no target, the channel asks the Notifiable where
// "fcm" notifications should go.
package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tinywideclouds/go-fcm-service/pkg/dispatch"
	"github.com/tinywideclouds/go-fcm-service/pkg/fcm"
)

// Name is the channel identifier passed to RouteNotificationFor.
const Name = "fcm"

// ErrAdapter marks a notification or notifiable that does not honour the
// channel contract.
var ErrAdapter = errors.New("fcm channel adapter error")

// Notifiable is something that can receive notifications.
type Notifiable interface {
	// RouteNotificationFor returns the device tokens the notification should
	// reach on channel. Returning no tokens is valid.
	RouteNotificationFor(ctx context.Context, channel string, notification any) ([]string, error)
}

// NotifiableFunc adapts a plain function to Notifiable.
type NotifiableFunc func(ctx context.Context, channel string, notification any) ([]string, error)

func (f NotifiableFunc) RouteNotificationFor(ctx context.Context, channel string, notification any) ([]string, error) {
	return f(ctx, channel, notification)
}

// Notification is implemented by notifications that can be delivered over FCM.
type Notification interface {
	ToFCM(notifiable Notifiable) *fcm.Message
}

// Channel sends notifications through a dispatch.Sender.
type Channel struct {
	sender dispatch.Sender
	logger *slog.Logger
}

func New(sender dispatch.Sender, logger *slog.Logger) *Channel {
	return &Channel{
		sender: sender,
		logger: logger.With("component", "FCMChannel"),
	}
}

// Send builds the message for notifiable and dispatches it. Tokens take
// precedence over a topic; a message with neither is routed through the
// notifiable before giving up.
func (c *Channel) Send(ctx context.Context, notifiable Notifiable, notification any) (*fcm.Result, error) {
	const op = "channel.Send"

	n, ok := notification.(Notification)
	if !ok {
		return nil, &fcm.Error{
			Kind:    ErrAdapter,
			Op:      op,
			Message: fmt.Sprintf("notification %T does not implement ToFCM", notification),
		}
	}
	msg := n.ToFCM(notifiable)
	if msg == nil {
		return nil, &fcm.Error{Kind: ErrAdapter, Op: op, Message: "ToFCM must return a message"}
	}

	if !msg.HasTarget() && notifiable != nil {
		tokens, err := notifiable.RouteNotificationFor(ctx, Name, notification)
		if err != nil {
			return nil, fmt.Errorf("failed to route notification: %w", err)
		}
		if tokens = compact(tokens); len(tokens) > 0 {
			msg.SetTokens(tokens)
		}
	}

	switch {
	case len(msg.Tokens()) > 0:
		c.logger.Debug("Sending to devices", "tokens", len(msg.Tokens()))
		return c.sender.SendToDevices(ctx, msg)
	case msg.Topic() != "":
		c.logger.Debug("Sending to topic", "topic", msg.Topic())
		return c.sender.SendToTopic(ctx, msg)
	}
	return nil, &fcm.Error{Kind: ErrAdapter, Op: op, Message: "no tokens or topic specified for FCM notification"}
}

// compact drops empty routes.
func compact(tokens []string) []string {
	out := tokens[:0:0]
	for _, t := range tokens {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

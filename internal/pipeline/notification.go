package pipeline

import (
	"context"

	"github.com/tinywideclouds/go-fcm-service/pkg/channel"
	"github.com/tinywideclouds/go-fcm-service/pkg/dispatch"
	"github.com/tinywideclouds/go-fcm-service/pkg/fcm"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
	"github.com/tinywideclouds/go-platform/pkg/notification/v1"
)

// pushNotification delivers an inbound request over the FCM channel. Tokens
// carried on the request are used as-is; otherwise the recipient routes.
type pushNotification struct {
	request *notification.NotificationRequest
}

func (n pushNotification) ToFCM(channel.Notifiable) *fcm.Message {
	data := make(map[string]any, len(n.request.DataPayload))
	for k, v := range n.request.DataPayload {
		data[k] = v
	}
	return fcm.NewMessage().
		SetTitle(n.request.Content.Title).
		SetBody(n.request.Content.Body).
		SetData(data).
		SetTokens(n.request.FCMTokens)
}

// recipient is the notifiable for a user; it routes to their registered tokens.
type recipient struct {
	user  urn.URN
	store dispatch.TokenStore
}

func (r recipient) RouteNotificationFor(ctx context.Context, ch string, _ any) ([]string, error) {
	if ch != channel.Name {
		return nil, nil
	}
	return r.store.Fetch(ctx, r.user)
}

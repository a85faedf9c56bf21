// --- File: pkg/dispatch/interfaces.go ---
package dispatch

import (
	"context"

	"github.com/tinywideclouds/go-fcm-service/pkg/fcm"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
)

// Sender is the FCM dispatch surface used by the channel adapter and the HTTP
// handlers. *fcm.Dispatcher satisfies it.
type Sender interface {
	// SendToDevices delivers the message to every token it carries.
	SendToDevices(ctx context.Context, msg *fcm.Message) (*fcm.Result, error)
	// SendToTopic delivers the message to its topic.
	SendToTopic(ctx context.Context, msg *fcm.Message) (*fcm.Result, error)
	SubscribeToTopic(ctx context.Context, topic string, tokens []string) (fcm.Response, error)
	UnsubscribeFromTopic(ctx context.Context, topic string, tokens []string) (fcm.Response, error)
}

// TokenStore remembers which FCM registration tokens belong to a user.
type TokenStore interface {
	// RegisterFCM adds or refreshes a token. Registering the same token twice
	// must not create a duplicate.
	RegisterFCM(ctx context.Context, user urn.URN, token string) error

	UnregisterFCM(ctx context.Context, user urn.URN, token string) error

	// Fetch returns every token registered for the user. A user with no
	// devices yields an empty slice and no error.
	Fetch(ctx context.Context, user urn.URN) ([]string, error)
}

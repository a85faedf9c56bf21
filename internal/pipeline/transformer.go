// --- File: internal/pipeline/transformer.go ---
// Package pipeline turns Pub/Sub notification requests into FCM sends.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-platform/pkg/notification/v1"
)

// NotificationRequestTransformer decodes a message payload into a
// notification.NotificationRequest. The request type's own UnmarshalJSON
// validates the recipient URN.
//
// Undecodable payloads, and requests with no title, body or data, are
// skipped so the streaming service can dead-letter them instead of
// redelivering forever.
func NotificationRequestTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*notification.NotificationRequest, bool, error) {
	var req notification.NotificationRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return nil, true, fmt.Errorf("failed to unmarshal notification request from message %s: %w", msg.ID, err)
	}
	if req.Content.Title == "" && req.Content.Body == "" && len(req.DataPayload) == 0 {
		return nil, true, fmt.Errorf("notification request in message %s has nothing to deliver", msg.ID)
	}
	return &req, false, nil
}

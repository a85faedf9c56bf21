package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-fcm-service/pkg/channel"
	"github.com/tinywideclouds/go-fcm-service/pkg/dispatch"
	"github.com/tinywideclouds/go-fcm-service/pkg/fcm"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
	"github.com/tinywideclouds/go-platform/pkg/notification/v1"
)

// NewProcessor sends each request through the FCM channel, resolving the
// recipient's tokens from tokenStore, and prunes tokens FCM reports as dead.
//
// Returning an error Nacks the message. Only whole-call failures do that;
// a partial failure is not retried because the healthy devices already
// received it.
func NewProcessor(
	fcmChannel *channel.Channel,
	tokenStore dispatch.TokenStore,
	logger *slog.Logger,
) messagepipeline.StreamProcessor[notification.NotificationRequest] {

	return func(ctx context.Context, original messagepipeline.Message, request *notification.NotificationRequest) error {
		procLogger := logger.With(
			"recipient_id", request.RecipientID.String(),
			"pubsub_msg_id", original.ID,
		)

		notifiable := recipient{user: request.RecipientID, store: tokenStore}
		result, err := fcmChannel.Send(ctx, notifiable, pushNotification{request: request})

		var fe *fcm.Error
		if errors.As(err, &fe) && fe.Result != nil {
			result = fe.Result
		}
		if result != nil {
			pruneDeadTokens(ctx, tokenStore, request.RecipientID, result, procLogger)
		}

		switch {
		case err == nil:
			procLogger.Info("FCM Dispatched", "success", result.SuccessCount, "failure", result.FailureCount)
			return nil
		case errors.Is(err, channel.ErrAdapter):
			procLogger.Info("No devices registered for user; dropping notification.")
			return nil
		case errors.Is(err, fcm.ErrPartialFailure):
			procLogger.Warn("FCM Dispatch partially failed", "success", result.SuccessCount, "failure", result.FailureCount)
			return nil
		}
		procLogger.Error("FCM Dispatch failed", "err", err)
		return err
	}
}

func pruneDeadTokens(ctx context.Context, store dispatch.TokenStore, user urn.URN, result *fcm.Result, logger *slog.Logger) {
	dead := result.UnregisteredTokens()
	if len(dead) == 0 {
		return
	}
	logger.Info("Cleaning up invalid FCM tokens", "count", len(dead))
	for _, t := range dead {
		if err := store.UnregisterFCM(ctx, user, t); err != nil {
			logger.Warn("Failed to delete FCM token", "err", err)
		}
	}
}

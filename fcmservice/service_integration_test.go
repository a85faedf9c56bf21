// --- File: fcmservice/service_integration_test.go ---
//go:build integration

package fcmservice_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/google/uuid"
	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/illmade-knight/go-test/emulators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/durationpb"

	"github.com/tinywideclouds/go-fcm-service/fcmservice"
	"github.com/tinywideclouds/go-fcm-service/fcmservice/config"
	fsStore "github.com/tinywideclouds/go-fcm-service/internal/storage/firestore"
	"github.com/tinywideclouds/go-fcm-service/pkg/fcm"
	urn "github.com/tinywideclouds/go-platform/pkg/net/v1"
	"github.com/tinywideclouds/go-platform/pkg/notification/v1"
)

// fakeFCM is a legacy FCM endpoint that records every multicast it receives.
type fakeFCM struct {
	mu       sync.Mutex
	requests []fcm.LegacyPayload
	reply    string
	server   *httptest.Server
}

func newFakeFCM(t *testing.T, reply string) *fakeFCM {
	t.Helper()
	f := &fakeFCM{reply: reply}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload fcm.LegacyPayload
		_ = json.NewDecoder(r.Body).Decode(&payload)
		f.mu.Lock()
		f.requests = append(f.requests, payload)
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, f.reply)
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeFCM) Requests() []fcm.LegacyPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fcm.LegacyPayload(nil), f.requests...)
}

func (f *fakeFCM) dispatcher(t *testing.T, logger *slog.Logger) *fcm.Dispatcher {
	t.Helper()
	endpoints := fcm.Endpoints{
		Send:             f.server.URL + "/fcm/send",
		TopicSubscribe:   f.server.URL + "/iid/v1:batchAdd",
		TopicUnsubscribe: f.server.URL + "/iid/v1:batchRemove",
	}
	d, err := fcm.NewDispatcher(context.Background(), fcm.Settings{
		API:     fcm.LegacyAPI{ServerKey: "integration-key", Endpoints: endpoints},
		Timeout: 5 * time.Second,
	}, logger)
	require.NoError(t, err)
	return d
}

func TestFCMService_Integration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	t.Cleanup(cancel)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	projectID := "test-project-integ"

	pubsubConn := emulators.SetupPubsubEmulator(t, ctx, emulators.GetDefaultPubsubConfig(projectID))
	psClient, err := pubsub.NewClient(ctx, projectID, pubsubConn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = psClient.Close() })

	fsConn := emulators.SetupFirestoreEmulator(t, ctx, emulators.GetDefaultFirestoreConfig(projectID))
	fsClient, err := firestore.NewClient(ctx, projectID, fsConn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fsClient.Close() })

	tokenStore := fsStore.NewFirestoreStore(fsClient, "", logger)

	startService := func(t *testing.T, fake *fakeFCM, subID string) {
		t.Helper()
		consumerCfg := *messagepipeline.NewGooglePubsubConsumerDefaults(subID)
		consumer, err := messagepipeline.NewGooglePubsubConsumer(&consumerCfg, psClient, logger)
		require.NoError(t, err)

		svc, err := fcmservice.New(
			&config.Config{ListenAddr: ":0", NumPipelineWorkers: 2},
			consumer,
			fake.dispatcher(t, logger),
			tokenStore,
			func(h http.Handler) http.Handler { return h },
			nil,
			logger,
		)
		require.NoError(t, err)

		svcCtx, svcCancel := context.WithCancel(ctx)
		t.Cleanup(svcCancel)
		go func() { _ = svc.Start(svcCtx) }()
		t.Cleanup(func() { _ = svc.Shutdown(context.Background()) })
	}

	t.Run("Register -> Process -> Dispatch", func(t *testing.T) {
		topicID := "push-success-" + uuid.NewString()
		subID := topicID + "-sub"
		createPubsubResources(t, ctx, psClient, projectID, topicID, subID)
		fake := newFakeFCM(t, `{"success":1,"failure":0,"results":[{"message_id":"0:1"}]}`)
		startService(t, fake, subID)

		userURN, _ := urn.Parse("urn:sm:user:integ-user")
		require.NoError(t, tokenStore.RegisterFCM(ctx, userURN, "android-token-999"))

		// The request carries no tokens; the service routes from Firestore.
		payload, err := json.Marshal(&notification.NotificationRequest{
			RecipientID: userURN,
			Content:     notification.NotificationContent{Title: "Hello", Body: "World"},
		})
		require.NoError(t, err)
		_, err = psClient.Publisher(topicID).Publish(ctx, &pubsub.Message{Data: payload}).Get(ctx)
		require.NoError(t, err)

		require.Eventually(t, func() bool { return len(fake.Requests()) == 1 }, 10*time.Second, 100*time.Millisecond)
		sent := fake.Requests()[0]
		assert.Equal(t, []string{"android-token-999"}, sent.RegistrationIDs)
		assert.Equal(t, "Hello", sent.Notification.Title)
	})

	t.Run("Dead tokens are pruned", func(t *testing.T) {
		topicID := "push-prune-" + uuid.NewString()
		subID := topicID + "-sub"
		createPubsubResources(t, ctx, psClient, projectID, topicID, subID)
		fake := newFakeFCM(t, `{"success":0,"failure":1,"results":[{"error":"NotRegistered"}]}`)
		startService(t, fake, subID)

		userURN, _ := urn.Parse("urn:sm:user:prune-user")
		require.NoError(t, tokenStore.RegisterFCM(ctx, userURN, "stale-token"))

		payload, err := json.Marshal(&notification.NotificationRequest{
			RecipientID: userURN,
			Content:     notification.NotificationContent{Title: "Ping"},
		})
		require.NoError(t, err)
		_, err = psClient.Publisher(topicID).Publish(ctx, &pubsub.Message{Data: payload}).Get(ctx)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			tokens, err := tokenStore.Fetch(ctx, userURN)
			return err == nil && len(tokens) == 0
		}, 10*time.Second, 100*time.Millisecond)
	})
}

func createPubsubResources(t *testing.T, ctx context.Context, client *pubsub.Client, projectID, topicID, subID string) {
	t.Helper()
	topicName := fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
	_, err := client.TopicAdminClient.CreateTopic(ctx, &pubsubpb.Topic{Name: topicName})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.TopicAdminClient.DeleteTopic(context.Background(), &pubsubpb.DeleteTopicRequest{Topic: topicName})
	})

	subName := fmt.Sprintf("projects/%s/subscriptions/%s", projectID, subID)
	sub := &pubsubpb.Subscription{
		Name:               subName,
		Topic:              topicName,
		AckDeadlineSeconds: 10,
		RetryPolicy: &pubsubpb.RetryPolicy{
			MinimumBackoff: &durationpb.Duration{Seconds: 1},
		},
	}
	_, err = client.SubscriptionAdminClient.CreateSubscription(ctx, sub)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.SubscriptionAdminClient.DeleteSubscription(context.Background(), &pubsubpb.DeleteSubscriptionRequest{Subscription: subName})
	})
}

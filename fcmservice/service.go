// --- File: fcmservice/service.go ---
// Package fcmservice assembles the FCM delivery service: the Pub/Sub
// pipeline, the registration and topic APIs, and optional metrics.
package fcmservice

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tinywideclouds/go-fcm-service/fcmservice/config"
	"github.com/tinywideclouds/go-fcm-service/internal/api"
	"github.com/tinywideclouds/go-fcm-service/internal/pipeline"
	"github.com/tinywideclouds/go-fcm-service/pkg/channel"
	"github.com/tinywideclouds/go-fcm-service/pkg/dispatch"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	notification "github.com/tinywideclouds/go-platform/pkg/notification/v1"
)

type Wrapper struct {
	*microservice.BaseServer
	pipelineService *messagepipeline.StreamingService[notification.NotificationRequest]
	logger          *slog.Logger
}

// New assembles the service. gatherer is served on /metrics when metrics are
// enabled; it may be nil otherwise.
func New(
	cfg *config.Config,
	consumer messagepipeline.MessageConsumer,
	sender dispatch.Sender,
	tokenStore dispatch.TokenStore,
	authMiddleware func(http.Handler) http.Handler,
	gatherer prometheus.Gatherer,
	logger *slog.Logger,
) (*Wrapper, error) {

	baseServer := microservice.NewBaseServer(logger, cfg.ListenAddr)

	fcmChannel := channel.New(sender, logger)
	processor := pipeline.NewProcessor(fcmChannel, tokenStore, logger)

	streamingService, err := messagepipeline.NewStreamingService(
		messagepipeline.StreamingServiceConfig{NumWorkers: cfg.NumPipelineWorkers},
		consumer,
		pipeline.NotificationRequestTransformer,
		processor,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming service: %w", err)
	}

	tokenAPI := api.NewTokenAPI(tokenStore, logger)
	topicAPI := api.NewTopicAPI(sender, tokenStore, logger)

	mux := baseServer.Mux()
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig, logger)

	handle := func(pattern string, handlerFunc http.HandlerFunc) {
		mux.Handle(pattern, corsMiddleware(authMiddleware(handlerFunc)))
	}

	// Device registration
	handle("POST /api/v1/register/fcm", tokenAPI.RegisterFCM)
	handle("POST /api/v1/unregister/fcm", tokenAPI.UnregisterFCM)

	// Topics
	handle("POST /api/v1/topics/{topic}/subscribe", topicAPI.Subscribe)
	handle("POST /api/v1/topics/{topic}/unsubscribe", topicAPI.Unsubscribe)
	handle("POST /api/v1/topics/{topic}/send", topicAPI.Send)

	// CORS preflight for the API namespace; the middleware writes the headers.
	mux.Handle("OPTIONS /api/v1/", corsMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})))

	if cfg.MetricsEnabled && gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
		logger.Info("Metrics endpoint enabled", "path", "/metrics")
	}

	return &Wrapper{
		BaseServer:      baseServer,
		pipelineService: streamingService,
		logger:          logger,
	}, nil
}

func (w *Wrapper) Start(ctx context.Context) error {
	w.logger.Info("Core processing pipeline starting...")
	if err := w.pipelineService.Start(ctx); err != nil {
		return fmt.Errorf("failed to start processing service: %w", err)
	}
	w.SetReady(true)
	w.logger.Info("Service is now ready.")
	return w.BaseServer.Start()
}

func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.logger.Info("Shutting down service components...")
	var finalErr error
	if err := w.pipelineService.Stop(ctx); err != nil {
		w.logger.Error("Processing pipeline shutdown failed.", "err", err)
		finalErr = err
	}
	if err := w.BaseServer.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		finalErr = err
	}
	w.logger.Info("Service shutdown complete.")
	return finalErr
}

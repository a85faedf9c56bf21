// --- File: fcmservice/config/config.go ---
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-fcm-service/pkg/fcm"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

const (
	defaultRetryAttempts = 3
	defaultRetryInterval = 1000 * time.Millisecond
	defaultCacheTTL      = 24 * time.Hour
)

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// FCMConfig is the flat, file-shaped FCM configuration. Settings turns it
// into the dispatcher's per-version variant.
type FCMConfig struct {
	APIVersion            string
	ProjectID             string
	ServiceAccountKeyPath string
	ServerKey             string
	V1Endpoints           fcm.Endpoints
	LegacyEndpoints       fcm.Endpoints
	Timeout               time.Duration
	RetryAttempts         int
	RetryInterval         time.Duration
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID              string
	ListenAddr             string
	TopicID                string
	SubscriptionID         string
	SubscriptionDLQTopicID string
	NumPipelineWorkers     int
	TokenCollection        string
	MetricsEnabled         bool

	CorsConfig middleware.CorsConfig
	Redis      RedisConfig
	FCM        FCMConfig

	PubsubConsumerConfig *messagepipeline.GooglePubsubConsumerConfig
}

// Settings builds dispatcher settings for the selected API version. Empty
// endpoints fall back to the public FCM defaults.
func (c FCMConfig) Settings() (fcm.Settings, error) {
	settings := fcm.Settings{
		Timeout:       c.Timeout,
		RetryAttempts: c.RetryAttempts,
		RetryInterval: c.RetryInterval,
	}
	switch fcm.APIVersion(strings.ToLower(c.APIVersion)) {
	case fcm.APIVersionV1:
		settings.API = fcm.V1API{
			ProjectID:             c.ProjectID,
			ServiceAccountKeyPath: c.ServiceAccountKeyPath,
			Endpoints:             withDefaults(c.V1Endpoints, fcm.DefaultV1Endpoints()),
		}
	case fcm.APIVersionLegacy:
		settings.API = fcm.LegacyAPI{
			ServerKey: c.ServerKey,
			Endpoints: withDefaults(c.LegacyEndpoints, fcm.DefaultLegacyEndpoints()),
		}
	default:
		return fcm.Settings{}, fmt.Errorf("fcm.api_version %q must be legacy or v1: %w", c.APIVersion, fcm.ErrConfig)
	}
	return settings, nil
}

func withDefaults(e, defaults fcm.Endpoints) fcm.Endpoints {
	if e.Send == "" {
		e.Send = defaults.Send
	}
	if e.TopicSubscribe == "" {
		e.TopicSubscribe = defaults.TopicSubscribe
	}
	if e.TopicUnsubscribe == "" {
		e.TopicUnsubscribe = defaults.TopicUnsubscribe
	}
	return e
}

// ApplyFCMEnvOverrides applies the FCM_* environment variables and fills
// defaults. fallbackProjectID is used when no FCM project is set.
func ApplyFCMEnvOverrides(cfg *FCMConfig, fallbackProjectID string, logger *slog.Logger) {
	if val := os.Getenv("FCM_API_VERSION"); val != "" {
		logger.Debug("Overriding config value", "key", "FCM_API_VERSION", "source", "env")
		cfg.APIVersion = val
	}
	if val := os.Getenv("FCM_PROJECT_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "FCM_PROJECT_ID", "source", "env")
		cfg.ProjectID = val
	}
	if val := os.Getenv("FCM_SERVICE_ACCOUNT_KEY_PATH"); val != "" {
		logger.Debug("Overriding config value", "key", "FCM_SERVICE_ACCOUNT_KEY_PATH", "source", "env")
		cfg.ServiceAccountKeyPath = val
	}
	if val := os.Getenv("FCM_SERVER_KEY"); val != "" {
		logger.Debug("Overriding config value", "key", "FCM_SERVER_KEY", "source", "env")
		cfg.ServerKey = val
	}
	if val := os.Getenv("FCM_TIMEOUT"); val != "" {
		if secs, err := strconv.Atoi(val); err == nil && secs > 0 {
			logger.Debug("Overriding config value", "key", "FCM_TIMEOUT", "source", "env")
			cfg.Timeout = time.Duration(secs) * time.Second
		}
	}

	if cfg.APIVersion == "" {
		cfg.APIVersion = string(fcm.APIVersionV1)
	}
	if cfg.ProjectID == "" {
		cfg.ProjectID = fallbackProjectID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = fcm.DefaultTimeout
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = defaultRetryAttempts
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	if val := os.Getenv("PROJECT_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "PROJECT_ID", "source", "env")
		cfg.ProjectID = val
	}
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}
	if val := os.Getenv("SUBSCRIPTION_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_ID", "source", "env")
		cfg.SubscriptionID = val
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(val)
	}
	if val := os.Getenv("SUBSCRIPTION_DLQ_TOPIC_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_DLQ_TOPIC_ID", "source", "env")
		cfg.SubscriptionDLQTopicID = val
	}
	if val := os.Getenv("NUM_PIPELINE_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil && workers > 0 {
			logger.Debug("Overriding config value", "key", "NUM_PIPELINE_WORKERS", "source", "env")
			cfg.NumPipelineWorkers = workers
		}
	}
	if val := os.Getenv("METRICS_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.MetricsEnabled = enabled
	}

	// Redis
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Redis.Enabled = enabled
	}

	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		var cleanOrigins []string
		for _, o := range strings.Split(corsOrigins, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cleanOrigins = append(cleanOrigins, trimmed)
			}
		}
		cfg.CorsConfig.AllowedOrigins = cleanOrigins
	}

	ApplyFCMEnvOverrides(&cfg.FCM, cfg.ProjectID, logger)

	// Final validation
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("project_id is required (set via YAML or PROJECT_ID env var)")
	}
	if cfg.SubscriptionID == "" {
		return nil, fmt.Errorf("subscription_id is required (set via YAML or SUBSCRIPTION_ID env var)")
	}
	if _, err := cfg.FCM.Settings(); err != nil {
		return nil, err
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.NumPipelineWorkers <= 0 {
		cfg.NumPipelineWorkers = 1
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = defaultCacheTTL
	}
	if cfg.PubsubConsumerConfig == nil {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("Configuration finalized and validated successfully", "fcm_api_version", cfg.FCM.APIVersion)
	return cfg, nil
}

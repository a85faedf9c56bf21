// --- File: fcmservice/config/yaml_config.go ---
package config

import (
	"log/slog"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-fcm-service/pkg/fcm"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

type YamlRedisConfig struct {
	Addr       string `yaml:"addr"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	Enabled    bool   `yaml:"enabled"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

type YamlEndpoints struct {
	Send             string `yaml:"send"`
	TopicSubscribe   string `yaml:"topic_subscribe"`
	TopicUnsubscribe string `yaml:"topic_unsubscribe"`
}

// YamlFCMDefaults uses the units of the original config file: seconds for
// the timeout, milliseconds for the retry interval.
type YamlFCMDefaults struct {
	Timeout       int `yaml:"timeout"`
	RetryAttempts int `yaml:"retry_attempts"`
	RetryInterval int `yaml:"retry_interval"`
}

type YamlFCMConfig struct {
	APIVersion            string `yaml:"api_version"`
	ProjectID             string `yaml:"project_id"`
	ServiceAccountKeyPath string `yaml:"service_account_key_path"`
	ServerKey             string `yaml:"server_key"`
	Endpoints             struct {
		V1     YamlEndpoints `yaml:"v1"`
		Legacy YamlEndpoints `yaml:"legacy"`
	} `yaml:"endpoints"`
	Defaults YamlFCMDefaults `yaml:"defaults"`
}

// YamlConfig mirrors the raw config.yaml file.
type YamlConfig struct {
	ProjectID              string          `yaml:"project_id"`
	ListenAddr             string          `yaml:"listen_addr"`
	TopicID                string          `yaml:"topic_id"`
	SubscriptionID         string          `yaml:"subscription_id"`
	SubscriptionDLQTopicID string          `yaml:"subscription_dlq_topic_id"`
	NumPipelineWorkers     int             `yaml:"num_pipeline_workers"`
	TokenCollection        string          `yaml:"token_collection"`
	MetricsEnabled         bool            `yaml:"metrics_enabled"`
	CorsConfig             YamlCorsConfig  `yaml:"cors"`
	RedisConfig            YamlRedisConfig `yaml:"redis"`
	FCMConfig              YamlFCMConfig   `yaml:"fcm"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	y := baseCfg.FCMConfig
	cfg := &Config{
		ProjectID:              baseCfg.ProjectID,
		ListenAddr:             baseCfg.ListenAddr,
		TopicID:                baseCfg.TopicID,
		SubscriptionID:         baseCfg.SubscriptionID,
		SubscriptionDLQTopicID: baseCfg.SubscriptionDLQTopicID,
		NumPipelineWorkers:     baseCfg.NumPipelineWorkers,
		TokenCollection:        baseCfg.TokenCollection,
		MetricsEnabled:         baseCfg.MetricsEnabled,
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
			TTL:      time.Duration(baseCfg.RedisConfig.TTLSeconds) * time.Second,
		},
		FCM: FCMConfig{
			APIVersion:            y.APIVersion,
			ProjectID:             y.ProjectID,
			ServiceAccountKeyPath: y.ServiceAccountKeyPath,
			ServerKey:             y.ServerKey,
			V1Endpoints:           y.Endpoints.V1.toEndpoints(),
			LegacyEndpoints:       y.Endpoints.Legacy.toEndpoints(),
			Timeout:               time.Duration(y.Defaults.Timeout) * time.Second,
			RetryAttempts:         y.Defaults.RetryAttempts,
			RetryInterval:         time.Duration(y.Defaults.RetryInterval) * time.Millisecond,
		},
	}

	if cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"listen_addr", cfg.ListenAddr,
		"subscription_id", cfg.SubscriptionID,
		"fcm_api_version", cfg.FCM.APIVersion,
	)
	return cfg, nil
}

func (e YamlEndpoints) toEndpoints() fcm.Endpoints {
	return fcm.Endpoints{
		Send:             e.Send,
		TopicSubscribe:   e.TopicSubscribe,
		TopicUnsubscribe: e.TopicUnsubscribe,
	}
}

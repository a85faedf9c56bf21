// --- File: fcmservice/config/yaml_config_test.go ---
package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"gopkg.in/yaml.v3"

	"github.com/tinywideclouds/go-fcm-service/fcmservice/config"
)

const sampleYaml = `
project_id: yaml-project
listen_addr: ":9000"
topic_id: yaml-topic
subscription_id: yaml-subscription
subscription_dlq_topic_id: yaml-dlq
num_pipeline_workers: 5
metrics_enabled: true
cors:
  allowed_origins: ["http://yaml.com"]
  role: editor
redis:
  enabled: true
  addr: localhost:6379
  ttl_seconds: 600
fcm:
  api_version: legacy
  server_key: yaml-server-key
  endpoints:
    legacy:
      send: https://fcm.example.test/fcm/send
  defaults:
    timeout: 10
    retry_attempts: 4
    retry_interval: 250
`

func TestNewConfigFromYaml(t *testing.T) {
	logger := newTestLogger()

	t.Run("Success - maps all fields correctly", func(t *testing.T) {
		var yamlCfg config.YamlConfig
		require.NoError(t, yaml.Unmarshal([]byte(sampleYaml), &yamlCfg))

		cfg, err := config.NewConfigFromYaml(&yamlCfg, logger)

		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "yaml-project", cfg.ProjectID)
		assert.Equal(t, ":9000", cfg.ListenAddr)
		assert.Equal(t, "yaml-topic", cfg.TopicID)
		assert.Equal(t, "yaml-subscription", cfg.SubscriptionID)
		assert.Equal(t, "yaml-dlq", cfg.SubscriptionDLQTopicID)
		assert.Equal(t, 5, cfg.NumPipelineWorkers)
		assert.True(t, cfg.MetricsEnabled)

		assert.Equal(t, []string{"http://yaml.com"}, cfg.CorsConfig.AllowedOrigins)
		assert.Equal(t, middleware.CorsRoleEditor, cfg.CorsConfig.Role)

		assert.True(t, cfg.Redis.Enabled)
		assert.Equal(t, 10*time.Minute, cfg.Redis.TTL)

		assert.Equal(t, "legacy", cfg.FCM.APIVersion)
		assert.Equal(t, "yaml-server-key", cfg.FCM.ServerKey)
		assert.Equal(t, "https://fcm.example.test/fcm/send", cfg.FCM.LegacyEndpoints.Send)
		assert.Equal(t, 10*time.Second, cfg.FCM.Timeout)
		assert.Equal(t, 4, cfg.FCM.RetryAttempts)
		assert.Equal(t, 250*time.Millisecond, cfg.FCM.RetryInterval)

		assert.NotNil(t, cfg.PubsubConsumerConfig)
	})

	t.Run("Success - Handles missing optional fields gracefully", func(t *testing.T) {
		yamlCfg := &config.YamlConfig{
			ProjectID:      "minimal-project",
			SubscriptionID: "minimal-sub",
		}

		cfg, err := config.NewConfigFromYaml(yamlCfg, logger)

		require.NoError(t, err)
		assert.Equal(t, "minimal-project", cfg.ProjectID)
		assert.Equal(t, 0, cfg.NumPipelineWorkers)
		assert.Empty(t, cfg.ListenAddr)
		assert.Empty(t, cfg.FCM.APIVersion)
		assert.Zero(t, cfg.FCM.Timeout)
	})
}

// Package cli implements fcmctl, a command line client for sending FCM
// messages and managing topic membership with the service's configuration.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tinywideclouds/go-fcm-service/fcmservice/config"
	"github.com/tinywideclouds/go-fcm-service/pkg/dispatch"
	"github.com/tinywideclouds/go-fcm-service/pkg/fcm"
)

// Env carries what the commands need from the outside world.
type Env struct {
	Out       io.Writer
	Logger    *slog.Logger
	NewSender func(ctx context.Context, settings fcm.Settings) (dispatch.Sender, error)
}

// RootCommand creates the fcmctl command tree.
func RootCommand(env *Env) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "fcmctl",
		Short:        "Send FCM messages and manage topic subscriptions",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "service YAML config to read the fcm section from")

	connect := func(cmd *cobra.Command) (dispatch.Sender, error) {
		settings, err := loadSettings(configPath, env.Logger)
		if err != nil {
			return nil, err
		}
		return env.NewSender(cmd.Context(), settings)
	}

	rootCmd.AddCommand(
		sendCommand(env, connect),
		topicCommand(env, connect),
	)
	return rootCmd
}

type connectFunc func(cmd *cobra.Command) (dispatch.Sender, error)

// loadSettings reads the fcm section of a service config file, if given,
// then applies the FCM_* environment overrides.
func loadSettings(path string, logger *slog.Logger) (fcm.Settings, error) {
	var fcmCfg config.FCMConfig
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fcm.Settings{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		var yamlCfg config.YamlConfig
		if err := yaml.Unmarshal(raw, &yamlCfg); err != nil {
			return fcm.Settings{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		cfg, err := config.NewConfigFromYaml(&yamlCfg, logger)
		if err != nil {
			return fcm.Settings{}, err
		}
		fcmCfg = cfg.FCM
		if fcmCfg.ProjectID == "" {
			fcmCfg.ProjectID = cfg.ProjectID
		}
	}
	config.ApplyFCMEnvOverrides(&fcmCfg, os.Getenv("PROJECT_ID"), logger)
	return fcmCfg.Settings()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

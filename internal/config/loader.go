package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Environment variable overrides. These match the deployment surface of the
// original cloud-function version of this service, so existing deployments
// keep working without a config file.
const (
	EnvBrokerURL    = "NATS_URL"
	EnvTopicName    = "TOPIC_NAME"
	EnvTopicProject = "TOPIC_PROJECT"
	EnvAllowList    = "IP_WHITELIST"
	EnvListen       = "LISTEN_ADDR"
)

// Load reads and parses configuration from a file, applies defaults, then
// environment overrides. An empty path yields a default config driven purely
// by environment variables.
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if configPath != "" {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve config path %q: %w", configPath, err)
		}

		data, err := os.ReadFile(absPath)
		if err != nil {
			return nil, fmt.Errorf("config file not found: %s\n"+
				"Hint: check the path or run with --config flag", absPath)
		}

		expanded := expandEnvVars(data)
		if err := yaml.Unmarshal(expanded, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", absPath, err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// expandEnvVars replaces ${VAR} references in raw config bytes with the
// corresponding environment variable. Unset variables expand to empty.
func expandEnvVars(data []byte) []byte {
	return envVarPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}

// applyEnvOverrides lets environment variables win over file values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvBrokerURL); v != "" {
		cfg.Broker.URL = v
	}
	if v := os.Getenv(EnvTopicName); v != "" {
		cfg.Broker.TopicName = v
	}
	if v := os.Getenv(EnvTopicProject); v != "" {
		cfg.Broker.TopicProject = v
	}
	if v := os.Getenv(EnvAllowList); v != "" {
		cfg.Webhook.AllowList = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		cfg.Webhook.Listen = v
	}
}

// applyDefaults fills fields that unmarshalling may have blanked.
func applyDefaults(cfg *Config) {
	def := Defaults()
	if cfg.Service.Name == "" {
		cfg.Service.Name = def.Service.Name
	}
	if cfg.Service.LogLevel == "" {
		cfg.Service.LogLevel = def.Service.LogLevel
	}
	if cfg.Service.LogFormat == "" {
		cfg.Service.LogFormat = def.Service.LogFormat
	}
	if cfg.Webhook.Listen == "" {
		cfg.Webhook.Listen = def.Webhook.Listen
	}
	if cfg.Webhook.Path == "" {
		cfg.Webhook.Path = def.Webhook.Path
	}
	if cfg.Webhook.MaxBodySize == "" {
		cfg.Webhook.MaxBodySize = def.Webhook.MaxBodySize
	}
	if cfg.Webhook.AllowListPolicy == "" {
		cfg.Webhook.AllowListPolicy = def.Webhook.AllowListPolicy
	}
	if cfg.Webhook.ForwardedHeader == "" {
		cfg.Webhook.ForwardedHeader = def.Webhook.ForwardedHeader
	}
	if cfg.Broker.PublishTimeout <= 0 {
		cfg.Broker.PublishTimeout = def.Broker.PublishTimeout
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = def.Metrics.Path
	}
}

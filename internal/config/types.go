package config

import "time"

// Config represents the complete pubsub-webhook configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Webhook WebhookConfig `yaml:"webhook"`
	Broker  BrokerConfig  `yaml:"broker"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// WebhookConfig defines the HTTP listener and request policy.
type WebhookConfig struct {
	Listen string `yaml:"listen"`

	// Path is the URL path the webhook is served on (e.g. "/webhook")
	Path string `yaml:"path"`

	// MaxBodySize is the maximum allowed request body size (e.g. "1MB")
	MaxBodySize string `yaml:"max_body_size,omitempty"`

	// AllowList is a comma-separated list of CIDR ranges permitted to call
	// the webhook. Empty means no IP restriction.
	AllowList string `yaml:"allow_list,omitempty"`

	// AllowListPolicy decides what happens when the allow list is non-empty
	// but every entry is malformed: "open" permits all traffic, "closed"
	// rejects all traffic. Default: "open".
	AllowListPolicy string `yaml:"allow_list_policy,omitempty"`

	// ForwardedHeader is the proxy header consulted for the original client
	// IP. Default: "X-Forwarded-For".
	ForwardedHeader string `yaml:"forwarded_header,omitempty"`

	Challenge ChallengeConfig `yaml:"challenge,omitempty"`
}

// ChallengeConfig defines how provider verification handshakes are detected.
// All fields are optional; the first configured probe that matches wins.
type ChallengeConfig struct {
	// BodyField is a top-level JSON field whose presence marks a challenge
	// request (e.g. "challenge" for Slack-style handshakes).
	BodyField string `yaml:"body_field,omitempty"`

	// Header is an HTTP header whose non-empty value is echoed back.
	Header string `yaml:"header,omitempty"`

	// QueryParam is a URL query parameter whose non-empty value is echoed back.
	QueryParam string `yaml:"query_param,omitempty"`
}

// BrokerConfig defines the pub/sub broker connection and target topic.
type BrokerConfig struct {
	// URL is the NATS server URL (e.g. "nats://127.0.0.1:4222"). Required.
	URL string `yaml:"url"`

	// TopicName is the subject messages are published to. Required.
	TopicName string `yaml:"topic_name"`

	// TopicProject optionally scopes the subject to a different tenant;
	// when set the effective subject is "<topic_project>.<topic_name>".
	TopicProject string `yaml:"topic_project,omitempty"`

	// PublishTimeout bounds the broker round-trip per request.
	PublishTimeout time.Duration `yaml:"publish_timeout,omitempty"`

	// JetStream publishes through JetStream (broker-acknowledged, message id
	// carries the stream sequence) instead of core NATS.
	JetStream bool `yaml:"jetstream,omitempty"`
}

// MetricsConfig defines the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "pubsub-webhook",
			LogLevel:  "INFO",
			LogFormat: "json",
		},
		Webhook: WebhookConfig{
			Listen:          "127.0.0.1:8080",
			Path:            "/webhook",
			MaxBodySize:     "1MB",
			AllowListPolicy: "open",
			ForwardedHeader: "X-Forwarded-For",
			Challenge: ChallengeConfig{
				BodyField: "challenge",
			},
		},
		Broker: BrokerConfig{
			PublishTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

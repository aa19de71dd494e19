package webhook

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mgmonteleone/pubsub-webhook/internal/config"
	"github.com/mgmonteleone/pubsub-webhook/internal/ipfilter"
)

// FromGlobalConfig converts the validated global configuration into the
// server's own Config, parsing the max body size.
func FromGlobalConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("config is nil")
	}

	maxBodySize, err := parseMaxBodySize(cfg.Webhook.MaxBodySize)
	if err != nil {
		return Config{}, fmt.Errorf("invalid max_body_size %q: %w", cfg.Webhook.MaxBodySize, err)
	}

	out := Config{
		Listen:          cfg.Webhook.Listen,
		Path:            cfg.Webhook.Path,
		Subject:         cfg.Broker.Subject(),
		AllowListRanges: cfg.Webhook.AllowListRanges(),
		AllowListPolicy: ipfilter.Policy(cfg.Webhook.AllowListPolicy),
		ForwardedHeader: cfg.Webhook.ForwardedHeader,
		Challenge: ChallengeConfig{
			BodyField:  cfg.Webhook.Challenge.BodyField,
			Header:     cfg.Webhook.Challenge.Header,
			QueryParam: cfg.Webhook.Challenge.QueryParam,
		},
		MaxBodySize: maxBodySize,
	}
	if cfg.Metrics.Enabled {
		out.MetricsPath = cfg.Metrics.Path
	}

	return out, nil
}

// parseMaxBodySize parses size strings like "1MB", "512KB", "2048576" to bytes.
// Returns DefaultMaxBodySize if empty.
func parseMaxBodySize(size string) (int64, error) {
	if size == "" {
		return DefaultMaxBodySize, nil
	}

	// Handle unit suffixes (KB, MB, GB)
	upper := strings.ToUpper(size)
	multiplier := int64(1)

	if strings.HasSuffix(upper, "KB") {
		multiplier = 1024
		size = strings.TrimSuffix(upper, "KB")
	} else if strings.HasSuffix(upper, "MB") {
		multiplier = 1024 * 1024
		size = strings.TrimSuffix(upper, "MB")
	} else if strings.HasSuffix(upper, "GB") {
		multiplier = 1024 * 1024 * 1024
		size = strings.TrimSuffix(upper, "GB")
	}

	// Parse numeric value
	value, err := strconv.ParseInt(strings.TrimSpace(size), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}

	if value <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}

	result := value * multiplier
	if result < 0 { // Check for overflow
		return 0, fmt.Errorf("size too large")
	}

	return result, nil
}

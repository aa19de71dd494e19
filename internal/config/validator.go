package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the loaded configuration for startup-fatal problems.
// Malformed individual allow-list entries are NOT fatal here; they are
// skipped per-entry at filter build time.
func (c *Config) Validate() error {
	if c.Broker.URL == "" {
		return fmt.Errorf("broker.url is required (or set %s)", EnvBrokerURL)
	}
	if err := validateBrokerURL(c.Broker.URL); err != nil {
		return fmt.Errorf("broker.url: %w", err)
	}
	if c.Broker.TopicName == "" {
		return fmt.Errorf("broker.topic_name is required (or set %s)", EnvTopicName)
	}
	if strings.ContainsAny(c.Broker.TopicName, " \t*>") {
		return fmt.Errorf("broker.topic_name %q contains characters not allowed in a publish subject", c.Broker.TopicName)
	}
	if c.Broker.TopicProject != "" && strings.ContainsAny(c.Broker.TopicProject, " \t.*>") {
		return fmt.Errorf("broker.topic_project %q contains characters not allowed in a subject token", c.Broker.TopicProject)
	}

	switch c.Webhook.AllowListPolicy {
	case "open", "closed":
	default:
		return fmt.Errorf("webhook.allow_list_policy must be %q or %q, got %q",
			"open", "closed", c.Webhook.AllowListPolicy)
	}

	if !strings.HasPrefix(c.Webhook.Path, "/") {
		return fmt.Errorf("webhook.path must start with '/', got %q", c.Webhook.Path)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", c.Metrics.Path)
	}
	if c.Metrics.Enabled && c.Metrics.Path == c.Webhook.Path {
		return fmt.Errorf("metrics.path and webhook.path are both %q", c.Metrics.Path)
	}

	return nil
}

// validateBrokerURL accepts comma-separated NATS server URLs.
func validateBrokerURL(raw string) error {
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		u, err := url.Parse(s)
		if err != nil {
			return fmt.Errorf("invalid server URL %q: %w", s, err)
		}
		switch u.Scheme {
		case "nats", "tls", "ws", "wss":
		default:
			return fmt.Errorf("invalid server URL %q: unsupported scheme %q", s, u.Scheme)
		}
		if u.Host == "" {
			return fmt.Errorf("invalid server URL %q: missing host", s)
		}
	}
	return nil
}

// Subject returns the effective publish subject, scoped to the alternate
// project when one is configured.
func (c BrokerConfig) Subject() string {
	if c.TopicProject != "" {
		return c.TopicProject + "." + c.TopicName
	}
	return c.TopicName
}

// AllowListRanges splits the comma-separated allow list into trimmed entries.
// An empty or all-whitespace list yields nil.
func (c WebhookConfig) AllowListRanges() []string {
	if strings.TrimSpace(c.AllowList) == "" {
		return nil
	}
	var out []string
	for _, r := range strings.Split(c.AllowList, ",") {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}

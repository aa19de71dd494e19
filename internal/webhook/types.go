package webhook

import (
	"github.com/mgmonteleone/pubsub-webhook/internal/ipfilter"
)

// Config holds webhook server configuration.
type Config struct {
	// Listen is the address the HTTP server binds to.
	Listen string

	// Path is the URL path the webhook is served on.
	Path string

	// Subject is the broker subject accepted payloads are published to.
	Subject string

	// AllowListRanges are the permitted caller CIDR ranges. Empty means no
	// IP restriction.
	AllowListRanges []string

	// AllowListPolicy applies when AllowListRanges is non-empty but no
	// entry parses.
	AllowListPolicy ipfilter.Policy

	// ForwardedHeader is the proxy header carrying the original client IP.
	ForwardedHeader string

	// Challenge configures provider handshake detection.
	Challenge ChallengeConfig

	// MaxBodySize is the maximum allowed request body size in bytes.
	MaxBodySize int64

	// MetricsPath, when non-empty, serves Prometheus metrics on this path.
	MetricsPath string
}

// ChallengeConfig selects which request field marks a verification
// handshake. Probes run in field order; the first match is echoed back.
type ChallengeConfig struct {
	BodyField  string
	Header     string
	QueryParam string
}

// AckResponse is the JSON response for successfully relayed events.
type AckResponse struct {
	Status    string `json:"status"`
	MessageID string `json:"message_id"`
}

// ErrorResponse is the JSON response for webhook errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Default values
const (
	DefaultMaxBodySize = 1048576 // 1 MB
)

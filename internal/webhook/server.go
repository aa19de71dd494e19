package webhook

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/zeebo/blake3"

	"github.com/mgmonteleone/pubsub-webhook/internal/ipfilter"
	"github.com/mgmonteleone/pubsub-webhook/internal/metric"
	"github.com/mgmonteleone/pubsub-webhook/internal/publisher"
)

// HealthReporter is implemented by publishers that can report broker
// connectivity for the health endpoint.
type HealthReporter interface {
	Healthy() bool
}

// Server represents the webhook HTTP server.
type Server struct {
	config    Config
	pub       publisher.Publisher
	allowList *ipfilter.AllowList
	metrics   *metric.Metrics
	logger    *slog.Logger
	server    *http.Server

	// degraded carries the startup configuration error; when set, every
	// request is answered with 500 and nothing is processed.
	degraded error
}

// New creates a new webhook server instance. The allow list is parsed once
// here; malformed entries are logged and skipped.
func New(config Config, pub publisher.Publisher, metrics *metric.Metrics, logger *slog.Logger) *Server {
	// Apply defaults
	if config.MaxBodySize == 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	if config.Path == "" {
		config.Path = "/webhook"
	}
	if config.AllowListPolicy == "" {
		config.AllowListPolicy = ipfilter.PolicyOpen
	}

	return &Server{
		config:    config,
		pub:       pub,
		allowList: ipfilter.NewAllowList(config.AllowListRanges, config.AllowListPolicy, logger),
		metrics:   metrics,
		logger:    logger,
	}
}

// NewDegraded creates a server that answers every request with 500. Used
// when required configuration was missing at process start, so the process
// still responds instead of crash-looping.
func NewDegraded(listen string, cause error, logger *slog.Logger) *Server {
	return &Server{
		config:   Config{Listen: listen},
		logger:   logger,
		degraded: cause,
	}
}

// Start starts the webhook HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("webhook server starting",
		"listen", s.config.Listen,
		"path", s.config.Path,
		"subject", s.config.Subject,
		"allow_list_ranges", s.allowListLen(),
		"degraded", s.degraded != nil,
	)

	// Run server in goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		s.logger.Info("webhook server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("webhook server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("webhook server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware. No RealIP: client IP resolution is this service's own
	// job and must stay under the allow-list policy.
	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	if s.degraded != nil {
		r.HandleFunc("/*", s.handleDegraded)
		return r
	}

	r.Post(s.config.Path, s.handleWebhook)
	r.Get("/healthz", s.handleHealth)

	if s.config.MetricsPath != "" && s.metrics != nil {
		r.Get(s.config.MetricsPath, s.metrics.Handler().ServeHTTP)
	}

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.record(metric.OutcomeMethodNotAllowed)
		s.logger.Warn("method not allowed", "method", r.Method, "path", r.URL.Path)
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, http.StatusNotFound, "endpoint not found")
	})

	return r
}

// loggingMiddleware logs HTTP requests (excludes sensitive payloads).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		// Log request (no body content or header dump for security)
		s.logger.Info("webhook request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"client_ip", ipfilter.ClientIP(r.Header, r.RemoteAddr, s.config.ForwardedHeader),
		)
	})
}

// handleDegraded answers every request when startup configuration failed.
func (s *Server) handleDegraded(w http.ResponseWriter, _ *http.Request) {
	s.record(metric.OutcomeConfigError)
	s.respondError(w, http.StatusInternalServerError, "service configuration error")
}

// handleWebhook handles incoming webhook POST requests.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	clientIP := ipfilter.ClientIP(r.Header, r.RemoteAddr, s.config.ForwardedHeader)

	// Origin filtering only applies when an allow list is configured.
	if s.allowList.Configured() {
		if clientIP == "" {
			s.record(metric.OutcomeRejectedIP)
			s.logger.Warn("webhook origin rejected",
				"reason", "client ip could not be determined",
				"peer", r.RemoteAddr,
			)
			s.respondError(w, http.StatusForbidden, "cannot verify origin")
			return
		}
		if !s.allowList.Allowed(clientIP) {
			s.record(metric.OutcomeRejectedIP)
			s.logger.Warn("webhook origin rejected", "client_ip", clientIP)
			s.respondError(w, http.StatusForbidden, "forbidden")
			return
		}
	}

	// Enforce body size limit
	limitedReader := io.LimitReader(r.Body, s.config.MaxBodySize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		s.record(metric.OutcomeReadError)
		s.logger.Error("failed to read request body", "client_ip", clientIP, "error", err)
		s.respondError(w, http.StatusInternalServerError, "failed to read request body")
		return
	}
	if int64(len(body)) > s.config.MaxBodySize {
		s.record(metric.OutcomePayloadTooLarge)
		s.logger.Warn("payload too large", "client_ip", clientIP, "limit", s.config.MaxBodySize)
		s.respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	// Verification handshakes are echoed back, never published.
	if echo, ok := s.config.Challenge.detectChallenge(r, body); ok {
		s.record(metric.OutcomeChallenge)
		s.logger.Info("challenge handshake answered",
			"client_ip", clientIP,
			"bytes", len(echo.body),
		)
		w.Header().Set("Content-Type", echo.contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(echo.body)
		return
	}

	// One publish attempt, bounded by the publisher's timeout. An empty
	// body is a valid (empty) event.
	start := time.Now()
	msgID, err := s.pub.Publish(ctx, s.config.Subject, body)
	if s.metrics != nil {
		s.metrics.PublishDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		s.record(metric.OutcomeUpstreamError)
		s.logger.Error("publish failed",
			"subject", s.config.Subject,
			"client_ip", clientIP,
			"payload_bytes", len(body),
			"error", err,
		)
		// Generic caller-facing message; the cause stays in the logs.
		if errors.Is(err, publisher.ErrTimeout) || errors.Is(err, publisher.ErrUnavailable) {
			s.respondError(w, http.StatusBadGateway, "upstream unavailable")
		} else {
			s.respondError(w, http.StatusInternalServerError, "publish failed")
		}
		return
	}

	digest := blake3.Sum256(body)
	if s.metrics != nil {
		s.metrics.PayloadBytes.Observe(float64(len(body)))
	}
	s.record(metric.OutcomePublished)
	s.logger.Info("event published",
		"subject", s.config.Subject,
		"client_ip", clientIP,
		"message_id", msgID,
		"payload_bytes", len(body),
		"payload_blake3", hex.EncodeToString(digest[:8]),
	)

	s.respondJSON(w, http.StatusOK, AckResponse{Status: "ok", MessageID: msgID})
}

// handleHealth reports broker connectivity.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if hr, ok := s.pub.(HealthReporter); ok {
		healthy := hr.Healthy()
		if s.metrics != nil {
			if healthy {
				s.metrics.BrokerConnected.Set(1)
			} else {
				s.metrics.BrokerConnected.Set(0)
			}
		}
		if !healthy {
			s.respondError(w, http.StatusServiceUnavailable, "broker disconnected")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// allowListLen is nil-safe for degraded servers.
func (s *Server) allowListLen() int {
	if s.allowList == nil {
		return 0
	}
	return s.allowList.Len()
}

// record increments the outcome counter when metrics are enabled.
func (s *Server) record(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordOutcome(outcome)
	}
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}

package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/mgmonteleone/pubsub-webhook/internal/ipfilter"
	"github.com/mgmonteleone/pubsub-webhook/internal/metric"
	"github.com/mgmonteleone/pubsub-webhook/internal/publisher"
)

// mockPublisher is a mock implementation of publisher.Publisher for testing.
type mockPublisher struct {
	publishFn   func(ctx context.Context, subject string, payload []byte) (string, error)
	calls       int
	lastSubject string
	lastPayload []byte
	healthy     bool
}

func (m *mockPublisher) Publish(ctx context.Context, subject string, payload []byte) (string, error) {
	m.calls++
	m.lastSubject = subject
	m.lastPayload = payload
	if m.publishFn != nil {
		return m.publishFn(ctx, subject, payload)
	}
	return "test-msg-id", nil
}

func (m *mockPublisher) Healthy() bool { return m.healthy }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	return Config{
		Listen:  "127.0.0.1:0",
		Path:    "/webhook",
		Subject: "events.inbound",
		Challenge: ChallengeConfig{
			BodyField: "challenge",
		},
	}
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rec, req)
	return rec
}

func TestHandleWebhook_PublishesBodyVerbatim(t *testing.T) {
	body := []byte(`{"event":"x"}`)
	mp := &mockPublisher{
		publishFn: func(_ context.Context, subject string, payload []byte) (string, error) {
			if subject != "events.inbound" {
				t.Errorf("subject = %v, want events.inbound", subject)
			}
			return "msg-1", nil
		},
	}
	server := New(testConfig(), mp, nil, testLogger())

	req := httptest.NewRequest("POST", "/webhook", bytes.NewReader(body))
	rec := serve(server, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if mp.calls != 1 {
		t.Errorf("publish calls = %d, want 1", mp.calls)
	}
	if !bytes.Equal(mp.lastPayload, body) {
		t.Errorf("payload = %q, want %q", mp.lastPayload, body)
	}

	var resp AckResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.MessageID != "msg-1" {
		t.Errorf("MessageID = %v, want msg-1", resp.MessageID)
	}
}

func TestHandleWebhook_EmptyBodyPublishesEmptyPayload(t *testing.T) {
	mp := &mockPublisher{}
	server := New(testConfig(), mp, nil, testLogger())

	req := httptest.NewRequest("POST", "/webhook", nil)
	rec := serve(server, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if mp.calls != 1 {
		t.Errorf("publish calls = %d, want 1", mp.calls)
	}
	if len(mp.lastPayload) != 0 {
		t.Errorf("payload = %q, want empty", mp.lastPayload)
	}
}

func TestHandleWebhook_MethodNotAllowed(t *testing.T) {
	mp := &mockPublisher{}
	server := New(testConfig(), mp, nil, testLogger())

	req := httptest.NewRequest("GET", "/webhook", nil)
	rec := serve(server, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
	if mp.calls != 0 {
		t.Errorf("publish calls = %d, want 0", mp.calls)
	}
}

func TestHandleWebhook_AllowListRejects(t *testing.T) {
	cfg := testConfig()
	cfg.AllowListRanges = []string{"10.0.0.0/8"}

	mp := &mockPublisher{
		publishFn: func(context.Context, string, []byte) (string, error) {
			t.Fatal("Publish should not be called for a rejected origin")
			return "", nil
		},
	}
	server := New(cfg, mp, nil, testLogger())

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader("{}"))
	req.Header.Set("X-Forwarded-For", "11.0.0.1")
	rec := serve(server, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}

func TestHandleWebhook_AllowListPermits(t *testing.T) {
	cfg := testConfig()
	cfg.AllowListRanges = []string{"10.0.0.0/8"}

	mp := &mockPublisher{}
	server := New(cfg, mp, nil, testLogger())

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader("{}"))
	req.Header.Set("X-Forwarded-For", "10.20.30.40")
	rec := serve(server, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if mp.calls != 1 {
		t.Errorf("publish calls = %d, want 1", mp.calls)
	}
}

func TestHandleWebhook_AllowListUsesPeerWithoutForwardedHeader(t *testing.T) {
	cfg := testConfig()
	// httptest requests arrive from 192.0.2.1
	cfg.AllowListRanges = []string{"192.0.2.0/24"}

	mp := &mockPublisher{}
	server := New(cfg, mp, nil, testLogger())

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader("{}"))
	rec := serve(server, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestHandleWebhook_UnresolvableOriginRejected(t *testing.T) {
	cfg := testConfig()
	cfg.AllowListRanges = []string{"0.0.0.0/0"}

	mp := &mockPublisher{}
	server := New(cfg, mp, nil, testLogger())

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader("{}"))
	// Forwarding header present but the first hop is empty.
	req.Header.Set("X-Forwarded-For", ", 5.6.7.8")
	rec := serve(server, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if mp.calls != 0 {
		t.Errorf("publish calls = %d, want 0", mp.calls)
	}
}

func TestHandleWebhook_ChallengeEchoedWithoutPublish(t *testing.T) {
	body := []byte(`{"challenge":"abc123"}`)
	mp := &mockPublisher{
		publishFn: func(context.Context, string, []byte) (string, error) {
			t.Fatal("Publish should not be called for a challenge handshake")
			return "", nil
		},
	}
	server := New(testConfig(), mp, nil, testLogger())

	req := httptest.NewRequest("POST", "/webhook", bytes.NewReader(body))
	rec := serve(server, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "abc123") {
		t.Errorf("body = %q, want echo of abc123", rec.Body.String())
	}
}

func TestHandleWebhook_UpstreamTimeout(t *testing.T) {
	mp := &mockPublisher{
		publishFn: func(context.Context, string, []byte) (string, error) {
			return "", publisher.ErrTimeout
		},
	}
	server := New(testConfig(), mp, nil, testLogger())

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(`{"event":"x"}`))
	rec := serve(server, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
	// The caller must never see broker internals.
	if strings.Contains(rec.Body.String(), "timed out") {
		t.Errorf("response leaks failure detail: %q", rec.Body.String())
	}
}

func TestHandleWebhook_UpstreamUnavailable(t *testing.T) {
	mp := &mockPublisher{
		publishFn: func(context.Context, string, []byte) (string, error) {
			return "", publisher.ErrUnavailable
		},
	}
	server := New(testConfig(), mp, nil, testLogger())

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader("{}"))
	rec := serve(server, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestHandleWebhook_UnknownPublishErrorIs500(t *testing.T) {
	mp := &mockPublisher{
		publishFn: func(context.Context, string, []byte) (string, error) {
			return "", errors.New("stream misconfigured: secret detail")
		},
	}
	server := New(testConfig(), mp, nil, testLogger())

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader("{}"))
	rec := serve(server, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if strings.Contains(rec.Body.String(), "secret detail") {
		t.Errorf("response leaks failure detail: %q", rec.Body.String())
	}
}

func TestHandleWebhook_PayloadTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxBodySize = 16

	mp := &mockPublisher{}
	server := New(cfg, mp, nil, testLogger())

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(strings.Repeat("a", 64)))
	rec := serve(server, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusRequestEntityTooLarge)
	}
	if mp.calls != 0 {
		t.Errorf("publish calls = %d, want 0", mp.calls)
	}
}

func TestDegradedServerAnswers500(t *testing.T) {
	server := NewDegraded("127.0.0.1:0", errors.New("broker.topic_name is required"), testLogger())

	for _, method := range []string{"POST", "GET"} {
		req := httptest.NewRequest(method, "/webhook", strings.NewReader("{}"))
		rec := serve(server, req)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("%s status = %d, want %d", method, rec.Code, http.StatusInternalServerError)
		}
		if strings.Contains(rec.Body.String(), "topic_name") {
			t.Errorf("response leaks config detail: %q", rec.Body.String())
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	mp := &mockPublisher{healthy: true}
	server := New(testConfig(), mp, nil, testLogger())

	rec := serve(server, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	mp.healthy = false
	rec = serve(server, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestHandleWebhook_BodyReadFailureCounted(t *testing.T) {
	m := metric.New()
	mp := &mockPublisher{}
	server := New(testConfig(), mp, m, testLogger())

	req := httptest.NewRequest("POST", "/webhook", failingReader{})
	rec := serve(server, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if mp.calls != 0 {
		t.Errorf("publish calls = %d, want 0", mp.calls)
	}
	got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues(metric.OutcomeReadError))
	if got != 1 {
		t.Errorf("read_error outcome count = %v, want 1", got)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestStart_ReturnsAfterDrainOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Listen = "127.0.0.1:0"
	server := New(cfg, &mockPublisher{}, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Start(ctx)
	}()

	// Give the listener a moment to come up, then shut down.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Start returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancellation")
	}
}

func TestNew_DefaultsApplied(t *testing.T) {
	server := New(Config{Listen: "127.0.0.1:0"}, &mockPublisher{}, nil, testLogger())

	if server.config.MaxBodySize != DefaultMaxBodySize {
		t.Errorf("MaxBodySize = %d, want %d", server.config.MaxBodySize, DefaultMaxBodySize)
	}
	if server.config.Path != "/webhook" {
		t.Errorf("Path = %q, want /webhook", server.config.Path)
	}
	if server.config.AllowListPolicy != ipfilter.PolicyOpen {
		t.Errorf("AllowListPolicy = %q, want open", server.config.AllowListPolicy)
	}
}

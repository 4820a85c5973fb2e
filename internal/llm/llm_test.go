package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/weather-advisor/internal/observability"
)

func completionServer(t *testing.T, handler func(w http.ResponseWriter, req chatRequest, r *http.Request)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		handler(w, req, r)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, url string) *GroqClient {
	t.Helper()
	c, err := NewGroqClient(Config{APIKey: "gsk_test", URL: url, Temperature: DefaultTemperature, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return c
}

func TestNewGroqClient(t *testing.T) {
	_, err := NewGroqClient(Config{APIKey: "  "})
	assert.ErrorIs(t, err, ErrInvalidAPIKey)

	c, err := NewGroqClient(Config{APIKey: "gsk_test"})
	require.NoError(t, err)
	assert.Equal(t, DefaultURL, c.url)
	assert.Equal(t, DefaultModel, c.model)
	assert.Equal(t, DefaultMaxTokens, c.maxTokens)
	assert.Equal(t, DefaultTimeout, c.client.Timeout)
}

func TestGroqClient_Complete_Success(t *testing.T) {
	var got chatRequest
	var auth, corrID string
	server := completionServer(t, func(w http.ResponseWriter, req chatRequest, r *http.Request) {
		got = req
		auth = r.Header.Get("Authorization")
		corrID = r.Header.Get("X-Correlation-ID")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Paris\n"}}]}`))
	})

	ctx := observability.WithCorrelationID(WithPurpose(context.Background(), "extract_location"), "corr-1")
	text, err := newTestClient(t, server.URL).Complete(ctx, "system prompt", "What should I wear in Paris tomorrow?")
	require.NoError(t, err)

	assert.Equal(t, "  Paris\n", text, "content is returned unmodified")
	assert.Equal(t, "Bearer gsk_test", auth)
	assert.Equal(t, "corr-1", corrID)
	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, DefaultTemperature, got.Temperature)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, Message{Role: RoleSystem, Content: "system prompt"}, got.Messages[0])
	assert.Equal(t, Message{Role: RoleUser, Content: "What should I wear in Paris tomorrow?"}, got.Messages[1])
}

func TestGroqClient_Complete_ErrorHandling(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantErr    error
		wantText   string
	}{
		{"invalid key", http.StatusUnauthorized, `{"error":{"message":"Invalid API Key","type":"invalid_request_error","code":"invalid_api_key"}}`, ErrInvalidAPIKey, "Invalid API Key"},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached"}}`, ErrRateLimited, "HTTP 429: Rate limit reached"},
		{"server error", http.StatusInternalServerError, ``, ErrUpstreamFailure, "HTTP 500"},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"model not found"}}`, ErrUpstreamFailure, "model not found"},
		{"no choices", http.StatusOK, `{"choices":[]}`, ErrMalformedResponse, "no choices"},
		{"not json", http.StatusOK, `<html>`, ErrMalformedResponse, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := completionServer(t, func(w http.ResponseWriter, _ chatRequest, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := newTestClient(t, server.URL).Complete(context.Background(), "s", "u")
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.wantText != "" {
				assert.Contains(t, err.Error(), tt.wantText)
			}
		})
	}
}

func TestGroqClient_Complete_Timeout(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, _ chatRequest, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"late"}}]}`))
	})

	c, err := NewGroqClient(Config{APIKey: "gsk_test", URL: server.URL, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request timeout")
	assert.Equal(t, ErrorCategoryTimeout, CategorizeError(err))
}

func TestGroqClient_Complete_CircuitOpen(t *testing.T) {
	var calls atomic.Int32
	server := completionServer(t, func(w http.ResponseWriter, _ chatRequest, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	c := newTestClient(t, server.URL)
	c.SetCircuitBreaker(gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm",
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 1 },
	}))

	_, err := c.Complete(context.Background(), "s", "u")
	assert.ErrorIs(t, err, ErrUpstreamFailure)

	_, err = c.Complete(context.Background(), "s", "u")
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.EqualError(t, err, "circuit breaker open")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGroqClient_Complete_Canceled(t *testing.T) {
	server := completionServer(t, func(w http.ResponseWriter, _ chatRequest, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Paris"}}]}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t, server.URL).Complete(ctx, "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request canceled")
	assert.NotContains(t, err.Error(), "timeout")
	assert.Equal(t, ErrorCategoryCanceled, CategorizeError(err))
	assert.True(t, IsCallerError(err))
}

func TestGroqClient_Complete_LogsFailureWithoutKey(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	server := completionServer(t, func(w http.ResponseWriter, _ chatRequest, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	ctx := observability.WithLogger(WithPurpose(context.Background(), "recommend"), zap.New(core))
	_, err := newTestClient(t, server.URL).Complete(ctx, "s", "u")
	require.Error(t, err)

	entries := logs.FilterMessage("llm call failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "recommend", fields["purpose"])
	for _, v := range fields {
		if s, ok := v.(string); ok {
			assert.NotContains(t, s, "gsk_test")
		}
	}
}

func TestPurposeFromContext(t *testing.T) {
	assert.Equal(t, "unspecified", PurposeFromContext(context.Background()))
	assert.Equal(t, "recommend", PurposeFromContext(WithPurpose(context.Background(), "recommend")))
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCategory
	}{
		{nil, ""},
		{context.DeadlineExceeded, ErrorCategoryTimeout},
		{context.Canceled, ErrorCategoryCanceled},
		{ErrInvalidAPIKey, ErrorCategoryInvalidAPIKey},
		{ErrRateLimited, ErrorCategoryRateLimited},
		{ErrUpstreamFailure, ErrorCategoryUpstream},
		{ErrMalformedResponse, ErrorCategoryMalformed},
		{ErrCircuitOpen, ErrorCategoryCircuitOpen},
		{errors.New("http request failed: dial tcp: connection refused"), ErrorCategoryNetwork},
		{errors.New("boom"), ErrorCategoryUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CategorizeError(tt.err), "err=%v", tt.err)
	}
}

func TestIsCallerError(t *testing.T) {
	assert.True(t, IsCallerError(ErrInvalidAPIKey))
	assert.True(t, IsCallerError(context.Canceled))
	assert.False(t, IsCallerError(context.DeadlineExceeded))
	assert.False(t, IsCallerError(ErrUpstreamFailure))
	assert.False(t, IsCallerError(ErrRateLimited))
	assert.False(t, IsCallerError(ErrMalformedResponse))
}

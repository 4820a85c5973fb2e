package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-advisor/internal/lifecycle"
	"github.com/kjstillabower/weather-advisor/internal/observability"
	"github.com/kjstillabower/weather-advisor/internal/service"
	"github.com/kjstillabower/weather-advisor/internal/traffic"
	"github.com/kjstillabower/weather-advisor/internal/validation"
)

// maxBodyBytes bounds POST /recommendations bodies.
const maxBodyBytes = 64 << 10

// Advisor is the pipeline entry point the handlers call.
type Advisor interface {
	Credentials(creds service.Credentials) service.Credentials
	Recommend(ctx context.Context, query string, creds service.Credentials) service.Result
}

// HealthConfig holds thresholds for the health handler.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	StartTime        time.Time
}

// QueryLimits bounds accepted query length in runes.
type QueryLimits struct {
	MinLength int
	MaxLength int
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	advisor          Advisor
	limits           QueryLimits
	healthConfig     *HealthConfig
	logger           *zap.Logger
	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

func NewHandler(advisor Advisor, limits QueryLimits, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		advisor:      advisor,
		limits:       limits,
		healthConfig: healthConfig,
		logger:       logger,
	}
}

type recommendationRequest struct {
	Query         string `json:"query"`
	LLMAPIKey     string `json:"llm_api_key"`
	WeatherAPIKey string `json:"weather_api_key"`
}

type recommendationResponse struct {
	Outcome  string `json:"outcome"`
	Text     string `json:"text"`
	Location string `json:"location,omitempty"`
	RunID    string `json:"runId"`
}

// PostRecommendation handles POST /recommendations. A workflow failure is still a
// well-formed answer and returns 200; only rejected input returns 4xx.
func (h *Handler) PostRecommendation(w http.ResponseWriter, r *http.Request) {
	var body recommendationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "request body too large")
			return
		}
		writeError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "request body must be a JSON object with query, llm_api_key and weather_api_key")
		return
	}

	creds := h.advisor.Credentials(service.Credentials{LLMKey: body.LLMAPIKey, WeatherKey: body.WeatherAPIKey})
	if err := validation.ValidateCredentials(creds.LLMKey, creds.WeatherKey); err != nil {
		writeError(w, r, http.StatusBadRequest, "MISSING_CREDENTIALS", err.Error())
		return
	}

	query, err := validation.ValidateQuery(body.Query, h.limits.MinLength, h.limits.MaxLength)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
		return
	}

	result := h.advisor.Recommend(r.Context(), query, creds)
	writeJSON(w, http.StatusOK, recommendationResponse{
		Outcome:  result.Outcome.String(),
		Text:     result.Outcome.Text(),
		Location: result.Location,
		RunID:    result.RunID,
	})
}

// GetExamples handles GET /examples.
func (h *Handler) GetExamples(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"examples": service.Examples()})
}

type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	checks := map[string]string{"workflow": "healthy"}
	if result.status == "degraded" {
		checks["workflow"] = "unhealthy"
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "weather-advisor",
		"version":   "dev",
		"checks":    checks,
		"inFlight":  InFlightCount(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if result.status == "shutting-down" {
		resp["drainingSeconds"] = int64(lifecycle.DrainingFor().Seconds())
	}
	if h.healthConfig != nil && h.healthConfig.DegradedWindow > 0 {
		resp["rateLimitedRecent"] = traffic.DenialCount(h.healthConfig.DegradedWindow)
	}
	if h.healthConfig != nil && !h.healthConfig.StartTime.IsZero() {
		resp["uptimeSeconds"] = int64(time.Since(h.healthConfig.StartTime).Seconds())
	}
	writeJSON(w, result.statusCode, resp)
}

// computeHealthStatus evaluates, in order: shutting-down > degraded > healthy.
// Degraded means the share of failed runs in the window reached DegradedErrorPct.
func (h *Handler) computeHealthStatus() healthResult {
	if lifecycle.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig != nil && h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		failures, runs := traffic.FailureRate(h.healthConfig.DegradedWindow)
		if runs > 0 && float64(failures)*100/float64(runs) >= float64(h.healthConfig.DegradedErrorPct) {
			return healthResult{"degraded", http.StatusServiceUnavailable, "failure_rate_breach"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error":{code,message,requestId}} with the request's correlation ID.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	observability.LoggerFromContext(r.Context()).Debug("request rejected",
		zap.Int("status", status), zap.String("code", code))
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationIDFromContext(r.Context()),
		},
	})
}

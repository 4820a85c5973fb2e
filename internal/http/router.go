package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-advisor/internal/observability"
)

// RouterConfig carries the cross-cutting settings for NewRouter.
type RouterConfig struct {
	Logger         *zap.Logger
	Limiter        *rate.Limiter // nil disables rate limiting
	RequestTimeout time.Duration
	TracerProvider trace.TracerProvider // nil uses the global provider
}

// NewRouter mounts the API. Only /recommendations is rate limited and time bounded;
// health and metrics must stay reachable under load.
func NewRouter(h *Handler, cfg RouterConfig) *mux.Router {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	router := mux.NewRouter()
	router.Use(TracingMiddleware(cfg.TracerProvider))
	router.Use(CorrelationIDMiddleware(cfg.Logger))
	router.Use(MetricsMiddleware)

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.HandleFunc("/examples", h.GetExamples).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	var recommend http.Handler = http.HandlerFunc(h.PostRecommendation)
	if cfg.RequestTimeout > 0 {
		recommend = TimeoutMiddleware(cfg.RequestTimeout)(recommend)
	}
	recommend = RateLimitMiddleware(cfg.Limiter)(recommend)
	router.Handle("/recommendations", recommend).Methods(http.MethodPost)
	return router
}

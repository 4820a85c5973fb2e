package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-advisor/internal/circuitbreaker"
	"github.com/kjstillabower/weather-advisor/internal/client"
	"github.com/kjstillabower/weather-advisor/internal/config"
	httphandler "github.com/kjstillabower/weather-advisor/internal/http"
	"github.com/kjstillabower/weather-advisor/internal/lifecycle"
	"github.com/kjstillabower/weather-advisor/internal/llm"
	"github.com/kjstillabower/weather-advisor/internal/observability"
	"github.com/kjstillabower/weather-advisor/internal/service"
	"github.com/kjstillabower/weather-advisor/internal/workflow"
)

const inFlightCheckInterval = 100 * time.Millisecond

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	var tp *observability.TracerProvider
	if cfg.TracingEnabled {
		processors, err := observability.SpanProcessors(cfg.TracingExporter, os.Stdout)
		if err != nil {
			logger.Fatal("tracing", zap.Error(err))
		}
		tp = observability.NewTracerProvider("weather-advisor", cfg.TracingSampleRatio, processors...)
		logger.Info("tracing enabled",
			zap.Float64("sample_ratio", cfg.TracingSampleRatio),
			zap.String("exporter", cfg.TracingExporter))
	}

	// WriteTimeout must outlast the workflow bound so timed-out runs can still answer.
	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      buildRouter(cfg, logger, tp),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.BeginShutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.InFlightTimeout)
	defer waitCancel()
	if err := httphandler.WaitForInFlight(waitCtx, inFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	if err := observability.FlushTelemetry(context.Background(), logger, tp); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// buildRouter wires clients, the advisor and the HTTP layer from cfg. tp may be nil.
func buildRouter(cfg *config.Config, logger *zap.Logger, tp *observability.TracerProvider) http.Handler {
	settings := service.ClientSettings{
		LLMURL:         cfg.LLMURL,
		LLMModel:       cfg.LLMModel,
		LLMTemperature: cfg.LLMTemperature,
		LLMMaxTokens:   cfg.LLMMaxTokens,
		LLMTimeout:     cfg.LLMTimeout,
		WeatherURL:     cfg.WeatherAPIURL,
		WeatherTimeout: cfg.WeatherAPITimeout,
	}
	if cfg.CircuitBreakerEnabled {
		settings.LLMBreaker = newBreaker(cfg, "llm", llm.IsCallerError, logger)
		settings.WeatherBreaker = newBreaker(cfg, "weather_api", client.IsCallerError, logger)
		logger.Info("circuit breakers enabled",
			zap.Int("failure_threshold", cfg.CircuitBreakerThreshold),
			zap.Duration("timeout", cfg.CircuitBreakerTimeout))
	}

	var provider trace.TracerProvider
	engineOpts := []workflow.Option{workflow.WithForecastDays(cfg.ForecastDays)}
	if tp != nil {
		provider = tp.Provider()
		engineOpts = append(engineOpts, workflow.WithTracerProvider(provider))
	}

	advisor := service.NewAdvisorService(
		service.NewClientFactory(settings),
		service.Credentials{LLMKey: cfg.LLMAPIKey, WeatherKey: cfg.WeatherAPIKey},
		engineOpts...,
	)

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	handler := httphandler.NewHandler(advisor,
		httphandler.QueryLimits{MinLength: cfg.QueryMinLength, MaxLength: cfg.QueryMaxLength},
		&httphandler.HealthConfig{
			DegradedWindow:   cfg.DegradedWindow,
			DegradedErrorPct: cfg.DegradedErrorPct,
			StartTime:        time.Now(),
		},
		logger)

	return httphandler.NewRouter(handler, httphandler.RouterConfig{
		Logger:         logger,
		Limiter:        limiter,
		RequestTimeout: cfg.RequestTimeout,
		TracerProvider: provider,
	})
}

// newBreaker builds a breaker shared by all requests. isCallerError keeps one
// caller's bad key from opening it for everyone else.
func newBreaker(cfg *config.Config, component string, isCallerError func(error) bool, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.CircuitBreakerThreshold,
		Timeout:          cfg.CircuitBreakerTimeout,
		Component:        component,
		IsCallerError:    isCallerError,
		OnStateChange: func(component string, from, to gobreaker.State) {
			observability.RecordCircuitBreakerTransition(component, from.String(), to.String())
			logger.Warn("circuit breaker state change",
				zap.String("component", component),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

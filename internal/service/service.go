package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-advisor/internal/client"
	"github.com/kjstillabower/weather-advisor/internal/llm"
	"github.com/kjstillabower/weather-advisor/internal/observability"
	"github.com/kjstillabower/weather-advisor/internal/traffic"
	"github.com/kjstillabower/weather-advisor/internal/workflow"
)

// Credentials are the provider keys for one request. They are never stored
// beyond the request and never logged.
type Credentials struct {
	LLMKey     string
	WeatherKey string
}

// WithDefaults fills empty keys from defaults.
func (c Credentials) WithDefaults(defaults Credentials) Credentials {
	if strings.TrimSpace(c.LLMKey) == "" {
		c.LLMKey = defaults.LLMKey
	}
	if strings.TrimSpace(c.WeatherKey) == "" {
		c.WeatherKey = defaults.WeatherKey
	}
	return c
}

// ClientFactory builds the clients for a single request from that request's keys.
type ClientFactory func(creds Credentials) (llm.Client, client.WeatherClient, error)

// ClientSettings is everything a ClientFactory needs besides the keys.
type ClientSettings struct {
	LLMURL         string
	LLMModel       string
	LLMTemperature float64
	LLMMaxTokens   int
	LLMTimeout     time.Duration

	WeatherURL     string
	WeatherTimeout time.Duration

	// Breakers are shared by every request; nil disables.
	LLMBreaker     *gobreaker.CircuitBreaker
	WeatherBreaker *gobreaker.CircuitBreaker
}

// NewClientFactory returns a factory producing Groq and WeatherAPI.com clients.
func NewClientFactory(settings ClientSettings) ClientFactory {
	return func(creds Credentials) (llm.Client, client.WeatherClient, error) {
		llmClient, err := llm.NewGroqClient(llm.Config{
			APIKey:      creds.LLMKey,
			URL:         settings.LLMURL,
			Model:       settings.LLMModel,
			Temperature: settings.LLMTemperature,
			MaxTokens:   settings.LLMMaxTokens,
			Timeout:     settings.LLMTimeout,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("LLM client: %w", err)
		}
		if settings.LLMBreaker != nil {
			llmClient.SetCircuitBreaker(settings.LLMBreaker)
		}

		weatherClient, err := client.NewWeatherAPIClient(creds.WeatherKey, settings.WeatherURL, settings.WeatherTimeout)
		if err != nil {
			return nil, nil, fmt.Errorf("Weather API error: %w", err)
		}
		if settings.WeatherBreaker != nil {
			weatherClient.SetCircuitBreaker(settings.WeatherBreaker)
		}
		return llmClient, weatherClient, nil
	}
}

// Result is what the presentation layer shows for one query.
type Result struct {
	RunID    string
	Location string
	Outcome  workflow.Outcome
}

// AdvisorService is the pipeline entry point. It holds no per-request state:
// each call builds its own clients and engine.
type AdvisorService struct {
	factory    ClientFactory
	defaults   Credentials
	engineOpts []workflow.Option
}

func NewAdvisorService(factory ClientFactory, defaults Credentials, opts ...workflow.Option) *AdvisorService {
	return &AdvisorService{
		factory:    factory,
		defaults:   defaults,
		engineOpts: opts,
	}
}

// Credentials resolves the keys a request would run with.
func (s *AdvisorService) Credentials(creds Credentials) Credentials {
	return creds.WithDefaults(s.defaults)
}

// Recommend runs the workflow once for query. Callers validate the query and
// credentials first. It always returns a Success or Failure outcome.
func (s *AdvisorService) Recommend(ctx context.Context, query string, creds Credentials) Result {
	logger := observability.LoggerFromContext(ctx)

	llmClient, weatherClient, err := s.factory(s.Credentials(creds))
	if err != nil {
		logger.Warn("client construction failed", zap.Error(err))
		traffic.RecordFailure()
		observability.WorkflowRunsTotal.WithLabelValues("failure").Inc()
		return Result{
			RunID:   uuid.NewString(),
			Outcome: workflow.Failure(workflow.FormatError(err.Error())),
		}
	}

	state := workflow.NewEngine(llmClient, weatherClient, s.engineOpts...).Execute(ctx, query)
	if state.Outcome.IsSuccess() {
		traffic.RecordSuccess()
	} else {
		traffic.RecordFailure()
	}

	return Result{
		RunID:    state.RunID,
		Location: state.Location,
		Outcome:  state.Outcome,
	}
}

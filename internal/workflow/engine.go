package workflow

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-advisor/internal/client"
	"github.com/kjstillabower/weather-advisor/internal/llm"
	"github.com/kjstillabower/weather-advisor/internal/observability"
)

const tracerName = "github.com/kjstillabower/weather-advisor/internal/workflow"

// DefaultForecastDays is how many forecast days the retrieval stage requests.
const DefaultForecastDays = 3

// Stage names a state of the workflow state machine.
type Stage string

const (
	StageExtractLocation Stage = "extract_location"
	StageFetchWeather    Stage = "fetch_weather"
	StageAnalyze         Stage = "analyze"
	StageError           Stage = "error"
	StageTerminal        Stage = "terminal"
)

// edge is one row of the transition table. A nil router means the edge to
// onContinue is unconditional.
type edge struct {
	router     func(*RequestState) Route
	onContinue Stage
	onFail     Stage
}

var transitions = map[Stage]edge{
	StageExtractLocation: {router: AfterExtraction, onContinue: StageFetchWeather, onFail: StageError},
	StageFetchWeather:    {router: AfterWeather, onContinue: StageAnalyze, onFail: StageError},
	StageAnalyze:         {onContinue: StageTerminal},
	StageError:           {onContinue: StageTerminal},
}

// Engine runs the linear extract, fetch, analyze chain with early exit to the
// error stage. An Engine holds no per-request state; one is built per request
// around that request's clients.
type Engine struct {
	llm          llm.Client
	weather      client.WeatherClient
	forecastDays int
	tracer       trace.Tracer
	stages       map[Stage]func(context.Context, *RequestState)
}

type Option func(*Engine)

func WithForecastDays(days int) Option {
	return func(e *Engine) {
		if days > 0 {
			e.forecastDays = days
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		if tp != nil {
			e.tracer = tp.Tracer(tracerName)
		}
	}
}

func NewEngine(llmClient llm.Client, weatherClient client.WeatherClient, opts ...Option) *Engine {
	e := &Engine{
		llm:          llmClient,
		weather:      weatherClient,
		forecastDays: DefaultForecastDays,
		tracer:       otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.stages = map[Stage]func(context.Context, *RequestState){
		StageExtractLocation: e.extractLocation,
		StageFetchWeather:    e.fetchWeather,
		StageAnalyze:         e.analyze,
		StageError:           e.handleError,
	}
	return e
}

// Run executes the workflow for query and returns the terminal outcome. It never
// fails: every stage failure becomes a Failure outcome.
func (e *Engine) Run(ctx context.Context, query string) Outcome {
	return e.Execute(ctx, query).Outcome
}

// Execute is Run but returns the final request state, for callers that also want
// the run ID, the resolved location or the stage log.
func (e *Engine) Execute(ctx context.Context, query string) *RequestState {
	s := NewRequestState(query)
	start := time.Now()

	ctx, span := e.tracer.Start(ctx, "workflow.run", trace.WithAttributes(attribute.String("workflow.run_id", s.RunID)))
	defer span.End()

	logger := observability.LoggerFromContext(ctx).With(zap.String("run_id", s.RunID))
	ctx = observability.WithLogger(ctx, logger)
	logger.Info("workflow started", zap.Int("query_length", len(query)))

	for stage := StageExtractLocation; stage != StageTerminal; {
		stage = e.step(ctx, stage, s)
	}

	// Analyze always ends the run, so a failed analysis still needs its failure text.
	if s.Outcome.IsPending() {
		e.handleError(ctx, s)
	}

	outcome := s.Outcome.String()
	observability.WorkflowRunsTotal.WithLabelValues(outcome).Inc()
	span.SetAttributes(attribute.String("workflow.outcome", outcome), attribute.String("workflow.location", s.Location))
	if s.Outcome.IsFailure() {
		span.SetStatus(codes.Error, s.Err)
	}
	logger.Info("workflow finished",
		zap.String("outcome", outcome),
		zap.String("location", s.Location),
		zap.Duration("duration", time.Since(start)))
	return s
}

// step runs one stage and returns the next state from the transition table.
func (e *Engine) step(ctx context.Context, stage Stage, s *RequestState) Stage {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "workflow."+string(stage))
	defer span.End()

	e.invoke(ctx, stage, s)

	next, routeLabel := e.next(stage, s)
	duration := time.Since(start)
	observability.WorkflowStageDuration.WithLabelValues(string(stage), routeLabel).Observe(duration.Seconds())
	span.SetAttributes(attribute.String("workflow.route", routeLabel), attribute.String("workflow.next", string(next)))

	logger := observability.LoggerFromContext(ctx)
	if s.Err != "" && stage != StageError {
		span.SetStatus(codes.Error, s.Err)
		logger.Warn("stage failed", zap.String("stage", string(stage)), zap.String("error", s.Err))
	}
	logger.Info("stage completed",
		zap.String("stage", string(stage)),
		zap.String("route", routeLabel),
		zap.Duration("duration", duration))
	return next
}

// invoke runs a stage, converting a panic into a recorded error so the engine
// still reaches a terminal outcome.
func (e *Engine) invoke(ctx context.Context, stage Stage, s *RequestState) {
	defer func() {
		if r := recover(); r != nil {
			observability.LoggerFromContext(ctx).Error("stage panicked",
				zap.String("stage", string(stage)), zap.Any("panic", r))
			s.fail(fmt.Sprintf("internal error in %s stage: %v", stage, r))
			if stage == StageError {
				s.Outcome = Failure(FormatError(s.Err))
			}
		}
	}()
	e.stages[stage](ctx, s)
}

func (e *Engine) next(stage Stage, s *RequestState) (Stage, string) {
	t := transitions[stage]
	if t.router == nil {
		return t.onContinue, "end"
	}
	if r := t.router(s); r == Fail {
		return t.onFail, r.String()
	}
	return t.onContinue, Continue.String()
}

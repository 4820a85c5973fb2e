package workflow

import (
	"github.com/google/uuid"

	"github.com/kjstillabower/weather-advisor/internal/llm"
	"github.com/kjstillabower/weather-advisor/internal/models"
)

// UnknownLocation is what the extraction prompt asks the model to answer when the
// query names no place.
const UnknownLocation = "unknown"

// RequestState is created per query, threaded through every stage and discarded
// once the outcome is returned. Stages communicate only by mutating it.
type RequestState struct {
	RunID string

	// Messages is an append-only log of what each stage did. Nothing routes on it.
	Messages []llm.Message

	Query    string
	Location string
	Weather  *models.WeatherSummary

	// Err is the only routing signal. Once set, later stages must not run.
	Err string

	Outcome Outcome
}

func NewRequestState(query string) *RequestState {
	return &RequestState{
		RunID:    uuid.NewString(),
		Messages: []llm.Message{},
		Query:    query,
	}
}

func (s *RequestState) log(content string) {
	s.Messages = append(s.Messages, llm.Message{Role: llm.RoleAssistant, Content: content})
}

func (s *RequestState) fail(msg string) {
	s.Err = msg
}

type outcomeKind int

const (
	outcomePending outcomeKind = iota
	outcomeSuccess
	outcomeFailure
)

// Outcome is the terminal result of a run: either Success(recommendation) or
// Failure(user-facing error text). The zero value is pending.
type Outcome struct {
	kind outcomeKind
	text string
}

func Success(text string) Outcome { return Outcome{kind: outcomeSuccess, text: text} }

func Failure(text string) Outcome { return Outcome{kind: outcomeFailure, text: text} }

func (o Outcome) IsSuccess() bool { return o.kind == outcomeSuccess }

func (o Outcome) IsFailure() bool { return o.kind == outcomeFailure }

func (o Outcome) IsPending() bool { return o.kind == outcomePending }

// Text is the recommendation on success or the formatted error on failure.
func (o Outcome) Text() string { return o.text }

// String returns the metric and API label: success, failure or pending.
func (o Outcome) String() string {
	switch o.kind {
	case outcomeSuccess:
		return "success"
	case outcomeFailure:
		return "failure"
	}
	return "pending"
}

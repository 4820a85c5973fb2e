package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoutes(t *testing.T) {
	predicates := map[string]func(*RequestState) Route{
		"AfterExtraction": AfterExtraction,
		"AfterWeather":    AfterWeather,
	}
	for name, route := range predicates {
		t.Run(name, func(t *testing.T) {
			clean := &RequestState{Location: "Paris"}
			assert.Equal(t, Continue, route(clean))

			failed := &RequestState{Err: "Weather API error: HTTP 500"}
			assert.Equal(t, Fail, route(failed))
			assert.Equal(t, Fail, route(failed), "predicates are pure")
			assert.Equal(t, "Weather API error: HTTP 500", failed.Err)
		})
	}
}

func TestRoute_String(t *testing.T) {
	assert.Equal(t, "continue", Continue.String())
	assert.Equal(t, "fail", Fail.String())
}

func TestTransitions_LinearChain(t *testing.T) {
	visited := map[Stage]bool{}
	var walk func(Stage)
	walk = func(s Stage) {
		if s == StageTerminal {
			return
		}
		assert.False(t, visited[s], "stage %s reachable twice", s)
		visited[s] = true
		e, ok := transitions[s]
		if !assert.True(t, ok, "no transition for %s", s) {
			return
		}
		walk(e.onContinue)
		if e.router != nil {
			assert.Equal(t, StageError, e.onFail)
		}
	}
	walk(StageExtractLocation)
	walk(StageError)
	assert.Len(t, visited, 4)
}

func TestFormatError(t *testing.T) {
	assert.Equal(t,
		"⚠️ **Error**: Weather API error: HTTP 500\n\nPlease try again with a different query or check your API keys.",
		FormatError("Weather API error: HTTP 500"))
	assert.Equal(t,
		"⚠️ **Error**: Unknown error occurred\n\nPlease try again with a different query or check your API keys.",
		FormatError(""))
}

func TestOutcome(t *testing.T) {
	var pending Outcome
	assert.True(t, pending.IsPending())
	assert.Equal(t, "pending", pending.String())

	ok := Success("Bring sunscreen.")
	assert.True(t, ok.IsSuccess())
	assert.False(t, ok.IsFailure())
	assert.Equal(t, "success", ok.String())
	assert.Equal(t, "Bring sunscreen.", ok.Text())

	bad := Failure("⚠️ **Error**: x")
	assert.True(t, bad.IsFailure())
	assert.Equal(t, "failure", bad.String())
}

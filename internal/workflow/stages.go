package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kjstillabower/weather-advisor/internal/llm"
)

var errEmptyCompletion = errors.New("empty response from model")

// extractLocation asks the model for the primary location named in the query.
func (e *Engine) extractLocation(ctx context.Context, s *RequestState) {
	text, err := e.llm.Complete(llm.WithPurpose(ctx, "extract_location"), extractLocationPrompt, s.Query)
	if err != nil {
		s.fail("Location extraction error: " + err.Error())
		return
	}

	s.Location = strings.TrimSpace(text)
	s.log("Extracted location: " + s.Location)
}

// fetchWeather resolves the extracted location to a forecast. An empty or
// "unknown" location short-circuits without calling the provider.
func (e *Engine) fetchWeather(ctx context.Context, s *RequestState) {
	if s.Location == "" || strings.EqualFold(s.Location, UnknownLocation) {
		s.fail(msgNoLocation)
		return
	}

	summary, err := e.weather.Forecast(ctx, s.Location, e.forecastDays, true)
	if err != nil {
		s.fail(err.Error())
		return
	}

	s.Weather = &summary
	s.log("Fetched weather data for " + summary.Location)
}

// analyze turns the query plus the forecast into advice. The model's text is kept verbatim.
func (e *Engine) analyze(ctx context.Context, s *RequestState) {
	if s.Weather.IsZero() {
		s.fail(msgNoWeatherData)
		return
	}

	weatherJSON, err := json.MarshalIndent(s.Weather, "", "  ")
	if err != nil {
		s.fail("Recommendation generation error: " + err.Error())
		return
	}

	user := fmt.Sprintf(recommendUserTemplate, s.Query, weatherJSON)
	text, err := e.llm.Complete(llm.WithPurpose(ctx, "recommend"), recommendPrompt, user)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errEmptyCompletion
	}
	if err != nil {
		s.fail("Recommendation generation error: " + err.Error())
		return
	}

	s.Outcome = Success(text)
	s.log("Generated recommendations")
}

// handleError produces the user-facing failure text. It makes no external calls and cannot fail.
func (e *Engine) handleError(_ context.Context, s *RequestState) {
	s.Outcome = Failure(FormatError(s.Err))
}

// FormatError renders cause the way the error stage presents it to users.
func FormatError(cause string) string {
	if strings.TrimSpace(cause) == "" {
		cause = msgUnknownError
	}
	return fmt.Sprintf(errorTextTemplate, cause)
}

package workflow

import (
	"context"
	"sync"

	"github.com/kjstillabower/weather-advisor/internal/models"
)

type llmCall struct {
	system string
	user   string
}

// fakeLLM answers extraction and recommendation prompts with fixed responses.
type fakeLLM struct {
	mu sync.Mutex

	location     string
	locationErr  error
	recommend    func(user string) (string, error)
	extractCalls []llmCall
	recommCalls  []llmCall
}

func (f *fakeLLM) Complete(_ context.Context, system, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if system == extractLocationPrompt {
		f.extractCalls = append(f.extractCalls, llmCall{system, user})
		return f.location, f.locationErr
	}
	f.recommCalls = append(f.recommCalls, llmCall{system, user})
	if f.recommend == nil {
		return "Wear layers.", nil
	}
	return f.recommend(user)
}

type weatherCall struct {
	location      string
	days          int
	includeAlerts bool
}

type fakeWeather struct {
	mu sync.Mutex

	summary models.WeatherSummary
	err     error
	panicV  interface{}
	calls   []weatherCall
}

func (f *fakeWeather) Forecast(_ context.Context, location string, days int, includeAlerts bool) (models.WeatherSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, weatherCall{location, days, includeAlerts})
	if f.panicV != nil {
		panic(f.panicV)
	}
	return f.summary, f.err
}

func parisRain() models.WeatherSummary {
	return models.WeatherSummary{
		Location:  "Paris, France",
		LocalTime: "2026-10-15 08:30",
		Current: models.Current{
			TempC:     models.Float(15),
			TempF:     models.Float(59),
			Condition: "Light rain",
			Humidity:  models.Float(88),
		},
		Forecast: []models.ForecastDay{{
			Date:       "2026-10-16",
			MaxTempC:   models.Float(16),
			MinTempC:   models.Float(10),
			MaxTempF:   models.Float(60.8),
			MinTempF:   models.Float(50),
			Condition:  "Moderate rain",
			RainChance: models.Float(85),
		}},
	}
}

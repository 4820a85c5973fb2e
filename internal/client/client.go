package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-advisor/internal/models"
	"github.com/kjstillabower/weather-advisor/internal/observability"
)

// WeatherClient fetches current conditions, a multi-day forecast and active alerts
// for a free-text location.
type WeatherClient interface {
	Forecast(ctx context.Context, location string, days int, includeAlerts bool) (models.WeatherSummary, error)
}

var (
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrLocationNotFound = errors.New("location not found")
	ErrUpstreamFailure  = errors.New("upstream failure")
	ErrRateLimited      = errors.New("rate limited")
	ErrCircuitOpen      = errors.New("circuit breaker open")
)

// DefaultURL is the WeatherAPI.com forecast endpoint.
const DefaultURL = "https://api.weatherapi.com/v1/forecast.json"

// weatherAPILocationNotFound is WeatherAPI.com's error code for an unmatched q parameter.
const weatherAPILocationNotFound = 1006

// WeatherAPIClient calls the WeatherAPI.com forecast endpoint once per Forecast call.
// It never retries; a failed call is reported to the caller as-is.
type WeatherAPIClient struct {
	apiKey  string
	apiURL  string
	timeout time.Duration
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewWeatherAPIClient(apiKey, apiURL string, timeout time.Duration) (*WeatherAPIClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if apiURL == "" {
		apiURL = DefaultURL
	}

	return &WeatherAPIClient{
		apiKey:  apiKey,
		apiURL:  apiURL,
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetCircuitBreaker routes calls through cb. While the breaker is open calls fail
// immediately with ErrCircuitOpen. Pass nil to disable.
func (c *WeatherAPIClient) SetCircuitBreaker(cb *gobreaker.CircuitBreaker) {
	c.breaker = cb
}

type weatherAPICondition struct {
	Text string `json:"text"`
}

type weatherAPIResponse struct {
	Location *struct {
		Name      string `json:"name"`
		Country   string `json:"country"`
		LocalTime string `json:"localtime"`
	} `json:"location"`
	Current *struct {
		TempC      *float64             `json:"temp_c"`
		TempF      *float64             `json:"temp_f"`
		Condition  *weatherAPICondition `json:"condition"`
		WindKph    *float64             `json:"wind_kph"`
		WindMph    *float64             `json:"wind_mph"`
		Humidity   *float64             `json:"humidity"`
		FeelsLikeC *float64             `json:"feelslike_c"`
		FeelsLikeF *float64             `json:"feelslike_f"`
		UV         *float64             `json:"uv"`
		VisKm      *float64             `json:"vis_km"`
	} `json:"current"`
	Forecast *struct {
		ForecastDay []struct {
			Date string `json:"date"`
			Day  *struct {
				MaxTempC          *float64             `json:"maxtemp_c"`
				MinTempC          *float64             `json:"mintemp_c"`
				MaxTempF          *float64             `json:"maxtemp_f"`
				MinTempF          *float64             `json:"mintemp_f"`
				Condition         *weatherAPICondition `json:"condition"`
				DailyChanceOfRain *float64             `json:"daily_chance_of_rain"`
				DailyChanceOfSnow *float64             `json:"daily_chance_of_snow"`
				MaxWindKph        *float64             `json:"maxwind_kph"`
				AvgHumidity       *float64             `json:"avghumidity"`
				UV                *float64             `json:"uv"`
			} `json:"day"`
		} `json:"forecastday"`
	} `json:"forecast"`
	Alerts *struct {
		Alert []struct {
			Headline string `json:"headline"`
			Severity string `json:"severity"`
			Event    string `json:"event"`
		} `json:"alert"`
	} `json:"alerts"`
}

type weatherAPIError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Forecast fetches conditions for location. Every returned error's text starts with
// "Weather API error:" so it can be shown to users verbatim.
func (c *WeatherAPIClient) Forecast(ctx context.Context, location string, days int, includeAlerts bool) (models.WeatherSummary, error) {
	var summary models.WeatherSummary
	call := func() error {
		var err error
		summary, err = c.callAPI(ctx, location, days, includeAlerts)
		return err
	}

	var err error
	if c.breaker != nil {
		_, err = c.breaker.Execute(func() (interface{}, error) {
			return nil, call()
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = ErrCircuitOpen
		}
	} else {
		err = call()
	}
	if err != nil {
		observability.WeatherAPIErrorsTotal.WithLabelValues(string(CategorizeError(err))).Inc()
		return models.WeatherSummary{}, fmt.Errorf("Weather API error: %w", err)
	}
	return summary, nil
}

func (c *WeatherAPIClient) callAPI(ctx context.Context, location string, days int, includeAlerts bool) (models.WeatherSummary, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, location, days, includeAlerts)
	if err != nil {
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		return models.WeatherSummary{}, fmt.Errorf("build request: %w", err)
	}

	if corrID := observability.CorrelationIDFromContext(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.WeatherAPICallsTotal.WithLabelValues("error").Inc()
		observability.WeatherAPIDuration.WithLabelValues("error").Observe(duration)

		if errors.Is(err, context.Canceled) {
			return models.WeatherSummary{}, fmt.Errorf("request canceled: %w", err)
		}
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return models.WeatherSummary{}, fmt.Errorf("request timeout: %w", err)
		}
		return models.WeatherSummary{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.WeatherAPICallsTotal.WithLabelValues(status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(status).Observe(duration)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.WeatherSummary{}, fmt.Errorf("read response body: %w", err)
	}

	if err := c.handleErrorResponse(resp.StatusCode, body); err != nil {
		return models.WeatherSummary{}, err
	}

	var apiResp weatherAPIResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return models.WeatherSummary{}, fmt.Errorf("parse response: %w", err)
	}

	summary := mapResponse(apiResp, location)
	if missing := MissingFields(summary); len(missing) > 0 {
		observability.WeatherAPIPartialResponsesTotal.Inc()
		observability.LoggerFromContext(ctx).Warn("weather response missing fields",
			zap.String("location", summary.Location), zap.Strings("missing", missing))
	}
	return summary, nil
}

func (c *WeatherAPIClient) buildRequest(ctx context.Context, location string, days int, includeAlerts bool) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	alerts := "no"
	if includeAlerts {
		alerts = "yes"
	}
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("q", location)
	params.Set("days", strconv.Itoa(days))
	params.Set("aqi", "no")
	params.Set("alerts", alerts)
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

// handleErrorResponse maps a non-2xx status to a sentinel, appending the provider's
// error message when the body carries one.
func (c *WeatherAPIClient) handleErrorResponse(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var apiErr weatherAPIError
	_ = json.Unmarshal(body, &apiErr)
	detail := fmt.Sprintf("HTTP %d", statusCode)
	if apiErr.Error.Message != "" {
		detail += ": " + apiErr.Error.Message
	}

	switch {
	case apiErr.Error.Code == weatherAPILocationNotFound || statusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrLocationNotFound, detail)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrInvalidAPIKey, detail)
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, detail)
	}
	return fmt.Errorf("%w: %s", ErrUpstreamFailure, detail)
}

// mapResponse normalizes the provider payload. Missing objects and fields become
// empty strings or nil pointers; it never fails.
func mapResponse(apiResp weatherAPIResponse, location string) models.WeatherSummary {
	summary := models.WeatherSummary{
		Forecast: []models.ForecastDay{},
	}

	if loc := apiResp.Location; loc != nil {
		summary.Location = joinNonEmpty(", ", loc.Name, loc.Country)
		summary.LocalTime = loc.LocalTime
	}
	if summary.Location == "" {
		summary.Location = location
	}

	if cur := apiResp.Current; cur != nil {
		summary.Current = models.Current{
			TempC:        cur.TempC,
			TempF:        cur.TempF,
			Condition:    conditionText(cur.Condition),
			WindKph:      cur.WindKph,
			WindMph:      cur.WindMph,
			Humidity:     cur.Humidity,
			FeelsLikeC:   cur.FeelsLikeC,
			FeelsLikeF:   cur.FeelsLikeF,
			UV:           cur.UV,
			VisibilityKm: cur.VisKm,
		}
	}

	if fc := apiResp.Forecast; fc != nil {
		for _, fd := range fc.ForecastDay {
			day := models.ForecastDay{Date: fd.Date}
			if d := fd.Day; d != nil {
				day.MaxTempC = d.MaxTempC
				day.MinTempC = d.MinTempC
				day.MaxTempF = d.MaxTempF
				day.MinTempF = d.MinTempF
				day.Condition = conditionText(d.Condition)
				day.RainChance = d.DailyChanceOfRain
				day.SnowChance = d.DailyChanceOfSnow
				day.MaxWindKph = d.MaxWindKph
				day.AvgHumidity = d.AvgHumidity
				day.UV = d.UV
			}
			summary.Forecast = append(summary.Forecast, day)
		}
	}

	if al := apiResp.Alerts; al != nil && len(al.Alert) > 0 {
		for _, a := range al.Alert {
			summary.Alerts = append(summary.Alerts, models.Alert{
				Headline: a.Headline,
				Severity: a.Severity,
				Event:    a.Event,
			})
		}
	}

	return summary
}

// MissingFields lists the summary fields the provider did not supply.
func MissingFields(s models.WeatherSummary) []string {
	var missing []string
	if s.LocalTime == "" {
		missing = append(missing, "local_time")
	}
	c := s.Current
	check := func(name string, v *float64) {
		if v == nil {
			missing = append(missing, name)
		}
	}
	check("current.temp_c", c.TempC)
	check("current.temp_f", c.TempF)
	if c.Condition == "" {
		missing = append(missing, "current.condition")
	}
	check("current.humidity", c.Humidity)
	if len(s.Forecast) == 0 {
		missing = append(missing, "forecast")
	}
	for i, d := range s.Forecast {
		if d.MaxTempC == nil || d.MinTempC == nil {
			missing = append(missing, fmt.Sprintf("forecast[%d].temperature", i))
		}
	}
	return missing
}

func conditionText(c *weatherAPICondition) string {
	if c == nil {
		return ""
	}
	return c.Text
}

func joinNonEmpty(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

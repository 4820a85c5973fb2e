package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from .env, YAML and env.
type Config struct {
	ServerPort string

	// API keys are defaults only. A request may carry its own keys.
	LLMAPIKey     string
	WeatherAPIKey string

	LLMURL         string
	LLMModel       string
	LLMTemperature float64
	LLMMaxTokens   int
	LLMTimeout     time.Duration

	WeatherAPIURL     string
	WeatherAPITimeout time.Duration
	ForecastDays      int

	RequestTimeout time.Duration

	QueryMinLength int
	QueryMaxLength int

	RateLimitRPS            int
	RateLimitBurst          int
	CircuitBreakerEnabled   bool
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration

	ShutdownTimeout time.Duration
	InFlightTimeout time.Duration

	DegradedWindow   time.Duration
	DegradedErrorPct int

	TracingEnabled     bool
	TracingSampleRatio float64
	TracingExporter    string
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	LLM struct {
		URL         string   `yaml:"url"`
		Model       string   `yaml:"model"`
		Temperature *float64 `yaml:"temperature"`
		MaxTokens   int      `yaml:"max_tokens"`
		Timeout     string   `yaml:"timeout"`
	} `yaml:"llm"`

	WeatherAPI struct {
		URL          string `yaml:"url"`
		Timeout      string `yaml:"timeout"`
		ForecastDays int    `yaml:"forecast_days"`
	} `yaml:"weather_api"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Query struct {
		MinLength int `yaml:"min_length"`
		MaxLength int `yaml:"max_length"`
	} `yaml:"query"`

	Reliability struct {
		RateLimitRPS            int    `yaml:"rate_limit_rps"`
		RateLimitBurst          int    `yaml:"rate_limit_burst"`
		CircuitBreakerEnabled   bool   `yaml:"circuit_breaker_enabled"`
		CircuitBreakerThreshold int    `yaml:"circuit_breaker_threshold"`
		CircuitBreakerTimeout   string `yaml:"circuit_breaker_timeout"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout         string `yaml:"timeout"`
		InFlightTimeout string `yaml:"in_flight_timeout"`
	} `yaml:"shutdown"`

	Health struct {
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
	} `yaml:"health"`

	Tracing struct {
		Enabled     bool     `yaml:"enabled"`
		SampleRatio *float64 `yaml:"sample_ratio"`
		Exporter    string   `yaml:"exporter"`
	} `yaml:"tracing"`
}

type secretsFile struct {
	GroqAPIKey    string `yaml:"groq_api_key"`
	WeatherAPIKey string `yaml:"weather_api_key"`
}

// Load reads .env (if present), config/{ENV_NAME}.yaml (default dev) and
// config/secrets.yaml. Keys come from GROQ_API_KEY / WEATHER_API_KEY or the
// secrets file; both may be empty. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}

	// Existing environment variables win over .env entries.
	if err := godotenv.Load(filepath.Join(cwd, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	sec, err := loadSecrets(filepath.Join(cwd, "config", "secrets.yaml"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.LLMAPIKey = firstNonEmpty(os.Getenv("GROQ_API_KEY"), sec.GroqAPIKey)
	cfg.WeatherAPIKey = firstNonEmpty(os.Getenv("WEATHER_API_KEY"), sec.WeatherAPIKey)

	cfg.LLMURL = firstNonEmpty(fc.LLM.URL, "https://api.groq.com/openai/v1/chat/completions")
	cfg.LLMModel = firstNonEmpty(fc.LLM.Model, "llama-3.3-70b-versatile")
	cfg.LLMTemperature = 0.3
	if fc.LLM.Temperature != nil {
		cfg.LLMTemperature = *fc.LLM.Temperature
	}
	cfg.LLMMaxTokens = fc.LLM.MaxTokens
	if cfg.LLMMaxTokens <= 0 {
		cfg.LLMMaxTokens = 1024
	}
	cfg.LLMTimeout = parseDurationOrZero(fc.LLM.Timeout, 30*time.Second)

	cfg.WeatherAPIURL = firstNonEmpty(fc.WeatherAPI.URL, "https://api.weatherapi.com/v1/forecast.json")
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 10*time.Second)
	cfg.ForecastDays = fc.WeatherAPI.ForecastDays
	if cfg.ForecastDays == 0 {
		cfg.ForecastDays = 3
	}

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 75*time.Second)

	cfg.QueryMinLength = fc.Query.MinLength
	if cfg.QueryMinLength <= 0 {
		cfg.QueryMinLength = 1
	}
	cfg.QueryMaxLength = fc.Query.MaxLength
	if cfg.QueryMaxLength <= 0 {
		cfg.QueryMaxLength = 500
	}

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 10
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 20
	}
	cfg.CircuitBreakerEnabled = fc.Reliability.CircuitBreakerEnabled
	cfg.CircuitBreakerThreshold = fc.Reliability.CircuitBreakerThreshold
	if cfg.CircuitBreakerThreshold <= 0 {
		cfg.CircuitBreakerThreshold = 5
	}
	cfg.CircuitBreakerTimeout = parseDuration(fc.Reliability.CircuitBreakerTimeout, 30*time.Second)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 90*time.Second)
	cfg.InFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 80*time.Second)

	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}

	cfg.TracingEnabled = fc.Tracing.Enabled
	cfg.TracingSampleRatio = 1.0
	if fc.Tracing.SampleRatio != nil {
		cfg.TracingSampleRatio = *fc.Tracing.SampleRatio
	}
	cfg.TracingExporter = strings.ToLower(strings.TrimSpace(fc.Tracing.Exporter))
	if cfg.TracingExporter == "" {
		cfg.TracingExporter = "none"
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadSecrets(path string) (secretsFile, error) {
	var sec secretsFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sec, nil
		}
		return sec, fmt.Errorf("read secrets file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return sec, fmt.Errorf("parse secrets file: %w", err)
	}
	return sec, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero returns defaultVal on empty or unparsable input. Zero and
// negative values are returned as-is so validate can reject them.
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate rejects unusable values and raises RequestTimeout above the worst-case
// sequential run: two LLM calls plus one weather call.
func validate(cfg *Config) error {
	if cfg.LLMTimeout <= 0 {
		return fmt.Errorf("llm.timeout must be positive")
	}
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	if cfg.ForecastDays < 1 || cfg.ForecastDays > 14 {
		return fmt.Errorf("weather_api.forecast_days must be between 1 and 14, got %d", cfg.ForecastDays)
	}
	if cfg.LLMTemperature < 0 || cfg.LLMTemperature > 2 {
		return fmt.Errorf("llm.temperature must be between 0 and 2, got %g", cfg.LLMTemperature)
	}
	if cfg.QueryMinLength > cfg.QueryMaxLength {
		return fmt.Errorf("query.min_length (%d) exceeds query.max_length (%d)", cfg.QueryMinLength, cfg.QueryMaxLength)
	}
	if cfg.TracingSampleRatio < 0 || cfg.TracingSampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1, got %g", cfg.TracingSampleRatio)
	}
	if cfg.TracingExporter != "none" && cfg.TracingExporter != "stdout" {
		return fmt.Errorf("tracing.exporter must be none or stdout, got %q", cfg.TracingExporter)
	}
	if pipeline := 2*cfg.LLMTimeout + cfg.WeatherAPITimeout; cfg.RequestTimeout <= pipeline {
		cfg.RequestTimeout = pipeline + time.Second
	}
	return nil
}

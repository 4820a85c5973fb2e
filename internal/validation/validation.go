package validation

import (
	"errors"
	"strings"
	"unicode"
)

// Error texts are shown to users as-is in 400 responses.
var (
	ErrQueryEmpty        = errors.New("Please enter a query")
	ErrQueryTooShort     = errors.New("query too short")
	ErrQueryTooLong      = errors.New("query too long")
	ErrQueryInvalidChars = errors.New("query contains control characters")

	ErrMissingLLMKey     = errors.New("Please provide your Groq API key")
	ErrMissingWeatherKey = errors.New("Please provide your WeatherAPI key")
)

// ValidateQuery trims the input and enforces length bounds (minLen, maxLen in runes).
// Control characters other than newline and tab are rejected.
func ValidateQuery(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrQueryEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrQueryTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrQueryTooLong
	}
	for _, c := range r {
		if unicode.IsControl(c) && c != '\n' && c != '\t' {
			return "", ErrQueryInvalidChars
		}
	}
	return s, nil
}

// ValidateCredentials checks that both keys resolved to something, LLM key first.
// Callers pass the effective keys (request value or configured default).
func ValidateCredentials(llmKey, weatherKey string) error {
	if strings.TrimSpace(llmKey) == "" {
		return ErrMissingLLMKey
	}
	if strings.TrimSpace(weatherKey) == "" {
		return ErrMissingWeatherKey
	}
	return nil
}

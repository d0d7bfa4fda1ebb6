// Package security validates user input and masks credentials before display.
package security

import (
	"regexp"
	"strings"
	"unicode"

	apperrors "crosscheck/internal/errors"
)

// Ticker pattern: uppercase letters and digits with a single class separator.
var tickerPattern = regexp.MustCompile(`^[A-Z0-9]{1,10}([.-][A-Z0-9]{1,4})?$`)

// sensitiveKeys are config keys whose values are masked.
var sensitiveKeys = map[string]bool{
	"api_key":    true,
	"api_secret": true,
	"apikey":     true,
	"apisecret":  true,
	"secret":     true,
	"secret_key": true,
	"password":   true,
	"token":      true,
}

// ValidateTicker validates an equity ticker such as AAPL or BRK.B.
func ValidateTicker(ticker string) error {
	ticker = strings.TrimSpace(strings.ToUpper(ticker))

	if ticker == "" {
		return apperrors.NewValidationError("ticker", ticker, "ticker cannot be empty")
	}
	if len(ticker) > 15 {
		return apperrors.NewValidationError("ticker", ticker, "ticker too long (max 15 characters)")
	}
	if !tickerPattern.MatchString(ticker) {
		return apperrors.NewValidationError("ticker", ticker, "invalid ticker format")
	}
	return nil
}

// SanitizeTicker upper-cases a ticker and drops characters a ticker cannot hold.
func SanitizeTicker(ticker string) string {
	ticker = strings.TrimSpace(strings.ToUpper(ticker))

	var result strings.Builder
	for _, r := range ticker {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// ValidateTickers sanitizes and validates a list, dropping duplicates.
func ValidateTickers(tickers []string) ([]string, error) {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = SanitizeTicker(t)
		if err := ValidateTicker(t); err != nil {
			return nil, err
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out, nil
}

// MaskCredential masks a credential value for display.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// IsSensitiveKey reports whether a config key holds a secret.
func IsSensitiveKey(key string) bool {
	return sensitiveKeys[strings.ToLower(key)]
}

// MaskMap returns a copy of data with the values of sensitive keys masked.
// Nested maps are masked recursively.
func MaskMap(data map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(data))
	for k, v := range data {
		switch val := v.(type) {
		case map[string]interface{}:
			result[k] = MaskMap(val)
		case string:
			if IsSensitiveKey(k) {
				result[k] = MaskCredential(val)
			} else {
				result[k] = val
			}
		default:
			if IsSensitiveKey(k) {
				result[k] = "***"
			} else {
				result[k] = v
			}
		}
	}
	return result
}

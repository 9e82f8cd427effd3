package logger

import (
	"log/slog"
	"net/url"
	"strings"
)

// sensitiveParams never appear in logs or redirect URLs
var sensitiveParams = map[string]bool{
	"password":      true,
	"token":         true,
	"access_token":  true,
	"id_token":      true,
	"refresh_token": true,
	"secret":        true,
	"client_secret": true,
	"code":          true,
	"api_key":       true,
	"apikey":        true,
	"auth":          true,
	"csrf":          true,
}

// IsSensitiveParam reports whether a query parameter carries a credential
func IsSensitiveParam(key string) bool {
	return sensitiveParams[strings.ToLower(key)]
}

// SanitizeQueryString checks if query string contains sensitive parameters
// and returns true if the entire query string should be redacted
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		// unparseable queries are redacted wholesale
		return true
	}
	for key := range values {
		if IsSensitiveParam(key) {
			return true
		}
	}
	return false
}

// RedactedAttr returns a redacted slog attribute for sensitive values
// In production, returns "[REDACTED]"; in development, returns the actual value
func RedactedAttr(key, value, env string) slog.Attr {
	if env == "production" {
		return slog.String(key, "[REDACTED]")
	}
	return slog.String(key, value)
}

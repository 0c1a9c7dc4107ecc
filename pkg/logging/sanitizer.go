package logging

import (
	"regexp"
)

const (
	// MaxQueryLogLength is the maximum length of a query to log
	MaxQueryLogLength = 100
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Pattern to match bearer tokens in echoed request headers
	bearerPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9\-_.]+`)

	// Pattern to match provider secret keys (OpenAI "sk-...", Anthropic "sk-ant-...")
	secretKeyPattern = regexp.MustCompile(`sk-[A-Za-z0-9\-_]{8,}`)

	// Pattern to match key=value style API keys
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|x-api-key)[=:]\s*[A-Za-z0-9\-_]{8,}`)

	// Pattern to match credentials embedded in URLs (user:pass@host)
	urlCredentialsPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@`)
)

// SanitizeError sanitizes error messages that might contain sensitive data.
// Use this before logging any error returned by an LLM provider client.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeText(err.Error())
}

// SanitizeText removes API keys, tokens and URL credentials from s.
func SanitizeText(s string) string {
	if s == "" {
		return ""
	}

	sanitized := bearerPattern.ReplaceAllString(s, "Bearer "+RedactedText)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = secretKeyPattern.ReplaceAllString(sanitized, RedactedText)
	sanitized = urlCredentialsPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@")

	return sanitized
}

// SanitizeQuery truncates a SQL statement for logging.
func SanitizeQuery(query string) string {
	if query == "" {
		return ""
	}
	return TruncateString(query, MaxQueryLogLength)
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

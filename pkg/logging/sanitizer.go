package logging

import (
	"regexp"
)

// RedactedText is the replacement text for sensitive data.
const RedactedText = "[REDACTED]"

var (
	// Pattern to match the Pipedrive api_token query parameter and other
	// key-shaped parameters in URLs and error messages.
	apiTokenPattern = regexp.MustCompile(`(?i)(api_token|api[_-]?key|apikey)=[^&\s]+`)

	// Pattern to match potential passwords in connection strings.
	// Matches: password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Pattern to match connection string credentials (user:pass@host format).
	connStringPattern = regexp.MustCompile(`://[^:/]+:[^@\s]+@[^/\s]+`)
)

// SanitizeURL removes the api_token parameter from a request URL before it is
// logged. Every outbound Pipedrive URL carries the token, so raw URLs must
// never reach log output.
func SanitizeURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	return apiTokenPattern.ReplaceAllString(rawURL, "${1}="+RedactedText)
}

// SanitizeConnectionString removes sensitive data from database connection
// strings before logging.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	return sanitized
}

// SanitizeError sanitizes error messages that might embed a request URL or
// connection string.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	sanitized := apiTokenPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	sanitized = passwordPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	return sanitized
}

// Package utils holds redaction helpers for data that leaves the process
// through deployment logs and diagnostics.
package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	redactedPlaceholder = "<REDACTED>"

	// RedactedValue replaces a secret value in output
	RedactedValue = redactedPlaceholder
)

// Common patterns for sensitive data
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(password|passwd|pwd|secret|token|apikey|api_key|access_key|private_key|client_secret)["']?\s*[:=]\s*["']?([^"',}\s]+)`),
	regexp.MustCompile(`(?i)(bearer|authorization|auth-token|x-api-key)["']?\s*[:=]?\s*["']?(?:bearer\s+)?([^"',}\s]+)`),
	regexp.MustCompile(`(?i)-----BEGIN\s+(RSA\s+)?PRIVATE\s+KEY-----[\s\S]+?-----END\s+(RSA\s+)?PRIVATE\s+KEY-----`),
}

// Common sensitive field names in deployment metadata
var sensitiveFields = map[string]bool{
	"password":          true,
	"secret":            true,
	"token":             true,
	"private_key":       true,
	"client_secret":     true,
	"access_key":        true,
	"secret_key":        true,
	"api_key":           true,
	"auth_token":        true,
	"refresh_token":     true,
	"database_password": true,
	"database_url":      true,
	"connection_string": true,
	"webhook_secret":    true,
}

var (
	base64Pattern = regexp.MustCompile(`^[A-Za-z0-9+/]{20,}={0,2}$`)
	hexPattern    = regexp.MustCompile(`^[a-fA-F0-9]{32,}$`)
	jwtPartRegexp = regexp.MustCompile(`^[A-Za-z0-9_-]{10,}$`)
	urlPattern    = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://[^\s"']+`)
)

// RedactSensitiveString redacts key=value secrets and credentials embedded in URLs
func RedactSensitiveString(input string) string {
	if input == "" {
		return input
	}

	redacted := urlPattern.ReplaceAllStringFunc(input, RedactURL)

	for _, pattern := range sensitivePatterns {
		redacted = pattern.ReplaceAllStringFunc(redacted, func(match string) string {
			// Preserve the key but redact the value
			parts := pattern.FindStringSubmatch(match)
			if len(parts) > 2 && parts[2] != "" {
				return fmt.Sprintf("%s=%s", parts[1], redactedPlaceholder)
			}
			return redactedPlaceholder
		})
	}

	return redacted
}

// RedactURL replaces the password of a URL's user info. Strings that do not
// parse as URLs are returned unchanged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, hasPassword := u.User.Password(); !hasPassword {
		return raw
	}
	u.User = url.UserPassword(u.User.Username(), redactedPlaceholder)
	// url.String escapes the placeholder
	return strings.Replace(u.String(), url.QueryEscape(redactedPlaceholder), redactedPlaceholder, 1)
}

// RedactSensitiveMap recursively redacts sensitive fields from a map. The
// input is not modified.
func RedactSensitiveMap(input map[string]interface{}) map[string]interface{} {
	if input == nil {
		return nil
	}

	result := make(map[string]interface{}, len(input))

	for key, value := range input {
		if isSensitiveField(key) {
			result[key] = redactedPlaceholder
			continue
		}
		result[key] = redactValue(value)
	}

	return result
}

func redactValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return RedactSensitiveMap(v)
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			result[i] = redactValue(item)
		}
		return result
	case string:
		if containsSensitivePattern(v) {
			return redactedPlaceholder
		}
		return RedactSensitiveString(v)
	default:
		return value
	}
}

// IsSensitiveKey reports whether a field or variable name usually holds a secret
func IsSensitiveKey(key string) bool {
	return isSensitiveField(key)
}

// isSensitiveField checks if a field name is sensitive
func isSensitiveField(key string) bool {
	lowerKey := strings.ToLower(key)

	if sensitiveFields[lowerKey] {
		return true
	}

	sensitiveSubstrings := []string{
		"password", "secret", "token", "credential",
		"private", "bearer", "api_key", "apikey", "access_key",
	}

	for _, substr := range sensitiveSubstrings {
		if strings.Contains(lowerKey, substr) {
			return true
		}
	}

	return false
}

// containsSensitivePattern reports whether a whole value looks like a secret
func containsSensitivePattern(value string) bool {
	if len(value) > 20 {
		if base64Pattern.MatchString(value) || hexPattern.MatchString(value) {
			return true
		}
	}

	// JWT: three base64url segments
	parts := strings.Split(value, ".")
	if len(parts) != 3 {
		return false
	}
	for _, part := range parts {
		if !jwtPartRegexp.MatchString(part) {
			return false
		}
	}
	return true
}

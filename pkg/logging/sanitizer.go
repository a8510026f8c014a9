package logging

import (
	"path/filepath"
	"regexp"
	"strings"
)

const (
	// MaxMessageLength bounds failure details stored on upload records.
	MaxMessageLength = 2000
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
	// UploadDirPlaceholder replaces the upload directory in user-visible messages.
	UploadDirPlaceholder = "<upload-dir>"
)

var (
	// Matches: password=xxx, pwd=xxx, pass=xxx (until next delimiter)
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// JWT session tokens (three base64 segments separated by dots)
	jwtPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`)

	// API tokens passed as key=value or header: value
	apiTokenPattern = regexp.MustCompile(`(?i)(access[_-]?token|api[_-]?token|api[_-]?key)([=:]\s*)[A-Za-z0-9-_.]{8,}`)

	// user:pass@host
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`)
)

// SanitizeConnectionString removes sensitive data from connection strings
// Use this before logging any connection string
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)

	return sanitized
}

// SanitizeError sanitizes error messages that might contain credentials or tokens.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return sanitizeSecrets(err.Error())
}

func sanitizeSecrets(s string) string {
	sanitized := passwordPattern.ReplaceAllString(s, "${1}="+RedactedText)
	sanitized = jwtPattern.ReplaceAllString(sanitized, "Bearer "+RedactedText)
	sanitized = apiTokenPattern.ReplaceAllString(sanitized, "${1}${2}"+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	return sanitized
}

// SanitizeUploadMessage prepares an error for storage on an upload record, where the
// uploader can read it: secrets are redacted, the upload directory is replaced with a
// placeholder, and the result is truncated to MaxMessageLength.
func SanitizeUploadMessage(err error, uploadDir string) string {
	if err == nil {
		return ""
	}
	msg := sanitizeSecrets(err.Error())
	msg = RedactPath(msg, uploadDir)
	return TruncateString(msg, MaxMessageLength)
}

// RedactPath replaces every occurrence of dir (raw and cleaned) in s with UploadDirPlaceholder.
func RedactPath(s, dir string) string {
	if dir == "" {
		return s
	}
	candidates := []string{dir, filepath.Clean(dir)}
	if abs, err := filepath.Abs(dir); err == nil {
		candidates = append(candidates, abs)
	}
	for _, c := range candidates {
		if c == "" || c == "." || c == string(filepath.Separator) {
			continue
		}
		s = strings.ReplaceAll(s, strings.TrimSuffix(c, string(filepath.Separator)), UploadDirPlaceholder)
	}
	return s
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Package redact scrubs credentials from strings before they are logged.
// Store and generator errors routinely echo connection strings and request
// URLs, which carry passwords and API keys.
package redact

import (
	"regexp"
)

// Constants for redaction placeholders
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedTokenPlaceholder      = "[REDACTED_TOKEN]"
	RedactedPrivateKeyPlaceholder = "[REDACTED_PRIVATE_KEY]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Rules are applied in order; earlier rules see the raw input.
var rules = []rule{
	// user:password@ in postgres://, redis://, rediss:// and similar URLs
	{
		regexp.MustCompile(`(?i)\b((?:postgres(?:ql)?|redis|rediss|mysql|mongodb(?:\+srv)?)://)[^@\s/]+@`),
		"${1}" + RedactedCredentialPlaceholder + "@",
	},
	// libpq keyword/value DSNs: password=secret
	{
		regexp.MustCompile(`(?i)\b(password|passwd|pwd)=('[^']*'|[^\s&]+)`),
		"${1}=" + RedactedCredentialPlaceholder,
	},
	// PEM private keys from service account files
	{
		regexp.MustCompile(`-----BEGIN [A-Z ]*PRIVATE KEY-----[\s\S]*?-----END [A-Z ]*PRIVATE KEY-----`),
		RedactedPrivateKeyPlaceholder,
	},
	// Google API keys, including those in ?key= query strings
	{
		regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`),
		RedactedKeyPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)([?&](?:key|api_key|access_token)=)[^&\s"]+`),
		"${1}" + RedactedKeyPlaceholder,
	},
	// OAuth bearer tokens
	{
		regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9_\-.~+/]+=*`),
		"${1}" + RedactedTokenPlaceholder,
	},
	// Generic key: value / key=value secrets
	{
		regexp.MustCompile(`(?i)\b(api[_-]?key|secret|token)(["']?\s*[:=]\s*["']?)[A-Za-z0-9_\-.~+/]{8,}`),
		"${1}${2}" + RedactedKeyPlaceholder,
	},
}

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.replacement)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}

// Package redaction masks credentials before they reach log output.
// Provider configs carry API keys and bearer tokens; nothing in this
// repository may write one to a log sink in clear text.
package redaction

import (
	"regexp"
	"strings"
)

const replacement = "[REDACTED]"

// secretFieldKeys are config/field names whose values are always masked,
// regardless of the value's shape.
var secretFieldKeys = map[string]struct{}{
	"api_key":       {},
	"apikey":        {},
	"token":         {},
	"access_token":  {},
	"refresh_token": {},
	"authorization": {},
	"password":      {},
	"secret":        {},
}

var secretPatterns = []*regexp.Regexp{
	// OpenAI / Anthropic style keys
	regexp.MustCompile(`sk-(ant-)?[a-zA-Z0-9_\-]{16,}`),
	// bearer tokens in headers or messages
	regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_\-.]{16,}`),
	// key=value and key: value assignments
	regexp.MustCompile(`(?i)(api[_-]?key|access[_-]?token|secret)\s*[=:]\s*['"]?[a-zA-Z0-9_\-.]{12,}['"]?`),
}

// Redact masks secret-looking substrings in a free-form message.
func Redact(message string) string {
	for _, re := range secretPatterns {
		message = re.ReplaceAllString(message, replacement)
	}
	return message
}

// RedactFields returns a copy of fields with secret keys masked and string
// values scrubbed. The input map is never mutated.
func RedactFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if isSecretKey(k) {
			if s, ok := v.(string); ok && s == "" {
				out[k] = ""
			} else {
				out[k] = replacement
			}
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = Redact(s)
			continue
		}
		out[k] = v
	}
	return out
}

func isSecretKey(key string) bool {
	_, ok := secretFieldKeys[strings.ToLower(key)]
	return ok
}

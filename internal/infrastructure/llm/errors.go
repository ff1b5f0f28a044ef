package llm

import (
	"fmt"
	"strings"
)

const maxAPIErrorChars = 200

// APIError is a non-2xx provider response.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Retryable is false for client errors other than rate limiting.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

func newAPIError(provider string, statusCode int, body string) *APIError {
	return &APIError{
		Provider:   provider,
		StatusCode: statusCode,
		Body:       sanitizeAPIError(body),
	}
}

func sanitizeAPIError(input string) string {
	scrubbed := scrubSecretPatterns(input)
	runes := []rune(scrubbed)
	if len(runes) <= maxAPIErrorChars {
		return scrubbed
	}
	return string(runes[:maxAPIErrorChars]) + "..."
}

func scrubSecretPatterns(input string) string {
	out := input
	for _, prefix := range []string{"sk-", "AIza"} {
		searchFrom := 0
		for {
			rel := strings.Index(out[searchFrom:], prefix)
			if rel < 0 {
				break
			}
			idx := searchFrom + rel
			end := idx + len(prefix)
			for end < len(out) && isKeyChar(out[end]) {
				end++
			}
			if end == idx+len(prefix) {
				searchFrom = end
				continue
			}
			out = out[:idx] + "[REDACTED]" + out[end:]
			searchFrom = idx + len("[REDACTED]")
		}
	}
	return out
}

func isKeyChar(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') ||
		ch == '-' || ch == '_'
}

// Package sanitize flags and rejects content that looks like it carries
// secrets or personal identifiers, so completion requests and responses
// never get cached or logged with that content intact. Requests are
// rejected outright (Filter); responses and log lines are redacted in
// place (SanitizeResponse, ForLogging) since discarding them isn't an
// option once a provider has already been called.
//
// Grounded on ContentFilteringService in the orchestration service this
// system is modeled on: a small set of case-insensitive regexes for
// credential-shaped key=value pairs and for credit-card/SSN-shaped
// references. Implemented on the standard library's regexp package rather
// than a third-party regex engine — no repo in this codebase's dependency
// pack reaches for one, and Go's RE2-based regexp already covers the
// pattern set faithfully.
package sanitize

import (
	"errors"
	"regexp"

	"github.com/quillmind/orchestrator/pkg/orchestrator/llm"
)

// ErrSensitiveContent is returned by Filter when content matches a
// prohibited pattern.
var ErrSensitiveContent = errors.New("sanitize: content contains sensitive information")

// redactedPlaceholder replaces a matched span when content is redacted
// rather than rejected outright (SanitizeResponse, ForLogging).
const redactedPlaceholder = "[redacted]"

var prohibitedPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(password|api[_-]?key|secret|token)\s*[:=]\s*\S+`),
	regexp.MustCompile(`(?i)(credit[_-]?card|ssn|social[_-]?security)`),
	regexp.MustCompile(`\b(?:\d{4}[- ]?){3}\d{4}\b`),
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
}

// loggingPatterns extends prohibitedPatterns with shapes that are only a
// problem once they cross a log boundary: bearer tokens and other opaque
// long-token-shaped substrings, which upstream provider error bodies can
// echo back verbatim even when the original request content wouldn't
// itself have tripped the credential key=value pattern above.
var loggingPatterns = append(append([]*regexp.Regexp{}, prohibitedPatterns...),
	regexp.MustCompile(`(?i)bearer\s+[a-z0-9._-]+`),
	regexp.MustCompile(`\b[A-Za-z0-9_-]{32,}\b`),
)

func redact(content string, patterns []*regexp.Regexp) string {
	for _, p := range patterns {
		content = p.ReplaceAllString(content, redactedPlaceholder)
	}
	return content
}

// Filter returns content unchanged if it matches no prohibited pattern, or
// ErrSensitiveContent if it does.
func Filter(content string) (string, error) {
	if ContainsSensitive(content) {
		return "", ErrSensitiveContent
	}
	return content, nil
}

// ContainsSensitive reports whether content matches any prohibited pattern.
func ContainsSensitive(content string) bool {
	for _, p := range prohibitedPatterns {
		if p.MatchString(content) {
			return true
		}
	}
	return false
}

// SanitizeResponse redacts prohibited patterns from resp's content before
// it is cached or returned to the caller. Unlike Filter, a response is
// scrubbed rather than rejected outright: by the time a response exists
// the provider has already been called, so the safer behavior is to
// return a redacted result rather than discard a paid-for completion.
func SanitizeResponse(resp llm.CompletionResponse) llm.CompletionResponse {
	resp.Content = redact(resp.Content, prohibitedPatterns)
	for i := range resp.Choices {
		resp.Choices[i].Content = redact(resp.Choices[i].Content, prohibitedPatterns)
	}
	return resp
}

// ForLogging applies a stricter redaction than Filter/SanitizeResponse to
// s, additionally scrubbing bearer-token- and opaque-long-token-shaped
// substrings. Every error message that crosses a log boundary must pass
// through this first, since upstream provider error bodies can echo
// request content verbatim.
func ForLogging(s string) string {
	return redact(s, loggingPatterns)
}

// Findings describes which prohibited patterns matched content, by index,
// for diagnostic/audit purposes.
func Findings(content string) []int {
	var findings []int
	for i, p := range prohibitedPatterns {
		if p.MatchString(content) {
			findings = append(findings, i)
		}
	}
	return findings
}

package backend

import (
	"regexp"
	"strconv"
	"strings"
)

var defaultRetryableCodes = []int{429, 502, 503, 504}

// rateLimitPhrases are lower-case fragments agent CLIs print when throttled
// or when the upstream API is temporarily unavailable.
var rateLimitPhrases = []string{
	"rate limit",
	"rate-limit",
	"ratelimit",
	"too many requests",
	"overloaded",
	"quota exceeded",
	"resource exhausted",
	"resource_exhausted",
	"usage limit reached",
	"bad gateway",
	"service unavailable",
	"gateway timeout",
}

// RateLimitDetector classifies agent output as rate limited.
type RateLimitDetector struct {
	codePattern *regexp.Regexp
}

// NewRateLimitDetector builds a detector for the given HTTP status codes.
// An empty list uses 429, 502, 503 and 504.
func NewRateLimitDetector(codes []int) RateLimitDetector {
	if len(codes) == 0 {
		codes = defaultRetryableCodes
	}

	alts := make([]string, len(codes))
	for i, c := range codes {
		alts[i] = strconv.Itoa(c)
	}

	// A bare number is too ambiguous (line numbers, counts), so require a
	// nearby status-ish word.
	pattern := `(?i)(?:\b(?:status|error|http|code|api)\b[^0-9\n]{0,16}|\bHTTP/\d(?:\.\d)?\s+)\b(?:` + strings.Join(alts, "|") + `)\b`

	return RateLimitDetector{codePattern: regexp.MustCompile(pattern)}
}

// Detect reports whether output signals a transient failure.
func (d RateLimitDetector) Detect(output string) bool {
	if output == "" {
		return false
	}

	lower := strings.ToLower(output)
	for _, phrase := range rateLimitPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}

	return d.codePattern != nil && d.codePattern.MatchString(output)
}

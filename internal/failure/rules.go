package failure

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	summaryQueryLimits = "Query result set is too large"
	detailsQueryLimits = "The query returned more data than the service allows. " +
		"Narrow it with a filter (where), aggregate it (summarize), or cap the row count (take / limit) and run it again."
	summaryAuthentication = "Authentication failed"
	summaryTimeout        = "Query execution timed out"
	summarySyntax         = "Query syntax error"
	summaryConnection     = "Connection error"
	summaryHTTP           = "HTTP request failed"
	summaryUnexpected     = "An unexpected error occurred"
	summaryParseFailure   = "Failed to parse error details"
)

var (
	authStatusPattern = regexp.MustCompile(`(?i)(?:status code|HTTP)\s*:?\s*40[13]\b`)
	httpStatusPattern = regexp.MustCompile(`(?i)(?:status code|HTTP)\s*:?\s*([1-5][0-9]{2})\b`)
	codePattern       = regexp.MustCompile(`\b(?:[A-Z][A-Z0-9]*(?:_[A-Z0-9]+)+|0x[0-9A-Fa-f]+)\b`)
)

// rule maps a marker predicate over an error's text to a category. Rules are
// evaluated in order and the first match governs.
type rule struct {
	matches  func(text string) bool
	category Category
	severity Severity
	summary  string
	details  string
}

var rules = []rule{
	{
		matches: containsAny(
			"80DA0003",
			"E_QUERY_RESULT_SET_TOO_LARGE",
			"exceeded the internal record count limit",
			"exceeded the allowed result size",
			"64 MB",
		),
		category: CategoryQueryLimits,
		severity: SeverityWarning,
		summary:  summaryQueryLimits,
		details:  detailsQueryLimits,
	},
	{
		matches: anyOf(
			containsAny("Unauthorized", "unauthorized", "Forbidden", "AADSTS", "authentication", "Authentication", "not authorized"),
			authStatusPattern.MatchString,
		),
		category: CategoryAuthentication,
		severity: SeverityError,
		summary:  summaryAuthentication,
	},
	{
		matches:  containsFold("timeout", "timed out", "deadline exceeded"),
		category: CategoryTimeout,
		severity: SeverityWarning,
		summary:  summaryTimeout,
	},
	{
		matches:  containsFold("syntax", "semantic error", "parse error"),
		category: CategorySyntax,
		severity: SeverityError,
		summary:  summarySyntax,
	},
	{
		matches: containsAny(
			"ECONNREFUSED", "ECONNRESET", "ENOTFOUND", "EAI_AGAIN",
			"connection refused", "connection reset", "no such host",
			"network is unreachable", "dial tcp", "failed to connect",
		),
		category: CategoryConnection,
		severity: SeverityError,
		summary:  summaryConnection,
	},
	{
		matches:  hasHTTPErrorStatus,
		category: CategoryHTTP,
		severity: SeverityError,
		summary:  summaryHTTP,
	},
}

// apply runs the rule table over text. The first matching rule rewrites the
// classification; no match leaves it untouched.
func (c *ClassifiedError) apply(text string) {
	for _, r := range rules {
		if !r.matches(text) {
			continue
		}
		c.Category = r.category
		c.Severity = r.severity
		c.Summary = r.summary
		if r.details != "" {
			c.Details = r.details
		}
		return
	}
}

func extractCode(text string) string {
	return codePattern.FindString(text)
}

func containsAny(markers ...string) func(string) bool {
	return func(text string) bool {
		for _, m := range markers {
			if strings.Contains(text, m) {
				return true
			}
		}
		return false
	}
}

func containsFold(markers ...string) func(string) bool {
	return func(text string) bool {
		lower := strings.ToLower(text)
		for _, m := range markers {
			if strings.Contains(lower, m) {
				return true
			}
		}
		return false
	}
}

func anyOf(predicates ...func(string) bool) func(string) bool {
	return func(text string) bool {
		for _, p := range predicates {
			if p(text) {
				return true
			}
		}
		return false
	}
}

func hasHTTPErrorStatus(text string) bool {
	for _, m := range httpStatusPattern.FindAllStringSubmatch(text, -1) {
		if status, err := strconv.Atoi(m[1]); err == nil && status >= 400 {
			return true
		}
	}
	return false
}

package failure

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

type fakeServiceError struct {
	fields map[string]any
}

func (e *fakeServiceError) Error() string { return "service error" }

func (e *fakeServiceError) ErrorFields() map[string]any { return e.fields }

type messageValue struct {
	Message string `json:"message"`
}

func TestClassifyCategories(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		category Category
		severity Severity
		summary  string
	}{
		{
			name:     "auth status in object",
			value:    map[string]any{"message": "Request failed with status code 401"},
			category: CategoryAuthentication,
			severity: SeverityError,
			summary:  summaryAuthentication,
		},
		{
			name:     "query limit code in string",
			value:    "Query execution has exceeded the allowed limits (80DA0003): result set too big",
			category: CategoryQueryLimits,
			severity: SeverityWarning,
			summary:  summaryQueryLimits,
		},
		{
			name:     "deadline exceeded",
			value:    errors.New("context deadline exceeded"),
			category: CategoryTimeout,
			severity: SeverityWarning,
			summary:  summaryTimeout,
		},
		{
			name:     "timeout is case insensitive",
			value:    errors.New("Request TIMEOUT after 5m"),
			category: CategoryTimeout,
			severity: SeverityWarning,
			summary:  summaryTimeout,
		},
		{
			name:     "syntax",
			value:    errors.New("Syntax error: SYN0002: Query could not be parsed"),
			category: CategorySyntax,
			severity: SeverityError,
			summary:  summarySyntax,
		},
		{
			name:     "dns failure",
			value:    fmt.Errorf("send request: %w", errors.New("dial tcp: lookup help.example.net: no such host")),
			category: CategoryConnection,
			severity: SeverityError,
			summary:  summaryConnection,
		},
		{
			name:     "bare 401 is a line number, not a status",
			value:    errors.New("Syntax error: SYN0002: query could not be parsed at line 401"),
			category: CategorySyntax,
			severity: SeverityError,
			summary:  summarySyntax,
		},
		{
			name:     "HTTP 403 marker",
			value:    errors.New("HTTP 403 returned by the cluster"),
			category: CategoryAuthentication,
			severity: SeverityError,
			summary:  summaryAuthentication,
		},
		{
			name:     "http status",
			value:    errors.New("Request failed with status code 503"),
			category: CategoryHTTP,
			severity: SeverityError,
			summary:  summaryHTTP,
		},
		{
			name:     "general string",
			value:    "something odd happened",
			category: CategoryGeneral,
			severity: SeverityError,
			summary:  "something odd happened",
		},
		{
			name:     "struct value is read as an object",
			value:    messageValue{Message: "operation timed out"},
			category: CategoryTimeout,
			severity: SeverityWarning,
			summary:  summaryTimeout,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.value)
			if got.Category != tt.category {
				t.Fatalf("Category = %q, want %q", got.Category, tt.category)
			}
			if got.Severity != tt.severity {
				t.Fatalf("Severity = %q, want %q", got.Severity, tt.severity)
			}
			if got.Summary != tt.summary {
				t.Fatalf("Summary = %q, want %q", got.Summary, tt.summary)
			}
		})
	}
}

func TestClassifyQueryLimitsRewritesDetails(t *testing.T) {
	got := Classify(errors.New("E_QUERY_RESULT_SET_TOO_LARGE: 64 MB exceeded"))
	if got.Details != detailsQueryLimits {
		t.Fatalf("Details = %q", got.Details)
	}
	if got.Code != "E_QUERY_RESULT_SET_TOO_LARGE" {
		t.Fatalf("Code = %q", got.Code)
	}
	if !got.Retryable() {
		t.Fatal("query limit failures should be retryable")
	}
}

func TestClassifyKeepsOriginalTextInDetails(t *testing.T) {
	err := errors.New("Syntax error: unexpected token '|'")
	got := Classify(err)
	if got.Details != err.Error() {
		t.Fatalf("Details = %q, want %q", got.Details, err.Error())
	}
}

func TestClassifyExtractsCodes(t *testing.T) {
	tests := []struct {
		value any
		want  string
	}{
		{errors.New("request failed: E_QUERY_TIMEOUT after 00:05:00"), "E_QUERY_TIMEOUT"},
		{"operation failed with HRESULT 0x80131500", "0x80131500"},
		{"first 0xDEAD then LATER_CODE", "0xDEAD"},
		{"no code here", ""},
	}
	for _, tt := range tests {
		if got := Classify(tt.value).Code; got != tt.want {
			t.Fatalf("Classify(%v).Code = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestClassifyObjectFieldPreference(t *testing.T) {
	tests := []struct {
		name  string
		value map[string]any
		want  string
	}{
		{"message", map[string]any{"message": "m", "error": "e", "errorMessage": "em"}, "m"},
		{"nested error message", map[string]any{"error": map[string]any{"message": "nested"}, "errorMessage": "em"}, "nested"},
		{"error string", map[string]any{"error": "plain", "errorMessage": "em"}, "plain"},
		{"errorMessage", map[string]any{"errorMessage": "em", "errorDetails": "ed"}, "em"},
		{"errorDetails", map[string]any{"errorDetails": "ed"}, "ed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.value).Summary; got != tt.want {
				t.Fatalf("Summary = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassifyStructuredSubErrors(t *testing.T) {
	got := Classify(map[string]any{
		"message": "top-level",
		"errors": []any{
			map[string]any{"message": "Partial query failure: low memory condition", "code": "LimitsExceeded"},
			map[string]any{"message": "second cause"},
		},
	})
	if len(got.SubErrors) != 2 {
		t.Fatalf("SubErrors = %+v", got.SubErrors)
	}
	if got.Summary != "Partial query failure: low memory condition" {
		t.Fatalf("Summary = %q", got.Summary)
	}
	if got.Code != "LimitsExceeded" {
		t.Fatalf("Code = %q", got.Code)
	}
	if got.SubErrors[1].Message != "second cause" {
		t.Fatalf("SubErrors[1] = %+v", got.SubErrors[1])
	}
}

func TestClassifyDirectFieldsOverride(t *testing.T) {
	got := Classify(map[string]any{
		"message":   "Syntax error near token",
		"errorCode": "X1",
		"severity":  "warning",
		"category":  "Custom",
	})
	if got.Code != "X1" || got.Severity != SeverityWarning || got.Category != "Custom" {
		t.Fatalf("Classify() = %+v", got)
	}
	if got.Summary != summarySyntax {
		t.Fatalf("Summary = %q", got.Summary)
	}
}

func TestClassifyStructuredError(t *testing.T) {
	serviceErr := &fakeServiceError{fields: map[string]any{
		"error": map[string]any{
			"code":     "General_BadRequest",
			"message":  "Request is invalid and cannot be executed.",
			"@message": "Syntax error: SYN0002: A recognition error occurred.",
		},
		"statusCode": 400,
	}}
	got := Classify(fmt.Errorf("execute: %w", serviceErr))
	if got.Category != CategorySyntax {
		t.Fatalf("Category = %q", got.Category)
	}
	if got.Code != "General_BadRequest" {
		t.Fatalf("Code = %q", got.Code)
	}
	if !strings.Contains(got.Details, "SYN0002") {
		t.Fatalf("Details = %q", got.Details)
	}
}

func TestClassifyStructuredStatus(t *testing.T) {
	tests := []struct {
		status   int
		category Category
	}{
		{500, CategoryHTTP},
		{403, CategoryAuthentication},
		{200, CategoryGeneral},
	}
	for _, tt := range tests {
		got := Classify(&fakeServiceError{fields: map[string]any{"message": "service hiccup", "statusCode": tt.status}})
		if got.Category != tt.category {
			t.Fatalf("status %d: Category = %q, want %q", tt.status, got.Category, tt.category)
		}
	}
}

func TestClassifyUnsetSummaryFallsBackToSerializedValue(t *testing.T) {
	got := Classify(map[string]any{"unexpected": true})
	if got.Summary != summaryUnexpected {
		t.Fatalf("Summary = %q", got.Summary)
	}
	if !strings.Contains(got.Details, `"unexpected": true`) {
		t.Fatalf("Details = %q", got.Details)
	}

	if got := Classify(nil); got.Summary != summaryUnexpected || got.Details != "null" {
		t.Fatalf("Classify(nil) = %+v", got)
	}
}

func TestClassifyNeverPanicsOnUnserializableValues(t *testing.T) {
	cyclic := map[string]any{}
	cyclic["self"] = cyclic

	values := []any{
		cyclic,
		map[string]any{"ch": make(chan int)},
		func() {},
	}
	for _, v := range values {
		got := Classify(v)
		if got.Summary != summaryParseFailure {
			t.Fatalf("Classify(%T).Summary = %q", v, got.Summary)
		}
		if !strings.Contains(got.Details, "parsing error") {
			t.Fatalf("Details = %q", got.Details)
		}
		if got.Category != CategoryGeneral || got.Severity != SeverityError {
			t.Fatalf("Classify(%T) = %+v", v, got)
		}
	}
}

type panickingError struct{}

func (panickingError) Error() string { return "broken payload" }

func (panickingError) ErrorFields() map[string]any { panic("boom") }

func TestClassifyRecoversFromPanics(t *testing.T) {
	got := Classify(panickingError{})
	if got.Summary != summaryParseFailure {
		t.Fatalf("Summary = %q", got.Summary)
	}
	if !strings.Contains(got.Details, "original error: broken payload") {
		t.Fatalf("Details = %q", got.Details)
	}
	if !strings.Contains(got.Details, "panic: boom") {
		t.Fatalf("Details = %q", got.Details)
	}
}

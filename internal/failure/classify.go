// Package failure classifies arbitrary execution failures into a stable
// taxonomy for display and retry decisions.
package failure

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Category groups failures for display and branching.
type Category string

const (
	CategoryGeneral        Category = "General"
	CategoryQueryLimits    Category = "Query Limits"
	CategoryAuthentication Category = "Authentication"
	CategoryTimeout        Category = "Timeout"
	CategorySyntax         Category = "Query Syntax"
	CategoryConnection     Category = "Connection"
	CategoryHTTP           Category = "HTTP Error"
)

// Severity is Error for defects and Warning for conditions where the query
// can be retried or narrowed.
type Severity string

const (
	SeverityError   Severity = "Error"
	SeverityWarning Severity = "Warning"
)

// SubError is one cause reported by a multi-error response.
type SubError struct {
	Message string
	Code    string
}

// ClassifiedError is the canonical, display-ready form of a failure.
type ClassifiedError struct {
	Summary   string
	Details   string
	Code      string
	Category  Category
	Severity  Severity
	SubErrors []SubError
}

// Retryable reports whether the failure is a Warning-level condition.
func (e ClassifiedError) Retryable() bool {
	return e.Severity == SeverityWarning
}

// StructuredError is implemented by client errors that carry a structured
// service payload. The fields are read like a plain error object.
type StructuredError interface {
	error
	ErrorFields() map[string]any
}

// Classify converts any failure value into a ClassifiedError. It never
// panics; a failure while classifying yields a parse-failure result.
func Classify(v any) (result ClassifiedError) {
	defer func() {
		if r := recover(); r != nil {
			result = parseFailure(v, fmt.Errorf("panic: %v", r))
		}
	}()

	classified, err := classify(v)
	if err != nil {
		return parseFailure(v, err)
	}
	return classified
}

func classify(v any) (ClassifiedError, error) {
	c := ClassifiedError{Category: CategoryGeneral, Severity: SeverityError}

	switch value := v.(type) {
	case nil:
	case string:
		c.Summary, c.Details = value, value
		c.apply(value)
		c.Code = extractCode(value)
	case error:
		var structured StructuredError
		if errors.As(value, &structured) {
			c.fromFields(structured.ErrorFields(), value.Error())
			if c.Code == "" {
				c.Code = extractCode(value.Error())
			}
			break
		}
		text := value.Error()
		c.Summary = text
		c.Details = fmt.Sprintf("%+v", value)
		c.apply(text)
		c.Code = extractCode(text)
	case map[string]any:
		c.fromFields(value, "")
	default:
		raw, err := json.Marshal(value)
		if err != nil {
			return ClassifiedError{}, fmt.Errorf("serialize error value: %w", err)
		}
		var fields map[string]any
		if json.Unmarshal(raw, &fields) == nil && fields != nil {
			c.fromFields(fields, "")
		}
	}

	if c.Summary == "" {
		raw, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return ClassifiedError{}, fmt.Errorf("serialize error value: %w", err)
		}
		c.Summary = summaryUnexpected
		c.Details = string(raw)
	}
	return c, nil
}

// fromFields reads a plain error object. fallback is used when the object has
// no message of its own.
func (c *ClassifiedError) fromFields(fields map[string]any, fallback string) {
	c.Summary = firstString(
		fields["message"],
		nested(fields["error"], "message"),
		fields["error"],
		fields["errorMessage"],
		fields["errorDetails"],
	)
	if c.Summary == "" {
		c.Summary = fallback
	}
	c.Details = firstString(
		fields["errorDetails"],
		fields["details"],
		nested(fields["error"], "@message"),
	)
	if c.Details == "" {
		c.Details = c.Summary
	}
	c.Code = firstCode(nested(fields["error"], "code"))

	c.SubErrors = subErrors(fields["errors"])
	if len(c.SubErrors) > 0 {
		if first := c.SubErrors[0]; first.Message != "" {
			c.Summary = first.Message
		}
		if first := c.SubErrors[0]; first.Code != "" {
			c.Code = first.Code
		}
	}

	text := c.Summary + "\n" + c.Details
	for _, sub := range c.SubErrors {
		text += "\n" + sub.Message
	}
	c.apply(text)
	if c.Category == CategoryGeneral {
		c.applyStatus(fields)
	}

	if code := firstCode(fields["code"], fields["errorCode"]); code != "" {
		c.Code = code
	}
	if severity, ok := fields["severity"].(string); ok {
		switch strings.ToLower(strings.TrimSpace(severity)) {
		case "warning":
			c.Severity = SeverityWarning
		case "error":
			c.Severity = SeverityError
		}
	}
	if category, ok := fields["category"].(string); ok && strings.TrimSpace(category) != "" {
		c.Category = Category(strings.TrimSpace(category))
	}
}

func (c *ClassifiedError) applyStatus(fields map[string]any) {
	status, ok := asInt(fields["statusCode"])
	if !ok {
		status, ok = asInt(fields["status"])
	}
	if !ok || status < 400 {
		return
	}
	if status == 401 || status == 403 {
		c.Category = CategoryAuthentication
		c.Summary = summaryAuthentication
		return
	}
	c.Category = CategoryHTTP
	c.Summary = fmt.Sprintf("%s (%d)", summaryHTTP, status)
}

func parseFailure(original any, cause error) ClassifiedError {
	return ClassifiedError{
		Summary:  summaryParseFailure,
		Details:  fmt.Sprintf("original error: %s\nparsing error: %s", safeString(original), cause.Error()),
		Category: CategoryGeneral,
		Severity: SeverityError,
	}
}

func safeString(v any) (s string) {
	defer func() {
		if recover() != nil {
			s = fmt.Sprintf("<%T>", v)
		}
	}()
	switch value := v.(type) {
	case nil:
		return "<nil>"
	case string:
		return value
	case error:
		return value.Error()
	case fmt.Stringer:
		return value.String()
	default:
		return fmt.Sprintf("<%T>", v)
	}
}

func subErrors(v any) []SubError {
	var entries []any
	switch list := v.(type) {
	case []any:
		entries = list
	case []map[string]any:
		for _, entry := range list {
			entries = append(entries, entry)
		}
	case []SubError:
		return append([]SubError(nil), list...)
	default:
		return nil
	}

	out := make([]SubError, 0, len(entries))
	for _, entry := range entries {
		switch e := entry.(type) {
		case map[string]any:
			out = append(out, SubError{
				Message: firstString(e["message"], nested(e["error"], "message")),
				Code:    firstCode(e["code"], nested(e["error"], "code")),
			})
		case string:
			out = append(out, SubError{Message: e})
		}
	}
	return out
}

func nested(v any, key string) any {
	if m, ok := v.(map[string]any); ok {
		return m[key]
	}
	return nil
}

func firstString(values ...any) string {
	for _, v := range values {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func firstCode(values ...any) string {
	for _, v := range values {
		switch code := v.(type) {
		case string:
			if strings.TrimSpace(code) != "" {
				return code
			}
		case json.Number:
			return code.String()
		case float64:
			return strconv.FormatFloat(code, 'f', -1, 64)
		case int:
			return strconv.Itoa(code)
		case int64:
			return strconv.FormatInt(code, 10)
		}
	}
	return ""
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(n)
		return i, err == nil
	}
	return 0, false
}

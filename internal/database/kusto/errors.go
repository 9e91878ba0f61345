package kusto

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ServiceError is a failure reported by the query endpoint, either as a
// non-2xx response or as a completed response flagged with errors.
type ServiceError struct {
	StatusCode int
	Code       string
	Message    string
	// Details is the service's extended message (the "@message" field).
	Details   string
	Permanent bool
	Errors    []OneAPIError
}

// OneAPIError is one entry of a structured multi-error payload.
type OneAPIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Type      string `json:"@type"`
	Details   string `json:"@message"`
	Permanent bool   `json:"@permanent"`
}

func (e *ServiceError) Error() string {
	message := e.message()
	if e.Code != "" {
		message = e.Code + ": " + message
	}
	if e.Details != "" && e.Details != e.Message {
		message += ": " + e.Details
	}
	return "kusto: " + message
}

func (e *ServiceError) message() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Request failed with status code %d", e.StatusCode)
}

// ErrorFields exposes the payload in the shape the failure classifier reads.
func (e *ServiceError) ErrorFields() map[string]any {
	message := e.message()
	fields := map[string]any{
		"message": message,
		"error": map[string]any{
			"code":     e.Code,
			"message":  message,
			"@message": e.Details,
		},
	}
	if e.Details != "" {
		fields["errorDetails"] = e.Details
	}
	if e.StatusCode != 0 {
		fields["statusCode"] = e.StatusCode
	}
	if len(e.Errors) > 0 {
		subErrors := make([]any, 0, len(e.Errors))
		for _, sub := range e.Errors {
			subErrors = append(subErrors, map[string]any{"code": sub.Code, "message": sub.Message})
		}
		fields["errors"] = subErrors
	}
	return fields
}

// maxBodyInMessage caps a plain-text body, in runes.
const maxBodyInMessage = 512

// parseServiceError reads a failed response body. The body is either a
// OneAPI error object or arbitrary text.
func parseServiceError(status int, body []byte) *ServiceError {
	serviceErr := &ServiceError{StatusCode: status}

	var payload struct {
		Error *OneAPIError `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != nil {
		serviceErr.Code = payload.Error.Code
		serviceErr.Message = payload.Error.Message
		serviceErr.Details = payload.Error.Details
		serviceErr.Permanent = payload.Error.Permanent
		return serviceErr
	}

	text := strings.TrimSpace(string(body))
	if runes := []rune(text); len(runes) > maxBodyInMessage {
		text = string(runes[:maxBodyInMessage])
	}
	serviceErr.Details = text
	return serviceErr
}

package client

import (
	"encoding/json"
	"fmt"
	"strings"
)

// APIError is returned for every non 2xx service response. Detail holds
// the human readable message extracted from the body, Body the raw
// response for callers that need more.
type APIError struct {
	StatusCode int
	Detail     string
	Body       []byte
}

func NewAPIError(statusCode int, body []byte) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Detail:     extractErrorDetail(body),
		Body:       body,
	}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("service returned status %d: %s", e.StatusCode, e.Detail)
}

// extractErrorDetail digs the error message out of a response body. The
// service answers with {"detail": "..."} or {"detail": {"code", "message"}},
// older endpoints use message or error keys. Non JSON bodies are returned
// trimmed as they are.
func extractErrorDetail(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "No error detail provided."
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return trimmed
	}
	obj, ok := payload.(map[string]any)
	if !ok {
		return trimmed
	}

	switch detail := obj["detail"].(type) {
	case string:
		if d := strings.TrimSpace(detail); d != "" {
			return d
		}
	case map[string]any:
		code, _ := detail["code"].(string)
		message := firstStringValue(detail, "message", "detail", "error")
		switch {
		case code != "" && message != "":
			return fmt.Sprintf("%s: %s", code, message)
		case message != "":
			return message
		case code != "":
			return code
		}
		if encoded, err := json.Marshal(detail); err == nil {
			return string(encoded)
		}
	}

	if message := firstStringValue(obj, "message", "error"); message != "" {
		return message
	}
	return trimmed
}

func firstStringValue(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := m[key].(string); ok {
			if v := strings.TrimSpace(value); v != "" {
				return v
			}
		}
	}
	return ""
}

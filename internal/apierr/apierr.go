// Package apierr models the QQ guild-bot platform's HTTP error envelope,
// shared by the Authorizer and the outbound API client.
package apierr

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError is a non-2xx JSON error response from the platform:
// {code, message} plus the x-tps-trace-id header.
type APIError struct {
	StatusCode int
	Code       int64
	Message    string
	TraceID    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %d %s (%s)", e.StatusCode, e.Code, e.Message, e.TraceID)
}

type errorResponse struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
}

// FromResponse builds an *APIError from a non-2xx HTTP response. The
// caller retains ownership of closing resp.Body; FromResponse only reads
// it.
func FromResponse(resp *http.Response) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("apierr: read error body: %w", err)
	}
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("apierr: decode error body: %w", err)
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       parsed.Code,
		Message:    parsed.Message,
		TraceID:    resp.Header.Get("x-tps-trace-id"),
	}
}

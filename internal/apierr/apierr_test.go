package apierr

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFromResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.Header().Set("x-tps-trace-id", "trace-123")
	rec.WriteHeader(http.StatusForbidden)
	rec.Body.WriteString(`{"code":10001,"message":"no permission"}`)

	resp := rec.Result()
	err := FromResponse(resp)

	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", apiErr.StatusCode)
	}
	if apiErr.Code != 10001 {
		t.Fatalf("expected code 10001, got %d", apiErr.Code)
	}
	if apiErr.Message != "no permission" {
		t.Fatalf("expected message, got %q", apiErr.Message)
	}
	if apiErr.TraceID != "trace-123" {
		t.Fatalf("expected trace id, got %q", apiErr.TraceID)
	}
	if !strings.Contains(apiErr.Error(), "no permission") {
		t.Fatalf("expected Error() to mention the message, got %q", apiErr.Error())
	}
}

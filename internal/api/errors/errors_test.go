package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// For any error, the response body carries code, message and request_id.
func TestPropertyStructuredErrorResponseFormat(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	genErrorCode := gen.OneConstOf(
		CodeNotFound,
		CodeUnauthorized,
		CodeMethodNotAllowed,
		CodeInternalError,
		CodeServiceUnavailable,
	)
	genRequestID := gen.RegexMatch("[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}")

	properties.Property("error response contains required fields", prop.ForAll(
		func(code, message, requestID string) bool {
			rr := httptest.NewRecorder()
			WriteError(rr, New(code, message).WithRequestID(requestID))

			var response map[string]any
			if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
				t.Logf("failed to decode response: %v", err)
				return false
			}
			return response["code"] == code &&
				response["message"] == message &&
				response["request_id"] == requestID &&
				rr.Header().Get("Content-Type") == "application/json"
		},
		genErrorCode,
		gen.AlphaString(),
		genRequestID,
	))

	properties.TestingRun(t)
}

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		err  *APIError
		want int
	}{
		{NewNotFoundError("x"), http.StatusNotFound},
		{NewUnauthorizedError("x"), http.StatusUnauthorized},
		{NewMethodNotAllowedError("x"), http.StatusMethodNotAllowed},
		{NewInternalError("x"), http.StatusInternalServerError},
		{NewServiceUnavailableError("x"), http.StatusServiceUnavailable},
		{New("SOMETHING_ELSE", "x"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			if got := tt.err.HTTPStatusCode(); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWithDetailsDoesNotMutate(t *testing.T) {
	base := NewInternalError("boom").WithRequestID("r1")
	detailed := base.WithDetails(map[string]any{"upstream": "down"})

	if base.Details != nil {
		t.Error("WithDetails should not modify the receiver")
	}
	if detailed.RequestID != "r1" || detailed.Details["upstream"] != "down" {
		t.Errorf("unexpected copy: %+v", detailed)
	}
}

func TestErrorLogEntryAttrs(t *testing.T) {
	entry := NewErrorLogEntry("c1", CodeInternalError, "panic")
	attrs := entry.ToSlogAttrs()
	if len(attrs) != 8 {
		t.Fatalf("expected 4 key/value pairs, got %d items", len(attrs))
	}
	if entry.StackTrace == "" {
		t.Error("stack trace should be captured")
	}
}

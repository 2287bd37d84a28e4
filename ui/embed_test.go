package ui

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerServesScript(t *testing.T) {
	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/app.js", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/javascript") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(rr.Body.String(), "/partials/dashboard") {
		t.Error("script should refresh the dashboard partial")
	}
	if !strings.Contains(rr.Body.String(), "new WebSocket") {
		t.Error("script should subscribe to the live feed")
	}
}

func TestHandlerNotFound(t *testing.T) {
	for _, p := range []string{"/", "/missing.js", "/../embed.go"} {
		rr := httptest.NewRecorder()
		Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, p, nil))
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", p, rr.Code)
		}
	}
}

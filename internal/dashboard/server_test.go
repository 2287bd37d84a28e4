package dashboard

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/narvanalabs/gatekeeper-dashboard/internal/auth"
	"github.com/narvanalabs/gatekeeper-dashboard/internal/feed"
	"github.com/narvanalabs/gatekeeper-dashboard/internal/models"
	"github.com/narvanalabs/gatekeeper-dashboard/internal/state"
	"github.com/narvanalabs/gatekeeper-dashboard/web/health"
	"github.com/narvanalabs/gatekeeper-dashboard/web/views"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fixture struct {
	store  *state.Store
	broker *feed.Broker
	server *httptest.Server
}

func newFixture(t *testing.T, validator *auth.Service) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := state.NewStore()
	broker := feed.NewBroker(logger)
	st.OnChange(broker.PublishSnapshot)

	checker := health.NewChecker("test")
	checker.Register("poller", health.PollerCheck(func() bool { return true }))
	checker.Register("upstream", health.UpstreamCheck(st.Snapshot))

	cfg := &Config{Upstream: "http://gatekeeper:8080/logs", Interval: 2 * time.Second, Version: "test"}

	var srv *Server
	if validator != nil {
		srv = NewServer(cfg, st, broker, checker, validator, logger)
	} else {
		srv = NewServer(cfg, st, broker, checker, nil, logger)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		broker.Close()
		ts.Close()
	})

	return &fixture{store: st, broker: broker, server: ts}
}

func get(t *testing.T, url string, header http.Header) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func sampleEntries() []models.LogEntry {
	return []models.LogEntry{
		{Timestamp: "t1", Team: "eng", Action: models.ActionBlocked, Cost: 1.5},
		{Timestamp: "t2", Team: "eng", Action: models.ActionAllowed, Cost: 0.5},
	}
}

func TestPageAndPartial(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := get(t, f.server.URL+"/", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		t.Errorf("Content-Type = %q", resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(body, "<!doctype html>") || !strings.Contains(body, views.LoadingText) {
		t.Error("initial page should render the loading view")
	}

	f.store.Apply(state.Result{Outcome: state.OutcomeOK, Entries: sampleEntries()})

	_, partial := get(t, f.server.URL+"/partials/dashboard", nil)
	if strings.Contains(partial, "<!doctype html>") {
		t.Error("partial should not include the document shell")
	}
	if !strings.Contains(partial, "$2.00000") || !strings.Contains(partial, `data-view="data"`) {
		t.Error("partial should render the current data")
	}
}

func TestSnapshotAndSummaryEndpoints(t *testing.T) {
	f := newFixture(t, nil)
	f.store.Apply(state.Result{Outcome: state.OutcomeOK, Entries: sampleEntries()})

	resp, body := get(t, f.server.URL+"/api/snapshot", nil)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "application/json" {
		t.Fatalf("status=%d content-type=%q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	var snap state.Snapshot
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Status != state.StatusConnected || len(snap.Entries) != 2 || snap.Summary.Blocked != 1 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}

	_, body = get(t, f.server.URL+"/api/summary", nil)
	var summary SummaryResponse
	if err := json.Unmarshal([]byte(body), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.TotalSpend != "$2.00000" || summary.Summary.ActiveTeams != 1 || summary.View != state.ViewData {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestHealthEndpoint(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := get(t, f.server.URL+"/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var h health.Response
	if err := json.Unmarshal([]byte(body), &h); err != nil {
		t.Fatal(err)
	}
	if h.Status != health.StatusDegraded {
		t.Errorf("before first poll = %s, want degraded", h.Status)
	}
}

func TestNotFoundIsJSON(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := get(t, f.server.URL+"/nope", nil)
	if resp.StatusCode != http.StatusNotFound || !strings.Contains(body, `"NOT_FOUND"`) {
		t.Errorf("status=%d body=%s", resp.StatusCode, body)
	}
}

func TestScriptAsset(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := get(t, f.server.URL+"/assets/app.js", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(resp.Header.Get("Content-Type"), "javascript") {
		t.Fatalf("status=%d content-type=%q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !strings.Contains(body, "/partials/dashboard") {
		t.Error("script should refresh the partial")
	}
}

func TestViewerAuthGuardsDashboard(t *testing.T) {
	svc := auth.NewService(&auth.Config{JWTSecret: testSecret, TokenExpiry: time.Hour}, nil)
	token, err := svc.GenerateToken("viewer-1", "ops@example.com")
	if err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, svc)

	for _, path := range []string{"/", "/partials/dashboard", "/api/snapshot", "/api/summary"} {
		resp, _ := get(t, f.server.URL+path, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s without token: status = %d, want 401", path, resp.StatusCode)
		}
	}

	for _, path := range []string{"/health", "/assets/app.js"} {
		resp, _ := get(t, f.server.URL+path, nil)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s should be public, got %d", path, resp.StatusCode)
		}
	}

	resp, _ := get(t, f.server.URL+"/api/snapshot", http.Header{"Authorization": {"Bearer " + token}})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("bearer token: status = %d", resp.StatusCode)
	}

	resp, _ = get(t, f.server.URL+"/?token="+token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("query token: status = %d", resp.StatusCode)
	}
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == auth.TokenCookie {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("query token should set the session cookie")
	}

	resp, _ = get(t, f.server.URL+"/partials/dashboard", http.Header{"Cookie": {cookie.String()}})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("cookie: status = %d", resp.StatusCode)
	}
}

func wsURL(base string) string {
	return "ws" + strings.TrimPrefix(base, "http") + "/ws"
}

func readEvent(t *testing.T, conn *websocket.Conn) feed.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev feed.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func TestWebSocketPushesStateChanges(t *testing.T) {
	f := newFixture(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(f.server.URL), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	first := readEvent(t, conn)
	if first.Version != 0 || first.Status != state.StatusLoading {
		t.Errorf("initial event = %+v", first)
	}

	deadline := time.Now().Add(5 * time.Second)
	for f.broker.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	f.store.Apply(state.Result{Outcome: state.OutcomeOK, Entries: sampleEntries()})
	next := readEvent(t, conn)
	if next.Version != 1 || next.Status != state.StatusConnected || next.Entries != 2 {
		t.Errorf("event after apply = %+v", next)
	}

	f.broker.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseGoingAway) {
		t.Errorf("expected going-away close, got %v", err)
	}
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	f := newFixture(t, nil)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(f.server.URL), http.Header{"Origin": {"http://evil.example"}})
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %+v", resp)
	}
}

func TestWebSocketRequiresAuth(t *testing.T) {
	svc := auth.NewService(&auth.Config{JWTSecret: testSecret, TokenExpiry: time.Hour}, nil)
	token, err := svc.GenerateToken("viewer-1", "")
	if err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, svc)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(f.server.URL), nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got err=%v resp=%+v", err, resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(f.server.URL), http.Header{"Authorization": {"Bearer " + token}})
	if err != nil {
		t.Fatalf("dial with token: %v", err)
	}
	defer conn.Close()
	readEvent(t, conn)
}

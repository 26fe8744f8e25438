package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Souhar-dya/Cohesion/internal/execute"
	"github.com/Souhar-dya/Cohesion/internal/protocol"
	"github.com/Souhar-dya/Cohesion/internal/relay"
)

func newTestServer(t *testing.T) (*httptest.Server, *relay.Hub) {
	t.Helper()
	hub := relay.NewHub()
	go hub.Run()
	srv := httptest.NewServer(New(hub, execute.New("", 0)))
	t.Cleanup(srv.Close)
	return srv, hub
}

func getJSON(t *testing.T, url string, into any) *http.Response {
	t.Helper()
	res, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer res.Body.Close()
	if into != nil {
		if err := json.NewDecoder(res.Body).Decode(into); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return res
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]any
	res := getJSON(t, srv.URL+"/health", &body)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if ct := res.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v", body["status"])
	}
}

func TestStatsReflectHubState(t *testing.T) {
	srv, _ := newTestServer(t)

	var before map[string]any
	getJSON(t, srv.URL+"/api/stats", &before)
	if before["active_rooms"].(float64) != 0 || before["active_clients"].(float64) != 0 {
		t.Fatalf("fresh hub stats = %v", before)
	}

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?room=stats"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The hub registers the session before sending init, so stats are
	// current once the init frame is observed.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f protocol.Frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read init: %v", err)
	}
	if f.Type != protocol.TypeInit {
		t.Fatalf("first frame = %s, want init", f.Type)
	}

	var after map[string]any
	getJSON(t, srv.URL+"/api/stats", &after)
	if after["active_rooms"].(float64) != 1 || after["active_clients"].(float64) != 1 {
		t.Errorf("stats after join = %v", after)
	}
}

func TestWSRejectsPlainGET(t *testing.T) {
	srv, hub := newTestServer(t)

	res, err := http.Get(srv.URL + "/ws?room=plain")
	if err != nil {
		t.Fatalf("GET /ws: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", res.StatusCode)
	}
	// A failed upgrade must not leave room state behind.
	if hub.RoomCount() != 0 || hub.ClientCount() != 0 {
		t.Errorf("hub state after failed upgrade: rooms=%d clients=%d",
			hub.RoomCount(), hub.ClientCount())
	}
}

func TestExecuteRouteWired(t *testing.T) {
	srv, _ := newTestServer(t)

	// An empty body fails validation inside the handler, which proves the
	// route reaches the execution proxy without touching any upstream.
	res, err := http.Post(srv.URL+"/api/execute", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST /api/execute: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", res.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/api/execute", nil)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", res.StatusCode)
	}
	if origin := res.Header.Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("allow-origin = %q", origin)
	}
	if methods := res.Header.Get("Access-Control-Allow-Methods"); !strings.Contains(methods, "POST") {
		t.Errorf("allow-methods = %q", methods)
	}
}

package mcp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHTTPHandler_RPC(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, nil)
	h := srv.HTTPHandler()

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{"jsonrpc":"2.0","id":7,"method":"tools/list"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header")
	}
	var body struct {
		ID     float64 `json:"id"`
		Result struct {
			Tools []ToolDefinition `json:"tools"`
		} `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if body.ID != 7 || len(body.Result.Tools) == 0 {
		t.Fatalf("unexpected response %s", rec.Body.String())
	}

	note := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, note)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("notification status = %d, want 202", rec.Code)
	}
}

func TestHTTPHandler_HealthAndMetrics(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, nil)
	h := srv.HTTPHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	var health map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if health["status"] != "ok" || health["server"] != "prompt-server" || health["prompts"] != float64(2) {
		t.Fatalf("unexpected health body %v", health)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
}

func TestHTTPHandler_WebSocketSession(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, nil)
	ts := httptest.NewServer(srv.HTTPHandler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	send := func(msg string) map[string]any {
		t.Helper()
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			t.Fatalf("WriteMessage() error = %v", err)
		}
		var out map[string]any
		if err := conn.ReadJSON(&out); err != nil {
			t.Fatalf("ReadJSON() error = %v", err)
		}
		return out
	}

	initRes := send(`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26"}}`)
	if initRes["result"] == nil {
		t.Fatalf("initialize failed: %v", initRes)
	}

	got := send(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"Greeter","arguments":{"name":"Ada","place":"Paris"}}}`)
	result := got["result"].(map[string]any)
	content := result["content"].([]any)
	text := content[0].(map[string]any)["text"]
	if text != "Hello Ada from Paris" {
		t.Fatalf("tools/call text = %v", text)
	}
}

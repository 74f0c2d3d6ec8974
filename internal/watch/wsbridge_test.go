package watch

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newBridgeServer(t *testing.T, origin string) (*httptest.Server, chan PlayerMessage) {
	t.Helper()
	out := make(chan PlayerMessage, 16)
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	bridge := NewTelemetryBridge(out, origin, log)
	srv := httptest.NewServer(bridge)
	t.Cleanup(srv.Close)
	return srv, out
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func recvMessage(t *testing.T, out chan PlayerMessage) PlayerMessage {
	t.Helper()
	select {
	case msg := <-out:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for relayed message")
		return PlayerMessage{}
	}
}

func TestTelemetryBridge_relays_messages(t *testing.T) {
	srv, out := newBridgeServer(t, "")

	header := http.Header{"Origin": []string{"https://embed.example"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"property":"currentTime","value":42.5}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	msg := recvMessage(t, out)
	if msg.Property != PropCurrentTime || msg.Value != 42.5 {
		t.Errorf("unexpected message: %+v", msg)
	}
	if msg.Origin != "https://embed.example" {
		t.Errorf("expected origin stamped from the connection, got %q", msg.Origin)
	}
}

func TestTelemetryBridge_skips_malformed_payloads(t *testing.T) {
	srv, out := newBridgeServer(t, "")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`not json`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"property":"ended","value":1}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	msg := recvMessage(t, out)
	if msg.Property != PropEnded {
		t.Errorf("expected the valid message after the malformed one, got %+v", msg)
	}
}

func TestTelemetryBridge_rejects_foreign_origin(t *testing.T) {
	srv, _ := newBridgeServer(t, "https://embed.example")

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	if err == nil {
		t.Fatal("expected handshake rejection for a foreign origin")
	}
	if resp != nil && resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403, got %d", resp.StatusCode)
	}
}

func TestTelemetryBridge_accepts_configured_origin(t *testing.T) {
	srv, out := newBridgeServer(t, "https://embed.example")

	header := http.Header{"Origin": []string{"https://embed.example"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"property":"ended","value":1}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	msg := recvMessage(t, out)
	if !msg.valid("https://embed.example") {
		t.Errorf("expected message to pass the origin filter: %+v", msg)
	}
}

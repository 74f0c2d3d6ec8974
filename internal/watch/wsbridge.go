package watch

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// TelemetryBridge accepts the watch page's websocket connection and relays
// player property-change messages into the session. The page-side player
// embed reports telemetry via postMessage; the page script forwards each
// message over this socket verbatim.
type TelemetryBridge struct {
	out      chan<- PlayerMessage
	origin   string
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewTelemetryBridge builds a bridge feeding out. origin is the only allowed
// websocket origin; empty allows any (local development).
func NewTelemetryBridge(out chan<- PlayerMessage, origin string, log *slog.Logger) *TelemetryBridge {
	b := &TelemetryBridge{
		out:    out,
		origin: origin,
		log:    log,
	}
	b.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return origin == "" || r.Header.Get("Origin") == origin
		},
	}
	return b
}

// ServeHTTP upgrades the connection and relays messages until the peer
// disconnects. Malformed payloads are skipped, never fatal: telemetry is
// best-effort by nature and the session tolerates gaps.
func (b *TelemetryBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	remoteOrigin := r.Header.Get("Origin")
	b.log.Info("telemetry connection opened", slog.String("remote", conn.RemoteAddr().String()))

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				b.log.Warn("telemetry connection error", slog.String("error", err.Error()))
			}
			return
		}

		var msg PlayerMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			b.log.Debug("dropping malformed telemetry payload", slog.String("error", err.Error()))
			continue
		}
		// The origin is taken from the connection, never from the payload.
		msg.Origin = remoteOrigin

		select {
		case b.out <- msg:
		default:
			// The session loop is momentarily busy; telemetry is lossy
			// anyway, so dropping beats blocking the read loop.
		}
	}
}

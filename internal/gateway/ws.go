package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const wsWriteTimeout = 10 * time.Second

// handleTelemetryStream upgrades to a WebSocket and pushes every usage
// sample recorded after the connection was established. The connection
// closes when the client goes away or a write fails.
func (g *Gateway) handleTelemetryStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		g.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer func() {
		_ = conn.Close(websocket.StatusInternalError, "unexpected close")
	}()

	samples, cancel := g.history.Subscribe()
	defer cancel()

	// Drain client frames so pings are answered and closure is noticed.
	readCtx := conn.CloseRead(r.Context())

	for {
		select {
		case <-readCtx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "client gone")
			return
		case sample, ok := <-samples:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			payload, err := json.Marshal(sample)
			if err != nil {
				continue
			}
			writeCtx, cancelWrite := context.WithTimeout(readCtx, wsWriteTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, payload)
			cancelWrite()
			if err != nil {
				g.logger.Debug("telemetry stream write failed", "error", err)
				return
			}
		}
	}
}

// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/jqwei/undercover/internal/game"
)

// WSHandler upgrades the HTTP connection to the session websocket. Every
// command and notification of the message contract travels over this single
// endpoint as JSON text frames.
func WSHandler(logger *logrus.Logger, gw *Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr

		// Session identity must be resolved before the upgrade; afterwards
		// headers (and thus cookies) can no longer be written.
		sessionID, err := EnsureSession(w, r)
		if err != nil {
			logger.Warnf("Session setup failed for %s: %v", remoteAddr, err)
			http.Error(w, "session setup failed", http.StatusInternalServerError)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"undercover"},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "undercover" {
			c.Close(BadSubprotocolError, "client must speak the undercover subprotocol")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		conn := &Conn{
			ID:      sessionID,
			Cancel:  cancel,
			OutChan: make(chan Envelope, 16),
		}
		gw.Register(conn)
		logger.Infof("Connection %s (%s) established", sessionID, remoteAddr)

		// Tell the client who it is; every later command is attributed to
		// this id server-side.
		conn.Write(Envelope{
			Type:    game.EventSession,
			Payload: game.SessionPayload{PlayerID: sessionID},
		})

		go writePump(ctx, c, conn, logger)
		readPump(ctx, c, gw, conn, logger)

		logger.Infof("Connection %s readPump exited. Initiating cleanup.", sessionID)
		gw.Disconnect(conn)
	}
}

// readPump handles incoming command frames until the connection closes or
// the context is cancelled.
func readPump(ctx context.Context, c *websocket.Conn, gw *Gateway, conn *Conn, logger *logrus.Logger) {
	for {
		select {
		case <-ctx.Done():
			logger.Infof("Context cancelled for connection %s, stopping read pump.", conn.ID)
			return
		default:
		}

		typ, msg, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				logger.Infof("WebSocket closed normally for connection %s.", conn.ID)
			} else if strings.Contains(err.Error(), "context canceled") {
				// Already logged above, just return
			} else {
				logger.Warnf("Read error for connection %s: %v (CloseStatus: %d)", conn.ID, err, closeStatus)
			}
			return
		}

		if typ != websocket.MessageText {
			logger.Warnf("Received non-text message type %d from connection %s. Ignoring.", typ, conn.ID)
			continue
		}

		var cmd Command
		if err := json.Unmarshal(msg, &cmd); err != nil {
			logger.Warnf("Invalid json from connection %s: %v", conn.ID, err)
			conn.WriteError("invalid JSON format")
			continue
		}

		if cmd.Type == "heartbeat" {
			gw.Presence.Touch(conn.ID)
			conn.Write(Envelope{Type: game.EventHeartbeatAck})
			continue
		}

		gw.Dispatch(conn.ID, cmd)
	}
}

// writePump drains the connection's outbound channel and keeps the socket
// alive with periodic pings.
func writePump(ctx context.Context, c *websocket.Conn, conn *Conn, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-conn.OutChan:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Warnf("Failed to marshal outgoing msg for connection %s: %v", conn.ID, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("Failed to write to websocket for connection %s: %v", conn.ID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("Failed to ping connection %s: %v. Assuming disconnect.", conn.ID, err)
				return
			}
		}
	}
}

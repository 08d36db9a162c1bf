// internal/handlers/conn.go
package handlers

import (
	"log"

	"github.com/jqwei/undercover/internal/game"
)

// Envelope is the outbound wire frame: a notification type plus its payload.
type Envelope struct {
	Type    game.EventType `json:"type"`
	Payload interface{}    `json:"payload,omitempty"`
}

// Conn is a single live connection's presence in the gateway.
type Conn struct {
	ID      string
	Cancel  func()
	OutChan chan Envelope
}

// Write pushes a message onto the connection's OutChan non-blockingly.
// Logs if the channel is full or gone; the write pump can only have fallen
// this far behind when the socket itself is dead.
func (c *Conn) Write(msg Envelope) {
	select {
	case c.OutChan <- msg:
	default:
		log.Printf("Conn Write WARNING: OutChan for connection %s closed or full. Dropped message type '%s'.", c.ID, msg.Type)
	}
}

// WriteError is a convenience to send an error notification.
func (c *Conn) WriteError(msg string) {
	c.Write(Envelope{
		Type:    game.EventError,
		Payload: game.ErrorPayload{Message: msg},
	})
}

// internal/handlers/gateway.go
package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jqwei/undercover/internal/archive"
	"github.com/jqwei/undercover/internal/game"
	"github.com/jqwei/undercover/internal/models"
	"github.com/jqwei/undercover/internal/presence"
	"github.com/jqwei/undercover/internal/room"
)

// Command is the inbound wire frame. Fields beyond Type are populated per
// command; unknown fields are ignored.
type Command struct {
	Type        string                 `json:"type"`
	RoomID      string                 `json:"roomId,omitempty"`
	PlayerName  string                 `json:"playerName,omitempty"`
	TargetID    string                 `json:"targetId,omitempty"`
	Word        string                 `json:"word,omitempty"`
	PlayerRoles map[string]models.Role `json:"playerRoles,omitempty"`
	Settings    *models.RoomSettings   `json:"settings,omitempty"`
}

// Gateway is the session gateway: it owns the room store and the live
// connection registry, validates inbound commands, delegates to the engine
// and fans the resulting notifications out.
//
// A single dispatch mutex serializes every command end to end (load room,
// mutate, persist, emit), reproducing the single-threaded serializability of
// the event loop the message contract was designed around. All work inside
// the lock is in-memory and CPU-bound; the actual socket writes happen on
// buffered channels outside of it.
type Gateway struct {
	mu sync.Mutex

	Rooms    *room.Store
	Presence *presence.Monitor

	conns  map[string]*Conn
	logger *logrus.Logger
}

// NewGateway wires a gateway around an empty room store.
func NewGateway(logger *logrus.Logger, monitor *presence.Monitor) *Gateway {
	return &Gateway{
		Rooms:    room.NewStore(),
		Presence: monitor,
		conns:    make(map[string]*Conn),
		logger:   logger,
	}
}

// Register adds a connection to the registry. A connection re-establishing
// under the same session id supersedes the previous registration, whose
// pumps are cancelled.
func (gw *Gateway) Register(c *Conn) {
	gw.mu.Lock()
	old := gw.conns[c.ID]
	gw.conns[c.ID] = c
	gw.mu.Unlock()

	if old != nil && old != c {
		gw.logger.Infof("Gateway: connection %s re-established, superseding previous registration", c.ID)
		if old.Cancel != nil {
			old.Cancel()
		}
	}
	gw.Presence.Touch(c.ID)
}

// Dispatch processes one inbound command from the given connection. Errors
// are reported to the originating caller only; no error terminates a room.
func (gw *Gateway) Dispatch(connID string, cmd Command) {
	gw.Presence.Touch(connID)

	gw.mu.Lock()
	defer gw.mu.Unlock()

	caller := gw.conns[connID]
	if caller == nil {
		gw.logger.Warnf("Gateway: dropping command '%s' from unregistered connection %s", cmd.Type, connID)
		return
	}

	switch cmd.Type {
	case "create_room":
		gw.handleCreateRoom(caller, cmd)
	case "get_room":
		gw.handleGetRoom(caller, cmd)
	case "join_room":
		gw.withRoom(caller, cmd.RoomID, func(r *models.Room) ([]game.Event, error) {
			return game.Join(r, connID, cmd.PlayerName)
		})
	case "start_game":
		gw.withRoom(caller, cmd.RoomID, func(r *models.Room) ([]game.Event, error) {
			return game.Start(r, connID, cmd.PlayerRoles)
		})
	case "start_voting":
		gw.withRoom(caller, cmd.RoomID, func(r *models.Room) ([]game.Event, error) {
			return game.StartVoting(r, connID)
		})
	case "vote":
		gw.withRoom(caller, cmd.RoomID, func(r *models.Room) ([]game.Event, error) {
			return game.CastVote(r, connID, cmd.TargetID)
		})
	case "end_voting":
		gw.withRoom(caller, cmd.RoomID, func(r *models.Room) ([]game.Event, error) {
			return game.EndVoting(r, connID)
		})
	case "guess_word":
		gw.withRoom(caller, cmd.RoomID, func(r *models.Room) ([]game.Event, error) {
			return game.GuessWord(r, connID, cmd.Word)
		})
	case "restart_game":
		gw.withRoom(caller, cmd.RoomID, func(r *models.Room) ([]game.Event, error) {
			return game.Restart(r, connID)
		})
	default:
		gw.logger.Warnf("Gateway: unknown command '%s' from connection %s", cmd.Type, connID)
		caller.WriteError("unknown command type: " + cmd.Type)
	}
}

func (gw *Gateway) handleCreateRoom(caller *Conn, cmd Command) {
	if cmd.Settings == nil {
		caller.WriteError("create_room requires settings")
		return
	}
	id := gw.Rooms.NewRoomID()
	r, events, err := game.NewRoom(id, caller.ID, *cmd.Settings)
	if err != nil {
		caller.WriteError(err.Error())
		return
	}
	gw.Rooms.Put(id, r)
	gw.logger.Infof("Gateway: room %s created by %s", id, caller.ID)
	gw.emit(r, events)
}

func (gw *Gateway) handleGetRoom(caller *Conn, cmd Command) {
	r, ok := gw.Rooms.Get(cmd.RoomID)
	if !ok {
		caller.WriteError(game.RoomNotFound(cmd.RoomID).Error())
		return
	}
	caller.Write(Envelope{
		Type:    game.EventRoomUpdated,
		Payload: game.SnapshotFor(r, caller.ID),
	})
}

// withRoom loads the addressed room, applies fn under the dispatch lock,
// persists the aggregate and fans out the events. A transition either fully
// applies or is rejected before any mutation; there is no partial state to
// roll back.
func (gw *Gateway) withRoom(caller *Conn, roomID string, fn func(*models.Room) ([]game.Event, error)) {
	r, ok := gw.Rooms.Get(roomID)
	if !ok {
		caller.WriteError(game.RoomNotFound(roomID).Error())
		return
	}
	prevState := r.State
	events, err := fn(r)
	if err != nil {
		caller.WriteError(err.Error())
		return
	}
	gw.Rooms.Put(roomID, r)
	gw.emit(r, events)
	if prevState != models.StateEnded && r.State == models.StateEnded {
		gw.archiveMatch(r)
	}
}

// emit resolves audiences against the room's membership (host connection
// plus roster) and writes each event out. Writes are non-blocking channel
// sends; the per-connection write pumps do the socket I/O.
func (gw *Gateway) emit(r *models.Room, events []game.Event) {
	for _, ev := range events {
		msg := Envelope{Type: ev.Type, Payload: ev.Payload}
		switch ev.Audience {
		case game.AudiencePlayer:
			if c := gw.conns[ev.Target]; c != nil {
				c.Write(msg)
			}
		case game.AudienceHost:
			if c := gw.conns[r.Host]; c != nil {
				c.Write(msg)
			}
		case game.AudienceOthers:
			for _, p := range r.Players {
				if p.ID == r.Host {
					continue
				}
				if c := gw.conns[p.ID]; c != nil {
					c.Write(msg)
				}
			}
		case game.AudienceRoom:
			sent := map[string]bool{}
			if c := gw.conns[r.Host]; c != nil {
				c.Write(msg)
				sent[r.Host] = true
			}
			for _, p := range r.Players {
				if sent[p.ID] {
					continue
				}
				if c := gw.conns[p.ID]; c != nil {
					c.Write(msg)
					sent[p.ID] = true
				}
			}
		}
	}
}

// Disconnect runs the disconnect transition for a connection whose read
// loop has exited. It is a no-op when the registration was superseded by a
// reconnect, so a stale socket cannot tear down its successor's rooms.
func (gw *Gateway) Disconnect(c *Conn) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.conns[c.ID] != c {
		return
	}
	gw.disconnectLocked(c)
}

// DisconnectByID is the presence monitor's entry point for expired
// connections.
func (gw *Gateway) DisconnectByID(id string) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	c := gw.conns[id]
	if c == nil {
		return
	}
	gw.disconnectLocked(c)
	if c.Cancel != nil {
		c.Cancel()
	}
}

func (gw *Gateway) disconnectLocked(c *Conn) {
	delete(gw.conns, c.ID)
	gw.Presence.Forget(c.ID)

	// Collect first: the sweep deletes host rooms while walking.
	var hosted, joined []*models.Room
	gw.Rooms.ForEach(func(id string, r *models.Room) bool {
		if r.Host == c.ID {
			hosted = append(hosted, r)
		} else if r.PlayerByID(c.ID) != nil {
			joined = append(joined, r)
		}
		return true
	})

	for _, r := range hosted {
		gw.emit(r, game.CloseRoom(r))
		gw.Rooms.Delete(r.RoomID)
		gw.logger.Infof("Gateway: room %s closed, host %s disconnected", r.RoomID, c.ID)
	}
	for _, r := range joined {
		events, removed := game.RemovePlayer(r, c.ID)
		if !removed {
			continue
		}
		gw.Rooms.Put(r.RoomID, r)
		gw.emit(r, events)
		gw.logger.Infof("Gateway: player %s left room %s", c.ID, r.RoomID)
	}
}

// archiveMatch publishes the finished game to the match archive queue, if
// one is configured. The archive is write-only and strictly optional; a
// publish failure never affects the room.
func (gw *Gateway) archiveMatch(r *models.Room) {
	if !archive.Enabled() {
		return
	}
	rec := archive.MatchRecord{
		MatchID:   uuid.New(),
		RoomID:    r.RoomID,
		Winner:    r.Winner,
		GoodWord:  r.GoodWord,
		EvilWord:  r.EvilWord,
		CreatedAt: r.CreatedAt.Unix(),
		EndedAt:   time.Now().Unix(),
	}
	for _, p := range r.Players {
		rec.Players = append(rec.Players, archive.MatchPlayer{
			ID:     p.ID,
			Name:   p.Name,
			Role:   p.Role,
			Status: p.Status,
		})
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := archive.PublishMatchResult(ctx, rec); err != nil {
			gw.logger.Warnf("Gateway: failed to publish match record for room %s: %v", rec.RoomID, err)
		}
	}()
}

package models

import "time"

// RoomState is the room's position in the waiting -> playing -> voting cycle.
type RoomState string

const (
	StateWaiting RoomState = "waiting"
	StatePlaying RoomState = "playing"
	StateVoting  RoomState = "voting"
	StateEnded   RoomState = "ended"
)

// RoomSettings are fixed at room creation. The words are intended to be
// similar but distinct; the counts size the role multiset handed out when
// the game starts.
type RoomSettings struct {
	GoodCount  int    `json:"goodCount"`
	EvilCount  int    `json:"evilCount"`
	BlankCount int    `json:"blankCount"`
	GoodWord   string `json:"goodWord,omitempty"`
	EvilWord   string `json:"evilWord,omitempty"`
}

// TotalSlots is the number of configured game slots. The roster may hold
// more connected players than slots; the overflow stays roleless.
func (s RoomSettings) TotalSlots() int {
	return s.GoodCount + s.EvilCount + s.BlankCount
}

// Room is the aggregate for one game session. It is owned by the session
// gateway and only ever mutated under its dispatch lock.
type Room struct {
	RoomSettings

	RoomID    string    `json:"roomId"`
	Host      string    `json:"host"`
	Players   []*Player `json:"players"`
	State     RoomState `json:"state"`
	Winner    Role      `json:"winner,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// PlayerByID returns the roster entry with the given id, or nil.
func (r *Room) PlayerByID(id string) *Player {
	for _, p := range r.Players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// AliveCount returns the number of roster entries still alive.
func (r *Room) AliveCount() int {
	n := 0
	for _, p := range r.Players {
		if p.Status == StatusAlive {
			n++
		}
	}
	return n
}

// Snapshot returns a full copy of the room, players included. Events carry
// snapshots rather than the live aggregate so a later transition cannot
// mutate a payload that is still queued for serialization.
func (r *Room) Snapshot() *Room {
	clean := *r
	clean.Players = make([]*Player, len(r.Players))
	for i, p := range r.Players {
		cp := *p
		clean.Players[i] = &cp
	}
	return &clean
}

// Sanitized returns a copy of the room safe to show non-host recipients:
// the secret words are stripped at room level and every player is reduced
// to id, name and status.
func (r *Room) Sanitized() *Room {
	clean := *r
	clean.GoodWord = ""
	clean.EvilWord = ""
	clean.Players = make([]*Player, len(r.Players))
	for i, p := range r.Players {
		clean.Players[i] = &Player{
			ID:     p.ID,
			Name:   p.Name,
			Status: p.Status,
		}
	}
	return &clean
}

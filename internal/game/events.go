package game

import "github.com/jqwei/undercover/internal/models"

// EventType names an outbound notification.
type EventType string

const (
	EventRoomCreated      EventType = "room_created"
	EventRoomUpdated      EventType = "room_updated"
	EventJoinedRoom       EventType = "joined_room"
	EventGameStarted      EventType = "game_started"
	EventVotingStarted    EventType = "voting_started"
	EventPlayerVoted      EventType = "player_voted"
	EventAllVoted         EventType = "all_voted"
	EventVotingResult     EventType = "voting_result"
	EventVotingInvalid    EventType = "voting_invalid"
	EventGuessResult      EventType = "guess_result"
	EventPlayerEliminated EventType = "player_eliminated"
	EventGameRestarted    EventType = "game_restarted"
	EventRoomClosed       EventType = "room_closed"
	EventPlayerLeft       EventType = "player_left"
	EventError            EventType = "error"
	EventSession          EventType = "session"
	EventHeartbeatAck     EventType = "heartbeat_ack"
)

// Audience selects the recipients of an event. Room membership for fan-out
// purposes is the host connection plus every roster entry.
type Audience int

const (
	AudienceRoom   Audience = iota // host + all roster members
	AudienceHost                   // host connection only
	AudienceOthers                 // roster members except the host
	AudiencePlayer                 // the single connection named by Target
)

// Event is one outbound notification computed by a transition. The engine
// never performs I/O; the gateway resolves the audience to live connections
// and writes the payload out.
type Event struct {
	Type     EventType
	Audience Audience
	Target   string // player id, only for AudiencePlayer
	Payload  interface{}
}

func toRoom(t EventType, payload interface{}) Event {
	return Event{Type: t, Audience: AudienceRoom, Payload: payload}
}

func toHost(t EventType, payload interface{}) Event {
	return Event{Type: t, Audience: AudienceHost, Payload: payload}
}

func toOthers(t EventType, payload interface{}) Event {
	return Event{Type: t, Audience: AudienceOthers, Payload: payload}
}

func toPlayer(id string, t EventType, payload interface{}) Event {
	return Event{Type: t, Audience: AudiencePlayer, Target: id, Payload: payload}
}

// roomUpdates is the standard per-recipient pair after a state change: the
// host sees the full room, everyone else the sanitized view. Both are
// copies taken at transition time.
func roomUpdates(t EventType, r *models.Room) []Event {
	return []Event{
		toHost(t, r.Snapshot()),
		toOthers(t, r.Sanitized()),
	}
}

// --- notification payloads (wire field names follow the message contract) ---

type JoinedRoomPayload struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

// GameStartedPayload is the private role reveal. A roleless overflow player
// still receives it, with both fields omitted.
type GameStartedPayload struct {
	Role models.Role `json:"role,omitempty"`
	Word string      `json:"word,omitempty"`
}

type PlayerVotedPayload struct {
	PlayerID string `json:"playerId"`
	TargetID string `json:"targetId"`
}

type VotingResultPayload struct {
	Eliminated           string         `json:"eliminated"`
	EliminatedPlayerRole models.Role    `json:"eliminatedPlayerRole,omitempty"`
	CanGuess             bool           `json:"canGuess"`
	GameEnded            bool           `json:"gameEnded"`
	Winner               models.Role    `json:"winner,omitempty"`
	VoteCounts           map[string]int `json:"voteCounts"`
}

type GuessResultPayload struct {
	PlayerID  string      `json:"playerId"`
	Correct   bool        `json:"correct"`
	Word      string      `json:"word"`
	GameEnded bool        `json:"gameEnded"`
	Winner    models.Role `json:"winner,omitempty"`
}

type PlayerEliminatedPayload struct {
	PlayerID  string      `json:"playerId"`
	Reason    string      `json:"reason"`
	GameEnded bool        `json:"gameEnded"`
	Winner    models.Role `json:"winner,omitempty"`
}

type PlayerLeftPayload struct {
	PlayerID string       `json:"playerId"`
	Room     *models.Room `json:"updatedRoom"`
}

type RoomClosedPayload struct {
	Message string `json:"message"`
}

type SessionPayload struct {
	PlayerID string `json:"playerId"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

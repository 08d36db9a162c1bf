package models

// Role is a player's secret assignment for one game round.
type Role string

const (
	RoleGood  Role = "good"
	RoleEvil  Role = "evil"
	RoleBlank Role = "blank"
)

// Status tracks a player's voting/guessing eligibility within one game round.
type Status string

const (
	StatusAlive      Status = "alive"
	StatusEliminated Status = "eliminated"
)

// Player is one roster entry in a room. Role, Word and Vote are empty strings
// while unset; valid values are never empty, so unset and empty never collide
// on the wire.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Role   Role   `json:"role,omitempty"`
	Word   string `json:"word,omitempty"`
	Status Status `json:"status"`
	Vote   string `json:"vote,omitempty"`
}

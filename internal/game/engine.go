package game

import (
	"math/rand"
	"time"

	"github.com/jqwei/undercover/internal/models"
)

// The engine is a set of pure state-transition functions over a single room
// aggregate. Each function validates its preconditions before touching the
// room, then mutates it and returns the notifications to fan out. A returned
// error means the room was not modified at all.

// NewRoom builds a room in the waiting state. The creating connection
// becomes the host and the sole authority for game-flow commands.
func NewRoom(roomID, hostID string, settings models.RoomSettings) (*models.Room, []Event, error) {
	if settings.GoodCount < 1 || settings.EvilCount < 1 || settings.BlankCount < 0 {
		return nil, nil, preconditionFailed("a room needs at least one good and one evil slot")
	}
	if settings.GoodWord == "" || settings.EvilWord == "" {
		return nil, nil, preconditionFailed("both words must be set")
	}
	r := &models.Room{
		RoomSettings: settings,
		RoomID:       roomID,
		Host:         hostID,
		Players:      []*models.Player{},
		State:        models.StateWaiting,
		CreatedAt:    time.Now(),
	}
	return r, []Event{toPlayer(hostID, EventRoomCreated, r.Snapshot())}, nil
}

// Join appends a new alive player to the roster. Joining is deliberately not
// gated on the waiting state; the roster may grow mid-game, with latecomers
// staying roleless until the next start.
func Join(r *models.Room, playerID, name string) ([]Event, error) {
	if name == "" {
		return nil, preconditionFailed("a player name is required to join")
	}
	if r.PlayerByID(playerID) != nil {
		return nil, preconditionFailed("player is already in room %s", r.RoomID)
	}
	r.Players = append(r.Players, &models.Player{
		ID:     playerID,
		Name:   name,
		Status: models.StatusAlive,
	})
	events := roomUpdates(EventRoomUpdated, r)
	events = append(events, toPlayer(playerID, EventJoinedRoom, JoinedRoomPayload{
		RoomID:   r.RoomID,
		PlayerID: playerID,
	}))
	return events, nil
}

// SnapshotFor selects the view of the room a recipient is allowed to see.
func SnapshotFor(r *models.Room, callerID string) *models.Room {
	if r.Host == callerID {
		return r.Snapshot()
	}
	return r.Sanitized()
}

// Start assigns roles and words and moves the room into playing. With a
// manual mapping, players absent from the map simply end up roleless. With
// random assignment, a shuffled multiset of exactly TotalSlots roles is
// dealt out in roster order; players past the multiset length stay roleless.
func Start(r *models.Room, callerID string, manual map[string]models.Role) ([]Event, error) {
	if r.Host != callerID {
		return nil, unauthorized("only the host can start the game")
	}
	total := r.TotalSlots()
	if len(r.Players) < total {
		return nil, preconditionFailed("at least %d players are needed to start", total)
	}

	if manual != nil {
		for _, p := range r.Players {
			p.Role = manual[p.ID]
			p.Word = wordFor(p.Role, r)
		}
	} else {
		roles := make([]models.Role, 0, total)
		for i := 0; i < r.GoodCount; i++ {
			roles = append(roles, models.RoleGood)
		}
		for i := 0; i < r.EvilCount; i++ {
			roles = append(roles, models.RoleEvil)
		}
		for i := 0; i < r.BlankCount; i++ {
			roles = append(roles, models.RoleBlank)
		}
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		for i := len(roles) - 1; i > 0; i-- {
			j := rnd.Intn(i + 1)
			roles[i], roles[j] = roles[j], roles[i]
		}
		for i, p := range r.Players {
			if i < len(roles) {
				p.Role = roles[i]
				p.Word = wordFor(roles[i], r)
			} else {
				p.Role = ""
				p.Word = ""
			}
		}
	}
	r.State = models.StatePlaying

	events := make([]Event, 0, len(r.Players)+2)
	for _, p := range r.Players {
		events = append(events, toPlayer(p.ID, EventGameStarted, GameStartedPayload{
			Role: p.Role,
			Word: p.Word,
		}))
	}
	events = append(events, roomUpdates(EventRoomUpdated, r)...)
	return events, nil
}

func wordFor(role models.Role, r *models.Room) string {
	switch role {
	case models.RoleGood:
		return r.GoodWord
	case models.RoleEvil:
		return r.EvilWord
	default:
		return ""
	}
}

// StartVoting opens a voting round. The full room goes to every recipient
// here, matching the message contract for voting_started.
func StartVoting(r *models.Room, callerID string) ([]Event, error) {
	if r.Host != callerID {
		return nil, unauthorized("only the host can start voting")
	}
	r.State = models.StateVoting
	return []Event{toRoom(EventVotingStarted, r.Snapshot())}, nil
}

// CastVote records (or overwrites) the caller's vote. The target is accepted
// as an opaque string: self-votes and ids outside the roster are not
// rejected. Once every alive player holds a vote the host alone is notified;
// the round does not advance on its own.
func CastVote(r *models.Room, callerID, targetID string) ([]Event, error) {
	if r.State != models.StateVoting {
		return nil, preconditionFailed("voting is not in progress")
	}
	p := r.PlayerByID(callerID)
	if p == nil {
		return nil, invalidActor("you are not a player in this room")
	}
	if p.Status != models.StatusAlive {
		return nil, invalidActor("eliminated players cannot vote")
	}
	p.Vote = targetID

	events := []Event{toRoom(EventPlayerVoted, PlayerVotedPayload{
		PlayerID: callerID,
		TargetID: targetID,
	})}
	allVoted := true
	for _, pl := range r.Players {
		if pl.Status == models.StatusAlive && pl.Vote == "" {
			allVoted = false
			break
		}
	}
	if allVoted {
		events = append(events, toHost(EventAllVoted, nil))
	}
	return events, nil
}

// EndVoting tallies alive players' votes and either eliminates the leading
// candidate or declares the round invalid. A candidate is eliminated only
// when their count is strictly greater than half the alive-player count, so
// ties can never eliminate. Vote fields are cleared unconditionally on both
// paths.
func EndVoting(r *models.Room, callerID string) ([]Event, error) {
	if r.Host != callerID {
		return nil, unauthorized("only the host can end voting")
	}

	votes := map[string]int{}
	for _, p := range r.Players {
		if p.Status == models.StatusAlive && p.Vote != "" {
			votes[p.Vote]++
		}
	}
	maxVotes, eliminatedID := 0, ""
	for id, n := range votes {
		if n > maxVotes {
			maxVotes = n
			eliminatedID = id
		}
	}
	alive := r.AliveCount()

	for _, p := range r.Players {
		p.Vote = ""
	}

	if 2*maxVotes <= alive || eliminatedID == "" {
		// Invalid round: nobody reaches a strict majority.
		r.State = models.StatePlaying
		events := roomUpdates(EventRoomUpdated, r)
		events = append(events, toRoom(EventVotingInvalid, nil))
		return events, nil
	}

	var role models.Role
	if target := r.PlayerByID(eliminatedID); target != nil {
		target.Status = models.StatusEliminated
		role = target.Role
	}
	winner, ended := checkGameEnd(r.Players)
	if ended {
		r.State = models.StateEnded
		r.Winner = winner
	} else {
		r.State = models.StatePlaying
	}

	events := []Event{toRoom(EventVotingResult, VotingResultPayload{
		Eliminated:           eliminatedID,
		EliminatedPlayerRole: role,
		CanGuess:             !ended,
		GameEnded:            ended,
		Winner:               winner,
		VoteCounts:           votes,
	})}
	events = append(events, roomUpdates(EventRoomUpdated, r)...)
	return events, nil
}

// GuessWord resolves a word guess by the caller's role. Evil or blank
// guessing the good word exactly wins the game on the spot without being
// eliminated. A good player's guess always counts as a failure and
// eliminates them under a player_eliminated notification; any other wrong
// guess eliminates the caller under guess_result. Comparison is exact
// string equality.
func GuessWord(r *models.Room, callerID, word string) ([]Event, error) {
	if r.State != models.StatePlaying {
		return nil, preconditionFailed("the game is not in the playing phase")
	}
	p := r.PlayerByID(callerID)
	if p == nil || p.Status != models.StatusAlive {
		return nil, invalidActor("unknown or eliminated players cannot guess")
	}

	switch {
	case p.Role == models.RoleEvil && word == r.GoodWord:
		return endByGuess(r, callerID, word, models.RoleEvil), nil

	case p.Role == models.RoleBlank && word == r.GoodWord:
		return endByGuess(r, callerID, word, models.RoleBlank), nil

	case p.Role == models.RoleGood:
		p.Status = models.StatusEliminated
		winner, ended := checkGameEnd(r.Players)
		if ended {
			r.State = models.StateEnded
		}
		r.Winner = winner
		return []Event{toRoom(EventPlayerEliminated, PlayerEliminatedPayload{
			PlayerID:  callerID,
			Reason:    "guess failed",
			GameEnded: ended,
			Winner:    winner,
		})}, nil

	default:
		p.Status = models.StatusEliminated
		winner, ended := checkGameEnd(r.Players)
		if ended {
			r.State = models.StateEnded
		}
		r.Winner = winner
		return []Event{toRoom(EventGuessResult, GuessResultPayload{
			PlayerID:  callerID,
			Correct:   false,
			Word:      word,
			GameEnded: ended,
			Winner:    winner,
		})}, nil
	}
}

func endByGuess(r *models.Room, callerID, word string, winner models.Role) []Event {
	r.State = models.StateEnded
	r.Winner = winner
	return []Event{toRoom(EventGuessResult, GuessResultPayload{
		PlayerID:  callerID,
		Correct:   true,
		Word:      word,
		GameEnded: true,
		Winner:    winner,
	})}
}

// Restart resets every player and returns the room to waiting. It is
// host-gated but not state-gated, so a host may abort a round in progress.
// Roster membership is preserved.
func Restart(r *models.Room, callerID string) ([]Event, error) {
	if r.Host != callerID {
		return nil, unauthorized("only the host can restart the game")
	}
	for _, p := range r.Players {
		p.Role = ""
		p.Word = ""
		p.Vote = ""
		p.Status = models.StatusAlive
	}
	r.State = models.StateWaiting
	r.Winner = ""
	return roomUpdates(EventGameRestarted, r), nil
}

// RemovePlayer drops a roster entry after its connection went away and
// notifies the remaining members. The reported bool is false when the id
// was not on the roster. Win conditions are intentionally not re-evaluated
// on disconnect.
func RemovePlayer(r *models.Room, playerID string) ([]Event, bool) {
	idx := -1
	for i, p := range r.Players {
		if p.ID == playerID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, false
	}
	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)
	return []Event{
		toHost(EventPlayerLeft, PlayerLeftPayload{PlayerID: playerID, Room: r.Snapshot()}),
		toOthers(EventPlayerLeft, PlayerLeftPayload{PlayerID: playerID, Room: r.Sanitized()}),
	}, true
}

// CloseRoom notifies the remaining members that the host is gone. The
// gateway deletes the room from the store right after the fan-out.
func CloseRoom(r *models.Room) []Event {
	return []Event{toOthers(EventRoomClosed, RoomClosedPayload{
		Message: "the host has left, the room is closed",
	})}
}

// checkGameEnd evaluates the win condition after an elimination. The clause
// order is load-bearing: a board with no alive evil and no alive blank is a
// good win even if good is also wiped out.
func checkGameEnd(players []*models.Player) (models.Role, bool) {
	var aliveGood, aliveEvil, aliveBlank int
	for _, p := range players {
		if p.Status != models.StatusAlive {
			continue
		}
		switch p.Role {
		case models.RoleGood:
			aliveGood++
		case models.RoleEvil:
			aliveEvil++
		case models.RoleBlank:
			aliveBlank++
		}
	}
	if aliveEvil == 0 && aliveBlank == 0 {
		return models.RoleGood, true
	}
	if aliveGood <= aliveEvil {
		return models.RoleEvil, true
	}
	return "", false
}

// internal/handlers/gateway_test.go
package handlers

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jqwei/undercover/internal/game"
	"github.com/jqwei/undercover/internal/models"
	"github.com/jqwei/undercover/internal/presence"
)

func newTestGateway() *Gateway {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	monitor := presence.NewMonitor(logger, 30*time.Second, time.Minute)
	return NewGateway(logger, monitor)
}

func register(gw *Gateway, id string) *Conn {
	c := &Conn{
		ID:      id,
		Cancel:  func() {},
		OutChan: make(chan Envelope, 32),
	}
	gw.Register(c)
	return c
}

// drain empties a connection's outbound channel.
func drain(c *Conn) []Envelope {
	var out []Envelope
	for {
		select {
		case msg := <-c.OutChan:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func findEnvelopes(msgs []Envelope, t game.EventType) []Envelope {
	var out []Envelope
	for _, msg := range msgs {
		if msg.Type == t {
			out = append(out, msg)
		}
	}
	return out
}

// createRoom dispatches create_room for the host connection and returns the
// new room id.
func createRoom(t *testing.T, gw *Gateway, host *Conn) string {
	t.Helper()
	gw.Dispatch(host.ID, Command{
		Type: "create_room",
		Settings: &models.RoomSettings{
			GoodCount: 2,
			EvilCount: 1,
			GoodWord:  "apple",
			EvilWord:  "pear",
		},
	})
	msgs := drain(host)
	created := findEnvelopes(msgs, game.EventRoomCreated)
	require.Len(t, created, 1)
	r := created[0].Payload.(*models.Room)
	require.Regexp(t, `^\d{6}$`, r.RoomID)
	return r.RoomID
}

func TestCreateAndJoinFlow(t *testing.T) {
	gw := newTestGateway()
	host := register(gw, "host-1")
	alice := register(gw, "alice-1")

	roomID := createRoom(t, gw, host)
	require.Equal(t, 1, gw.Rooms.Len())

	gw.Dispatch(alice.ID, Command{Type: "join_room", RoomID: roomID, PlayerName: "alice"})

	aliceMsgs := drain(alice)
	joined := findEnvelopes(aliceMsgs, game.EventJoinedRoom)
	require.Len(t, joined, 1)
	payload := joined[0].Payload.(game.JoinedRoomPayload)
	assert.Equal(t, roomID, payload.RoomID)
	assert.Equal(t, "alice-1", payload.PlayerID)

	// The host sees the full room, the joiner a sanitized one.
	hostUpdates := findEnvelopes(drain(host), game.EventRoomUpdated)
	require.Len(t, hostUpdates, 1)
	assert.Equal(t, "apple", hostUpdates[0].Payload.(*models.Room).GoodWord)

	aliceUpdates := findEnvelopes(aliceMsgs, game.EventRoomUpdated)
	require.Len(t, aliceUpdates, 1)
	assert.Empty(t, aliceUpdates[0].Payload.(*models.Room).GoodWord)
}

func TestCreateRoomRequiresSettings(t *testing.T) {
	gw := newTestGateway()
	host := register(gw, "host-1")

	gw.Dispatch(host.ID, Command{Type: "create_room"})
	errs := findEnvelopes(drain(host), game.EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, 0, gw.Rooms.Len())
}

func TestErrorsAreUnicastToCaller(t *testing.T) {
	gw := newTestGateway()
	host := register(gw, "host-1")
	alice := register(gw, "alice-1")

	roomID := createRoom(t, gw, host)
	gw.Dispatch(alice.ID, Command{Type: "join_room", RoomID: roomID, PlayerName: "alice"})
	drain(host)
	drain(alice)

	// A non-host trying to start voting is rejected; only they hear it.
	gw.Dispatch(alice.ID, Command{Type: "start_voting", RoomID: roomID})
	errs := findEnvelopes(drain(alice), game.EventError)
	require.Len(t, errs, 1)
	assert.Empty(t, drain(host))

	// Same for a room-store miss and an unknown command type.
	gw.Dispatch(alice.ID, Command{Type: "get_room", RoomID: "000000"})
	require.Len(t, findEnvelopes(drain(alice), game.EventError), 1)

	gw.Dispatch(alice.ID, Command{Type: "shout"})
	require.Len(t, findEnvelopes(drain(alice), game.EventError), 1)
	assert.Empty(t, drain(host))
}

func TestGetRoomSnapshots(t *testing.T) {
	gw := newTestGateway()
	host := register(gw, "host-1")
	alice := register(gw, "alice-1")

	roomID := createRoom(t, gw, host)
	gw.Dispatch(alice.ID, Command{Type: "join_room", RoomID: roomID, PlayerName: "alice"})
	drain(host)
	drain(alice)

	gw.Dispatch(host.ID, Command{Type: "get_room", RoomID: roomID})
	hostView := findEnvelopes(drain(host), game.EventRoomUpdated)
	require.Len(t, hostView, 1)
	assert.Equal(t, "apple", hostView[0].Payload.(*models.Room).GoodWord)

	gw.Dispatch(alice.ID, Command{Type: "get_room", RoomID: roomID})
	aliceView := findEnvelopes(drain(alice), game.EventRoomUpdated)
	require.Len(t, aliceView, 1)
	assert.Empty(t, aliceView[0].Payload.(*models.Room).GoodWord)
}

func TestHostDisconnectClosesRoom(t *testing.T) {
	gw := newTestGateway()
	host := register(gw, "host-1")
	alice := register(gw, "alice-1")
	bob := register(gw, "bob-1")

	roomID := createRoom(t, gw, host)
	gw.Dispatch(alice.ID, Command{Type: "join_room", RoomID: roomID, PlayerName: "alice"})
	gw.Dispatch(bob.ID, Command{Type: "join_room", RoomID: roomID, PlayerName: "bob"})
	drain(host)
	drain(alice)
	drain(bob)

	gw.Disconnect(host)

	require.Equal(t, 0, gw.Rooms.Len())
	for _, c := range []*Conn{alice, bob} {
		closed := findEnvelopes(drain(c), game.EventRoomClosed)
		require.Len(t, closed, 1)
		assert.NotEmpty(t, closed[0].Payload.(game.RoomClosedPayload).Message)
	}

	gw.Dispatch(alice.ID, Command{Type: "get_room", RoomID: roomID})
	require.Len(t, findEnvelopes(drain(alice), game.EventError), 1)
}

func TestPlayerDisconnectLeavesRoom(t *testing.T) {
	gw := newTestGateway()
	host := register(gw, "host-1")
	alice := register(gw, "alice-1")
	bob := register(gw, "bob-1")

	roomID := createRoom(t, gw, host)
	gw.Dispatch(alice.ID, Command{Type: "join_room", RoomID: roomID, PlayerName: "alice"})
	gw.Dispatch(bob.ID, Command{Type: "join_room", RoomID: roomID, PlayerName: "bob"})
	drain(host)
	drain(alice)
	drain(bob)

	// Presence expiry drives the same transition a closed socket would.
	gw.DisconnectByID(alice.ID)

	r, ok := gw.Rooms.Get(roomID)
	require.True(t, ok)
	assert.Nil(t, r.PlayerByID("alice-1"))
	assert.NotNil(t, r.PlayerByID("bob-1"))

	hostLeft := findEnvelopes(drain(host), game.EventPlayerLeft)
	require.Len(t, hostLeft, 1)
	hostPayload := hostLeft[0].Payload.(game.PlayerLeftPayload)
	assert.Equal(t, "alice-1", hostPayload.PlayerID)
	assert.Equal(t, "apple", hostPayload.Room.GoodWord)

	bobLeft := findEnvelopes(drain(bob), game.EventPlayerLeft)
	require.Len(t, bobLeft, 1)
	assert.Empty(t, bobLeft[0].Payload.(game.PlayerLeftPayload).Room.GoodWord)
}

func TestReconnectSupersedesOldConnection(t *testing.T) {
	gw := newTestGateway()
	host := register(gw, "host-1")
	roomID := createRoom(t, gw, host)

	cancelled := false
	host.Cancel = func() { cancelled = true }
	fresh := register(gw, "host-1")
	assert.True(t, cancelled)

	// The stale socket's read loop exiting must not tear the room down.
	gw.Disconnect(host)
	_, ok := gw.Rooms.Get(roomID)
	assert.True(t, ok)

	gw.Dispatch(fresh.ID, Command{Type: "get_room", RoomID: roomID})
	require.Len(t, findEnvelopes(drain(fresh), game.EventRoomUpdated), 1)
}

func TestFullGameOverDispatch(t *testing.T) {
	gw := newTestGateway()
	host := register(gw, "host-1")
	players := []*Conn{register(gw, "p0"), register(gw, "p1"), register(gw, "p2")}

	roomID := createRoom(t, gw, host)
	for _, c := range players {
		gw.Dispatch(c.ID, Command{Type: "join_room", RoomID: roomID, PlayerName: "player " + c.ID})
	}
	drain(host)

	gw.Dispatch(host.ID, Command{Type: "start_game", RoomID: roomID, PlayerRoles: map[string]models.Role{
		"p0": models.RoleGood,
		"p1": models.RoleGood,
		"p2": models.RoleEvil,
	}})

	// Role reveals are private: each player sees only their own.
	for _, c := range players {
		msgs := drain(c)
		started := findEnvelopes(msgs, game.EventGameStarted)
		require.Len(t, started, 1, "connection %s", c.ID)
	}

	gw.Dispatch(host.ID, Command{Type: "start_voting", RoomID: roomID})
	gw.Dispatch("p0", Command{Type: "vote", RoomID: roomID, TargetID: "p2"})
	gw.Dispatch("p1", Command{Type: "vote", RoomID: roomID, TargetID: "p2"})
	gw.Dispatch("p2", Command{Type: "vote", RoomID: roomID, TargetID: "p0"})

	// all_voted goes to the host alone.
	hostMsgs := drain(host)
	require.Len(t, findEnvelopes(hostMsgs, game.EventAllVoted), 1)
	for _, c := range players {
		assert.Empty(t, findEnvelopes(drain(c), game.EventAllVoted))
	}

	gw.Dispatch(host.ID, Command{Type: "end_voting", RoomID: roomID})

	results := findEnvelopes(drain(players[0]), game.EventVotingResult)
	require.Len(t, results, 1)
	payload := results[0].Payload.(game.VotingResultPayload)
	assert.Equal(t, "p2", payload.Eliminated)
	assert.True(t, payload.GameEnded)
	assert.Equal(t, models.RoleGood, payload.Winner)

	r, ok := gw.Rooms.Get(roomID)
	require.True(t, ok)
	assert.Equal(t, models.StateEnded, r.State)

	// The finished room stays addressable until restarted or abandoned.
	gw.Dispatch(host.ID, Command{Type: "restart_game", RoomID: roomID})
	r, _ = gw.Rooms.Get(roomID)
	assert.Equal(t, models.StateWaiting, r.State)
}

func TestUnregisteredConnectionIsDropped(t *testing.T) {
	gw := newTestGateway()
	// Dispatch from an id that never registered must not panic or mutate.
	gw.Dispatch("ghost", Command{Type: "create_room", Settings: &models.RoomSettings{
		GoodCount: 1, EvilCount: 1, GoodWord: "a", EvilWord: "b",
	}})
	assert.Equal(t, 0, gw.Rooms.Len())
}

// internal/room/store_test.go
package room

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jqwei/undercover/internal/models"
)

func TestStoreCRUD(t *testing.T) {
	s := NewStore()
	assert.Equal(t, 0, s.Len())

	_, ok := s.Get("123456")
	assert.False(t, ok)

	r := &models.Room{RoomID: "123456", Host: "h1", State: models.StateWaiting}
	s.Put("123456", r)
	assert.Equal(t, 1, s.Len())

	got, ok := s.Get("123456")
	require.True(t, ok)
	assert.Same(t, r, got)

	s.Delete("123456")
	assert.Equal(t, 0, s.Len())
	_, ok = s.Get("123456")
	assert.False(t, ok)
}

func TestStoreForEach(t *testing.T) {
	s := NewStore()
	s.Put("111111", &models.Room{RoomID: "111111", Host: "a"})
	s.Put("222222", &models.Room{RoomID: "222222", Host: "b"})
	s.Put("333333", &models.Room{RoomID: "333333", Host: "a"})

	var hostedByA []string
	s.ForEach(func(id string, r *models.Room) bool {
		if r.Host == "a" {
			hostedByA = append(hostedByA, id)
		}
		return true
	})
	assert.ElementsMatch(t, []string{"111111", "333333"}, hostedByA)

	// Returning false stops the walk.
	visits := 0
	s.ForEach(func(id string, r *models.Room) bool {
		visits++
		return false
	})
	assert.Equal(t, 1, visits)
}

func TestNewRoomIDFormat(t *testing.T) {
	s := NewStore()
	sixDigits := regexp.MustCompile(`^[1-9]\d{5}$`)
	for i := 0; i < 100; i++ {
		id := s.NewRoomID()
		assert.Regexp(t, sixDigits, id)
	}
}

func TestNewRoomIDAvoidsLiveRooms(t *testing.T) {
	s := NewStore()
	// Draw an id, claim it, draw again: the second draw must differ.
	first := s.NewRoomID()
	s.Put(first, &models.Room{RoomID: first})
	for i := 0; i < 50; i++ {
		assert.NotEqual(t, first, s.NewRoomID())
	}
}

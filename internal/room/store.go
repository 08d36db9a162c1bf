// internal/room/store.go
package room

import (
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/jqwei/undercover/internal/models"
)

// Store is the process-wide in-memory mapping from room id to room
// aggregate. It is the single source of truth; nothing is persisted.
type Store struct {
	mu    sync.Mutex
	rooms map[string]*models.Room
}

// NewStore returns an empty in-memory room store.
func NewStore() *Store {
	return &Store{
		rooms: make(map[string]*models.Room),
	}
}

// Get retrieves a room if it exists.
func (s *Store) Get(id string) (*models.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	return r, ok
}

// Put stores the room under its id.
func (s *Store) Put(id string, r *models.Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[id] = r
}

// Delete removes the room from memory.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, id)
}

// ForEach visits every live room, typically for the disconnect-time sweep.
// Returning false from fn stops the walk. fn must not call back into the
// store.
func (s *Store) ForEach(fn func(id string, r *models.Room) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, r := range s.rooms {
		if !fn(id, r) {
			return
		}
	}
}

// Len returns the number of live rooms.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// NewRoomID generates a 6-digit decimal room id that is unique among the
// currently live rooms, regenerating on collision. Callers are expected to
// Put the room before the next id is drawn; the gateway's dispatch lock
// guarantees that ordering.
func (s *Store) NewRoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	for {
		id := strconv.Itoa(100000 + rnd.Intn(900000))
		if _, taken := s.rooms[id]; !taken {
			return id
		}
	}
}

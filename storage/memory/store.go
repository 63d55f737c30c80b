package memory

import (
	"math/rand"
	"sync"

	"github.com/brewroom/backend/room"
)

const (
	codeLength  = 6
	codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// MemStore is the in-memory room directory. Codes are unique for the
// lifetime of their room.
type MemStore struct {
	mx    sync.Mutex
	rooms map[string]*room.Room
}

func NewMemStore() *MemStore {
	return &MemStore{
		rooms: make(map[string]*room.Room),
	}
}

// CreateWithFreshCode allocates a room under a newly drawn 6-character
// uppercase-alphanumeric code, redrawing on collision with any active
// code.
func (ms *MemStore) CreateWithFreshCode() *room.Room {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	code := randomCode()
	for _, taken := ms.rooms[code]; taken; _, taken = ms.rooms[code] {
		code = randomCode()
	}
	rm := room.New(code)
	ms.rooms[code] = rm
	return rm
}

// GetOrCreate returns the room for code, creating an empty one if
// absent. Joining a nonexistent code auto-creates rather than failing.
func (ms *MemStore) GetOrCreate(code string) *room.Room {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	rm, ok := ms.rooms[code]
	if !ok {
		rm = room.New(code)
		ms.rooms[code] = rm
	}
	return rm
}

func (ms *MemStore) Get(code string) (*room.Room, bool) {
	ms.mx.Lock()
	defer ms.mx.Unlock()
	rm, ok := ms.rooms[code]
	return rm, ok
}

// DestroyIfEmpty stops the room's physics loop and removes it from the
// directory when empty reports true. Check, stop and delete all happen
// under the directory lock, so a concurrent GetOrCreate either resolves
// the room before the check counts it or resolves a fresh room after
// the delete. A scheduler is never left running for a removed code.
func (ms *MemStore) DestroyIfEmpty(code string, empty func() bool) bool {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	rm, ok := ms.rooms[code]
	if !ok || !empty() {
		return false
	}
	rm.StopPhysics()
	delete(ms.rooms, code)
	return true
}

// Delete removes the room for code if present.
func (ms *MemStore) Delete(code string) {
	ms.mx.Lock()
	defer ms.mx.Unlock()
	delete(ms.rooms, code)
}

func (ms *MemStore) Len() int {
	ms.mx.Lock()
	defer ms.mx.Unlock()
	return len(ms.rooms)
}

// Snapshot returns a copy of the directory for read-only reporting.
func (ms *MemStore) Snapshot() map[string]*room.Room {
	ms.mx.Lock()
	defer ms.mx.Unlock()

	out := make(map[string]*room.Room, len(ms.rooms))
	for code, rm := range ms.rooms {
		out[code] = rm
	}
	return out
}

func randomCode() string {
	b := make([]byte, codeLength)
	for i := range b {
		b[i] = codeCharset[rand.Intn(len(codeCharset))]
	}
	return string(b)
}

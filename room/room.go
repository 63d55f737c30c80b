package room

import (
	"sort"
	"sync"
	"time"

	"github.com/brewroom/backend/model"
)

// Inputs holds the four held movement keys of one avatar.
type Inputs struct {
	Up    bool
	Down  bool
	Left  bool
	Right bool
}

// Avatar is the authoritative per-participant state. Owned by its Room;
// all access goes through Room methods under the room mutex.
type Avatar struct {
	Username    string
	X           float64
	Y           float64
	Keys        Inputs
	IsMoving    bool
	FacingRight bool
	IsChatting  bool
	LastUpdate  time.Time
}

// Room is one isolated session: participant avatars, the current leader
// and the physics loop handle. One mutex guards all of it so ticks,
// joins, leaves and input toggles never interleave partially.
type Room struct {
	code string

	mx      sync.Mutex
	avatars map[string]*Avatar
	leader  string

	physicsOn bool
	stop      chan struct{}
}

func New(code string) *Room {
	return &Room{
		code:    code,
		avatars: make(map[string]*Avatar),
	}
}

func (r *Room) Code() string {
	return r.code
}

// AddParticipant spawns an avatar for the session unless one already
// exists.
func (r *Room) AddParticipant(sessionID, username string) {
	r.mx.Lock()
	defer r.mx.Unlock()

	if _, ok := r.avatars[sessionID]; ok {
		return
	}
	r.avatars[sessionID] = &Avatar{
		Username:    username,
		X:           SpawnX,
		Y:           SpawnY,
		FacingRight: true,
		LastUpdate:  time.Now(),
	}
}

func (r *Room) RemoveParticipant(sessionID string) {
	r.mx.Lock()
	defer r.mx.Unlock()
	delete(r.avatars, sessionID)
}

// SetKey toggles one held-input flag for the session. Key names are
// case-insensitive; anything outside w/a/s/d is ignored.
func (r *Room) SetKey(sessionID, key string, down bool) {
	r.mx.Lock()
	defer r.mx.Unlock()

	a, ok := r.avatars[sessionID]
	if !ok {
		return
	}
	switch key {
	case "w", "W":
		a.Keys.Up = down
	case "s", "S":
		a.Keys.Down = down
	case "a", "A":
		a.Keys.Left = down
	case "d", "D":
		a.Keys.Right = down
	}
}

// SetChatting flips the private-session flag; a session not present in
// the room is a no-op.
func (r *Room) SetChatting(sessionID string, chatting bool) {
	r.mx.Lock()
	defer r.mx.Unlock()
	if a, ok := r.avatars[sessionID]; ok {
		a.IsChatting = chatting
	}
}

// SetLeader assigns the leader directly; used when the room creator
// joins.
func (r *Room) SetLeader(sessionID string) {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.leader = sessionID
}

// ReconcileLeader snapshots the currently bound members via membersFn
// and revalidates the leader against that snapshot, both inside the
// room's critical section so a leave cannot slip between the snapshot
// and the reconciliation. If the stored leader is gone, the
// lexicographically smallest session id takes over; an empty member
// set clears the leader. The marked entries are returned.
func (r *Room) ReconcileLeader(membersFn func() []model.PlayerEntry) ([]model.PlayerEntry, string) {
	r.mx.Lock()
	defer r.mx.Unlock()

	members := membersFn()
	alive := make(map[string]struct{}, len(members))
	ids := make([]string, 0, len(members))
	for _, m := range members {
		alive[m.ID] = struct{}{}
		ids = append(ids, m.ID)
	}

	if _, ok := alive[r.leader]; !ok {
		if len(ids) == 0 {
			r.leader = ""
		} else {
			sort.Strings(ids)
			r.leader = ids[0]
		}
	}

	for i := range members {
		members[i].IsLeader = members[i].ID == r.leader
	}
	return members, r.leader
}

// StatusPlayers reports participant positions for the introspection
// endpoint.
func (r *Room) StatusPlayers() map[string]model.ParticipantStatus {
	r.mx.Lock()
	defer r.mx.Unlock()

	players := make(map[string]model.ParticipantStatus, len(r.avatars))
	for id, a := range r.avatars {
		players[id] = model.ParticipantStatus{X: a.X, Y: a.Y, Username: a.Username}
	}
	return players
}

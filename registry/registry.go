package registry

import (
	"sort"
	"sync"

	"github.com/brewroom/backend/model"
	"github.com/rs/zerolog"
)

// Binding ties a wire to the identity established by create_room/join.
// A freshly registered wire carries no identity; all three fields are
// set together by Bind and never partially.
type Binding struct {
	Wire      *model.Wire
	SessionID string
	Username  string
	RoomCode  string
}

// Bound reports whether the connection completed create_room/join.
func (b Binding) Bound() bool {
	return b.SessionID != ""
}

// Registry is the source of truth for which connection is who, and in
// which room.
type Registry struct {
	logger zerolog.Logger
	mx     sync.RWMutex
	conns  map[*model.Wire]Binding
}

func New(logger *zerolog.Logger) *Registry {
	return &Registry{
		logger: logger.With().Str("component", "registry").Logger(),
		conns:  make(map[*model.Wire]Binding),
	}
}

// Register creates an unbound slot for a new connection.
func (r *Registry) Register(w *model.Wire) {
	r.mx.Lock()
	r.conns[w] = Binding{Wire: w}
	total := len(r.conns)
	r.mx.Unlock()

	r.logger.Debug().Int("total", total).Msg("connection registered")
}

// Bind replaces the slot's identity in one step; concurrent lookups see
// either the previous binding or the new one.
func (r *Registry) Bind(w *model.Wire, sessionID, username, roomCode string) {
	r.mx.Lock()
	r.conns[w] = Binding{Wire: w, SessionID: sessionID, Username: username, RoomCode: roomCode}
	r.mx.Unlock()

	r.logger.Debug().
		Str("sessionID", sessionID).
		Str("roomCode", roomCode).
		Msg("connection bound")
}

// BindNewSession draws session ids until one is unused among sessions
// currently bound to roomCode, then writes the binding, all under one
// write lock: two concurrent joins to the same room can never bind the
// same id.
func (r *Registry) BindNewSession(w *model.Wire, username, roomCode string, draw func() string) string {
	r.mx.Lock()
	taken := make(map[string]struct{})
	for _, b := range r.conns {
		if b.RoomCode == roomCode {
			taken[b.SessionID] = struct{}{}
		}
	}
	sessionID := draw()
	for _, ok := taken[sessionID]; ok; _, ok = taken[sessionID] {
		sessionID = draw()
	}
	r.conns[w] = Binding{Wire: w, SessionID: sessionID, Username: username, RoomCode: roomCode}
	r.mx.Unlock()

	r.logger.Debug().
		Str("sessionID", sessionID).
		Str("roomCode", roomCode).
		Msg("connection bound")
	return sessionID
}

// Unbind drops the slot and returns the room and session it carried so
// the caller can run room cleanup. Both are empty for an unknown or
// never-bound wire.
func (r *Registry) Unbind(w *model.Wire) (string, string) {
	r.mx.Lock()
	b, ok := r.conns[w]
	delete(r.conns, w)
	total := len(r.conns)
	r.mx.Unlock()

	if !ok {
		return "", ""
	}
	r.logger.Debug().
		Str("sessionID", b.SessionID).
		Str("roomCode", b.RoomCode).
		Int("total", total).
		Msg("connection unbound")
	return b.RoomCode, b.SessionID
}

// Lookup returns the current binding of w.
func (r *Registry) Lookup(w *model.Wire) (Binding, bool) {
	r.mx.RLock()
	defer r.mx.RUnlock()
	b, ok := r.conns[w]
	return b, ok
}

// FindBy returns all bound slots matching the predicate.
func (r *Registry) FindBy(match func(Binding) bool) []Binding {
	r.mx.RLock()
	defer r.mx.RUnlock()

	var out []Binding
	for _, b := range r.conns {
		if b.Bound() && match(b) {
			out = append(out, b)
		}
	}
	return out
}

// Members returns the bindings of every connection bound to roomCode,
// sorted by session id.
func (r *Registry) Members(roomCode string) []Binding {
	members := r.FindBy(func(b Binding) bool { return b.RoomCode == roomCode })
	sort.Slice(members, func(i, j int) bool { return members[i].SessionID < members[j].SessionID })
	return members
}

// Wires returns the wires of every connection bound to roomCode.
func (r *Registry) Wires(roomCode string) []*model.Wire {
	members := r.Members(roomCode)
	wires := make([]*model.Wire, 0, len(members))
	for _, b := range members {
		wires = append(wires, b.Wire)
	}
	return wires
}

// FindSession returns the wire currently bound to sessionID, if any.
func (r *Registry) FindSession(sessionID string) (*model.Wire, bool) {
	if sessionID == "" {
		return nil, false
	}
	r.mx.RLock()
	defer r.mx.RUnlock()
	for _, b := range r.conns {
		if b.SessionID == sessionID {
			return b.Wire, true
		}
	}
	return nil, false
}

// Len reports the number of live connections, bound or not.
func (r *Registry) Len() int {
	r.mx.RLock()
	defer r.mx.RUnlock()
	return len(r.conns)
}

package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/brewroom/backend/model"
	"github.com/brewroom/backend/registry"
	"github.com/brewroom/backend/room"
	"github.com/rs/zerolog"
)

type (
	// RoomStore is the room directory.
	RoomStore interface {
		CreateWithFreshCode() *room.Room
		GetOrCreate(code string) *room.Room
		Get(code string) (*room.Room, bool)
		DestroyIfEmpty(code string, empty func() bool) bool
		Len() int
		Snapshot() map[string]*room.Room
	}

	// IdentityRegistry maps wires to session identities.
	IdentityRegistry interface {
		Register(w *model.Wire)
		BindNewSession(w *model.Wire, username, roomCode string, draw func() string) string
		Unbind(w *model.Wire) (roomCode, sessionID string)
		Lookup(w *model.Wire) (registry.Binding, bool)
		Members(roomCode string) []registry.Binding
		Len() int
	}

	// Router delivers outbound messages.
	Router interface {
		Broadcast(ctx context.Context, roomCode string, msg any)
		Unicast(ctx context.Context, sessionID string, msg any)
		Send(ctx context.Context, w *model.Wire, msg any) bool
	}

	// Service owns the per-connection dispatch loops and the room
	// lifecycle driven by them.
	Service struct {
		store    RoomStore
		registry IdentityRegistry
		router   Router
		logger   zerolog.Logger
	}

	Config struct {
		RoomStore RoomStore
		Registry  IdentityRegistry
		Router    Router
		Logger    *zerolog.Logger
	}
)

func NewService(cfg Config) *Service {
	return &Service{
		store:    cfg.RoomStore,
		registry: cfg.Registry,
		router:   cfg.Router,
		logger:   cfg.Logger.With().Str("component", "service").Logger(),
	}
}

// CreateSession registers a fresh connection and starts its dispatch
// loop. Identity stays unbound until a create_room or join envelope
// arrives.
func (svc *Service) CreateSession(ctx context.Context, w *model.Wire) {
	svc.registry.Register(w)
	go svc.dispatchLoop(ctx, w)
}

func (svc *Service) dispatchLoop(ctx context.Context, w *model.Wire) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-w.RX:
			svc.dispatch(ctx, w, env)
		}
	}
}

// DeleteSession is the single cleanup path for a departed connection:
// unbind the identity, remove the participant, rebroadcast the player
// list, then tear the room down if nobody is left. Idempotent.
func (svc *Service) DeleteSession(ctx context.Context, w *model.Wire) {
	roomCode, sessionID := svc.registry.Unbind(w)
	if roomCode == "" {
		return
	}

	if rm, ok := svc.store.Get(roomCode); ok {
		rm.RemoveParticipant(sessionID)
	}
	svc.broadcastPlayerList(ctx, roomCode)
	svc.destroyIfEmpty(roomCode)
}

// destroyIfEmpty stops the room's physics loop and drops it from the
// directory once no connection is bound to its code. The emptiness
// check and the teardown run as one directory operation; joins bind
// before resolving their room, so a join is either counted by the
// check or resolves the directory state the teardown left behind.
func (svc *Service) destroyIfEmpty(code string) {
	destroyed := svc.store.DestroyIfEmpty(code, func() bool {
		return len(svc.registry.Members(code)) == 0
	})
	if destroyed {
		svc.logger.Debug().Str("roomCode", code).Msg("empty room destroyed")
	}
}

// dispatch routes one envelope by its type tag. Unrecognized or
// malformed envelopes are dropped without surfacing anything to the
// sender.
func (svc *Service) dispatch(ctx context.Context, w *model.Wire, env model.Envelope) {
	switch env.Type {
	case model.TypeCreateRoom:
		svc.handleCreateRoom(ctx, w, env)
	case model.TypeJoin:
		svc.handleJoin(ctx, w, env)
	case model.TypeVideoUpdate:
		svc.handleVideo(ctx, w, env)
	case model.TypeAudioUpdate:
		svc.handleAudio(ctx, w, env)
	case model.TypeCoffeeInvite:
		svc.handleCoffeeInvite(ctx, w, env)
	case model.TypeCoffeeAccept:
		svc.handleCoffeeAccept(ctx, w, env)
	case model.TypeCoffeeLeave:
		svc.handleCoffeeLeave(ctx, w, env)
	case model.TypeKeyDown:
		svc.handleKey(w, env, true)
	case model.TypeKeyUp:
		svc.handleKey(w, env, false)
	default:
		svc.logger.Debug().Str("type", env.Type).Msg("dropping unrecognized envelope")
	}
}

func (svc *Service) handleCreateRoom(ctx context.Context, w *model.Wire, env model.Envelope) {
	rm := svc.store.CreateWithFreshCode()
	code := rm.Code()
	sessionID := svc.registry.BindNewSession(w, env.Username, code, guestID)
	rm.SetLeader(sessionID)

	svc.logger.Debug().
		Str("roomCode", code).
		Str("sessionID", sessionID).
		Str("username", env.Username).
		Msg("room created")

	svc.router.Send(ctx, w, model.RoomCreated{Type: model.TypeRoomCreated, RoomCode: code})

	rm.AddParticipant(sessionID, env.Username)
	rm.StartPhysics(svc.router)

	svc.router.Send(ctx, w, model.Welcome{
		Type:     model.TypeWelcome,
		ID:       sessionID,
		Username: env.Username,
		RoomCode: code,
	})
	svc.broadcastPlayerList(ctx, code)
	svc.sweepDeparted(ctx, w, code)
}

func (svc *Service) handleJoin(ctx context.Context, w *model.Wire, env model.Envelope) {
	code := strings.ToUpper(env.RoomCode)
	if code == "" {
		return
	}

	// Bind before resolving the room: once the session is visible to
	// the registry, a concurrent last-member teardown cannot remove the
	// room this handler is about to animate.
	sessionID := svc.registry.BindNewSession(w, env.Username, code, guestID)
	rm := svc.store.GetOrCreate(code)

	svc.logger.Debug().
		Str("roomCode", code).
		Str("sessionID", sessionID).
		Str("username", env.Username).
		Msg("player joined room")

	rm.StartPhysics(svc.router)

	svc.router.Send(ctx, w, model.Welcome{
		Type:     model.TypeWelcome,
		ID:       sessionID,
		Username: env.Username,
		RoomCode: code,
	})

	rm.AddParticipant(sessionID, env.Username)
	svc.broadcastPlayerList(ctx, code)
	svc.sweepDeparted(ctx, w, code)
}

// sweepDeparted re-checks that the connection survived its binding
// handler. The connection's teardown cancels the wire context before
// running DeleteSession, so a teardown that raced the bind is visible
// here: either through the canceled context or through the identity
// being gone already. Both re-run the cleanup so a bind or a room
// resolved mid-teardown cannot outlive its connection.
func (svc *Service) sweepDeparted(ctx context.Context, w *model.Wire, code string) {
	if b, ok := svc.registry.Lookup(w); ok && b.Bound() && ctx.Err() == nil {
		return
	}
	svc.DeleteSession(ctx, w)
	svc.destroyIfEmpty(code)
}

func (svc *Service) handleVideo(ctx context.Context, w *model.Wire, env model.Envelope) {
	b, ok := svc.registry.Lookup(w)
	if !ok || !b.Bound() {
		return
	}
	svc.router.Broadcast(ctx, b.RoomCode, model.VideoUpdate{
		Type:     model.TypeVideoUpdate,
		ID:       b.SessionID,
		Username: b.Username,
		Frame:    env.Frame,
	})
}

func (svc *Service) handleAudio(ctx context.Context, w *model.Wire, env model.Envelope) {
	b, ok := svc.registry.Lookup(w)
	if !ok || !b.Bound() {
		return
	}
	msg := model.AudioUpdate{
		Type:  model.TypeAudioUpdate,
		ID:    b.SessionID,
		Chunk: env.Chunk,
	}
	if env.ToID != "" {
		svc.router.Unicast(ctx, env.ToID, msg)
		return
	}
	svc.router.Broadcast(ctx, b.RoomCode, msg)
}

func (svc *Service) handleKey(w *model.Wire, env model.Envelope, down bool) {
	b, ok := svc.registry.Lookup(w)
	if !ok || !b.Bound() {
		return
	}
	rm, ok := svc.store.Get(b.RoomCode)
	if !ok {
		return
	}
	rm.SetKey(b.SessionID, env.Key, down)
}

// broadcastPlayerList revalidates the leader and pushes the member list
// to everyone in the room.
func (svc *Service) broadcastPlayerList(ctx context.Context, code string) {
	membersFn := func() []model.PlayerEntry {
		members := svc.registry.Members(code)
		entries := make([]model.PlayerEntry, 0, len(members))
		for _, b := range members {
			entries = append(entries, model.PlayerEntry{ID: b.SessionID, Username: b.Username})
		}
		return entries
	}

	var (
		entries []model.PlayerEntry
		leader  string
	)
	if rm, ok := svc.store.Get(code); ok {
		entries, leader = rm.ReconcileLeader(membersFn)
	} else {
		entries = membersFn()
	}

	svc.router.Broadcast(ctx, code, model.PlayerUpdate{
		Type:    model.TypePlayerUpdate,
		Players: entries,
		Leader:  leader,
	})
}

// guestID draws one GuestNNN candidate. Room-scoped uniqueness is the
// registry's job: it redraws under its write lock until the id is free.
func guestID() string {
	return fmt.Sprintf("Guest%d", 100+rand.Intn(900))
}

// Status reports directory and registry counters plus per-room
// participant positions for the introspection endpoint.
func (svc *Service) Status() model.Status {
	games := make(map[string]model.RoomStatus)
	for code, rm := range svc.store.Snapshot() {
		games[code] = model.RoomStatus{Players: rm.StatusPlayers()}
	}
	return model.Status{
		Message:          "Coffee Chat Simulator Backend Running",
		ActiveRooms:      svc.store.Len(),
		TotalConnections: svc.registry.Len(),
		Games:            games,
	}
}

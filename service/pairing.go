package service

import (
	"context"

	"github.com/brewroom/backend/model"
)

// Coffee pairing is deliberately permissive: invites are fire-and-forget
// notifications, and accept/leave flip the chat flags for whatever pair
// of session ids the caller names, with no record that an invite ever
// happened.

func (svc *Service) handleCoffeeInvite(ctx context.Context, w *model.Wire, env model.Envelope) {
	b, ok := svc.registry.Lookup(w)
	if !ok || !b.Bound() {
		return
	}
	svc.router.Unicast(ctx, env.TargetID, model.CoffeeInvite{
		Type:       model.TypeCoffeeInvite,
		SenderID:   b.SessionID,
		SenderName: b.Username,
	})
}

func (svc *Service) handleCoffeeAccept(ctx context.Context, w *model.Wire, env model.Envelope) {
	b, ok := svc.registry.Lookup(w)
	if !ok || !b.Bound() {
		return
	}
	svc.setChatting(b.RoomCode, b.SessionID, env.TargetID, true)

	svc.router.Unicast(ctx, env.TargetID, model.CoffeeStart{
		Type:      model.TypeCoffeeStart,
		PartnerID: b.SessionID,
	})
	svc.router.Unicast(ctx, b.SessionID, model.CoffeeStart{
		Type:      model.TypeCoffeeStart,
		PartnerID: env.TargetID,
	})
}

func (svc *Service) handleCoffeeLeave(ctx context.Context, w *model.Wire, env model.Envelope) {
	b, ok := svc.registry.Lookup(w)
	if !ok || !b.Bound() {
		return
	}
	svc.setChatting(b.RoomCode, b.SessionID, env.TargetID, false)

	if env.TargetID != "" {
		svc.router.Unicast(ctx, env.TargetID, model.CoffeeEnded{
			Type:      model.TypeCoffeeEnded,
			PartnerID: b.SessionID,
		})
	}
}

// setChatting updates both participants' chat flags; sessions absent
// from the room are skipped.
func (svc *Service) setChatting(roomCode, sessionID, partnerID string, chatting bool) {
	rm, ok := svc.store.Get(roomCode)
	if !ok {
		return
	}
	rm.SetChatting(sessionID, chatting)
	rm.SetChatting(partnerID, chatting)
}

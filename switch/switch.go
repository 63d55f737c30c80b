package _switch

import (
	"context"
	"sync"
	"time"

	"github.com/brewroom/backend/model"
	"github.com/rs/zerolog"
)

const (
	defaultSendTimeout = time.Second
)

// Directory resolves which wires a message should reach.
type Directory interface {
	Wires(roomCode string) []*model.Wire
	FindSession(sessionID string) (*model.Wire, bool)
}

// Switch fans messages out to room members and unicasts to single
// sessions. Delivery attempts are independent per recipient: a dead or
// slow connection neither blocks siblings nor surfaces an error.
type Switch struct {
	logger      zerolog.Logger
	dir         Directory
	sendTimeout time.Duration
}

type Config struct {
	Logger      *zerolog.Logger
	Directory   Directory
	SendTimeout time.Duration
}

func NewSwitch(cfg Config) *Switch {
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &Switch{
		logger:      cfg.Logger.With().Str("component", "switch").Logger(),
		dir:         cfg.Directory,
		sendTimeout: timeout,
	}
}

// Broadcast delivers msg to every connection bound to roomCode. Sends
// run concurrently and are joined without short-circuiting on failure.
func (sw *Switch) Broadcast(ctx context.Context, roomCode string, msg any) {
	wires := sw.dir.Wires(roomCode)
	if len(wires) == 0 {
		sw.logger.Debug().
			Str("roomCode", roomCode).
			Msg("broadcast did not reach anyone")
		return
	}

	wg := &sync.WaitGroup{}
	wg.Add(len(wires))
	for _, w := range wires {
		go func(w *model.Wire) {
			defer wg.Done()
			sw.Send(ctx, w, msg)
		}(w)
	}
	wg.Wait()
}

// Unicast delivers msg to the connection bound to sessionID. A missing
// target is a silent no-op; stale target ids are expected.
func (sw *Switch) Unicast(ctx context.Context, sessionID string, msg any) {
	w, ok := sw.dir.FindSession(sessionID)
	if !ok {
		sw.logger.Debug().
			Str("sessionID", sessionID).
			Msg("cannot unicast, session not found")
		return
	}
	sw.Send(ctx, w, msg)
}

// Send attempts delivery to a single wire within the send timeout.
func (sw *Switch) Send(ctx context.Context, w *model.Wire, msg any) bool {
	tCh := time.NewTimer(sw.sendTimeout)
	defer tCh.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-tCh.C:
		sw.logger.Error().Msg("dead endpoint")
		return false
	case w.TX <- msg:
		return true
	}
}

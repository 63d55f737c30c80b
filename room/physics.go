package room

import (
	"context"
	"time"

	"github.com/brewroom/backend/model"
)

const (
	// TickInterval is how often a room advances its simulation (20 Hz).
	TickInterval = 50 * time.Millisecond
	// TickDT is the fixed timestep in seconds; displacement math always
	// uses this, not measured elapsed time.
	TickDT = 0.05
	// Speed is avatar movement in units per second per held axis.
	Speed = 400.0

	SpawnX = 400.0
	SpawnY = 300.0
)

// Broadcaster fans a message out to every connection in a room.
type Broadcaster interface {
	Broadcast(ctx context.Context, roomCode string, msg any)
}

// StartPhysics launches the room's tick loop. Starting an already
// running loop is a no-op.
func (r *Room) StartPhysics(bc Broadcaster) {
	r.mx.Lock()
	if r.physicsOn {
		r.mx.Unlock()
		return
	}
	r.physicsOn = true
	r.stop = make(chan struct{})
	stop := r.stop
	r.mx.Unlock()

	go r.runPhysics(stop, bc)
}

// StopPhysics halts the tick loop. Safe to call repeatedly and before
// the loop ever started; an in-flight tick finishes its full update
// before the loop exits.
func (r *Room) StopPhysics() {
	r.mx.Lock()
	if !r.physicsOn {
		r.mx.Unlock()
		return
	}
	r.physicsOn = false
	stop := r.stop
	r.mx.Unlock()

	close(stop)
}

// PhysicsRunning reports whether the tick loop is live.
func (r *Room) PhysicsRunning() bool {
	r.mx.Lock()
	defer r.mx.Unlock()
	return r.physicsOn
}

func (r *Room) runPhysics(stop <-chan struct{}, bc Broadcaster) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if snap := r.Step(TickDT); snap != nil {
				bc.Broadcast(context.Background(), r.code, model.WorldUpdate{
					Type:    model.TypeWorldUpdate,
					Players: snap,
				})
			}
		}
	}
}

// Step advances every avatar by one fixed timestep and returns the
// post-update snapshot. An empty room still ticks but yields nil, which
// suppresses the broadcast.
func (r *Room) Step(dt float64) map[string]model.AvatarState {
	r.mx.Lock()
	defer r.mx.Unlock()

	if len(r.avatars) == 0 {
		return nil
	}

	now := time.Now()
	snap := make(map[string]model.AvatarState, len(r.avatars))
	for id, a := range r.avatars {
		var dx, dy float64
		if a.Keys.Up {
			dy -= Speed * dt
		}
		if a.Keys.Down {
			dy += Speed * dt
		}
		if a.Keys.Left {
			dx -= Speed * dt
		}
		if a.Keys.Right {
			dx += Speed * dt
		}
		// Diagonal input is not normalized: two held axes move
		// sqrt(2) times faster than one.
		a.X += dx
		a.Y += dy
		a.IsMoving = dx != 0 || dy != 0
		if a.Keys.Left != a.Keys.Right {
			a.FacingRight = a.Keys.Right
		}
		a.LastUpdate = now

		snap[id] = model.AvatarState{
			X:           a.X,
			Y:           a.Y,
			Username:    a.Username,
			IsMoving:    a.IsMoving,
			FacingRight: a.FacingRight,
			IsChatting:  a.IsChatting,
		}
	}
	return snap
}

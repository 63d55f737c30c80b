package room_test

import (
	"sync"
	"testing"

	"github.com/brewroom/backend/model"
	"github.com/brewroom/backend/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoom_AddParticipant(t *testing.T) {
	rm := room.New("ABC123")
	rm.AddParticipant("Guest100", "alice")

	snap := rm.Step(0)
	require.Contains(t, snap, "Guest100")
	assert.Equal(t, room.SpawnX, snap["Guest100"].X)
	assert.Equal(t, room.SpawnY, snap["Guest100"].Y)
	assert.Equal(t, "alice", snap["Guest100"].Username)
	assert.True(t, snap["Guest100"].FacingRight)
	assert.False(t, snap["Guest100"].IsMoving)
	assert.False(t, snap["Guest100"].IsChatting)
}

func TestRoom_AddParticipantTwiceKeepsState(t *testing.T) {
	rm := room.New("ABC123")
	rm.AddParticipant("Guest100", "alice")
	rm.SetKey("Guest100", "d", true)
	rm.Step(room.TickDT)

	rm.AddParticipant("Guest100", "alice")

	snap := rm.Step(0)
	assert.Equal(t, room.SpawnX+room.Speed*room.TickDT, snap["Guest100"].X)
}

func TestRoom_RemoveParticipant(t *testing.T) {
	rm := room.New("ABC123")
	rm.AddParticipant("Guest100", "alice")
	rm.AddParticipant("Guest200", "bob")

	rm.RemoveParticipant("Guest100")

	snap := rm.Step(0)
	assert.NotContains(t, snap, "Guest100")
	assert.Contains(t, snap, "Guest200")

	// removing an absent session is a no-op
	rm.RemoveParticipant("Guest100")
}

func TestRoom_SetKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want room.Inputs
	}{
		{name: "w sets up", key: "w", want: room.Inputs{Up: true}},
		{name: "uppercase W sets up", key: "W", want: room.Inputs{Up: true}},
		{name: "a sets left", key: "a", want: room.Inputs{Left: true}},
		{name: "s sets down", key: "s", want: room.Inputs{Down: true}},
		{name: "d sets right", key: "d", want: room.Inputs{Right: true}},
		{name: "unknown key ignored", key: "x", want: room.Inputs{}},
		{name: "arrow name ignored", key: "ArrowUp", want: room.Inputs{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rm := room.New("ABC123")
			rm.AddParticipant("Guest100", "alice")
			rm.SetKey("Guest100", tt.key, true)

			snap := rm.Step(room.TickDT)
			moving := tt.want != room.Inputs{}
			assert.Equal(t, moving, snap["Guest100"].IsMoving)
		})
	}
}

func TestRoom_SetKeyUnknownSession(t *testing.T) {
	rm := room.New("ABC123")
	rm.SetKey("Guest999", "w", true) // no-op, must not panic
}

func TestRoom_SetChatting(t *testing.T) {
	rm := room.New("ABC123")
	rm.AddParticipant("Guest100", "alice")

	rm.SetChatting("Guest100", true)
	assert.True(t, rm.Step(0)["Guest100"].IsChatting)

	rm.SetChatting("Guest100", false)
	assert.False(t, rm.Step(0)["Guest100"].IsChatting)

	rm.SetChatting("Guest999", true) // absent session, no-op
}

func TestRoom_ReconcileLeader(t *testing.T) {
	entries := func(ids ...string) []model.PlayerEntry {
		out := make([]model.PlayerEntry, 0, len(ids))
		for _, id := range ids {
			out = append(out, model.PlayerEntry{ID: id, Username: "u-" + id})
		}
		return out
	}

	tests := []struct {
		name       string
		setLeader  string
		members    []model.PlayerEntry
		wantLeader string
	}{
		{
			name:       "valid leader kept",
			setLeader:  "Guest300",
			members:    entries("Guest100", "Guest300"),
			wantLeader: "Guest300",
		},
		{
			name:       "missing leader replaced by smallest id",
			setLeader:  "Guest999",
			members:    entries("Guest300", "Guest100"),
			wantLeader: "Guest100",
		},
		{
			name:       "unset leader elected",
			members:    entries("Guest200"),
			wantLeader: "Guest200",
		},
		{
			name:       "empty member set clears leader",
			setLeader:  "Guest100",
			members:    entries(),
			wantLeader: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rm := room.New("ABC123")
			if tt.setLeader != "" {
				rm.SetLeader(tt.setLeader)
			}

			got, leader := rm.ReconcileLeader(func() []model.PlayerEntry { return tt.members })
			assert.Equal(t, tt.wantLeader, leader)
			for _, e := range got {
				assert.Equal(t, e.ID == tt.wantLeader, e.IsLeader, "entry %s", e.ID)
			}
		})
	}
}

func TestRoom_ReconcileLeaderStable(t *testing.T) {
	rm := room.New("ABC123")
	members := []model.PlayerEntry{{ID: "Guest100"}, {ID: "Guest200"}}

	_, first := rm.ReconcileLeader(func() []model.PlayerEntry { return members })
	_, second := rm.ReconcileLeader(func() []model.PlayerEntry { return members })
	assert.Equal(t, first, second)
}

// The member snapshot and the leader decision happen in one critical
// section, so the elected leader is always part of the entries that
// went out with it, even while members churn concurrently.
func TestRoom_ReconcileLeaderCoherentUnderChurn(t *testing.T) {
	rm := room.New("ABC123")

	var mx sync.Mutex
	members := []model.PlayerEntry{{ID: "Guest100"}, {ID: "Guest200"}, {ID: "Guest300"}}
	snapshot := func() []model.PlayerEntry {
		mx.Lock()
		defer mx.Unlock()
		out := make([]model.PlayerEntry, len(members))
		copy(out, members)
		return out
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			mx.Lock()
			if len(members) > 1 {
				members = members[1:]
			} else {
				members = []model.PlayerEntry{{ID: "Guest100"}, {ID: "Guest200"}, {ID: "Guest300"}}
			}
			mx.Unlock()
		}
	}()

	for i := 0; i < 200; i++ {
		entries, leader := rm.ReconcileLeader(snapshot)
		if leader == "" {
			assert.Empty(t, entries)
			continue
		}
		found := false
		for _, e := range entries {
			if e.ID == leader {
				found = true
				assert.True(t, e.IsLeader)
			}
		}
		assert.True(t, found, "leader %s missing from its own entries", leader)
	}
	<-done
}

func TestRoom_StatusPlayers(t *testing.T) {
	rm := room.New("ABC123")
	rm.AddParticipant("Guest100", "alice")
	rm.AddParticipant("Guest200", "bob")

	players := rm.StatusPlayers()
	require.Len(t, players, 2)
	assert.Equal(t, "alice", players["Guest100"].Username)
	assert.Equal(t, room.SpawnX, players["Guest100"].X)
	assert.Equal(t, room.SpawnY, players["Guest200"].Y)
}

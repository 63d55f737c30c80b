package _switch_test

import (
	"context"
	"testing"
	"time"

	"github.com/brewroom/backend/model"
	"github.com/brewroom/backend/registry"
	sw "github.com/brewroom/backend/switch"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSwitch(t *testing.T) (*sw.Switch, *registry.Registry) {
	t.Helper()
	logger := zerolog.Nop()
	reg := registry.New(&logger)
	return sw.NewSwitch(sw.Config{
		Logger:      &logger,
		Directory:   reg,
		SendTimeout: 50 * time.Millisecond,
	}), reg
}

func bind(reg *registry.Registry, sessionID, roomCode string) *model.Wire {
	w := model.NewWire()
	reg.Register(w)
	reg.Bind(w, sessionID, "user-"+sessionID, roomCode)
	return w
}

func clog(w *model.Wire) {
	for len(w.TX) < cap(w.TX) {
		w.TX <- struct{}{}
	}
}

func TestSwitch_Broadcast(t *testing.T) {
	s, reg := newSwitch(t)
	w1 := bind(reg, "Guest100", "ABC123")
	w2 := bind(reg, "Guest200", "ABC123")
	other := bind(reg, "Guest300", "XYZ999")

	s.Broadcast(context.Background(), "ABC123", "hello")

	require.Len(t, w1.TX, 1)
	require.Len(t, w2.TX, 1)
	assert.Equal(t, "hello", <-w1.TX)
	assert.Equal(t, "hello", <-w2.TX)
	assert.Empty(t, other.TX)
}

func TestSwitch_BroadcastIsolatesDeadRecipient(t *testing.T) {
	s, reg := newSwitch(t)
	dead := bind(reg, "Guest100", "ABC123")
	alive := bind(reg, "Guest200", "ABC123")
	clog(dead)

	done := make(chan struct{})
	go func() {
		s.Broadcast(context.Background(), "ABC123", "hello")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast did not finish despite clogged recipient")
	}
	require.Len(t, alive.TX, 1)
	assert.Equal(t, "hello", <-alive.TX)
}

func TestSwitch_BroadcastEmptyRoom(t *testing.T) {
	s, _ := newSwitch(t)
	s.Broadcast(context.Background(), "NOSUCH", "hello") // silent no-op
}

func TestSwitch_Unicast(t *testing.T) {
	s, reg := newSwitch(t)
	w := bind(reg, "Guest100", "ABC123")

	s.Unicast(context.Background(), "Guest100", "hi")
	require.Len(t, w.TX, 1)
	assert.Equal(t, "hi", <-w.TX)
}

func TestSwitch_UnicastMissingTarget(t *testing.T) {
	s, reg := newSwitch(t)
	w := bind(reg, "Guest100", "ABC123")

	s.Unicast(context.Background(), "Guest999", "hi") // silent no-op
	s.Unicast(context.Background(), "", "hi")
	assert.Empty(t, w.TX)
}

func TestSwitch_SendTimesOut(t *testing.T) {
	s, reg := newSwitch(t)
	w := bind(reg, "Guest100", "ABC123")
	clog(w)

	start := time.Now()
	ok := s.Send(context.Background(), w, "hi")
	assert.False(t, ok)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSwitch_SendCanceledContext(t *testing.T) {
	s, reg := newSwitch(t)
	w := bind(reg, "Guest100", "ABC123")
	clog(w)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, s.Send(ctx, w, "hi"))
}

package netwatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecodata/fieldsync/internal/client/event"
	"github.com/ecodata/fieldsync/internal/logging"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestGate_StartsOnline(t *testing.T) {
	g := NewGate(nil, nil, testLogger())
	assert.True(t, g.Online())
}

func TestGate_SetOnline(t *testing.T) {
	g := NewGate(nil, nil, testLogger())

	g.SetOnline(false)
	assert.False(t, g.Online())

	g.SetOnline(true)
	assert.True(t, g.Online())
}

func TestGate_PublishesEventOnRecovery(t *testing.T) {
	bus := event.NewBus()
	id, ch := bus.Subscribe(EventOnline)
	defer bus.Unsubscribe(EventOnline, id)

	g := NewGate(nil, bus, testLogger())

	// online -> online: no event.
	g.SetOnline(true)
	// online -> offline: no event.
	g.SetOnline(false)
	select {
	case <-ch:
		t.Fatal("unexpected event before recovery")
	default:
	}

	// offline -> online: event.
	g.SetOnline(true)
	select {
	case evt := <-ch:
		assert.Equal(t, EventOnline, evt.Type)
	case <-time.After(time.Second):
		t.Fatal("expected online event")
	}
}

func TestGate_WatchFollowsProbe(t *testing.T) {
	var fail atomic.Bool
	probe := func(ctx context.Context) error {
		if fail.Load() {
			return errors.New("unreachable")
		}
		return nil
	}

	g := NewGate(probe, nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Watch(ctx, 5*time.Millisecond)

	fail.Store(true)
	require.Eventually(t, func() bool { return !g.Online() }, time.Second, 5*time.Millisecond)

	fail.Store(false)
	require.Eventually(t, func() bool { return g.Online() }, time.Second, 5*time.Millisecond)
}

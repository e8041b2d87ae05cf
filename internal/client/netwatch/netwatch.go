// Package netwatch maintains the best-effort "are we online enough to
// attempt a sync" flag. The flag can be flipped manually (the analogue of
// browser online/offline events) and is corroborated by a periodic probe
// against the remote endpoint.
package netwatch

import (
	"context"
	"sync"
	"time"

	"github.com/ecodata/fieldsync/internal/client/event"
	"github.com/ecodata/fieldsync/internal/logging"
)

// EventOnline is published when the gate transitions from offline to online,
// so pending work (queued records, location updates) can be retried.
const EventOnline event.Type = "network.online"

// probeTimeout bounds a single reachability probe.
const probeTimeout = 3 * time.Second

// ProbeFunc performs one reachability check; nil error means reachable.
type ProbeFunc func(ctx context.Context) error

type Gate struct {
	probe ProbeFunc
	bus   *event.Bus
	log   logging.Logger

	mu     sync.Mutex
	online bool
}

// NewGate starts optimistic: callers learn the truth from the first probe or
// the first failed delivery. bus may be nil.
func NewGate(probe ProbeFunc, bus *event.Bus, log logging.Logger) *Gate {
	return &Gate{
		probe:  probe,
		bus:    bus,
		log:    log.With("component", "netwatch"),
		online: true,
	}
}

// Online reports the current reachability belief.
func (g *Gate) Online() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.online
}

// SetOnline overrides the flag, publishing EventOnline on an offline-to-
// online transition.
func (g *Gate) SetOnline(online bool) {
	g.mu.Lock()
	changed := g.online != online
	g.online = online
	g.mu.Unlock()

	if !changed {
		return
	}
	ctx := context.Background()
	if online {
		g.log.Info(ctx, "switched to online mode")
		if g.bus != nil {
			g.bus.Publish(EventOnline, event.New(EventOnline, nil))
		}
	} else {
		g.log.Info(ctx, "switched to offline mode")
	}
}

// Watch probes reachability on the given interval until ctx is done. Safe to
// run in its own goroutine.
func (g *Gate) Watch(ctx context.Context, interval time.Duration) {
	if g.probe == nil {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			err := g.probe(probeCtx)
			cancel()
			g.SetOnline(err == nil)

		case <-ctx.Done():
			return
		}
	}
}

// Package cli is the interactive front end: a small REPL over the queues,
// the sync engine, the tracker and the status deriver. Every submission is
// written locally first and delivered whenever the endpoint is reachable.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ecodata/fieldsync/internal/client/blob"
	"github.com/ecodata/fieldsync/internal/client/config"
	"github.com/ecodata/fieldsync/internal/client/event"
	"github.com/ecodata/fieldsync/internal/client/gateway"
	"github.com/ecodata/fieldsync/internal/client/models"
	"github.com/ecodata/fieldsync/internal/client/netwatch"
	"github.com/ecodata/fieldsync/internal/client/queue"
	"github.com/ecodata/fieldsync/internal/client/status"
	"github.com/ecodata/fieldsync/internal/client/storage"
	"github.com/ecodata/fieldsync/internal/client/syncer"
	"github.com/ecodata/fieldsync/internal/client/tracker"
	"github.com/ecodata/fieldsync/internal/filex"
	"github.com/ecodata/fieldsync/internal/logging"
)

type App struct {
	cfg      *config.Config
	log      logging.Logger
	bus      *event.Bus
	kv       storage.KV
	blobs    *blob.Store
	queues   *queue.Store
	pending  *tracker.PendingStore
	gw       *gateway.Client
	gate     *netwatch.Gate
	engine   *syncer.Engine
	trk      *tracker.Tracker
	deriver  *status.Deriver
	provider tracker.Provider
	reader   *bufio.Reader
	out      io.Writer

	closers []func() error
}

// NewApp opens the local stores under cfg.DataDir and wires every component
// together. provider is the platform positioning source; it may be nil, in
// which case submissions carry no location.
func NewApp(ctx context.Context, cfg *config.Config, provider tracker.Provider, log logging.Logger) (*App, error) {
	dataDir, err := filex.EnsureDir(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		log:      log,
		bus:      event.NewBus(),
		provider: provider,
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
	}

	kv, err := storage.OpenSQLite(ctx, filepath.Join(dataDir, "fieldsync.db"), a.bus)
	if err != nil {
		return nil, err
	}
	a.kv = kv
	a.closers = append(a.closers, kv.Close)

	blobs, err := blob.Open(filepath.Join(dataDir, "photos"))
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.blobs = blobs
	a.closers = append(a.closers, blobs.Close)

	a.queues = queue.NewStore(a.kv)
	a.pending = tracker.NewPendingStore(a.kv)
	a.gw = gateway.NewClient(cfg.EndpointURL, cfg.DeliveryTimeout, log)
	a.gate = netwatch.NewGate(a.gw.Probe, a.bus, log)
	a.deriver = status.NewDeriver(a.queues, a.kv, a.gate, a.gw.CheckSignIn, log)

	a.engine = syncer.New(a.queues, a.blobs, a.gate, log,
		syncer.WithStamp(a.stampFields),
		syncer.WithOnDelivered(a.onDelivered),
		syncer.WithAfterSync(a.afterSync),
	)

	a.trk = tracker.New(a.kv, a.queues, a.pending, a.gate, provider,
		a.patchLocation, cfg.TrackingInterval, log)

	return a, nil
}

func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Run resumes an interrupted tracking session, starts the background
// watchers, and hands control to the REPL until EOF or "exit".
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.trk.Resume(ctx); err != nil {
		a.log.Error(ctx, "resuming tracking session", "error", err)
	}

	go a.gate.Watch(ctx, a.cfg.OnlineCheckInterval)
	go a.deriver.Watch(ctx, a.bus)
	go a.syncOnRecovery(ctx)

	runREPL(ctx, a, a.promptStatus, bufio.NewScanner(os.Stdin))

	_ = a.trk.Stop(ctx)
}

// syncOnRecovery retries everything pending whenever reachability comes back.
func (a *App) syncOnRecovery(ctx context.Context) {
	id, ch := a.bus.Subscribe(netwatch.EventOnline)
	defer a.bus.Unsubscribe(netwatch.EventOnline, id)

	for {
		select {
		case <-ch:
			if _, err := a.engine.SyncAll(ctx, a.deliverFuncs()); err != nil {
				a.log.Warn(ctx, "sync after recovery failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) deliverFuncs() map[models.FormType]syncer.DeliverFunc {
	out := make(map[models.FormType]syncer.DeliverFunc, len(models.AllFormTypes))
	for _, ft := range models.AllFormTypes {
		out[ft] = func(ctx context.Context, fields map[string]string) (*syncer.Receipt, error) {
			res, err := a.gw.Deliver(ctx, ft, fields)
			if err != nil {
				return nil, err
			}
			return &syncer.Receipt{HasSignedIn: res.HasSignedIn, PropertyName: res.PropertyName}, nil
		}
	}
	return out
}

// stampFields adds the session identity to every outbound record. Stamping
// happens at delivery time, not submit time, so a record queued before login
// still goes out attributed. Records carrying their own propertyName (the
// sign-in itself) are not overridden; the engine only fills missing keys.
func (a *App) stampFields(ctx context.Context) map[string]string {
	fields := map[string]string{"username": a.username(ctx)}
	if st := a.deriver.SignInStatus(ctx, false); st.HasSignedIn {
		fields["propertyName"] = st.PropertyName
	}
	return fields
}

func (a *App) onDelivered(ctx context.Context, rec models.Record, receipt *syncer.Receipt) {
	switch rec.FormType {
	case models.FormSiteSignIn:
		property := receipt.PropertyName
		if property == "" {
			property = rec.Fields["propertyName"]
		}
		err := a.deriver.SetLocal(ctx, &models.SignInStatus{
			HasSignedIn:  true,
			PropertyName: property,
			FetchedAt:    time.Now(),
		})
		if err != nil {
			a.log.Error(ctx, "caching sign-in status", "error", err)
		}
	case models.FormSignOut:
		err := a.deriver.SetLocal(ctx, &models.SignInStatus{FetchedAt: time.Now()})
		if err != nil {
			a.log.Error(ctx, "caching sign-out status", "error", err)
		}
	}
}

func (a *App) afterSync(ctx context.Context) {
	a.deriver.SignInStatus(ctx, true)
	if err := a.pending.Drain(ctx, a.patchLocation, a.log); err != nil {
		a.log.Warn(ctx, "draining pending location updates", "error", err)
	}
}

func (a *App) patchLocation(ctx context.Context, upd models.PendingLocationUpdate) error {
	return a.gw.UpdateLocation(ctx, upd, a.stampFields(ctx))
}

func (a *App) username(ctx context.Context) string {
	raw, err := a.kv.Get(ctx, storage.KeyUsername)
	if err != nil {
		a.log.Error(ctx, "reading username", "error", err)
		return ""
	}
	return string(raw)
}

func (a *App) isLoggedIn(ctx context.Context) bool {
	return a.username(ctx) != ""
}

func (a *App) promptStatus() string {
	ctx := context.Background()
	mode := "offline"
	if a.gate.Online() {
		mode = "online"
	}
	s := a.username(ctx)
	if s != "" {
		s += " "
	}
	return fmt.Sprintf("(%s%s)", s, mode)
}

// rememberOutcome persists a short per-form status line so the last result
// survives a restart.
func (a *App) rememberOutcome(ctx context.Context, ft models.FormType, msg string) {
	if err := a.kv.Set(ctx, storage.LatestStatusKey(ft), []byte(msg)); err != nil {
		a.log.Error(ctx, "persisting status message", "form", ft, "error", err)
	}
}

// Package cli is the terminal surface over the core packages. Commands
// stay thin: every decision about connectivity, retries, and alerts
// lives in the stores they call.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/meltforce/repsync/internal/api"
	"github.com/meltforce/repsync/internal/catalog"
	"github.com/meltforce/repsync/internal/config"
	"github.com/meltforce/repsync/internal/netmon"
	"github.com/meltforce/repsync/internal/persist"
	"github.com/meltforce/repsync/internal/prefs"
	"github.com/meltforce/repsync/internal/workout"
)

// App wires the core services together with one lifecycle: constructed
// at command start, injected into whatever needs them, closed on exit.
type App struct {
	Config   *config.Config
	Store    *persist.Store
	API      *api.Client
	Monitor  *netmon.Monitor
	Workouts *workout.Store
	Catalog  *catalog.Catalog
	Prefs    *prefs.Store
	Log      *slog.Logger
}

// stderrAlerter shows user-visible failures on stderr. Network-classified
// failures never reach it.
type stderrAlerter struct{}

func (stderrAlerter) Alert(title, message string) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", title, message)
}

// NewApp builds the service graph from the config file at path.
func NewApp(configPath string, log *slog.Logger) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	st, err := persist.Open(cfg.Storage.Dir, log)
	if err != nil {
		return nil, fmt.Errorf("opening local store: %w", err)
	}

	tokens := api.NewTokenStore(st, log)
	client := api.New(api.Options{
		ServerURL:      cfg.Server.URL,
		DevHostRewrite: cfg.Server.DevHostRewrite,
		RequestTimeout: cfg.Server.RequestTimeout(),
	}, tokens, log)

	mon := netmon.New(client, log, netmon.Options{
		ProbeTimeout: cfg.Server.ProbeTimeout(),
		PollInterval: cfg.Sync.PollInterval(),
	})

	workouts := workout.NewStore(client, st, stderrAlerter{}, log)
	workouts.Hydrate(st)
	cat := catalog.New(client, st, log)
	pf := prefs.New(client, st, log)

	// Reconnect drains the deferred queue (once per event), pushes any
	// dirty preferences, and refreshes the catalog if it went stale.
	mon.OnReconnect(func(downFor time.Duration) {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.RequestTimeout())
		defer cancel()
		workouts.Reconcile(ctx)
		if err := pf.Push(ctx); err != nil {
			log.Warn("preference sync after reconnect", "error", err)
		}
		cat.RefreshIfStale(ctx)
	})

	return &App{
		Config:   cfg,
		Store:    st,
		API:      client,
		Monitor:  mon,
		Workouts: workouts,
		Catalog:  cat,
		Prefs:    pf,
		Log:      log,
	}, nil
}

// Close flushes debounced writes and closes the local store.
func (a *App) Close() {
	a.Monitor.Stop()
	a.Workouts.Close()
	a.Catalog.Close()
	a.Prefs.Close()
	if err := a.Store.Close(); err != nil {
		a.Log.Warn("closing local store", "error", err)
	}
}

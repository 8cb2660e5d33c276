// Package catalog serves the exercise catalog: server-backed when the
// network is usable, filtered from the local snapshot when it is not.
package catalog

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/meltforce/repsync/internal/api"
	"github.com/meltforce/repsync/internal/netmon"
	"github.com/meltforce/repsync/internal/persist"
)

// API is the catalog slice of the HTTP client.
type API interface {
	ListExercises(ctx context.Context, q api.ExerciseQuery) ([]api.Exercise, error)
}

var _ API = (*api.Client)(nil)

// Cache is the persisted catalog snapshot.
type Cache struct {
	FetchedAt time.Time      `json:"fetched_at"`
	Exercises []api.Exercise `json:"exercises"`
}

// Catalog answers exercise queries and keeps the offline snapshot fresh.
type Catalog struct {
	api API
	deb *persist.Debouncer
	log *slog.Logger

	mu    sync.Mutex
	cache Cache
}

// New creates a Catalog and loads any persisted snapshot.
func New(a API, st *persist.Store, log *slog.Logger) *Catalog {
	c := &Catalog{
		api: a,
		deb: persist.NewDebouncer(st, persist.KeyExerciseCache, 0, log),
		log: log,
	}
	var cache Cache
	if ok, err := st.Get(persist.KeyExerciseCache, &cache); err != nil {
		log.Warn("loading exercise cache", "error", err)
	} else if ok {
		c.cache = cache
	}
	return c
}

// Close flushes the pending cache write.
func (c *Catalog) Close() {
	c.deb.Close()
}

// Search queries the server, falling back to the local snapshot when
// the failure is network-classified. Application errors propagate: a
// bad query should surface, not silently degrade.
func (c *Catalog) Search(ctx context.Context, q api.ExerciseQuery) ([]api.Exercise, error) {
	exs, err := c.api.ListExercises(ctx, q)
	if err == nil {
		if isUnfiltered(q) {
			c.store(exs)
		}
		return exs, nil
	}
	if api.IsNetworkError(err) {
		c.log.Debug("exercise search offline, serving cache", "error", err)
		return c.searchLocal(q), nil
	}
	return nil, err
}

// Refresh fetches the full catalog and replaces the snapshot.
func (c *Catalog) Refresh(ctx context.Context) error {
	exs, err := c.api.ListExercises(ctx, api.ExerciseQuery{})
	if err != nil {
		return err
	}
	c.store(exs)
	c.log.Info("exercise catalog refreshed", "count", len(exs))
	return nil
}

// RefreshIfStale refreshes the snapshot when it is older than the
// staleness threshold. Hooked to the connectivity monitor's reconnect
// event so stale reads are refreshed rather than silently served.
func (c *Catalog) RefreshIfStale(ctx context.Context) {
	c.mu.Lock()
	age := time.Since(c.cache.FetchedAt)
	c.mu.Unlock()
	if age <= netmon.StaleAfter {
		return
	}
	if err := c.Refresh(ctx); err != nil {
		c.log.Debug("catalog refresh on reconnect failed", "error", err)
	}
}

// CachedAt returns when the snapshot was last fetched.
func (c *Catalog) CachedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.FetchedAt
}

func (c *Catalog) store(exs []api.Exercise) {
	c.mu.Lock()
	c.cache = Cache{FetchedAt: time.Now(), Exercises: append([]api.Exercise(nil), exs...)}
	snapshot := c.cache
	c.mu.Unlock()
	c.deb.Write(snapshot)
}

func isUnfiltered(q api.ExerciseQuery) bool {
	return q.Search == "" && q.BodyPart == "" && q.Equipment == "" && q.Offset == 0
}

// searchLocal applies the server's query semantics to the snapshot:
// case-insensitive substring on name, exact body part and equipment,
// then offset/limit.
func (c *Catalog) searchLocal(q api.ExerciseQuery) []api.Exercise {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []api.Exercise
	search := strings.ToLower(q.Search)
	for _, ex := range c.cache.Exercises {
		if search != "" && !strings.Contains(strings.ToLower(ex.Name), search) {
			continue
		}
		if q.BodyPart != "" && !strings.EqualFold(ex.BodyPart, q.BodyPart) {
			continue
		}
		if q.Equipment != "" && !strings.EqualFold(ex.Equipment, q.Equipment) {
			continue
		}
		out = append(out, ex)
	}

	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out
}

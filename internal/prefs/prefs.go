// Package prefs is the local-first preference store. Changes persist
// locally right away and push to the server through the same
// network/alert decision logic as workout mutations: a network failure
// marks the store dirty and the push happens on reconnect.
package prefs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/meltforce/repsync/internal/api"
	"github.com/meltforce/repsync/internal/persist"
)

// API is the profile slice of the HTTP client.
type API interface {
	SignedIn() bool
	UpdateProfile(ctx context.Context, prefs api.ProfilePreferences) (*api.Profile, error)
}

var _ API = (*api.Client)(nil)

// Defaults used when nothing is stored.
const (
	DefaultWeightUnit  = "kg"
	DefaultRestSeconds = 90
)

// Store holds the user preferences.
type Store struct {
	api API
	deb *persist.Debouncer
	log *slog.Logger

	mu    sync.Mutex
	prefs api.ProfilePreferences
	dirty bool
}

// New creates a Store, loading persisted preferences or the defaults.
func New(a API, st *persist.Store, log *slog.Logger) *Store {
	s := &Store{
		api: a,
		deb: persist.NewDebouncer(st, persist.KeyPreferences, 0, log),
		log: log,
		prefs: api.ProfilePreferences{
			WeightUnit:         DefaultWeightUnit,
			DefaultRestSeconds: DefaultRestSeconds,
			HapticsEnabled:     true,
		},
	}
	var p api.ProfilePreferences
	if ok, err := st.Get(persist.KeyPreferences, &p); err != nil {
		log.Warn("loading preferences", "error", err)
	} else if ok {
		s.prefs = p
	}
	return s
}

// Close flushes the pending preference write.
func (s *Store) Close() {
	s.deb.Close()
}

// Get returns the current preferences.
func (s *Store) Get() api.ProfilePreferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.prefs
}

// Dirty reports whether a server push is still owed.
func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// SetWeightUnit sets the display unit, "kg" or "lbs".
func (s *Store) SetWeightUnit(ctx context.Context, unit string) error {
	if unit != "kg" && unit != "lbs" {
		return fmt.Errorf("weight unit must be kg or lbs, got %q", unit)
	}
	return s.update(ctx, func(p *api.ProfilePreferences) { p.WeightUnit = unit })
}

// SetDefaultRestSeconds sets the rest-timer default.
func (s *Store) SetDefaultRestSeconds(ctx context.Context, seconds int) error {
	if seconds < 0 {
		return fmt.Errorf("rest seconds must not be negative, got %d", seconds)
	}
	return s.update(ctx, func(p *api.ProfilePreferences) { p.DefaultRestSeconds = seconds })
}

// SetHapticsEnabled toggles haptic feedback.
func (s *Store) SetHapticsEnabled(ctx context.Context, enabled bool) error {
	return s.update(ctx, func(p *api.ProfilePreferences) { p.HapticsEnabled = enabled })
}

func (s *Store) update(ctx context.Context, mutate func(*api.ProfilePreferences)) error {
	s.mu.Lock()
	mutate(&s.prefs)
	snapshot := s.prefs
	s.mu.Unlock()
	s.deb.Write(snapshot)
	return s.push(ctx, snapshot)
}

// push sends the preferences to the server. Guests never push; network
// failures set the dirty flag for the reconnect pass; application
// failures propagate to the caller.
func (s *Store) push(ctx context.Context, p api.ProfilePreferences) error {
	if !s.api.SignedIn() {
		return nil
	}
	if _, err := s.api.UpdateProfile(ctx, p); err != nil {
		if api.IsNetworkError(err) {
			s.mu.Lock()
			s.dirty = true
			s.mu.Unlock()
			s.log.Debug("deferring preference sync", "error", err)
			return nil
		}
		return err
	}
	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()
	return nil
}

// Push retries a deferred preference sync. Hooked to the connectivity
// monitor's reconnect event.
func (s *Store) Push(ctx context.Context) error {
	s.mu.Lock()
	dirty := s.dirty
	snapshot := s.prefs
	s.mu.Unlock()
	if !dirty {
		return nil
	}
	return s.push(ctx, snapshot)
}

package prefs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/meltforce/repsync/internal/api"
	"github.com/meltforce/repsync/internal/persist"
)

// fakeProfileAPI scripts the server side of a preference push.
type fakeProfileAPI struct {
	mu       sync.Mutex
	signedIn bool
	err      error
	pushes   int
	last     api.ProfilePreferences
}

func (f *fakeProfileAPI) SignedIn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signedIn
}

func (f *fakeProfileAPI) UpdateProfile(ctx context.Context, p api.ProfilePreferences) (*api.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes++
	if f.err != nil {
		return nil, f.err
	}
	f.last = p
	return &api.Profile{Preferences: p}, nil
}

func (f *fakeProfileAPI) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *persist.Store {
	t.Helper()
	st, err := persist.Open(t.TempDir(), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

// TestDefaults verifies the out-of-box preferences.
func TestDefaults(t *testing.T) {
	s := New(&fakeProfileAPI{}, openTestStore(t), testLogger())
	defer s.Close()

	p := s.Get()
	if p.WeightUnit != "kg" {
		t.Errorf("WeightUnit = %q, want kg", p.WeightUnit)
	}
	if p.DefaultRestSeconds != 90 {
		t.Errorf("DefaultRestSeconds = %d, want 90", p.DefaultRestSeconds)
	}
	if !p.HapticsEnabled {
		t.Error("HapticsEnabled = false, want true")
	}
}

// TestSetWeightUnitValidation verifies only kg and lbs are accepted.
func TestSetWeightUnitValidation(t *testing.T) {
	s := New(&fakeProfileAPI{}, openTestStore(t), testLogger())
	defer s.Close()
	ctx := context.Background()

	if err := s.SetWeightUnit(ctx, "lbs"); err != nil {
		t.Fatalf("SetWeightUnit(lbs): %v", err)
	}
	if err := s.SetWeightUnit(ctx, "stone"); err == nil {
		t.Fatal("SetWeightUnit(stone) accepted, want rejection")
	}
	if got := s.Get().WeightUnit; got != "lbs" {
		t.Errorf("WeightUnit after rejected write = %q, want lbs", got)
	}
}

// TestGuestNeverPushes verifies guests update locally without any
// server traffic.
func TestGuestNeverPushes(t *testing.T) {
	f := &fakeProfileAPI{signedIn: false}
	s := New(f, openTestStore(t), testLogger())
	defer s.Close()

	if err := s.SetDefaultRestSeconds(context.Background(), 120); err != nil {
		t.Fatal(err)
	}
	if f.pushes != 0 {
		t.Errorf("pushes = %d, want 0 for a guest", f.pushes)
	}
	if got := s.Get().DefaultRestSeconds; got != 120 {
		t.Errorf("DefaultRestSeconds = %d, want 120 (local write still applies)", got)
	}
}

// TestNetworkFailureDefersPush verifies a network-classified push
// failure returns success, marks the store dirty, and the reconnect
// push clears it.
func TestNetworkFailureDefersPush(t *testing.T) {
	f := &fakeProfileAPI{signedIn: true, err: errors.New("connection reset")}
	s := New(f, openTestStore(t), testLogger())
	defer s.Close()
	ctx := context.Background()

	if err := s.SetHapticsEnabled(ctx, false); err != nil {
		t.Fatalf("set with network failure returned %v, want nil", err)
	}
	if !s.Dirty() {
		t.Fatal("store not dirty after deferred push")
	}
	if s.Get().HapticsEnabled {
		t.Error("local value not applied")
	}

	f.setErr(nil)
	if err := s.Push(ctx); err != nil {
		t.Fatalf("reconnect push: %v", err)
	}
	if s.Dirty() {
		t.Error("store still dirty after successful push")
	}
	if f.last.HapticsEnabled {
		t.Error("server did not receive the deferred value")
	}
}

// TestPushNoopWhenClean verifies the reconnect push does nothing when
// no sync is owed.
func TestPushNoopWhenClean(t *testing.T) {
	f := &fakeProfileAPI{signedIn: true}
	s := New(f, openTestStore(t), testLogger())
	defer s.Close()

	if err := s.Push(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.pushes != 0 {
		t.Errorf("pushes = %d, want 0 when clean", f.pushes)
	}
}

// TestApplicationFailurePropagates verifies non-network push failures
// reach the caller instead of being deferred.
func TestApplicationFailurePropagates(t *testing.T) {
	f := &fakeProfileAPI{signedIn: true, err: &api.APIError{
		Message: "invalid unit", HTTPStatus: 422, Cause: api.CauseValidation,
	}}
	s := New(f, openTestStore(t), testLogger())
	defer s.Close()

	if err := s.SetWeightUnit(context.Background(), "kg"); err == nil {
		t.Fatal("validation failure was swallowed, want propagated error")
	}
	if s.Dirty() {
		t.Error("store marked dirty for a non-network failure")
	}
}

// TestPreferencesSurviveRestart verifies persisted preferences reload.
func TestPreferencesSurviveRestart(t *testing.T) {
	st := openTestStore(t)

	s1 := New(&fakeProfileAPI{}, st, testLogger())
	if err := s1.SetDefaultRestSeconds(context.Background(), 150); err != nil {
		t.Fatal(err)
	}
	s1.Close() // flushes the debounced write

	s2 := New(&fakeProfileAPI{}, st, testLogger())
	defer s2.Close()
	if got := s2.Get().DefaultRestSeconds; got != 150 {
		t.Errorf("reloaded DefaultRestSeconds = %d, want 150", got)
	}
}

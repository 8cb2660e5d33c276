package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/meltforce/repsync/internal/apitest"
)

// memKV is an in-memory stand-in for the persistence layer.
type memKV struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemKV() *memKV { return &memKV{m: make(map[string][]byte)} }

func (kv *memKV) Put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.m[key] = data
	return nil
}

func (kv *memKV) Get(key string, out any) (bool, error) {
	kv.mu.Lock()
	data, ok := kv.m[key]
	kv.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, out)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	tokens := NewTokenStore(newMemKV(), discardLogger())
	c := New(Options{ServerURL: url}, tokens, discardLogger())
	c.backoffBase = time.Millisecond
	return c
}

// TestBaseURLResolution verifies the resolution order: explicit config,
// then env var, then the localhost fallback.
func TestBaseURLResolution(t *testing.T) {
	t.Setenv("REPSYNC_SERVER_URL", "")
	c := New(Options{}, NewTokenStore(newMemKV(), discardLogger()), discardLogger())
	if c.BaseURL() != "http://localhost:8000" {
		t.Errorf("fallback base URL = %q, want http://localhost:8000", c.BaseURL())
	}

	t.Setenv("REPSYNC_SERVER_URL", "https://reps.example.com/")
	c = New(Options{}, NewTokenStore(newMemKV(), discardLogger()), discardLogger())
	if c.BaseURL() != "https://reps.example.com" {
		t.Errorf("env base URL = %q, want https://reps.example.com", c.BaseURL())
	}

	c = New(Options{ServerURL: "http://cfg.example.com"}, NewTokenStore(newMemKV(), discardLogger()), discardLogger())
	if c.BaseURL() != "http://cfg.example.com" {
		t.Errorf("config base URL = %q, want http://cfg.example.com", c.BaseURL())
	}
}

// TestDevHostRewrite verifies loopback hosts are rewritten when the
// dev rewrite is configured, and non-loopback hosts are left alone.
func TestDevHostRewrite(t *testing.T) {
	c := New(Options{ServerURL: "http://localhost:8000", DevHostRewrite: "10.0.2.2"},
		NewTokenStore(newMemKV(), discardLogger()), discardLogger())
	if c.BaseURL() != "http://10.0.2.2:8000" {
		t.Errorf("rewritten base URL = %q, want http://10.0.2.2:8000", c.BaseURL())
	}

	c = New(Options{ServerURL: "http://reps.example.com", DevHostRewrite: "10.0.2.2"},
		NewTokenStore(newMemKV(), discardLogger()), discardLogger())
	if c.BaseURL() != "http://reps.example.com" {
		t.Errorf("non-loopback base URL = %q, want unchanged", c.BaseURL())
	}
}

// TestAPIErrorFromResponse verifies non-2xx responses map to APIError
// with the body's detail and error_code.
func TestAPIErrorFromResponse(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.AddUser("lifter@example.com", "hunter2")

	c := newTestClient(t, srv.URL())
	err := c.Login(context.Background(), "lifter@example.com", "wrong")
	if err == nil {
		t.Fatal("login with wrong password succeeded, want error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.HTTPStatus != http.StatusUnauthorized {
		t.Errorf("HTTPStatus = %d, want 401", apiErr.HTTPStatus)
	}
	if apiErr.ErrorCode != "INVALID_CREDENTIALS" {
		t.Errorf("ErrorCode = %q, want INVALID_CREDENTIALS", apiErr.ErrorCode)
	}
	if apiErr.Message != "Invalid email or password" {
		t.Errorf("Message = %q, want server detail", apiErr.Message)
	}
}

// TestTransportErrorWrapped verifies a transport failure never escapes
// raw: it becomes an APIError with Cause=network and no HTTP status.
func TestTransportErrorWrapped(t *testing.T) {
	srv := apitest.NewServer()
	url := srv.URL()
	srv.Close() // nothing is listening anymore

	c := newTestClient(t, url)
	err := c.Health(context.Background())
	if err == nil {
		t.Fatal("request against closed server succeeded, want error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.Cause != CauseNetwork {
		t.Errorf("Cause = %q, want network", apiErr.Cause)
	}
	if apiErr.HTTPStatus != 0 {
		t.Errorf("HTTPStatus = %d, want 0 (no response received)", apiErr.HTTPStatus)
	}
	if !IsNetworkError(err) {
		t.Error("IsNetworkError = false, want true")
	}
}

// TestRefreshAndRetryOn401 verifies a 401 triggers one token refresh
// and one retry of the original request.
func TestRefreshAndRetryOn401(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.AddUser("lifter@example.com", "hunter2")

	c := newTestClient(t, srv.URL())
	if err := c.Login(context.Background(), "lifter@example.com", "hunter2"); err != nil {
		t.Fatal(err)
	}

	srv.RevokeAccessTokens()

	profile, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("Me after token revocation: %v", err)
	}
	if profile.Email != "lifter@example.com" {
		t.Errorf("email = %q, want lifter@example.com", profile.Email)
	}
	if got := srv.Count("POST", "/auth/refresh"); got != 1 {
		t.Errorf("refresh calls = %d, want 1", got)
	}
	if got := srv.Count("GET", "/auth/me"); got != 2 {
		t.Errorf("me calls = %d, want 2 (original + one retry)", got)
	}
}

// TestRefreshFailureSignsOut verifies an unrecoverable refresh clears
// the tokens and returns ErrSignedOut rather than looping.
func TestRefreshFailureSignsOut(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.AddUser("lifter@example.com", "hunter2")

	c := newTestClient(t, srv.URL())
	if err := c.Login(context.Background(), "lifter@example.com", "hunter2"); err != nil {
		t.Fatal(err)
	}

	srv.RevokeAccessTokens()
	srv.BreakRefresh()

	_, err := c.Me(context.Background())
	if !errors.Is(err, ErrSignedOut) {
		t.Fatalf("error = %v, want ErrSignedOut", err)
	}
	if c.SignedIn() {
		t.Error("SignedIn = true after failed refresh, want false")
	}
}

// TestSingleFlightRefresh verifies concurrent 401s share one refresh
// call instead of each issuing their own.
func TestSingleFlightRefresh(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.AddUser("lifter@example.com", "hunter2")

	c := newTestClient(t, srv.URL())
	if err := c.Login(context.Background(), "lifter@example.com", "hunter2"); err != nil {
		t.Fatal(err)
	}

	srv.RevokeAccessTokens()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Me(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("request %d: %v", i, err)
		}
	}
	if got := srv.Count("POST", "/auth/refresh"); got != 1 {
		t.Errorf("refresh calls = %d, want 1", got)
	}
}

// TestServerErrorSingleRetry verifies a 5xx on a mutation gets exactly
// one backoff retry.
func TestServerErrorSingleRetry(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.AddUser("lifter@example.com", "hunter2")

	c := newTestClient(t, srv.URL())
	if err := c.Login(context.Background(), "lifter@example.com", "hunter2"); err != nil {
		t.Fatal(err)
	}

	srv.FailNext(http.StatusInternalServerError, "INTERNAL", "transient blip")

	created, err := c.CreateWorkout(context.Background(), Workout{Title: "Push Day"})
	if err != nil {
		t.Fatalf("CreateWorkout with one 500: %v", err)
	}
	if created.ID == "" {
		t.Error("created workout has no server ID")
	}
	if got := srv.Count("POST", "/workouts"); got != 2 {
		t.Errorf("create calls = %d, want 2 (original + one retry)", got)
	}
}

// TestValidationErrorNotRetried verifies 4xx mutations surface
// immediately without a retry.
func TestValidationErrorNotRetried(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.AddUser("lifter@example.com", "hunter2")

	c := newTestClient(t, srv.URL())
	if err := c.Login(context.Background(), "lifter@example.com", "hunter2"); err != nil {
		t.Fatal(err)
	}

	_, err := c.CreateWorkout(context.Background(), Workout{Title: "this title is way longer than thirty characters"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Cause != CauseValidation {
		t.Fatalf("error = %v, want validation APIError", err)
	}
	if got := srv.Count("POST", "/workouts"); got != 1 {
		t.Errorf("create calls = %d, want 1 (no retry)", got)
	}
}

// TestListExercisesQueryParams verifies catalog filters reach the
// server and results decode.
func TestListExercisesQueryParams(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.AddUser("lifter@example.com", "hunter2")
	srv.SeedExercises([]apitest.CatalogExercise{
		{ID: 1, Name: "Bench Press", BodyPart: "chest", Equipment: "barbell"},
		{ID: 2, Name: "Incline Bench Press", BodyPart: "chest", Equipment: "dumbbell"},
		{ID: 3, Name: "Squat", BodyPart: "legs", Equipment: "barbell"},
	})

	c := newTestClient(t, srv.URL())
	if err := c.Login(context.Background(), "lifter@example.com", "hunter2"); err != nil {
		t.Fatal(err)
	}

	exs, err := c.ListExercises(context.Background(), ExerciseQuery{Search: "bench", Equipment: "barbell"})
	if err != nil {
		t.Fatal(err)
	}
	if len(exs) != 1 {
		t.Fatalf("got %d exercises, want 1", len(exs))
	}
	if exs[0].Name != "Bench Press" {
		t.Errorf("name = %q, want Bench Press", exs[0].Name)
	}
}

// TestTokenStorePersistence verifies a token survives a token-store
// restart and is gone after Clear.
func TestTokenStorePersistence(t *testing.T) {
	kv := newMemKV()
	ts := NewTokenStore(kv, discardLogger())
	ts.Set(Token{AccessToken: "abc", RefreshToken: "def", TokenType: "bearer"})

	reloaded := NewTokenStore(kv, discardLogger())
	tok, ok := reloaded.Token()
	if !ok {
		t.Fatal("reloaded token store has no token")
	}
	if tok.AccessToken != "abc" || tok.RefreshToken != "def" {
		t.Errorf("token = %+v, want access abc / refresh def", tok)
	}

	reloaded.Clear()
	if _, ok := NewTokenStore(kv, discardLogger()).Token(); ok {
		t.Error("token present after Clear, want absent")
	}
}

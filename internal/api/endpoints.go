package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// tokenResponse is the server's auth response shape.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

func (tr tokenResponse) token() Token {
	return Token{
		AccessToken:  tr.AccessToken,
		TokenType:    tr.TokenType,
		ExpiresAt:    time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
		RefreshToken: tr.RefreshToken,
	}
}

// Workout is the server's workout resource.
type Workout struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Exercises   []WorkoutExercise `json:"exercises"`
}

// WorkoutExercise is one exercise within a server workout.
type WorkoutExercise struct {
	ExerciseID int64        `json:"exercise_id"`
	Name       string       `json:"name"`
	Sets       []WorkoutSet `json:"sets"`
}

// WorkoutSet is one set within a server workout exercise.
type WorkoutSet struct {
	ID     string  `json:"id,omitempty"`
	Weight float64 `json:"weight"`
	Reps   int     `json:"reps"`
	Notes  string  `json:"notes,omitempty"`
}

// Exercise is one entry of the server's exercise catalog.
type Exercise struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	BodyPart  string `json:"body_part"`
	Equipment string `json:"equipment"`
}

// Profile is the authenticated user's account and preferences.
type Profile struct {
	ID          string             `json:"id"`
	Email       string             `json:"email"`
	Name        string             `json:"name"`
	Preferences ProfilePreferences `json:"preferences"`
}

// ProfilePreferences is the preference block synced via PUT /users/profile.
type ProfilePreferences struct {
	WeightUnit         string `json:"weight_unit"`
	DefaultRestSeconds int    `json:"default_rest_seconds"`
	HapticsEnabled     bool   `json:"haptics_enabled"`
}

// ExerciseQuery filters the exercise catalog listing.
type ExerciseQuery struct {
	Search    string
	BodyPart  string
	Equipment string
	Limit     int
	Offset    int
}

func (q ExerciseQuery) encode() string {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.BodyPart != "" {
		v.Set("body_part", q.BodyPart)
	}
	if q.Equipment != "" {
		v.Set("equipment", q.Equipment)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

// Health probes GET /health. Used by the connectivity monitor; the
// context carries the probe's short deadline.
func (c *Client) Health(ctx context.Context) error {
	return c.request(ctx, http.MethodGet, "/health", nil, nil)
}

// Login exchanges credentials for a token pair and stores it.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var tr tokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/login",
		map[string]string{"email": email, "password": password}, &tr)
	if err != nil {
		return err
	}
	c.tokens.Set(tr.token())
	return nil
}

// LoginGoogle exchanges a Google ID token for a token pair and stores it.
func (c *Client) LoginGoogle(ctx context.Context, idToken string) error {
	var tr tokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/google",
		map[string]string{"id_token": idToken}, &tr)
	if err != nil {
		return err
	}
	c.tokens.Set(tr.token())
	return nil
}

// Refresh forces a token refresh now. Normally refreshes happen lazily
// on the first 401; this exists for callers that want to renew ahead of
// a long offline stretch.
func (c *Client) Refresh(ctx context.Context) error {
	return c.refresh(ctx)
}

// Logout destroys the stored token pair. Local only; the server keeps
// no session state worth revoking.
func (c *Client) Logout() {
	c.tokens.Clear()
}

// Me fetches the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile pushes preference changes to the server.
func (c *Client) UpdateProfile(ctx context.Context, prefs ProfilePreferences) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodPut, "/users/profile",
		map[string]any{"preferences": prefs}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListWorkouts fetches the user's workouts.
func (c *Client) ListWorkouts(ctx context.Context) ([]Workout, error) {
	var ws []Workout
	if err := c.do(ctx, http.MethodGet, "/workouts", nil, &ws); err != nil {
		return nil, err
	}
	return ws, nil
}

// CreateWorkout creates a workout and returns the server resource,
// including the server-assigned ID the caller must adopt.
func (c *Client) CreateWorkout(ctx context.Context, w Workout) (*Workout, error) {
	var created Workout
	if err := c.do(ctx, http.MethodPost, "/workouts", w, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetWorkout fetches one workout by server ID.
func (c *Client) GetWorkout(ctx context.Context, id string) (*Workout, error) {
	var w Workout
	if err := c.do(ctx, http.MethodGet, "/workouts/"+id, nil, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

// UpdateWorkout replaces a workout's content on the server.
func (c *Client) UpdateWorkout(ctx context.Context, id string, w Workout) (*Workout, error) {
	var updated Workout
	if err := c.do(ctx, http.MethodPut, "/workouts/"+id, w, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteWorkout removes a workout from the server.
func (c *Client) DeleteWorkout(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/workouts/"+id, nil, nil)
}

// ListExercises queries the exercise catalog.
func (c *Client) ListExercises(ctx context.Context, q ExerciseQuery) ([]Exercise, error) {
	var exs []Exercise
	if err := c.do(ctx, http.MethodGet, "/exercises"+q.encode(), nil, &exs); err != nil {
		return nil, err
	}
	return exs, nil
}

// GetExercise fetches one catalog entry.
func (c *Client) GetExercise(ctx context.Context, id int64) (*Exercise, error) {
	var ex Exercise
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/exercises/%d", id), nil, &ex); err != nil {
		return nil, err
	}
	return &ex, nil
}

func setPath(workoutID string, exerciseID int64, setID string) string {
	p := fmt.Sprintf("/workouts/%s/exercises/%d/sets", workoutID, exerciseID)
	if setID != "" {
		p += "/" + setID
	}
	return p
}

// AddSet appends a set to a workout exercise on the server.
func (c *Client) AddSet(ctx context.Context, workoutID string, exerciseID int64, set WorkoutSet) (*WorkoutSet, error) {
	var created WorkoutSet
	if err := c.do(ctx, http.MethodPost, setPath(workoutID, exerciseID, ""), set, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateSet replaces one set on the server.
func (c *Client) UpdateSet(ctx context.Context, workoutID string, exerciseID int64, setID string, set WorkoutSet) (*WorkoutSet, error) {
	var updated WorkoutSet
	if err := c.do(ctx, http.MethodPut, setPath(workoutID, exerciseID, setID), set, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteSet removes one set on the server.
func (c *Client) DeleteSet(ctx context.Context, workoutID string, exerciseID int64, setID string) error {
	return c.do(ctx, http.MethodDelete, setPath(workoutID, exerciseID, setID), nil, nil)
}

// Package apitest is an in-memory workout server used by tests and
// local development. It implements the REST surface the client
// consumes, with scripted failures and request counters so tests can
// drive the offline and error paths deterministically. It is a test
// fixture, not a product backend.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Wire shapes. Declared here rather than imported from the client so
// the stub stays an independent collaborator with its own contract.

type Workout struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Exercises   []Exercise `json:"exercises"`
}

type Exercise struct {
	ExerciseID int64  `json:"exercise_id"`
	Name       string `json:"name"`
	Sets       []Set  `json:"sets"`
}

type Set struct {
	ID     string  `json:"id,omitempty"`
	Weight float64 `json:"weight"`
	Reps   int     `json:"reps"`
	Notes  string  `json:"notes,omitempty"`
}

type CatalogExercise struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	BodyPart  string `json:"body_part"`
	Equipment string `json:"equipment"`
}

type Preferences struct {
	WeightUnit         string `json:"weight_unit"`
	DefaultRestSeconds int    `json:"default_rest_seconds"`
	HapticsEnabled     bool   `json:"haptics_enabled"`
}

type Profile struct {
	ID          string      `json:"id"`
	Email       string      `json:"email"`
	Name        string      `json:"name"`
	Preferences Preferences `json:"preferences"`
}

// scriptedFailure is returned once by the next matching request.
type scriptedFailure struct {
	status int
	code   string
	detail string
}

// Server is the in-memory API stub.
type Server struct {
	httpSrv *httptest.Server

	mu        sync.Mutex
	users     map[string]string // email -> password
	access    map[string]string // access token -> email
	refresh   map[string]string // refresh token -> email
	profiles  map[string]Profile
	workouts  map[string]*Workout
	exercises []CatalogExercise
	failNext  *scriptedFailure
	failAuth  bool
	counts    map[string]int
}

// NewServer starts the stub. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		users:    make(map[string]string),
		access:   make(map[string]string),
		refresh:  make(map[string]string),
		profiles: make(map[string]Profile),
		workouts: make(map[string]*Workout),
		counts:   make(map[string]int),
	}

	r := chi.NewRouter()
	r.Use(s.countAndFail)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/google", s.handleGoogle)
	r.Post("/auth/refresh", s.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/auth/me", s.handleMe)
		r.Put("/users/profile", s.handleUpdateProfile)
		r.Get("/workouts", s.handleListWorkouts)
		r.Post("/workouts", s.handleCreateWorkout)
		r.Get("/workouts/{id}", s.handleGetWorkout)
		r.Put("/workouts/{id}", s.handleUpdateWorkout)
		r.Delete("/workouts/{id}", s.handleDeleteWorkout)
		r.Get("/exercises", s.handleListExercises)
		r.Get("/exercises/{id}", s.handleGetExercise)
		r.Post("/workouts/{workoutID}/exercises/{exerciseID}/sets", s.handleAddSet)
		r.Put("/workouts/{workoutID}/exercises/{exerciseID}/sets/{setID}", s.handleUpdateSet)
		r.Delete("/workouts/{workoutID}/exercises/{exerciseID}/sets/{setID}", s.handleDeleteSet)
	})

	s.httpSrv = httptest.NewServer(r)
	return s
}

// URL returns the stub's base URL.
func (s *Server) URL() string { return s.httpSrv.URL }

// Close shuts the stub down.
func (s *Server) Close() { s.httpSrv.Close() }

// AddUser registers a login credential pair.
func (s *Server) AddUser(email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = password
	s.profiles[email] = Profile{
		ID:    uuid.NewString(),
		Email: email,
		Name:  strings.SplitN(email, "@", 2)[0],
		Preferences: Preferences{
			WeightUnit:         "kg",
			DefaultRestSeconds: 90,
			HapticsEnabled:     true,
		},
	}
}

// SeedExercises loads the catalog served by /exercises.
func (s *Server) SeedExercises(exs []CatalogExercise) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exercises = append([]CatalogExercise(nil), exs...)
}

// FailNext makes the next non-health request fail once with the given
// status and error body.
func (s *Server) FailNext(status int, code, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = &scriptedFailure{status: status, code: code, detail: detail}
}

// RevokeAccessTokens invalidates all issued access tokens while keeping
// refresh tokens valid, forcing clients through the 401-refresh path.
func (s *Server) RevokeAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = make(map[string]string)
}

// BreakRefresh additionally makes /auth/refresh fail, so the refresh
// path ends in a forced sign-out.
func (s *Server) BreakRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAuth = true
}

// Count returns how many times method+path was requested, e.g.
// Count("POST", "/workouts").
func (s *Server) Count(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[method+" "+path]
}

// Workout returns a stored workout by ID.
func (s *Server) Workout(id string) (Workout, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workouts[id]
	if !ok {
		return Workout{}, false
	}
	return *w, true
}

// WorkoutCount returns how many workouts the stub holds.
func (s *Server) WorkoutCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workouts)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail, "error_code": code})
}

// countAndFail records the request and serves a scripted failure if one
// is armed. The health endpoint is exempt so connectivity probes stay
// truthful.
func (s *Server) countAndFail(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.counts[r.Method+" "+r.URL.Path]++
		var fail *scriptedFailure
		if s.failNext != nil && r.URL.Path != "/health" {
			fail = s.failNext
			s.failNext = nil
		}
		s.mu.Unlock()

		if fail != nil {
			writeError(w, fail.status, fail.code, fail.detail)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		email, ok := s.access[tok]
		s.mu.Unlock()
		if tok == "" || !ok {
			writeError(w, http.StatusUnauthorized, "NOT_AUTHENTICATED", "Not authenticated")
			return
		}
		r.Header.Set("X-Test-User", email)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) issueTokens(email string) map[string]any {
	access := uuid.NewString()
	refresh := uuid.NewString()
	s.access[access] = email
	s.refresh[refresh] = email
	return map[string]any{
		"access_token":  access,
		"token_type":    "bearer",
		"expires_in":    3600,
		"refresh_token": refresh,
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON: "+err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if pw, ok := s.users[req.Email]; !ok || pw != req.Password {
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
		return
	}
	writeJSON(w, http.StatusOK, s.issueTokens(req.Email))
}

func (s *Server) handleGoogle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDToken string `json:"id_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IDToken == "" {
		writeError(w, http.StatusBadRequest, "INVALID_TOKEN", "Missing Google ID token")
		return
	}

	email := "google-user@example.com"
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[email]; !ok {
		s.users[email] = ""
		s.profiles[email] = Profile{ID: uuid.NewString(), Email: email, Name: "Google User"}
	}
	writeJSON(w, http.StatusOK, s.issueTokens(email))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON: "+err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAuth {
		writeError(w, http.StatusUnauthorized, "TOKEN_INVALID", "Refresh token rejected")
		return
	}
	email, ok := s.refresh[req.RefreshToken]
	if !ok {
		writeError(w, http.StatusUnauthorized, "TOKEN_INVALID", "Unknown refresh token")
		return
	}
	delete(s.refresh, req.RefreshToken)
	writeJSON(w, http.StatusOK, s.issueTokens(email))
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.profiles[r.Header.Get("X-Test-User")])
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Preferences Preferences `json:"preferences"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON: "+err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	email := r.Header.Get("X-Test-User")
	p := s.profiles[email]
	p.Preferences = req.Preferences
	s.profiles[email] = p
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleListWorkouts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Workout, 0, len(s.workouts))
	for _, wk := range s.workouts {
		out = append(out, *wk)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateWorkout(w http.ResponseWriter, r *http.Request) {
	var wk Workout
	if err := json.NewDecoder(r.Body).Decode(&wk); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON: "+err.Error())
		return
	}
	if len(wk.Title) > 30 {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Title must be 30 characters or fewer")
		return
	}

	wk.ID = uuid.NewString()
	for i := range wk.Exercises {
		for j := range wk.Exercises[i].Sets {
			wk.Exercises[i].Sets[j].ID = uuid.NewString()
		}
	}

	s.mu.Lock()
	s.workouts[wk.ID] = &wk
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, wk)
}

func (s *Server) getWorkout(r *http.Request) (*Workout, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		id = chi.URLParam(r, "workoutID")
	}
	wk, ok := s.workouts[id]
	return wk, ok
}

func (s *Server) handleGetWorkout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wk, ok := s.getWorkout(r)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Workout not found")
		return
	}
	writeJSON(w, http.StatusOK, *wk)
}

func (s *Server) handleUpdateWorkout(w http.ResponseWriter, r *http.Request) {
	var in Workout
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON: "+err.Error())
		return
	}
	if len(in.Title) > 30 {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Title must be 30 characters or fewer")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	wk, ok := s.getWorkout(r)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Workout not found")
		return
	}
	in.ID = wk.ID
	*wk = in
	writeJSON(w, http.StatusOK, *wk)
}

func (s *Server) handleDeleteWorkout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wk, ok := s.getWorkout(r)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Workout not found")
		return
	}
	delete(s.workouts, wk.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleListExercises(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	search := strings.ToLower(q.Get("search"))
	bodyPart := q.Get("body_part")
	equipment := q.Get("equipment")
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []CatalogExercise
	for _, ex := range s.exercises {
		if search != "" && !strings.Contains(strings.ToLower(ex.Name), search) {
			continue
		}
		if bodyPart != "" && !strings.EqualFold(ex.BodyPart, bodyPart) {
			continue
		}
		if equipment != "" && !strings.EqualFold(ex.Equipment, equipment) {
			continue
		}
		out = append(out, ex)
	}
	if offset > 0 {
		if offset >= len(out) {
			out = nil
		} else {
			out = out[offset:]
		}
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	if out == nil {
		out = []CatalogExercise{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetExercise(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid exercise ID")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ex := range s.exercises {
		if ex.ID == id {
			writeJSON(w, http.StatusOK, ex)
			return
		}
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Exercise not found")
}

func (s *Server) findExercise(r *http.Request, wk *Workout) *Exercise {
	id, err := strconv.ParseInt(chi.URLParam(r, "exerciseID"), 10, 64)
	if err != nil {
		return nil
	}
	for i := range wk.Exercises {
		if wk.Exercises[i].ExerciseID == id {
			return &wk.Exercises[i]
		}
	}
	return nil
}

func (s *Server) handleAddSet(w http.ResponseWriter, r *http.Request) {
	var set Set
	if err := json.NewDecoder(r.Body).Decode(&set); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON: "+err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	wk, ok := s.getWorkout(r)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Workout not found")
		return
	}
	ex := s.findExercise(r, wk)
	if ex == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Exercise not in workout")
		return
	}
	set.ID = uuid.NewString()
	ex.Sets = append(ex.Sets, set)
	writeJSON(w, http.StatusCreated, set)
}

func (s *Server) handleUpdateSet(w http.ResponseWriter, r *http.Request) {
	var in Set
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON: "+err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	wk, ok := s.getWorkout(r)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Workout not found")
		return
	}
	ex := s.findExercise(r, wk)
	if ex == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Exercise not in workout")
		return
	}
	setID := chi.URLParam(r, "setID")
	for i := range ex.Sets {
		if ex.Sets[i].ID == setID {
			in.ID = setID
			ex.Sets[i] = in
			writeJSON(w, http.StatusOK, in)
			return
		}
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Set not found")
}

func (s *Server) handleDeleteSet(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wk, ok := s.getWorkout(r)
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Workout not found")
		return
	}
	ex := s.findExercise(r, wk)
	if ex == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Exercise not in workout")
		return
	}
	setID := chi.URLParam(r, "setID")
	for i := range ex.Sets {
		if ex.Sets[i].ID == setID {
			ex.Sets = append(ex.Sets[:i], ex.Sets[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
			return
		}
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Set not found")
}

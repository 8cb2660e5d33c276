package workout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/meltforce/repsync/internal/api"
	"github.com/meltforce/repsync/internal/persist"
)

// ErrNoSession is returned by operations that need an active session.
var ErrNoSession = errors.New("no active workout session")

// errNoCompletedSets is the store error set when ending a workout
// without meaningful data. The session stays active.
const errNoCompletedSets = "No exercises with completed sets. Complete at least one set before ending the workout."

// API is the slice of the HTTP client the store drives. *api.Client
// satisfies it; tests substitute a scripted fake.
type API interface {
	SignedIn() bool
	CreateWorkout(ctx context.Context, w api.Workout) (*api.Workout, error)
	UpdateWorkout(ctx context.Context, id string, w api.Workout) (*api.Workout, error)
}

var _ API = (*api.Client)(nil)

// Alerter receives the user-visible failures. Network-classified
// failures never reach it.
type Alerter interface {
	Alert(title, message string)
}

// Status summarizes sync state for display.
type Status struct {
	SignedIn      bool
	SessionActive bool
	Pending       int
	LastError     string
}

// Store owns the current session, the history, and the sync queue, and
// serializes all mutations behind one mutex. Per mutation the decision
// is: guest → local only; signed in → attempt the server call, adopt
// server IDs on success, queue silently on network failure, alert on
// anything else.
type Store struct {
	api     API
	alerter Alerter
	log     *slog.Logger

	debCurrent *persist.Debouncer
	debHistory *persist.Debouncer
	debQueue   *persist.Debouncer

	mu     sync.Mutex
	sess   Session
	hist   []HistoryItem
	queue  []QueueEntry
	errMsg string
}

// NewStore creates a Store with per-key debounced persistence.
func NewStore(a API, st *persist.Store, alerter Alerter, log *slog.Logger) *Store {
	return &Store{
		api:        a,
		alerter:    alerter,
		log:        log,
		debCurrent: persist.NewDebouncer(st, persist.KeyCurrentWorkout, 0, log),
		debHistory: persist.NewDebouncer(st, persist.KeyHistory, 0, log),
		debQueue:   persist.NewDebouncer(st, persist.KeySyncQueue, 0, log),
	}
}

// Hydrate restores the current session, history, and sync queue from
// local storage. Missing or unreadable documents leave the zero values.
func (s *Store) Hydrate(st *persist.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sess Session
	if ok, err := st.Get(persist.KeyCurrentWorkout, &sess); err != nil {
		s.log.Warn("loading current workout", "error", err)
	} else if ok {
		s.sess = sess
	}

	var hist []HistoryItem
	if ok, err := st.Get(persist.KeyHistory, &hist); err != nil {
		s.log.Warn("loading workout history", "error", err)
	} else if ok {
		s.hist = hist
	}

	var queue []QueueEntry
	if ok, err := st.Get(persist.KeySyncQueue, &queue); err != nil {
		s.log.Warn("loading sync queue", "error", err)
	} else if ok {
		s.queue = queue
	}
}

// Close flushes pending persistence writes.
func (s *Store) Close() {
	s.debCurrent.Close()
	s.debHistory.Close()
	s.debQueue.Close()
}

// Session returns a copy of the current session.
func (s *Store) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sess
	sess.Exercises = copyExercises(s.sess.Exercises)
	return sess
}

// History returns a copy of the completed-workout list.
func (s *Store) History() []HistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]HistoryItem(nil), s.hist...)
}

// Err returns the store's current user-facing error message, if any.
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Status reports sync state for display: the pending queue is surfaced
// passively here rather than ever alerting the user about it.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		SignedIn:      s.api.SignedIn(),
		SessionActive: s.sess.Active,
		Pending:       len(s.queue),
	}
	if n := len(s.queue); n > 0 && s.queue[n-1].LastError != nil {
		st.LastError = s.queue[n-1].LastError.Message
	}
	return st
}

// AddExercises copies the given exercises into the session, starting a
// new session if none is active, then pushes the change to the server
// under the orchestration rules. The caller may proceed on a nil return
// even if the server was unreachable.
func (s *Store) AddExercises(ctx context.Context, exs []Exercise) error {
	s.mu.Lock()
	if !s.sess.Active {
		now := time.Now()
		s.sess = Session{StartTime: &now, Active: true}
	}
	s.sess.Exercises = append(s.sess.Exercises, copyExercises(exs)...)
	s.sess.UnsavedChanges = true
	s.errMsg = ""
	needCreate := s.sess.ServerWorkoutID == ""
	s.persistCurrentLocked()
	s.mu.Unlock()

	if needCreate {
		return s.CreateWorkoutOnServer(ctx)
	}
	return s.SyncWorkoutToServer(ctx)
}

// UpdateExerciseSets replaces the sets of one exercise in the session
// and syncs the session to the server.
func (s *Store) UpdateExerciseSets(ctx context.Context, exerciseID int64, sets []Set) error {
	s.mu.Lock()
	if !s.sess.Active {
		s.mu.Unlock()
		return ErrNoSession
	}
	found := false
	for i := range s.sess.Exercises {
		if s.sess.Exercises[i].ID == exerciseID {
			s.sess.Exercises[i].Sets = append([]Set(nil), sets...)
			found = true
			break
		}
	}
	if !found {
		s.mu.Unlock()
		return fmt.Errorf("exercise %d not in session", exerciseID)
	}
	s.sess.UnsavedChanges = true
	s.persistCurrentLocked()
	s.mu.Unlock()

	return s.SyncWorkoutToServer(ctx)
}

// SetTitle sets the session title. Titles longer than MaxTitleLength
// are rejected and the stored title is left unchanged.
func (s *Store) SetTitle(title string) error {
	if len([]rune(title)) > MaxTitleLength {
		return fmt.Errorf("title exceeds %d characters", MaxTitleLength)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess.Title = title
	s.sess.UnsavedChanges = true
	s.persistCurrentLocked()
	return nil
}

// ClearAllExercises resets the session to empty. Idempotent: a second
// call on an already-empty session is a no-op with the same result.
func (s *Store) ClearAllExercises() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = Session{}
	s.errMsg = ""
	s.persistCurrentLocked()
}

// DiscardSession drops the session and any queued mutations for it.
func (s *Store) DiscardSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = Session{}
	s.queue = nil
	s.errMsg = ""
	s.persistCurrentLocked()
	s.persistQueueLocked()
}

// EndWorkout completes the session. It is gated on meaningful data: at
// least one exercise must have a set with reps > 0 and either a weight,
// a recognized bodyweight movement name, or free-text notes. When the
// gate fails the store error is set and the session stays active.
func (s *Store) EndWorkout(ctx context.Context) error {
	s.mu.Lock()
	if !s.sess.Active {
		s.mu.Unlock()
		return ErrNoSession
	}
	if !hasCompletedSet(s.sess.Exercises) {
		s.errMsg = errNoCompletedSets
		s.mu.Unlock()
		return errors.New(errNoCompletedSets)
	}
	s.errMsg = ""
	s.mu.Unlock()

	return s.SaveWorkout(ctx)
}

// hasCompletedSet is the sole gate for "has meaningful data".
func hasCompletedSet(exs []Exercise) bool {
	for _, ex := range exs {
		for _, set := range ex.Sets {
			if set.Reps <= 0 {
				continue
			}
			if set.Weight > 0 || IsBodyweightMovement(ex.Name) || set.Notes != "" {
				return true
			}
		}
	}
	return false
}

// SaveWorkout snapshots the session into history, resets the session,
// and pushes the completed workout to the server. Guests get the
// documented discard: no history is written and no server call is made.
// A deferred queue is drained first so an explicit save doubles as a
// reconciliation pass.
func (s *Store) SaveWorkout(ctx context.Context) error {
	s.Reconcile(ctx)

	s.mu.Lock()
	if !s.sess.Active {
		s.mu.Unlock()
		return ErrNoSession
	}

	if !s.api.SignedIn() {
		s.sess = Session{}
		s.queue = nil
		s.persistCurrentLocked()
		s.persistQueueLocked()
		s.mu.Unlock()
		s.log.Info("guest workout discarded on save")
		return nil
	}

	totalSets, totalReps, maxWeight := aggregates(s.sess.Exercises)
	item := HistoryItem{
		ID:              uuid.NewString(),
		Title:           s.sess.Title,
		SavedAt:         time.Now(),
		Exercises:       copyExercises(s.sess.Exercises),
		TotalSets:       totalSets,
		TotalReps:       totalReps,
		MaxWeight:       maxWeight,
		ServerWorkoutID: s.sess.ServerWorkoutID,
	}
	s.hist = append(s.hist, item)
	s.persistHistoryLocked()

	payload := serverWorkout(s.sess)
	now := time.Now()
	payload.CompletedAt = &now
	serverID := s.sess.ServerWorkoutID

	s.sess = Session{}
	s.persistCurrentLocked()
	s.mu.Unlock()

	var err error
	if serverID != "" {
		_, err = s.api.UpdateWorkout(ctx, serverID, payload)
	} else {
		_, err = s.api.CreateWorkout(ctx, payload)
	}
	if err == nil {
		s.log.Info("workout saved", "history_id", item.ID, "sets", totalSets)
		return nil
	}
	if api.IsNetworkError(err) {
		s.enqueue(OpComplete, payload, err)
		return nil
	}
	s.alerter.Alert("Error Saving Workout", userMessage(err))
	return err
}

// CreateWorkoutOnServer creates the session's server twin. Guest
// sessions never attempt a server call. Network failures queue the
// create silently and the local success path continues; other failures
// alert the user exactly once and propagate.
func (s *Store) CreateWorkoutOnServer(ctx context.Context) error {
	if !s.api.SignedIn() {
		return nil
	}

	s.mu.Lock()
	if !s.sess.Active {
		s.mu.Unlock()
		return ErrNoSession
	}
	payload := serverWorkout(s.sess)
	s.mu.Unlock()

	created, err := s.api.CreateWorkout(ctx, payload)
	if err == nil {
		s.mu.Lock()
		if s.sess.Active {
			s.sess.ServerWorkoutID = created.ID
			s.sess.UnsavedChanges = false
			s.persistCurrentLocked()
		}
		s.mu.Unlock()
		s.log.Info("workout created on server", "workout_id", created.ID)
		return nil
	}

	if api.IsNetworkError(err) {
		s.enqueue(OpCreate, payload, err)
		s.log.Debug("deferring workout create", "error", err)
		return nil
	}

	s.alerter.Alert("Error Creating Workout", userMessage(err))
	return err
}

// SyncWorkoutToServer pushes the current session content to its server
// twin, creating the twin first if it does not exist yet.
func (s *Store) SyncWorkoutToServer(ctx context.Context) error {
	if !s.api.SignedIn() {
		return nil
	}

	s.mu.Lock()
	if !s.sess.Active {
		s.mu.Unlock()
		return ErrNoSession
	}
	serverID := s.sess.ServerWorkoutID
	payload := serverWorkout(s.sess)
	s.mu.Unlock()

	if serverID == "" {
		return s.CreateWorkoutOnServer(ctx)
	}

	_, err := s.api.UpdateWorkout(ctx, serverID, payload)
	if err == nil {
		s.mu.Lock()
		s.sess.UnsavedChanges = false
		s.persistCurrentLocked()
		s.mu.Unlock()
		return nil
	}

	if api.IsNetworkError(err) {
		s.enqueue(OpUpdate, payload, err)
		s.log.Debug("deferring workout update", "workout_id", serverID, "error", err)
		return nil
	}

	s.alerter.Alert("Error Updating Workout", userMessage(err))
	return err
}

// Reconcile retries every deferred mutation exactly once. A repeated
// failure leaves the entry queued for the next reconnect or explicit
// save; there is no retry loop here. Returns how many entries synced.
func (s *Store) Reconcile(ctx context.Context) int {
	if !s.api.SignedIn() {
		return 0
	}

	s.mu.Lock()
	pending := append([]QueueEntry(nil), s.queue...)
	s.mu.Unlock()
	if len(pending) == 0 {
		return 0
	}

	synced := 0
	for _, entry := range pending {
		created, err := s.replay(ctx, entry)
		if err != nil {
			s.mu.Lock()
			for i := range s.queue {
				if s.queue[i].ID == entry.ID {
					s.queue[i].AttemptedAt = time.Now()
					s.queue[i].LastError = queueError(err)
					break
				}
			}
			s.persistQueueLocked()
			s.mu.Unlock()
			s.log.Debug("deferred sync still failing", "entry", entry.ID, "op", entry.Op, "error", err)
			continue
		}

		s.mu.Lock()
		s.removeEntryLocked(entry.ID)
		if entry.Op == OpCreate && created != nil && s.sess.Active && s.sess.ServerWorkoutID == "" {
			s.sess.ServerWorkoutID = created.ID
			s.persistCurrentLocked()
		}
		s.persistQueueLocked()
		s.mu.Unlock()
		synced++
	}

	if synced > 0 {
		s.log.Info("reconciled deferred mutations", "synced", synced, "remaining", len(pending)-synced)
	}
	return synced
}

// replay performs one deferred mutation against the server.
func (s *Store) replay(ctx context.Context, entry QueueEntry) (*api.Workout, error) {
	switch entry.Op {
	case OpCreate:
		return s.api.CreateWorkout(ctx, entry.Payload)
	default:
		if entry.Payload.ID == "" {
			return s.api.CreateWorkout(ctx, entry.Payload)
		}
		return s.api.UpdateWorkout(ctx, entry.Payload.ID, entry.Payload)
	}
}

// LoadWorkoutFromHistory reconstructs an active session from a saved
// history item, copying the snapshot so the history stays immutable.
func (s *Store) LoadWorkoutFromHistory(item HistoryItem) Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.sess = Session{
		Exercises:      copyExercises(item.Exercises),
		Title:          item.Title,
		StartTime:      &now,
		Active:         true,
		UnsavedChanges: true,
	}
	s.errMsg = ""
	s.persistCurrentLocked()
	sess := s.sess
	sess.Exercises = copyExercises(s.sess.Exercises)
	return sess
}

// UpdateHistoryTitle renames a saved workout. The same length cap as
// session titles applies.
func (s *Store) UpdateHistoryTitle(id, title string) error {
	if len([]rune(title)) > MaxTitleLength {
		return fmt.Errorf("title exceeds %d characters", MaxTitleLength)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.hist {
		if s.hist[i].ID == id {
			s.hist[i].Title = title
			s.persistHistoryLocked()
			return nil
		}
	}
	return fmt.Errorf("no history item %s", id)
}

// enqueue records a network-failed mutation for the next reconnect.
func (s *Store) enqueue(op Op, payload api.Workout, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, QueueEntry{
		ID:          uuid.NewString(),
		Op:          op,
		Payload:     payload,
		AttemptedAt: time.Now(),
		LastError:   queueError(cause),
	})
	s.persistQueueLocked()
}

func (s *Store) removeEntryLocked(id string) {
	for i := range s.queue {
		if s.queue[i].ID == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// serverWorkout maps a session to the server's workout shape.
func serverWorkout(sess Session) api.Workout {
	w := api.Workout{
		ID:        sess.ServerWorkoutID,
		Title:     sess.Title,
		StartedAt: sess.StartTime,
	}
	for _, ex := range sess.Exercises {
		we := api.WorkoutExercise{ExerciseID: ex.ID, Name: ex.Name}
		for _, set := range ex.Sets {
			we.Sets = append(we.Sets, api.WorkoutSet{
				Weight: set.Weight,
				Reps:   set.Reps,
				Notes:  set.Notes,
			})
		}
		w.Exercises = append(w.Exercises, we)
	}
	return w
}

// userMessage formats the alert body for a surfaced failure.
func userMessage(err error) string {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message + " Please try again."
	}
	return err.Error() + " Please try again."
}

// Snapshot persistence. Each helper is called with the mutex held and
// hands the debouncer a deep copy so later writes see a frozen value.

func (s *Store) persistCurrentLocked() {
	sess := s.sess
	sess.Exercises = copyExercises(s.sess.Exercises)
	s.debCurrent.Write(sess)
}

func (s *Store) persistHistoryLocked() {
	s.debHistory.Write(append([]HistoryItem(nil), s.hist...))
}

func (s *Store) persistQueueLocked() {
	s.debQueue.Write(append([]QueueEntry(nil), s.queue...))
}

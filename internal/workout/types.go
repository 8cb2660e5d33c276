// Package workout holds the in-progress session, the completed-workout
// history, and the offline-aware orchestration that decides, per
// mutation, whether to call the server, keep only local state, or fall
// back to local persistence and reconcile later.
package workout

import (
	"time"
)

// MaxTitleLength caps workout titles. Longer writes are rejected, not
// truncated.
const MaxTitleLength = 30

// Set is one performed set of an exercise.
type Set struct {
	Weight float64 `json:"weight"`
	Reps   int     `json:"reps"`
	Notes  string  `json:"notes,omitempty"`
}

// Exercise is one exercise inside a session, with its sets in the order
// they were performed. Exercises are copied, never shared, when added
// to a session.
type Exercise struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Sets []Set  `json:"sets"`
}

// Session is the device's current in-progress workout. Created when the
// first exercise is added, reset on save or discard. ServerWorkoutID is
// set only after a successful create round trip and means "this local
// session has a durable server twin".
type Session struct {
	Exercises       []Exercise `json:"exercises"`
	Title           string     `json:"title"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	Active          bool       `json:"active"`
	UnsavedChanges  bool       `json:"unsaved_changes"`
	ServerWorkoutID string     `json:"server_workout_id,omitempty"`
}

// HistoryItem is an immutable snapshot of a completed session plus
// computed aggregates. Append-only; only the title may be edited
// afterwards.
type HistoryItem struct {
	ID              string             `json:"id"`
	Title           string             `json:"title"`
	SavedAt         time.Time          `json:"saved_at"`
	Exercises       []Exercise         `json:"exercises"`
	TotalSets       int                `json:"total_sets"`
	TotalReps       int                `json:"total_reps"`
	MaxWeight       map[string]float64 `json:"max_weight"`
	ServerWorkoutID string             `json:"server_workout_id,omitempty"`
}

// copyExercises deep-copies an exercise list so sessions, history items,
// and persistence snapshots never alias each other's sets.
func copyExercises(exs []Exercise) []Exercise {
	if exs == nil {
		return nil
	}
	out := make([]Exercise, len(exs))
	for i, ex := range exs {
		out[i] = ex
		out[i].Sets = append([]Set(nil), ex.Sets...)
	}
	return out
}

// aggregates computes the history snapshot's totals: set count, rep
// count, and max weight per exercise name.
func aggregates(exs []Exercise) (totalSets, totalReps int, maxWeight map[string]float64) {
	maxWeight = make(map[string]float64)
	for _, ex := range exs {
		for _, set := range ex.Sets {
			totalSets++
			totalReps += set.Reps
			if set.Weight > maxWeight[ex.Name] {
				maxWeight[ex.Name] = set.Weight
			}
		}
	}
	return totalSets, totalReps, maxWeight
}

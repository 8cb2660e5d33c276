package mcp

import (
	"context"

	"github.com/meltforce/repsync/internal/api"
	"github.com/meltforce/repsync/internal/catalog"
	"github.com/meltforce/repsync/internal/workout"
)

// DataSource abstracts the client's local data for MCP tools. The
// assistant reads the same stores the CLI does, so everything here
// works fully offline.
type DataSource interface {
	History() []workout.HistoryItem
	CurrentSession() workout.Session
	SyncStatus() workout.Status
	SearchExercises(ctx context.Context, q api.ExerciseQuery) ([]api.Exercise, error)
}

// LocalSource implements DataSource over the workout store and the
// exercise catalog.
type LocalSource struct {
	Workouts *workout.Store
	Catalog  *catalog.Catalog
}

// Compile-time check: LocalSource satisfies DataSource.
var _ DataSource = (*LocalSource)(nil)

func (s *LocalSource) History() []workout.HistoryItem {
	return s.Workouts.History()
}

func (s *LocalSource) CurrentSession() workout.Session {
	return s.Workouts.Session()
}

func (s *LocalSource) SyncStatus() workout.Status {
	return s.Workouts.Status()
}

func (s *LocalSource) SearchExercises(ctx context.Context, q api.ExerciseQuery) ([]api.Exercise, error) {
	return s.Catalog.Search(ctx, q)
}

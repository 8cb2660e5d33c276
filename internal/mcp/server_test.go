package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/meltforce/repsync/internal/api"
	"github.com/meltforce/repsync/internal/workout"
)

// fakeSource serves canned local data to the tool handlers.
type fakeSource struct {
	hist      []workout.HistoryItem
	sess      workout.Session
	status    workout.Status
	exercises []api.Exercise
	searchErr error
	lastQuery api.ExerciseQuery
}

func (f *fakeSource) History() []workout.HistoryItem    { return append([]workout.HistoryItem(nil), f.hist...) }
func (f *fakeSource) CurrentSession() workout.Session   { return f.sess }
func (f *fakeSource) SyncStatus() workout.Status        { return f.status }
func (f *fakeSource) SearchExercises(ctx context.Context, q api.ExerciseQuery) ([]api.Exercise, error) {
	f.lastQuery = q
	return f.exercises, f.searchErr
}

func newTestHandlers(ds DataSource) *handlers {
	return &handlers{ds: ds, log: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func callRequest(args map[string]any) mcplib.CallToolRequest {
	req := mcplib.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// resultText extracts the text payload from a tool result.
func resultText(t *testing.T, res *mcplib.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("tool result has no content")
	}
	text, ok := res.Content[0].(mcplib.TextContent)
	if !ok {
		t.Fatalf("content type = %T, want TextContent", res.Content[0])
	}
	return text.Text
}

func historyFixture() []workout.HistoryItem {
	day := 24 * time.Hour
	return []workout.HistoryItem{
		{ID: "h1", Title: "Push Day", SavedAt: time.Now().Add(-2 * day), TotalSets: 9},
		{ID: "h2", Title: "Pull Day", SavedAt: time.Now().Add(-1 * day), TotalSets: 12},
		{ID: "h3", Title: "Leg Day", SavedAt: time.Now(), TotalSets: 15},
	}
}

// TestListWorkoutsNewestFirst verifies ordering and the limit argument.
func TestListWorkoutsNewestFirst(t *testing.T) {
	h := newTestHandlers(&fakeSource{hist: historyFixture()})

	res, err := h.listWorkouts(context.Background(), callRequest(map[string]any{"limit": 2}))
	if err != nil {
		t.Fatal(err)
	}

	var items []workout.HistoryItem
	if err := json.Unmarshal([]byte(resultText(t, res)), &items); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if items[0].ID != "h3" || items[1].ID != "h2" {
		t.Errorf("order = %s, %s; want h3, h2 (newest first)", items[0].ID, items[1].ID)
	}
}

// TestGetWorkout verifies lookup by history ID and the missing case.
func TestGetWorkout(t *testing.T) {
	h := newTestHandlers(&fakeSource{hist: historyFixture()})
	ctx := context.Background()

	res, err := h.getWorkout(ctx, callRequest(map[string]any{"id": "h2"}))
	if err != nil {
		t.Fatal(err)
	}
	var item workout.HistoryItem
	if err := json.Unmarshal([]byte(resultText(t, res)), &item); err != nil {
		t.Fatal(err)
	}
	if item.Title != "Pull Day" {
		t.Errorf("title = %q, want Pull Day", item.Title)
	}

	res, err = h.getWorkout(ctx, callRequest(map[string]any{"id": "nope"}))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("lookup of unknown ID did not produce a tool error")
	}

	res, err = h.getWorkout(ctx, callRequest(nil))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError {
		t.Error("missing id argument did not produce a tool error")
	}
}

// TestSearchExercises verifies arguments map onto the catalog query and
// failures surface as tool errors.
func TestSearchExercises(t *testing.T) {
	f := &fakeSource{exercises: []api.Exercise{{ID: 1, Name: "Bench Press"}}}
	h := newTestHandlers(f)

	res, err := h.searchExercises(context.Background(), callRequest(map[string]any{
		"search":    "bench",
		"body_part": "chest",
		"limit":     5,
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	if f.lastQuery.Search != "bench" || f.lastQuery.BodyPart != "chest" || f.lastQuery.Limit != 5 {
		t.Errorf("query = %+v, want search/body_part/limit from arguments", f.lastQuery)
	}

	var exs []api.Exercise
	if err := json.Unmarshal([]byte(resultText(t, res)), &exs); err != nil {
		t.Fatal(err)
	}
	if len(exs) != 1 || exs[0].Name != "Bench Press" {
		t.Errorf("result = %+v, want Bench Press", exs)
	}
}

// TestSyncStatus verifies the status tool reports the store's state.
func TestSyncStatus(t *testing.T) {
	h := newTestHandlers(&fakeSource{status: workout.Status{
		SignedIn:      true,
		SessionActive: true,
		Pending:       3,
	}})

	res, err := h.syncStatus(context.Background(), callRequest(nil))
	if err != nil {
		t.Fatal(err)
	}

	var st workout.Status
	if err := json.Unmarshal([]byte(resultText(t, res)), &st); err != nil {
		t.Fatal(err)
	}
	if !st.SignedIn || !st.SessionActive || st.Pending != 3 {
		t.Errorf("status = %+v, want signed-in, active, 3 pending", st)
	}
}

// TestCurrentSessionResource verifies the resource serves the session
// as JSON at the requested URI.
func TestCurrentSessionResource(t *testing.T) {
	now := time.Now()
	h := newTestHandlers(&fakeSource{sess: workout.Session{
		Title:     "Morning Push",
		StartTime: &now,
		Active:    true,
		Exercises: []workout.Exercise{{ID: 1, Name: "Bench Press"}},
	}})

	req := mcplib.ReadResourceRequest{}
	req.Params.URI = "repsync://current_session"

	contents, err := h.currentSession(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 1 {
		t.Fatalf("got %d contents, want 1", len(contents))
	}
	text, ok := contents[0].(mcplib.TextResourceContents)
	if !ok {
		t.Fatalf("contents type = %T, want TextResourceContents", contents[0])
	}
	if text.URI != "repsync://current_session" {
		t.Errorf("URI = %q, want repsync://current_session", text.URI)
	}

	var sess workout.Session
	if err := json.Unmarshal([]byte(text.Text), &sess); err != nil {
		t.Fatal(err)
	}
	if sess.Title != "Morning Push" || !sess.Active {
		t.Errorf("session = %+v, want active Morning Push", sess)
	}
}

package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/meltforce/repsync/internal/api"
)

// --- Tool definitions ---

var toolListWorkouts = mcp.NewTool("list_workouts",
	mcp.WithDescription("List completed workouts from local history, newest first. Each item includes title, date, total sets/reps, and max weight per exercise."),
	mcp.WithNumber("limit", mcp.Description("Maximum number of workouts to return. Defaults to 20.")),
)

var toolGetWorkout = mcp.NewTool("get_workout",
	mcp.WithDescription("Get one completed workout by its history ID, including every exercise and set."),
	mcp.WithString("id", mcp.Required(), mcp.Description("History item ID")),
)

var toolSearchExercises = mcp.NewTool("search_exercises",
	mcp.WithDescription("Search the exercise catalog. Served from the server when reachable, otherwise from the local snapshot."),
	mcp.WithString("search", mcp.Description("Name substring to match (e.g. 'bench press')")),
	mcp.WithString("body_part", mcp.Description("Filter by body part (e.g. 'chest', 'legs')")),
	mcp.WithString("equipment", mcp.Description("Filter by equipment (e.g. 'barbell', 'bodyweight')")),
	mcp.WithNumber("limit", mcp.Description("Maximum number of results. Defaults to 25.")),
)

var toolSyncStatus = mcp.NewTool("sync_status",
	mcp.WithDescription("Report sync state: signed-in status, whether a session is active, and how many mutations are queued waiting for connectivity."),
)

// --- Tool handlers ---

func (h *handlers) listWorkouts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 20)

	items := h.ds.History()
	// Newest first.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}

	result, err := mcp.NewToolResultJSON(items)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getWorkout(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError("id parameter is required"), nil
	}

	for _, item := range h.ds.History() {
		if item.ID == id {
			result, err := mcp.NewToolResultJSON(item)
			if err != nil {
				return mcp.NewToolResultError("serialization failed"), nil
			}
			return result, nil
		}
	}
	return mcp.NewToolResultError("no workout with id " + id), nil
}

func (h *handlers) searchExercises(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	q := api.ExerciseQuery{
		Search:    req.GetString("search", ""),
		BodyPart:  req.GetString("body_part", ""),
		Equipment: req.GetString("equipment", ""),
		Limit:     req.GetInt("limit", 25),
	}

	exs, err := h.ds.SearchExercises(ctx, q)
	if err != nil {
		h.log.Error("mcp search_exercises", "error", err)
		return mcp.NewToolResultError("search failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(exs)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) syncStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(h.ds.SyncStatus())
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meltforce/repsync/internal/workout"
)

// parseSet parses "WEIGHTxREPS[:notes]", e.g. "80x8" or "0x12:felt easy".
func parseSet(s string) (workout.Set, error) {
	var notes string
	if i := strings.Index(s, ":"); i >= 0 {
		notes = s[i+1:]
		s = s[:i]
	}
	parts := strings.SplitN(strings.ToLower(s), "x", 2)
	if len(parts) != 2 {
		return workout.Set{}, fmt.Errorf("set %q: want WEIGHTxREPS[:notes]", s)
	}
	weight, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return workout.Set{}, fmt.Errorf("set %q: bad weight: %w", s, err)
	}
	reps, err := strconv.Atoi(parts[1])
	if err != nil {
		return workout.Set{}, fmt.Errorf("set %q: bad reps: %w", s, err)
	}
	return workout.Set{Weight: weight, Reps: reps, Notes: notes}, nil
}

func parseSets(args []string) ([]workout.Set, error) {
	sets := make([]workout.Set, 0, len(args))
	for _, arg := range args {
		set, err := parseSet(arg)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	return sets, nil
}

func newAddCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "add <exercise-id> <name> [WEIGHTxREPS[:notes]...]",
		Short: "Add an exercise to the current session",
		Long:  "Adds an exercise (with optional initial sets) to the in-progress workout, starting one if needed. Works offline; the server copy is synced when connectivity allows.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("bad exercise id %q: %w", args[0], err)
			}
			sets, err := parseSets(args[2:])
			if err != nil {
				return err
			}

			ex := workout.Exercise{ID: id, Name: args[1], Sets: sets}
			if err := a.Workouts.AddExercises(cmd.Context(), []workout.Exercise{ex}); err != nil {
				return err
			}

			sess := a.Workouts.Session()
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%d sets). Session has %d exercises.\n",
				ex.Name, len(sets), len(sess.Exercises))
			return nil
		},
	}
}

func newSetsCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sets <exercise-id> <WEIGHTxREPS[:notes]...>",
		Short: "Replace the sets of an exercise in the current session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("bad exercise id %q: %w", args[0], err)
			}
			sets, err := parseSets(args[1:])
			if err != nil {
				return err
			}

			if err := a.Workouts.UpdateExerciseSets(cmd.Context(), id, sets); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated exercise %d: %d sets.\n", id, len(sets))
			return nil
		},
	}
}

func newTitleCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "title <title>",
		Short: "Set the current workout's title (30 characters max)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app().Workouts.SetTitle(args[0])
		},
	}
}

func newFinishCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "finish",
		Short: "End the workout and save it to history",
		Long:  "Ends the session. Requires at least one completed set (reps with a weight, a bodyweight movement, or notes). For guests the session is discarded instead of saved.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if err := a.Workouts.EndWorkout(cmd.Context()); err != nil {
				return err
			}
			if !a.API.SignedIn() {
				fmt.Fprintln(cmd.OutOrStdout(), "Workout ended. Guest sessions are not kept in history.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Workout saved.")
			return nil
		},
	}
}

func newDiscardCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "discard",
		Short: "Throw away the current session and its queued syncs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app().Workouts.DiscardSession()
			fmt.Fprintln(cmd.OutOrStdout(), "Session discarded.")
			return nil
		},
	}
}

func newStatusCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity, session, and sync-queue state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			out := cmd.OutOrStdout()

			state := a.Monitor.Probe(cmd.Context())
			if state.IsOnline() {
				fmt.Fprintf(out, "Network: online (%s", state.ConnectionType)
				if state.HasStrongConnection {
					fmt.Fprint(out, ", strong")
				}
				fmt.Fprintln(out, ")")
			} else {
				fmt.Fprintln(out, "Network: offline")
			}

			st := a.Workouts.Status()
			if st.SignedIn {
				fmt.Fprintln(out, "Account: signed in")
			} else {
				fmt.Fprintln(out, "Account: guest (local only)")
			}

			sess := a.Workouts.Session()
			if sess.Active {
				fmt.Fprintf(out, "Session: %d exercises", len(sess.Exercises))
				if sess.Title != "" {
					fmt.Fprintf(out, ", %q", sess.Title)
				}
				if sess.ServerWorkoutID != "" {
					fmt.Fprint(out, ", synced to server")
				}
				fmt.Fprintln(out)
			} else {
				fmt.Fprintln(out, "Session: none")
			}

			if st.Pending > 0 {
				fmt.Fprintf(out, "Pending syncs: %d", st.Pending)
				if st.LastError != "" {
					fmt.Fprintf(out, " (last error: %s)", st.LastError)
				}
				fmt.Fprintln(out)
			}
			if msg := a.Workouts.Err(); msg != "" {
				fmt.Fprintf(out, "Last error: %s\n", msg)
			}
			return nil
		},
	}
}

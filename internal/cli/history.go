package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd(app func() *App) *cobra.Command {
	var (
		load   string
		rename string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved workouts, or reload/rename one",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			out := cmd.OutOrStdout()

			if load != "" {
				for _, item := range a.Workouts.History() {
					if item.ID == load {
						sess := a.Workouts.LoadWorkoutFromHistory(item)
						fmt.Fprintf(out, "Loaded %q as the current session (%d exercises).\n",
							item.Title, len(sess.Exercises))
						return nil
					}
				}
				return fmt.Errorf("no history item %s", load)
			}

			if rename != "" {
				if len(args) != 1 {
					return fmt.Errorf("--rename needs the new title as the argument")
				}
				if err := a.Workouts.UpdateHistoryTitle(rename, args[0]); err != nil {
					return err
				}
				fmt.Fprintln(out, "Renamed.")
				return nil
			}

			items := a.Workouts.History()
			if len(items) == 0 {
				fmt.Fprintln(out, "No saved workouts.")
				return nil
			}
			for i := len(items) - 1; i >= 0; i-- {
				item := items[i]
				title := item.Title
				if title == "" {
					title = "Workout"
				}
				fmt.Fprintf(out, "%s  %s  %q  %d exercises, %d sets, %d reps\n",
					item.ID, item.SavedAt.Format("2006-01-02 15:04"), title,
					len(item.Exercises), item.TotalSets, item.TotalReps)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&load, "load", "", "history item ID to reload as the current session")
	cmd.Flags().StringVar(&rename, "rename", "", "history item ID to rename (new title as argument)")
	return cmd
}

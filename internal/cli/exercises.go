package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meltforce/repsync/internal/api"
)

func newExercisesCmd(app func() *App) *cobra.Command {
	var q api.ExerciseQuery

	cmd := &cobra.Command{
		Use:   "exercises [search]",
		Short: "Search the exercise catalog (cached for offline use)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if len(args) == 1 {
				q.Search = args[0]
			}

			exs, err := a.Catalog.Search(cmd.Context(), q)
			if err != nil {
				return err
			}
			if len(exs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No exercises found.")
				return nil
			}
			for _, ex := range exs {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\t%s\n", ex.ID, ex.Name, ex.BodyPart, ex.Equipment)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&q.BodyPart, "body-part", "", "filter by body part")
	cmd.Flags().StringVar(&q.Equipment, "equipment", "", "filter by equipment")
	cmd.Flags().IntVar(&q.Limit, "limit", 25, "maximum results")
	cmd.Flags().IntVar(&q.Offset, "offset", 0, "results to skip")
	return cmd
}

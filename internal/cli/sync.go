package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Retry queued mutations and refresh the exercise cache",
		Long:  "Runs one reconciliation pass: every deferred mutation is retried exactly once. Entries that fail again stay queued for the next pass.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			out := cmd.OutOrStdout()

			if a.Monitor.ShouldWorkOffline(cmd.Context()) {
				fmt.Fprintln(out, "Server unreachable; nothing synced.")
				return nil
			}

			synced := a.Workouts.Reconcile(cmd.Context())
			if err := a.Prefs.Push(cmd.Context()); err != nil {
				a.Log.Warn("preference sync", "error", err)
			}
			a.Catalog.RefreshIfStale(cmd.Context())

			st := a.Workouts.Status()
			fmt.Fprintf(out, "Synced %d queued mutations; %d still pending.\n", synced, st.Pending)
			return nil
		},
	}
}

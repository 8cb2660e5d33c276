package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Execute runs the repsync CLI.
func Execute(version string) {
	if err := newRootCmd(version).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(version string) *cobra.Command {
	var (
		configPath string
		verbose    bool
		app        *App
	)

	root := &cobra.Command{
		Use:           "repsync",
		Short:         "Offline-first workout tracker client",
		Long:          "repsync logs strength-training sessions from the terminal, keeps a local store as the offline source of truth, and syncs opportunistically with a workout server.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			var err error
			app, err = NewApp(configPath, log)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil {
				app.Close()
			}
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "path to config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	appRef := func() *App { return app }
	root.AddCommand(
		newLoginCmd(appRef),
		newLogoutCmd(appRef),
		newAddCmd(appRef),
		newSetsCmd(appRef),
		newTitleCmd(appRef),
		newFinishCmd(appRef),
		newDiscardCmd(appRef),
		newStatusCmd(appRef),
		newHistoryCmd(appRef),
		newExercisesCmd(appRef),
		newSyncCmd(appRef),
		newPrefsCmd(appRef),
		newMCPCmd(appRef, version),
	)
	return root
}

func defaultConfigPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home + "/.repsync/config.yaml"
	}
	return "config.yaml"
}

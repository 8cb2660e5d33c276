package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPrefsCmd(app func() *App) *cobra.Command {
	var (
		weightUnit  string
		restSeconds int
		haptics     string
	)

	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change preferences (synced to the server when signed in)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			ctx := cmd.Context()

			if weightUnit != "" {
				if err := a.Prefs.SetWeightUnit(ctx, weightUnit); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("rest") {
				if err := a.Prefs.SetDefaultRestSeconds(ctx, restSeconds); err != nil {
					return err
				}
			}
			if haptics != "" {
				if haptics != "on" && haptics != "off" {
					return fmt.Errorf("--haptics must be on or off")
				}
				if err := a.Prefs.SetHapticsEnabled(ctx, haptics == "on"); err != nil {
					return err
				}
			}

			p := a.Prefs.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "weight unit: %s\nrest timer: %ds\nhaptics: %t\n",
				p.WeightUnit, p.DefaultRestSeconds, p.HapticsEnabled)
			if a.Prefs.Dirty() {
				fmt.Fprintln(cmd.OutOrStdout(), "(server sync pending)")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&weightUnit, "weight-unit", "", "kg or lbs")
	cmd.Flags().IntVar(&restSeconds, "rest", 0, "default rest timer in seconds")
	cmd.Flags().StringVar(&haptics, "haptics", "", "on or off")
	return cmd
}

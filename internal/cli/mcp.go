package cli

import (
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/meltforce/repsync/internal/mcp"
)

func newMCPCmd(app func() *App, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve local workout data to an assistant over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()

			ds := &mcp.LocalSource{Workouts: a.Workouts, Catalog: a.Catalog}
			srv := mcp.New(ds, version, a.Log)

			a.Log.Info("mcp server starting", "transport", "stdio")
			if err := mcpserver.ServeStdio(srv); err != nil {
				return fmt.Errorf("mcp server: %w", err)
			}
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/intake/internal/presentation/graph"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the question flow as a Mermaid flowchart",
	Long: `Prints the order in which the intake asks its questions. With --session the
answered questions and the pending one are highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		app, err := buildApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		var overlay *graph.Overlay
		if sessionID, _ := cmd.Flags().GetString("session"); sessionID != "" {
			owner, _ := cmd.Flags().GetString("owner")
			s, err := app.Engine.Session(cmd.Context(), owner, sessionID)
			if err != nil {
				return err
			}
			overlay = graph.OverlayFor(app.Engine.Catalog(), s)
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(app.Engine.Catalog(), overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", "", "Highlight the progress of this session")
	graphCmd.Flags().String("owner", "local", "Owner of the session")
}

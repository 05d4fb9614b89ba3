package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List unfinished intakes that can be resumed",
	Long: `Lists the paused intakes of an owner with the question each one is waiting on.
Resume one with: intake chat --session <id>. Only the file and redis stores
outlive the process.`,
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

		owner, _ := cmd.Flags().GetString("owner")
		list, err := app.Engine.Sessions(cmd.Context(), owner)
		if err != nil {
			return err
		}

		if jsonMode, _ := cmd.Flags().GetBool("json"); jsonMode {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(list)
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No paused intakes.")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SESSION\tPHASE\tPOSITION\tWAITING ON")
		for _, r := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.SessionID, r.Phase, r.Token, r.Prompt)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.Flags().String("owner", "local", "Organizer whose intakes are listed")
	sessionsCmd.Flags().Bool("json", false, "Print the list as JSON")
}

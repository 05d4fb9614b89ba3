package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/intake/internal/cli"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Run an intake conversation in the terminal",
	Long: `Starts (or resumes with --session) an intake in the terminal.
Type /optional N <answer> to answer an optional prompt and /quit to pause.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		owner, _ := cmd.Flags().GetString("owner")
		sessionID, _ := cmd.Flags().GetString("session")
		jsonMode, _ := cmd.Flags().GetBool("json")
		quiet, _ := cmd.Flags().GetBool("quiet")

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		app, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		return cli.Chat(ctx, app, cli.ChatOptions{
			Owner:        owner,
			SessionID:    sessionID,
			JSON:         jsonMode,
			Quiet:        quiet,
			MaxInputSize: cfg.Intake.MaxInputSize,
		})
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("owner", "local", "Organizer identity the intake belongs to")
	chatCmd.Flags().String("session", "", "Resume an existing session")
	chatCmd.Flags().Bool("json", false, "Run in JSON mode (NDJSON input/output)")
	chatCmd.Flags().BoolP("quiet", "q", false, "Skip the banner and closing message")
}

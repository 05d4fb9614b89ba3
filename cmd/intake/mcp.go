package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/intake/internal/cli"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Exposes the intake as MCP tools (start_intake, advance_intake, resume_intake,
get_event) so an agent can drive the conversation.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Sessions belong to mcp.owner.
- sse: Uses Server-Sent Events over HTTP. Clients authenticate with a bearer token.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		transport, _ := cmd.Flags().GetString("transport")
		if transport == "sse" {
			err = cfg.ValidateServer()
		} else {
			err = cfg.Validate()
		}
		if err != nil {
			return err
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		app, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		return cli.ServeMCP(ctx, app, cfg, transport)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
}

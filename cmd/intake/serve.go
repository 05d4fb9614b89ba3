package main

import (
	"net"

	"github.com/spf13/cobra"

	"github.com/aretw0/intake/internal/cli"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the intake API. Every /v1 route requires a bearer token whose subject
is the organizer. Metrics are served on /metrics when enabled.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTP.Addr = addr
		}
		if err := cfg.ValidateServer(); err != nil {
			return err
		}

		ctx := cli.NewSignalContext(cmd.Context())
		defer ctx.Cancel()

		app, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		srv, err := cli.NewServer(app, cfg)
		if err != nil {
			return err
		}
		ln, err := net.Listen("tcp", cfg.HTTP.Addr)
		if err != nil {
			return err
		}
		if err := cli.Serve(ctx, app, srv, ln, cfg.HTTP.ShutdownTimeout); err != nil {
			return err
		}
		app.Logger.Info("Intake API stopped gracefully", "signal", ctx.Signal())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides http.addr)")
}

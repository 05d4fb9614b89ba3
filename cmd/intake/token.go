package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/intake/internal/cli"
)

var tokenCmd = &cobra.Command{
	Use:   "token <owner>",
	Short: "Issue a bearer token for local testing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ttl, _ := cmd.Flags().GetDuration("ttl")
		auth, err := cli.NewAuth(cfg.Auth)
		if err != nil {
			return err
		}
		tok, err := auth.Sign(args[0], ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().Duration("ttl", time.Hour, "Token lifetime")
}

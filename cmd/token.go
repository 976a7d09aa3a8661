/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jjudge-oj/contestd/internal/handlers"
	"github.com/spf13/cobra"
)

var (
	tokenUserID int
	tokenTTL    time.Duration
)

// tokenCmd mints API tokens. Accounts live in the user service; this is
// for operators and the judge bridge.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a signed API token for a user id",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadRuntime()
		if err != nil {
			return err
		}
		if strings.TrimSpace(cfg.JWTSecret) == "" {
			return errors.New("JWT_SECRET is required")
		}
		if tokenUserID < 1 {
			return errors.New("--user must be a positive user id")
		}

		token, err := handlers.IssueToken(tokenUserID, cfg.JWTSecret, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().IntVar(&tokenUserID, "user", 0, "user id placed in the token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", handlers.DefaultTokenTTL, "token lifetime")
}

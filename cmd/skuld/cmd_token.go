/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/friendsincode/skuld/internal/auth"
)

// Token flags
var (
	tokenName  string
	tokenTTL   time.Duration
	tokenRoles []string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for the API",
	Long: `Signs a JWT with the configured SKULD_JWT_SIGNING_KEY for use against
the HTTP API. Roles gate privileged endpoints such as clearing the log
buffer (admin).

Examples:
  skuld token --name ci-exporter
  skuld token --name ops --ttl 720h --role admin`,
	RunE: runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringVar(&tokenName, "name", "", "Subject name embedded in the token (required)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	tokenCmd.Flags().StringArrayVar(&tokenRoles, "role", nil, "Role to embed (repeatable)")
	tokenCmd.MarkFlagRequired("name")
}

func runToken(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if cfg.JWTSigningKey == "" {
		return fmt.Errorf("SKULD_JWT_SIGNING_KEY must be set to mint tokens")
	}

	token, err := auth.Issue([]byte(cfg.JWTSigningKey), auth.Claims{
		UserID: tokenName,
		Roles:  tokenRoles,
	}, tokenTTL)
	if err != nil {
		return fmt.Errorf("issue token: %w", err)
	}

	fmt.Println(token)
	return nil
}

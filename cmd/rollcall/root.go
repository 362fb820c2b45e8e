// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rollcall Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/rollcall/rollcall/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Rollcall CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollcall",
		Short: "Rollcall - account service for the education platform",
		Long: `Rollcall manages platform accounts: registration, authentication,
password resets, OTP verification and admin account administration.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedAdminCmd())
	cmd.AddCommand(NewConfigCmd())

	return cmd
}

// NewConfigCmd creates the config subcommand group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}
	cmd.AddCommand(NewConfigLintCmd())
	return cmd
}

// NewConfigLintCmd creates the config lint subcommand.
func NewConfigLintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint <file>",
		Short: "Validate a configuration file against the schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ValidateFile(args[0]); err != nil {
				return err
			}
			cmd.Printf("%s is valid\n", args[0])
			return nil
		},
	}
}

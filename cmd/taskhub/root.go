// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskHub Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/taskhub/taskhub/internal/config"
)

// globalFlags are the persistent flags shared by every subcommand.
type globalFlags struct {
	configFile string
	envFile    string
}

// NewRootCmd creates the root command for the TaskHub CLI.
func NewRootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "taskhub",
		Short: "TaskHub - a task manager API",
		Long: `TaskHub serves a JSON API for account registration, login, email
verification, password reset and per-user task management.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&flags.configFile, "config", "",
		"config file path (default $XDG_CONFIG_HOME/taskhub/config.yaml)")
	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", "",
		"dotenv file exported before reading the environment (default .env)")

	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newMigrateCmd(flags))
	cmd.AddCommand(newStatusCmd(flags))

	return cmd
}

// loadConfig layers defaults, files, environment and the command's flags.
func (f *globalFlags) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	return config.Load(config.Options{
		ConfigFile: f.configFile,
		EnvFile:    f.envFile,
		Flags:      cmd.Flags(),
	})
}

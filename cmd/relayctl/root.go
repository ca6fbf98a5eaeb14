package main

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "relayctl",
	Short: "relayctl - command line client for the Relay execution service",
	Long: `relayctl submits job descriptions to the Relay execution service and
verifies signed webhook deliveries.

Jobs are described in YAML files and submitted in performance mode; use the
Go SDK directly when you need frugal (local-first) execution.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "relay.yaml", "path to the client config file")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(verifyCmd)
}

// Package main provides the gympay binary entry point.
// Gympay runs the academy payment service: an HTTP JSON-RPC API plus
// operational subcommands for overdue reconciliation and financial reports.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "gympay"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "gympay",
		Short: "Academy payment service",
		Long: `Gympay manages the payment lifecycle for gym/academy memberships:
instant PIX and card charges, recurring monthly subscriptions, overdue
reconciliation, and financial reporting.

The serve command runs the JSON-RPC API; reconcile and report run the
same operations as one-shot commands for cron jobs and back-office use.`,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")

	cmd.AddCommand(serveCmd(&configPath))
	cmd.AddCommand(reconcileCmd(&configPath))
	cmd.AddCommand(reportCmd(&configPath))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, Version)
		},
	})

	return cmd
}

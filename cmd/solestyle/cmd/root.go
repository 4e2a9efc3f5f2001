// Package cmd provides the CLI commands for SoleStyle.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SoleStyle/solestyle/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "solestyle",
	Short: "SoleStyle - storefront persistence server",
	Long: `SoleStyle serves the storefront catalog, user directory, contact
messages, wishlists and carts over HTTP, with an admin API and a simulated
cloud backup.

Quick start:
  1. Optionally create a config file: solestyle.yaml
  2. Run: solestyle start

Configuration:
  Config is loaded from solestyle.yaml in the current directory,
  $HOME/.solestyle/, or /etc/solestyle/.

  Environment variables can override config values with the SOLESTYLE_ prefix.
  Example: SOLESTYLE_STORAGE_DRIVER=sqlite

Commands:
  start          Start the server
  stop           Stop the running server
  reset          Remove all stored data
  backup         Manage the cloud backup
  catalog        Export, import, search or reseed the catalog
  users          Inspect the user directory
  hash-password  Generate an argon2id hash for the admin password
  version        Print version information`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./solestyle.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}

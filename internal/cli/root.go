// Package cli wires the mcpify commands. The CLI is the caller of the
// core pipeline: it resolves paths and validates flags, then hands the
// core an already-resolved module path and configuration record.
package cli

import (
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "mcpify",
	Short: "mcpify - expose a JavaScript module as callable tools",
	Long: `mcpify loads a JavaScript module into an isolated execution context,
reflects its exported functions into a tool registry and serves them over
JSON-RPC with an SSE push channel.`,
	Version: version,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mcpify/mcpify.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// GetRootCmd returns the root command for testing.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mcpify/mcpify/internal/config"
	"github.com/mcpify/mcpify/pkg/reflector"
	"github.com/mcpify/mcpify/pkg/server"
)

var (
	configOut       string
	configTimeoutMs int
)

var configCmd = &cobra.Command{
	Use:   "config <module.js>",
	Short: "Generate the server configuration document for a module",
	Long: `Reflects the module and prints the declarative configuration document
describing the protocol surface a serve run would expose. Use --out to
write it to a file instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfig,
}

func init() {
	configCmd.Flags().StringVar(&configOut, "out", "", "write the document to this file instead of stdout")
	configCmd.Flags().IntVar(&configTimeoutMs, "timeout-ms", 30000, "load timeout in milliseconds")
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return err
	}

	timeout := time.Duration(configTimeoutMs) * time.Millisecond
	registry, _, err := reflector.Reflect(args[0], timeout, zerolog.Nop())
	if err != nil {
		return fmt.Errorf("reflection failed: %w", err)
	}

	baseURL := fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	doc := server.NewConfigDocument(
		"mcpify",
		version,
		fmt.Sprintf("Tools reflected from %s", args[0]),
		registry,
		baseURL,
	)

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	if configOut != "" {
		if err := os.WriteFile(configOut, append(out, '\n'), 0644); err != nil {
			return fmt.Errorf("failed to write config document: %w", err)
		}
		cmd.Printf("wrote %s\n", configOut)
		return nil
	}

	cmd.Println(string(out))
	return nil
}

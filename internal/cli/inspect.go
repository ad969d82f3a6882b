package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mcpify/mcpify/pkg/reflector"
)

var inspectTimeoutMs int

var inspectCmd = &cobra.Command{
	Use:   "inspect <module.js>",
	Short: "Reflect a module and print its tool descriptors",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().IntVar(&inspectTimeoutMs, "timeout-ms", 30000, "load timeout in milliseconds")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	timeout := time.Duration(inspectTimeoutMs) * time.Millisecond

	registry, _, err := reflector.Reflect(args[0], timeout, zerolog.Nop())
	if err != nil {
		return fmt.Errorf("reflection failed: %w", err)
	}

	out, err := json.MarshalIndent(map[string]interface{}{
		"tools": registry.List(),
	}, "", "  ")
	if err != nil {
		return err
	}

	cmd.Println(string(out))
	return nil
}

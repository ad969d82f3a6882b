package main

import (
	"os"

	"github.com/mcpify/mcpify/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}

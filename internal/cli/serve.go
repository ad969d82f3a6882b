package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcpify/mcpify/internal/audit"
	"github.com/mcpify/mcpify/internal/config"
	"github.com/mcpify/mcpify/internal/logger"
	"github.com/mcpify/mcpify/internal/metrics"
	"github.com/mcpify/mcpify/pkg/executor"
	"github.com/mcpify/mcpify/pkg/reflector"
	"github.com/mcpify/mcpify/pkg/server"
	"github.com/mcpify/mcpify/pkg/tool"
)

var (
	serveHost      string
	servePort      int
	serveTimeoutMs int
	serveNoWatch   bool
)

var serveCmd = &cobra.Command{
	Use:   "serve <module.js>",
	Short: "Reflect a module and serve its tools",
	Args:  cobra.ExactArgs(1),
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "bind address")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "bind port")
	serveCmd.Flags().IntVar(&serveTimeoutMs, "timeout-ms", 0, "execution timeout in milliseconds")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "disable module hot reload")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, args []string) error {
	modulePath := args[0]

	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return err
	}
	applyServeFlags(cfg)

	lg, err := logger.New(logger.Config{
		Level:   logLevel,
		File:    cfg.Logging.File,
		Console: true,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return err
	}
	defer lg.Close()
	zl := lg.Zerolog()

	timeout := time.Duration(cfg.Module.TimeoutMs) * time.Millisecond

	registry, _, err := reflector.Reflect(modulePath, timeout, zl)
	if err != nil {
		return fmt.Errorf("reflection failed: %w", err)
	}

	exec := executor.New(registry, timeout, zl)

	var store *audit.Store
	if cfg.Audit.Enabled {
		store, err = audit.Open(cfg.Audit.Path, zl)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	var reload server.ReloadFunc
	if cfg.Module.Watch {
		reload = func() (*tool.Registry, error) {
			reg, _, rerr := reflector.Reflect(modulePath, timeout, zl)
			return reg, rerr
		}
	}

	srv, err := server.New(server.Config{
		Host:              cfg.Server.Host,
		Port:              cfg.Server.Port,
		Name:              "mcpify",
		Version:           version,
		Description:       fmt.Sprintf("Tools reflected from %s", modulePath),
		HeartbeatInterval: time.Duration(cfg.SSE.HeartbeatIntervalMs) * time.Millisecond,
		StaleAfter:        time.Duration(cfg.SSE.StaleAfterMs) * time.Millisecond,
		SweepSchedule:     cfg.SSE.SweepSchedule,
		HandshakeDelay:    time.Duration(cfg.SSE.HandshakeDelayMs) * time.Millisecond,
		ModulePath:        modulePath,
		Reload:            reload,
		Audit:             store,
		Metrics:           metrics.NewMetrics(),
		Logger:            zl,
	})
	if err != nil {
		return err
	}

	if err := srv.Bind(exec); err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}

	zl.Info().
		Str("url", srv.BaseURL()).
		Strs("tools", registry.Names()).
		Msg("mcpify serving")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	return srv.Stop()
}

func applyServeFlags(cfg *config.Config) {
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if serveTimeoutMs > 0 {
		cfg.Module.TimeoutMs = serveTimeoutMs
	}
	if serveNoWatch {
		cfg.Module.Watch = false
	}
}

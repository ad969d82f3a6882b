// Package config defines the mcpify configuration record and its loader.
package config

// Config represents the main mcpify configuration.
type Config struct {
	Server  ServerConfig  `json:"server" mapstructure:"server"`
	Module  ModuleConfig  `json:"module" mapstructure:"module"`
	SSE     SSEConfig     `json:"sse" mapstructure:"sse"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
	Audit   AuditConfig   `json:"audit" mapstructure:"audit"`

	// Data directory for logs and the audit store.
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ServerConfig holds the network bind address.
type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

// ModuleConfig identifies the module to reflect and the execution
// budget applied to loading and tool invocations.
type ModuleConfig struct {
	Path      string `json:"path" mapstructure:"path"`
	TimeoutMs int    `json:"timeout_ms" mapstructure:"timeout_ms"`
	Watch     bool   `json:"watch" mapstructure:"watch"`
}

// SSEConfig tunes the push channel's maintenance behavior.
type SSEConfig struct {
	HeartbeatIntervalMs int    `json:"heartbeat_interval_ms" mapstructure:"heartbeat_interval_ms"`
	StaleAfterMs        int    `json:"stale_after_ms" mapstructure:"stale_after_ms"`
	SweepSchedule       string `json:"sweep_schedule" mapstructure:"sweep_schedule"`
	HandshakeDelayMs    int    `json:"handshake_delay_ms" mapstructure:"handshake_delay_ms"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	File   string `json:"file" mapstructure:"file"`
	Pretty bool   `json:"pretty" mapstructure:"pretty"`
}

// AuditConfig controls the execution log.
type AuditConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 3000,
		},
		Module: ModuleConfig{
			TimeoutMs: 30000,
			Watch:     true,
		},
		SSE: SSEConfig{
			HeartbeatIntervalMs: 30000,
			StaleAfterMs:        300000,
			SweepSchedule:       "@every 1m",
			HandshakeDelayMs:    100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
		Audit: AuditConfig{
			Enabled: false,
		},
	}
}

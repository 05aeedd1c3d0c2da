// Package engine parses engine service flags and starts the server runtime.
package engine

import (
	"context"
	"flag"
	"fmt"
	"strings"

	server "github.com/louisbranch/mist-engine/internal/app/server"
	entrypoint "github.com/louisbranch/mist-engine/internal/platform/cmd"
)

// Config holds engine command configuration.
type Config struct {
	Port         int    `env:"MIST_ENGINE_PORT"          envDefault:"8080"`
	MCPTransport string `env:"MIST_ENGINE_MCP_TRANSPORT" envDefault:"stdio"`
	MCPHTTPAddr  string `env:"MIST_ENGINE_MCP_HTTP_ADDR" envDefault:"localhost:8081"`
	Locale       string `env:"MIST_ENGINE_LOCALE"        envDefault:"en-US"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.IntVar(&cfg.Port, "port", cfg.Port, "gRPC health port")
	fs.StringVar(&cfg.MCPTransport, "transport", cfg.MCPTransport, "MCP transport: stdio or http")
	fs.StringVar(&cfg.MCPHTTPAddr, "http-addr", cfg.MCPHTTPAddr, "MCP HTTP bind address (for http transport)")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "locale for player-facing rejection text")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}

	if err := validateTransport(cfg.MCPTransport); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validateTransport rejects transports the server cannot host before any
// listener or store is opened.
func validateTransport(transport string) error {
	switch strings.ToLower(strings.TrimSpace(transport)) {
	case "stdio", "http", "":
		return nil
	default:
		return fmt.Errorf("invalid transport %q: must be 'stdio' or 'http'", transport)
	}
}

// Run starts the engine service until the context ends.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceEngine, func(ctx context.Context) error {
		return server.Run(ctx, server.Config{
			Port:         cfg.Port,
			MCPTransport: cfg.MCPTransport,
			MCPHTTPAddr:  cfg.MCPHTTPAddr,
			Locale:       cfg.Locale,
		})
	})
}

// Package seed parses seed command flags and loads development fixtures.
package seed

import (
	"context"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/louisbranch/mist-engine/internal/platform/branding"
	entrypoint "github.com/louisbranch/mist-engine/internal/platform/cmd"
	i18ncatalog "github.com/louisbranch/mist-engine/internal/platform/i18n/catalog"
	"github.com/louisbranch/mist-engine/internal/seed"
)

// Config holds seed command configuration.
type Config struct {
	DBPath   string `env:"MIST_ENGINE_DB_PATH"`
	Locale   string `env:"MIST_ENGINE_LOCALE"`
	Scenario string
	Verbose  bool
	List     bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "sqlite database path")
	fs.StringVar(&cfg.Locale, "locale", cfg.Locale, "locale for command output")
	fs.StringVar(&cfg.Scenario, "scenario", "", "load a single scenario (default: all)")
	fs.BoolVar(&cfg.Verbose, "v", false, "verbose output")
	fs.BoolVar(&cfg.List, "list", false, "list available scenarios")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}

	if strings.TrimSpace(cfg.DBPath) == "" {
		cfg.DBPath = filepath.Join("data", "engine.db")
	}
	return cfg, nil
}

// banner renders the localized product line printed before seed output.
func banner(locale string) string {
	_, core := i18ncatalog.Default().NamespaceMessagesWithFallback(locale, "core")
	name := core["core.app.name"]
	if name == "" {
		name = branding.AppName
	}
	if tagline := core["core.app.tagline"]; tagline != "" {
		return name + ": " + tagline
	}
	return name
}

// Run executes the seed command.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	fmt.Fprintln(out, banner(cfg.Locale))

	if cfg.List {
		fmt.Fprintln(out, "Available scenarios:")
		for _, line := range seed.ListScenarios() {
			fmt.Fprintf(out, "  %s\n", line)
		}
		return nil
	}

	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceSeed, func(ctx context.Context) error {
		return seed.Run(ctx, seed.Config{
			DBPath:   cfg.DBPath,
			Scenario: cfg.Scenario,
			Verbose:  cfg.Verbose,
		}, out)
	})
}

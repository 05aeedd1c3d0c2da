// Package cmd holds the pieces every binary entrypoint shares: env-backed
// config loading, flag parsing layered on top, and the telemetry lifecycle
// around the run loop.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/mist-engine/internal/platform/config"
	"github.com/louisbranch/mist-engine/internal/platform/otel"
)

// telemetryStopTimeout bounds the trace flush during shutdown so a stuck
// collector cannot hold the process open.
const telemetryStopTimeout = 5 * time.Second

// Service names reported to the telemetry backend.
const (
	ServiceEngine = "engine"
	ServiceSeed   = "seed"
)

// ParseConfig fills cfg from the environment. Commands register flags after
// this call so flag values override env values.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// ParseArgs parses command-line flags.
func ParseArgs(fs *flag.FlagSet, args []string) error {
	if fs == nil {
		return errors.New("flag parser is required")
	}
	if args == nil {
		args = []string{}
	}
	return fs.Parse(args)
}

// RunWithTelemetry sets up tracing for service, invokes run, and flushes
// telemetry before returning run's error.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return fmt.Errorf("service name is required")
	}
	if run == nil {
		return fmt.Errorf("run function is required")
	}

	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer stopTelemetry(service, shutdown)

	return run(ctx)
}

func stopTelemetry(service string, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), telemetryStopTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Printf("%s otel shutdown: %v", service, err)
	}
}

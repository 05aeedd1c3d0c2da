// Package grpc holds shared gRPC client helpers: dialing, health waiting,
// and default options.
package grpc

import (
	"context"
	"fmt"
	"time"

	gogrpc "google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	healthProbeTimeout = time.Second
	healthBackoffStart = 200 * time.Millisecond
	healthBackoffCap   = time.Second
)

// WaitForHealth polls the health service on conn until it reports SERVING or
// ctx ends. Probes back off from 200ms to a 1s cap between attempts.
func WaitForHealth(ctx context.Context, conn *gogrpc.ClientConn, service string, logf func(string, ...any)) error {
	if conn == nil {
		return fmt.Errorf("gRPC connection is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client := healthpb.NewHealthClient(conn)
	probe := func() (healthpb.HealthCheckResponse_ServingStatus, error) {
		probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
		defer cancel()
		resp, err := client.Check(probeCtx, &healthpb.HealthCheckRequest{Service: service})
		if err != nil {
			return healthpb.HealthCheckResponse_UNKNOWN, err
		}
		return resp.GetStatus(), nil
	}

	backoff := healthBackoffStart
	for {
		status, err := probe()
		if err == nil && status == healthpb.HealthCheckResponse_SERVING {
			if logf != nil {
				logf("gRPC health check is SERVING")
			}
			return nil
		}
		if logf != nil {
			if err != nil {
				logf("waiting for gRPC health: %v", err)
			} else {
				logf("waiting for gRPC health: status %s", status)
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for gRPC health: %w", ctx.Err())
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > healthBackoffCap {
			backoff = healthBackoffCap
		}
	}
}

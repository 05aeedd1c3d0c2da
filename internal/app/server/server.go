// Package server wires the engine runtime: sqlite storage, the draft
// session service, the roll workflow, the MCP surface, and the gRPC
// health lifecycle used by orchestration probes.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"

	mcpservice "github.com/louisbranch/mist-engine/internal/mcp/service"
	"github.com/louisbranch/mist-engine/internal/platform/config"
	rollsvc "github.com/louisbranch/mist-engine/internal/roll/service"
	"github.com/louisbranch/mist-engine/internal/session/memory"
	sessionsvc "github.com/louisbranch/mist-engine/internal/session/service"
	"github.com/louisbranch/mist-engine/internal/storage/sqlite"
	"github.com/louisbranch/mist-engine/internal/telemetry"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

type storeEnv struct {
	DBPath string `env:"MIST_ENGINE_DB_PATH"`
}

// databasePath resolves the sqlite location from the environment, falling
// back to a data directory next to the binary.
func databasePath() string {
	var env storeEnv
	_ = config.ParseEnv(&env)
	if p := strings.TrimSpace(env.DBPath); p != "" {
		return p
	}
	return filepath.Join("data", "engine.db")
}

// Config controls the engine server runtime.
type Config struct {
	// Port is the gRPC health listener port.
	Port int
	// MCPTransport selects the MCP surface: "stdio", "http", or empty
	// to run without one.
	MCPTransport string
	// MCPHTTPAddr is the bind address for the HTTP transport.
	MCPHTTPAddr string
	// Locale selects the language for player-facing rejection text.
	Locale string
}

func (c Config) mcpConfig() mcpservice.Config {
	return mcpservice.Config{
		Transport: mcpservice.TransportKind(strings.ToLower(strings.TrimSpace(c.MCPTransport))),
		HTTPAddr:  c.MCPHTTPAddr,
		Locale:    c.Locale,
	}
}

// Server hosts the roll engine services and their lifecycles.
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	store      *sqlite.Store
	sessions   *sessionsvc.Service
	workflow   *rollsvc.Workflow
	mcp        mcpservice.Config
}

// New creates a configured engine server listening on the configured port.
func New(cfg Config) (*Server, error) {
	return NewWithAddr(fmt.Sprintf(":%d", cfg.Port), cfg)
}

// NewWithAddr creates a configured engine server for the provided address.
func NewWithAddr(addr string, cfg Config) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}

	store, err := openEngineStore(databasePath())
	if err != nil {
		_ = listener.Close()
		return nil, err
	}

	repo := memory.NewRepository()
	emitter := telemetry.NewEmitter(store)
	sessions := sessionsvc.NewService(repo, sessionsvc.Stores{
		Characters:  store,
		Scenes:      store,
		Fellowships: store,
		Rolls:       store,
		Narrators:   store,
	}, emitter)
	workflow := rollsvc.NewWorkflow(repo, rollsvc.Stores{
		Characters:  store,
		Scenes:      store,
		Fellowships: store,
		Rolls:       store,
		Narrators:   store,
	}, emitter)

	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	return &Server{
		listener:   listener,
		grpcServer: grpcServer,
		health:     healthServer,
		store:      store,
		sessions:   sessions,
		workflow:   workflow,
		mcp:        cfg.mcpConfig(),
	}, nil
}

// Addr returns the health listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves an engine server until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	server, err := New(cfg)
	if err != nil {
		return err
	}
	return server.Serve(ctx)
}

// Serve starts the health listener and the MCP surface until the context
// ends, the listener fails, or the MCP transport disconnects.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("engine server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	log.Printf("engine server listening at %v", s.listener.Addr())
	grpcDone := make(chan error, 1)
	go func() {
		grpcDone <- s.grpcServer.Serve(s.listener)
	}()

	mcpCtx, stopMCP := context.WithCancel(ctx)
	defer stopMCP()
	// A nil channel keeps the MCP case silent when no transport is
	// configured.
	var mcpDone chan error
	if s.mcp.Transport != "" {
		mcpDone = make(chan error, 1)
		go func() {
			mcpDone <- mcpservice.Run(mcpCtx, s.mcp, s.sessions, s.workflow)
		}()
	}

	stopGRPC := func() error {
		if s.health != nil {
			s.health.Shutdown()
		}
		s.grpcServer.GracefulStop()
		return <-grpcDone
	}

	select {
	case <-ctx.Done():
		err := stopGRPC()
		if mcpDone != nil {
			<-mcpDone
		}
		return grpcServeError(err)
	case err := <-grpcDone:
		stopMCP()
		if mcpDone != nil {
			<-mcpDone
		}
		return grpcServeError(err)
	case err := <-mcpDone:
		stopErr := stopGRPC()
		if err != nil {
			return err
		}
		return grpcServeError(stopErr)
	}
}

func grpcServeError(err error) error {
	if err == nil || errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return fmt.Errorf("grpc server: %w", err)
}

// Close releases engine server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.health != nil {
		s.health.Shutdown()
	}
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close engine store: %v", err)
		}
	}
}

func openEngineStore(path string) (*sqlite.Store, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir %s: %w", dir, err)
		}
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open engine sqlite store: %w", err)
	}
	return store, nil
}

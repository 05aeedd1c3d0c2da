package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/mist-engine/internal/mcp/conformance"
	"github.com/louisbranch/mist-engine/internal/platform/branding"
	apperrors "github.com/louisbranch/mist-engine/internal/platform/errors"
	rollsvc "github.com/louisbranch/mist-engine/internal/roll/service"
	sessionsvc "github.com/louisbranch/mist-engine/internal/session/service"
)

const (
	serverVersion = "0.1.0"

	// conformanceEnvVar switches the MCP conformance fixtures on when set to
	// "1" or "true".
	conformanceEnvVar = "MCP_CONFORMANCE"

	// defaultHTTPAddr binds the HTTP surface to loopback unless a deployment
	// opts into a wider listen address.
	defaultHTTPAddr = "localhost:8081"
)

// TransportKind selects how MCP frames reach the server.
type TransportKind string

const (
	// TransportStdio speaks MCP over the process's stdin and stdout.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP serves MCP to remote clients over HTTP with SSE streams.
	TransportHTTP TransportKind = "http"
)

// Config carries the transport selection and rejection locale for one MCP
// surface.
type Config struct {
	Transport TransportKind
	// HTTPAddr is the listen address for TransportHTTP. Empty means
	// defaultHTTPAddr.
	HTTPAddr string
	// Locale is the BCP 47 tag used to render rejection messages. Empty means
	// the platform default.
	Locale string
}

// Server adapts the in-process session and roll services to MCP.
type Server struct {
	mcpServer *mcp.Server
}

// New builds a Server with every tool and resource registered. Both services
// are required.
func New(sessions *sessionsvc.Service, workflow *rollsvc.Workflow, cfg Config) (*Server, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session service is required")
	}
	if workflow == nil {
		return nil, fmt.Errorf("roll workflow is required")
	}
	locale := strings.TrimSpace(cfg.Locale)
	if locale == "" {
		locale = apperrors.DefaultLocale
	}

	impl := &mcp.Implementation{Name: branding.AppName + " MCP", Version: serverVersion}
	mcpServer := mcp.NewServer(impl, &mcp.ServerOptions{
		CompletionHandler:  emptyCompletion,
		SubscribeHandler:   resourceSubscribeHandler,
		UnsubscribeHandler: resourceUnsubscribeHandler,
	})

	registerSessionTools(mcpServer, sessions, locale)
	registerTagTools(mcpServer, sessions, locale)
	registerDraftTools(mcpServer, sessions, locale)
	registerRollTools(mcpServer, workflow, locale)
	registerNarratorTools(mcpServer, workflow, locale)
	registerRollResources(mcpServer, workflow)
	if conformanceFixturesEnabled() {
		conformance.Register(mcpServer)
	}

	return &Server{mcpServer: mcpServer}, nil
}

// Run builds a server for cfg and serves it until ctx ends.
func Run(ctx context.Context, cfg Config, sessions *sessionsvc.Service, workflow *rollsvc.Workflow) error {
	server, err := New(sessions, workflow, cfg)
	if err != nil {
		return err
	}

	transport := cfg.Transport
	if transport == "" {
		transport = TransportStdio
	}
	switch transport {
	case TransportStdio:
		return server.Serve(ctx)
	case TransportHTTP:
		return server.serveHTTP(ctx, cfg.HTTPAddr)
	default:
		return fmt.Errorf("transport %q is not supported", transport)
	}
}

// Serve speaks MCP on stdio until the peer disconnects or ctx ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

func (s *Server) serveHTTP(ctx context.Context, addr string) error {
	if strings.TrimSpace(addr) == "" {
		addr = defaultHTTPAddr
	}
	return NewHTTPTransportWithServer(addr, s.mcpServer).Start(ctx)
}

// serveWithTransport runs the MCP session loop. Context cancellation is the
// normal shutdown path and is not reported as an error.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return fmt.Errorf("mcp transport: %w", err)
}

// emptyCompletion answers completion/complete with no suggestions.
// TODO: Suggest tag names from the session roster for draft selection arguments.
func emptyCompletion(_ context.Context, _ *mcp.CompleteRequest) (*mcp.CompleteResult, error) {
	return &mcp.CompleteResult{
		Completion: mcp.CompletionResultDetails{Values: []string{}},
	}, nil
}

func resourceSubscribeHandler(_ context.Context, req *mcp.SubscribeRequest) error {
	if req == nil || req.Params == nil {
		return fmt.Errorf("resource uri is empty")
	}
	return requireResourceURI(req.Params.URI)
}

func resourceUnsubscribeHandler(_ context.Context, req *mcp.UnsubscribeRequest) error {
	if req == nil || req.Params == nil {
		return fmt.Errorf("resource uri is empty")
	}
	return requireResourceURI(req.Params.URI)
}

func requireResourceURI(uri string) error {
	if strings.TrimSpace(uri) == "" {
		return fmt.Errorf("resource uri is empty")
	}
	return nil
}

func conformanceFixturesEnabled() bool {
	switch value := strings.TrimSpace(os.Getenv(conformanceEnvVar)); {
	case value == "1":
		return true
	case strings.EqualFold(value, "true"):
		return true
	}
	return false
}

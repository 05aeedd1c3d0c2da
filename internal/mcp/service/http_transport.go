package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/mist-engine/internal/id"
)

// Transport tuning. A request waits up to requestTimeout for the MCP server
// to answer; shutdown waits slightly longer so in-flight calls can drain.
const (
	channelDepth     = 10
	requestTimeout   = 30 * time.Second
	shutdownGrace    = 35 * time.Second
	idleSweepEvery   = 5 * time.Minute
	sessionIdleAfter = time.Hour
	streamKeepAlive  = 30 * time.Second
)

// Session identifiers travel on a response header and, for clients that
// cannot set custom headers, a cookie with the same value.
const (
	sessionHeader = "Mcp-Session-Id"
	sessionCookie = "mcp_session"
)

// HTTPTransport hosts MCP over HTTP: JSON-RPC messages arrive on POST /mcp,
// server-initiated notifications stream out over SSE on GET /mcp. Sessions
// live in memory and are swept once idle so dropped clients cannot leak
// connections.
//
// TODO: Add API token authentication before exposing this beyond localhost.
type HTTPTransport struct {
	addr   string
	server *mcp.Server

	mu      sync.Mutex
	clients map[string]*clientSession
	running map[string]bool

	httpServer *http.Server
	runCtx     context.Context
	stopRun    context.CancelFunc
}

// clientSession pairs one MCP session with the connection its handlers feed.
type clientSession struct {
	id        string
	conn      *streamConn
	startedAt time.Time
	touchedAt time.Time
}

// NewHTTPTransport returns a transport bound to addr, defaulting to a
// localhost-only listen address.
func NewHTTPTransport(addr string) *HTTPTransport {
	if addr == "" {
		addr = "localhost:8081"
	}
	runCtx, stopRun := context.WithCancel(context.Background())
	return &HTTPTransport{
		addr:    addr,
		clients: make(map[string]*clientSession),
		running: make(map[string]bool),
		runCtx:  runCtx,
		stopRun: stopRun,
	}
}

// NewHTTPTransportWithServer returns a transport that spawns the given MCP
// server for each new session.
func NewHTTPTransportWithServer(addr string, server *mcp.Server) *HTTPTransport {
	t := NewHTTPTransport(addr)
	t.server = server
	return t
}

// Connect implements mcp.Transport. Every call mints a session whose
// connection the MCP server reads while HTTP handlers feed it messages.
func (t *HTTPTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	id := newSessionID()
	conn := &streamConn{
		id:      id,
		inbox:   make(chan jsonrpc.Message, channelDepth),
		events:  make(chan jsonrpc.Message, channelDepth),
		done:    make(chan struct{}),
		waiters: make(map[jsonrpc.ID]chan jsonrpc.Message),
	}

	now := time.Now()
	t.mu.Lock()
	t.clients[id] = &clientSession{id: id, conn: conn, startedAt: now, touchedAt: now}
	t.mu.Unlock()

	return conn, nil
}

// Start serves HTTP until ctx ends or the listener fails.
func (t *HTTPTransport) Start(ctx context.Context) error {
	t.runCtx, t.stopRun = context.WithCancel(ctx)
	go t.sweepIdleSessions(ctx)

	t.httpServer = &http.Server{Addr: t.addr, Handler: t.routes()}
	log.Printf("mcp http transport listening on %s", t.addr)

	failed := make(chan error, 1)
	go func() {
		if err := t.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			failed <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Printf("mcp http transport shutting down")
		graceCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := t.httpServer.Shutdown(graceCtx); err != nil {
			return fmt.Errorf("shutdown mcp http transport: %w", err)
		}
		t.stopRun()
		return nil
	case err := <-failed:
		return fmt.Errorf("mcp http transport: %w", err)
	}
}

func (t *HTTPTransport) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			t.handleSSE(w, r)
		case http.MethodPost:
			t.handleRPC(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/mcp/health", t.handleHealth)
	return mux
}

// handleRPC accepts one JSON-RPC message per POST. Notifications return 204
// once queued; requests block until the MCP server answers or a timeout hits.
func (t *HTTPTransport) handleRPC(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read request body", http.StatusBadRequest)
		return
	}
	msg, err := jsonrpc.DecodeMessage(body)
	if err != nil {
		http.Error(w, "malformed JSON-RPC message", http.StatusBadRequest)
		return
	}

	// Only an initialize request may mint a session; everything else must
	// present an existing one.
	req, isReq := msg.(*jsonrpc.Request)
	initialize := isReq && req.Method == "initialize"

	session, created, err := t.resolveSession(r, initialize)
	if err != nil {
		writeSessionError(w, err.Error())
		return
	}
	if created {
		w.Header().Set(sessionHeader, session.id)
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    session.id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
		})
	}
	t.touch(session.id)
	t.startSessionServer(session)

	if _, isResp := msg.(*jsonrpc.Response); isResp {
		http.Error(w, "unexpected response message", http.StatusBadRequest)
		return
	}
	if !isReq {
		http.Error(w, "unsupported message type", http.StatusBadRequest)
		return
	}
	if req.ID == (jsonrpc.ID{}) {
		// A request without an ID is a notification; nothing comes back.
		if ok := t.forward(w, r, session, msg); ok {
			w.WriteHeader(http.StatusNoContent)
		}
		return
	}
	t.replyToRequest(w, r, session, req)
}

// forward queues msg for the MCP server, reporting failure on w.
func (t *HTTPTransport) forward(w http.ResponseWriter, r *http.Request, session *clientSession, msg jsonrpc.Message) bool {
	select {
	case session.conn.inbox <- msg:
		return true
	case <-session.conn.done:
		http.Error(w, "session closed", http.StatusGone)
	case <-r.Context().Done():
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
	}
	return false
}

// replyToRequest queues the request and relays the matching response.
func (t *HTTPTransport) replyToRequest(w http.ResponseWriter, r *http.Request, session *clientSession, req *jsonrpc.Request) {
	reply := session.conn.awaitReply(req.ID)
	defer session.conn.forgetReply(req.ID)

	if ok := t.forward(w, r, session, req); !ok {
		return
	}

	select {
	case resp, ok := <-reply:
		if !ok {
			http.Error(w, "session closed", http.StatusGone)
			return
		}
		data, err := jsonrpc.EncodeMessage(resp)
		if err != nil {
			log.Printf("encode mcp response: %v", err)
			http.Error(w, "encode response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(data); err != nil {
			log.Printf("write mcp response: %v", err)
		}
	case <-r.Context().Done():
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
	case <-time.After(requestTimeout):
		http.Error(w, "request timed out", http.StatusRequestTimeout)
	}
}

// resolveSession locates the session named by header or cookie. Only
// initialize requests may create one when none matches.
func (t *HTTPTransport) resolveSession(r *http.Request, initialize bool) (*clientSession, bool, error) {
	id := strings.TrimSpace(r.Header.Get(sessionHeader))
	if id == "" {
		if cookie, err := r.Cookie(sessionCookie); err == nil {
			id = cookie.Value
		}
	}

	if id != "" {
		t.mu.Lock()
		session := t.clients[id]
		t.mu.Unlock()
		if session != nil {
			return session, false, nil
		}
		if !initialize {
			return nil, false, fmt.Errorf("unknown session ID")
		}
	}
	if !initialize {
		return nil, false, fmt.Errorf("missing session ID")
	}

	conn, err := t.Connect(r.Context())
	if err != nil {
		return nil, false, fmt.Errorf("create session: %v", err)
	}
	t.mu.Lock()
	session := t.clients[conn.SessionID()]
	t.mu.Unlock()
	if session == nil {
		return nil, false, fmt.Errorf("create session: not registered")
	}
	return session, true, nil
}

// touch refreshes the session idle timer.
func (t *HTTPTransport) touch(id string) {
	t.mu.Lock()
	if session := t.clients[id]; session != nil {
		session.touchedAt = time.Now()
	}
	t.mu.Unlock()
}

// handleSSE streams server notifications for an established session.
// Request/response pairs never travel here; they ride POST.
func (t *HTTPTransport) handleSSE(w http.ResponseWriter, r *http.Request) {
	session, _, err := t.resolveSession(r, false)
	if err != nil {
		http.Error(w, "missing or unknown session ID", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	t.touch(session.id)

	// Keep open streams alive across the idle sweep.
	keepAlive := time.NewTicker(streamKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-session.conn.done:
			return
		case <-keepAlive.C:
			t.touch(session.id)
		case msg, ok := <-session.conn.events:
			if !ok {
				return
			}
			t.touch(session.id)
			data, err := json.Marshal(msg)
			if err != nil {
				log.Printf("marshal sse event: %v", err)
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			if canFlush {
				flusher.Flush()
			}
		}
	}
}

func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// sweepIdleSessions closes and drops sessions idle past sessionIdleAfter.
func (t *HTTPTransport) sweepIdleSessions(ctx context.Context) {
	ticker := time.NewTicker(idleSweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-sessionIdleAfter)
			t.mu.Lock()
			for id, session := range t.clients {
				if session.touchedAt.Before(cutoff) {
					session.conn.Close()
					delete(t.clients, id)
					delete(t.running, id)
				}
			}
			t.mu.Unlock()
		}
	}
}

// startSessionServer runs the MCP server against this session's connection,
// at most once per session even when early requests race.
func (t *HTTPTransport) startSessionServer(session *clientSession) {
	if t.server == nil {
		return
	}
	t.mu.Lock()
	already := t.running[session.id]
	t.running[session.id] = true
	t.mu.Unlock()
	if already {
		return
	}

	go func() {
		err := t.server.Run(t.runCtx, &pinnedTransport{conn: session.conn})
		if err != nil && t.runCtx.Err() == nil {
			log.Printf("mcp session %s ended: %v", session.id, err)
		}
	}()
}

// writeSessionError reports session resolution failures as JSON-RPC errors.
func writeSessionError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	body, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"error":   map[string]any{"code": -32000, "message": message},
		"id":      nil,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","error":{"code":-32000,"message":"session error"},"id":null}`))
		return
	}
	_, _ = w.Write(body)
}

var sessionCounter atomic.Uint64

// newSessionID builds an unguessable session identifier. The counter keeps
// ids unique even if the random source misbehaves.
func newSessionID() string {
	n := sessionCounter.Add(1)
	sid, err := id.NewID()
	if err != nil {
		return fmt.Sprintf("mcp-%d-%d", time.Now().UnixNano(), n)
	}
	return fmt.Sprintf("mcp-%s-%d", sid, n)
}

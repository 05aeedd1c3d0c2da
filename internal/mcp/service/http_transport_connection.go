package service

import (
	"context"
	"errors"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var errConnClosed = errors.New("connection closed")

// streamConn adapts the bidirectional connection the MCP SDK expects onto the
// transport's two HTTP legs: the inbox feeds the server from POST handlers,
// responses route back to the handler waiting on that request ID, and
// everything else drains to the SSE event stream.
type streamConn struct {
	id     string
	inbox  chan jsonrpc.Message
	events chan jsonrpc.Message
	done   chan struct{}

	stateMu sync.Mutex
	stopped bool

	waitMu  sync.Mutex
	waiters map[jsonrpc.ID]chan jsonrpc.Message
}

// awaitReply registers a channel that will carry the response for id.
func (c *streamConn) awaitReply(id jsonrpc.ID) chan jsonrpc.Message {
	reply := make(chan jsonrpc.Message, 1)
	c.waitMu.Lock()
	if c.waiters == nil {
		close(reply)
	} else {
		c.waiters[id] = reply
	}
	c.waitMu.Unlock()
	return reply
}

// forgetReply drops the waiter for a request nobody is waiting on anymore.
func (c *streamConn) forgetReply(id jsonrpc.ID) {
	c.waitMu.Lock()
	delete(c.waiters, id)
	c.waitMu.Unlock()
}

// Read hands the MCP server the next message queued by an HTTP handler.
func (c *streamConn) Read(ctx context.Context) (jsonrpc.Message, error) {
	select {
	case msg, ok := <-c.inbox:
		if !ok {
			return nil, errConnClosed
		}
		return msg, nil
	case <-c.done:
		return nil, errConnClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Write routes a server message: responses with a registered waiter return to
// that HTTP handler, the rest become SSE events.
func (c *streamConn) Write(ctx context.Context, msg jsonrpc.Message) error {
	if c.isStopped() {
		return errConnClosed
	}

	if resp, ok := msg.(*jsonrpc.Response); ok && resp.ID != (jsonrpc.ID{}) {
		c.waitMu.Lock()
		reply := c.waiters[resp.ID]
		c.waitMu.Unlock()

		if reply != nil {
			select {
			case reply <- msg:
				return nil
			case <-c.done:
				return errConnClosed
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		// The waiter gave up; deliver on the event stream instead.
	}

	select {
	case c.events <- msg:
		return nil
	case <-c.done:
		return errConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close unblocks every reader and waiter so a dropped session cannot strand
// goroutines. Safe to call more than once.
func (c *streamConn) Close() error {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.stopped {
		return nil
	}
	c.stopped = true
	close(c.done)

	c.waitMu.Lock()
	for _, reply := range c.waiters {
		close(reply)
	}
	c.waiters = nil
	c.waitMu.Unlock()
	return nil
}

func (c *streamConn) isStopped() bool {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.stopped
}

// SessionID implements mcp.Connection.
func (c *streamConn) SessionID() string {
	return c.id
}

// pinnedTransport always connects to one existing connection, letting
// Server.Run serve a single HTTP session.
type pinnedTransport struct {
	conn mcp.Connection
}

func (p *pinnedTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	return p.conn, nil
}

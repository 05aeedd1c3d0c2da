//go:build !conformance

package conformance

import "github.com/modelcontextprotocol/go-sdk/mcp"

// Register does nothing in regular builds. The protocol-check fixtures
// compile in only under the conformance build tag.
func Register(_ *mcp.Server) {}

// Package domain defines the MCP tool and resource surface of the roll
// engine: drafting sessions, tag selection, the roll workflow, and
// narrator role administration. Handlers call the engine services
// in-process; transports live in the sibling service package.
package domain

// Package service wires MCP transport to the session and roll services.
//
// It is the transport adapter layer: the package knows how to run MCP over
// stdio or HTTP and delegates business meaning to the domain handlers, which
// call the draft session service and roll workflow in process.
package service

// Package branding holds the user-facing product name so every surface
// (MCP server identity, logs, seeded fixtures) renders it the same way.
package branding

// AppName is the product name shown to users.
const AppName = "Mist Engine"

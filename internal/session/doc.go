// Package session serves as an umbrella for roll drafting sessions,
// the in-memory working state a player edits before a roll is persisted.
//
// The package is organized into three subpackages:
//   - domain: Defines the session draft, its purpose, and pure mutations.
//   - memory: Holds live drafts for the lifetime of the process.
//   - service: Implements the drafting operations exposed to callers.
package session

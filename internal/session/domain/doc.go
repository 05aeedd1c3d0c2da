// Package domain defines the roll drafting session and its pure mutations.
//
// A Session is the in-memory draft a player edits before a roll is
// persisted: selected help and hinder tags, an optional burn mark, the
// might modifier, and narrative text. Sessions are addressed by creator
// and purpose, so a player holds at most one draft per flow.
//
// # Session Lifecycle
//
// A session is created when a player opens a propose, reaction, amend,
// confirm, or re-confirm flow, mutated on every edit, and destroyed when
// the flow finishes or is cancelled. A process restart drops all drafts;
// callers observe that as an expired session, not an error state.
package domain

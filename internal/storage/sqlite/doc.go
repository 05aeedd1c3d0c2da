// Package sqlite implements the engine storage contracts over a single
// SQLite database file.
//
// Sheets embed their tag collections as JSON documents; rolls flatten
// the dice trace into columns so listings can filter on outcome without
// decoding payloads. Roll ids are allocated from a per-guild sequence
// table inside the insert transaction. Timestamps are stored as UTC
// milliseconds.
package sqlite

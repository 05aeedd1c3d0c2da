// Package storage defines the persistence interfaces for the roll engine.
//
// It provides record types and store contracts for character, scene, and
// fellowship sheets, persisted rolls, narrator role grants, and the
// telemetry event log. The sqlite subpackage implements the contracts;
// services depend only on the interfaces defined here.
//
// Roll drafting sessions are deliberately absent: drafts live in process
// memory only and are lost on restart.
package storage

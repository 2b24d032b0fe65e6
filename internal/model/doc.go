// Package model defines the game event ledger's domain types.
//
// GameEvent is the only persisted entity. Everything else in this package
// (lineups, conflict groups, dependent-event sets, stats) is a value computed
// over the event log and never stored independently.
//
// Events form a forest per game team: ParentEventID is assigned at creation
// and never rewritten, and children are found by index lookup rather than
// stored back-pointers.
//
// Validate enforces the hard invariants that must hold before an event may
// reach the store:
//   - subject exclusivity (player id XOR external identity)
//   - PeriodSecond in [MinPeriodSecond, MaxPeriodSecond], never clamped
//   - formation only on FORMATION_CHANGE
//
// Foreign-key checks (parent existence, game team registration) need the store
// and live in the engine.
package model

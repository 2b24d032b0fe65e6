// Package projection derives read-only views from a game team's event log.
//
// Every function here is a pure replay over events in seq order. Nothing is
// cached: callers re-read the log and project again, which keeps the ledger
// the single writable source of truth. Per-game logs hold hundreds of events,
// so recomputation is cheap.
package projection

// Package engine implements the game event ledger's commands and queries.
//
// Every command runs as one store transaction scoped to a game team:
//
//  1. Load the game team's log (in-transaction, so it includes every
//     committed write and nothing half-done).
//  2. Check state against projections of that log (period state, who is on
//     the field). Wrong-state commands fail with a STATE error.
//  3. Append events. Each append validates hard invariants, checks the parent
//     link, runs conflict detection against the log, inserts, and folds the
//     event back into the in-memory log so the next append in the same
//     command sees it.
//  4. Register change messages to publish after commit.
//
// Either every event of a command is written or none is. Lock contention is
// retried by the store; exhausted retries surface as TRANSIENT.
//
// CRITICAL PATTERNS:
//
// Projections are never cached. Lineups and stats are recomputed from the log
// on every call, including the on-field set endPeriod closes out.
//
// Parent links are write-once. The only in-place update is the goal
// correction path, which touches time and scorer but not links.
//
// Batches are staged. Every id is assigned and every swap operand resolved
// against a staged lineup before the first insert.
package engine

// Package store provides SQLite-backed durable storage for the game event
// ledger.
//
// The store is the system of record. It owns every GameEvent row; lineups,
// stats and conflict groups are computed over it elsewhere.
//
// # Critical Patterns
//
// Append-only log
//   - Events are inserted, never rewritten, with two narrow exceptions: the
//     conflict marker (conflict_id) and the goal-correction path (UpdateEvent).
//   - parent_event_id is written once at insert.
//   - Rows leave the log only through DeleteEvents, which callers use for a
//     whole cascade set at once so referential integrity holds per statement.
//
// Logical ordering
//   - seq INTEGER AUTOINCREMENT is the total order within a game team.
//   - All queries ORDER BY seq ASC. period_second is client supplied and is
//     never used for ordering.
//
// Serialized writers per game team
//   - RunInGameTeam holds a per-game-team mutex and opens a BEGIN IMMEDIATE
//     transaction, so a read-then-decide sequence (conflict detection) never
//     races another writer for the same team.
//   - SQLITE_BUSY / SQLITE_LOCKED are retried a bounded number of times, then
//     surfaced as ErrTransient.
//   - Callbacks registered with Tx.AfterCommit run after commit while the
//     mutex is still held, giving subscribers a per-team total order.
//
// # Database Configuration
//
//   - WAL mode: readers see a consistent snapshot during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: parent links and game team registration are enforced
//
// File databases get a second, read-only pool so projections do not queue
// behind the single writer connection.
package store

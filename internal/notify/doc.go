// Package notify fans accepted ledger mutations out to live subscribers.
//
// Subscriptions are keyed by game team. A game-level subscriber lists both
// sides' game team ids. Each subscriber owns an unbounded FIFO, so Publish
// never blocks the writer that calls it; the writer publishes after commit
// while still holding its game team lock, which gives every subscriber the
// commit order for that game team.
//
// Delivery is best effort: a subscriber that falls away and comes back
// resynchronizes by re-querying current state, not by replaying a gap.
package notify

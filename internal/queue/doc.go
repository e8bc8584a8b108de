// Package queue owns client-side queue state for the Enhanced Video
// Downloader server.
//
// # Overview
//
// Manager reconciles the server's authoritative queue with what the UI gets
// to see. It composes three concerns behind one facade:
//
//   - a status cache: the last normalized snapshot plus its freshness
//     timestamp, served to readers while younger than a 2-second TTL
//   - a broadcaster: a registry of listeners notified after every refresh
//   - the mutation surface: add, remove, reorder, pause, resume, priority,
//     and force-start, each delegating to the server client
//
// # Invariants
//
// A successful mutation runs invalidate, forced refresh, then notify,
// strictly in that order and before the mutation returns, so a read issued right
// after a mutation resolves reflects post-mutation server state.
//
// Refreshes are non-reentrant. A reader arriving while a refresh is in
// flight is served the current cache (or the empty status) rather than
// triggering a second concurrent request, which keeps read storms from
// multiplying into request storms at the cost of a slightly stale answer
// for the mid-flight caller.
//
// A failed refresh never poisons the cache: the previous snapshot keeps
// being served, and only when none exists do readers get the empty status.
// The snapshot itself is replaced wholesale per refresh, never patched, and
// every copy handed out is a clone the caller may mutate freely.
//
// # Concurrency
//
// All state is guarded by one mutex; the network call itself happens
// outside the lock with the reentrancy flag set. Listener delivery is
// best-effort with per-listener panic recovery, no ordering guarantee, and
// implicit coalescing: the cache holds one snapshot, not a log of deltas,
// so a slow listener only ever sees the latest state.
package queue

// Package tasks runs resyncs of the state mirror with real-time progress reporting.
//
// # Core Operations
//
//  1. [SyncEngine.Resync] : refetch one channel's slice
//     - Waits out the per-channel rate limit (one run per interval)
//     - Shares a running resync with concurrent callers for the same channel
//     - Saves the snapshot cache when the mirror changed
//
//  2. [SyncEngine.ResyncAll] : resync several channels in order
//     - Every channel is attempted even when an earlier one fails
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, channel, step counters, messages, and optional data for advanced UI
// rendering. Updates use select with default to prevent blocking.
//
// # Snapshot Caching
//
// The optional [SnapshotCache] interface persists the mirror after each resync that changed it, so the next start
// can render before the first resync returns. The optional [SyncJournal] records every successful resync. Errors from
// either are logged and otherwise ignored.
package tasks

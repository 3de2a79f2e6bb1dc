// Package repositories implements the SQLite snapshot cache.
//
// The cache holds the last server-confirmed state of each user so the hub can render before its first resync
// returns. It is rewritten wholesale after every resync that changed the mirror, never patched event by event.
//
// Key Implementations:
//   - [SnapshotRepository] : saves and loads whole snapshots in one transaction
//   - [NotificationRepository] : active notifications
//   - [ChatRepository] : chats with their confirmed messages
//   - [FriendRequestRepository] : sent and received friend requests
//   - [SyncStateRepository] : when each channel was last resynced
//
// Optimistic entities (temporary ids) are never written.
package repositories

// Package mirror keeps the deduplicated local copy of the user's notifications, chats, friend requests and presence.
//
// # Server Copies and Patches
//
// Every entity holds the last copy the server sent plus a stack of optimistic patches, each owned by one pending
// mutation. Readers only ever see the patched view through [Store.Read]. Server events and resyncs replace the
// server copy underneath the patches:
//   - [Store.Discard] : drop a mutation's patches (rollback)
//   - [Store.Commit] : fold a mutation's patches into the server copy (confirmation)
//
// # Merging Server Events
//
// [Store.ApplyServerEvent] is idempotent. Notifications merge by version and their status never moves backwards;
// deleted and handled notifications leave a tombstone so a late copy cannot bring them back. Messages are keyed by
// (chat, id), and an echo carrying a known client message id replaces the local copy. Unread count events are
// checked against the derived counts and request a resync on mismatch.
//
// # Resync
//
// [Store.Resync] refetches one channel's slice from a [Source]. Events that arrive while the fetch is in flight win
// over the fetched copy when they are at least as new. Optimistic state the server has moved past is dropped and
// listed in [ResyncReport.Stale].
package mirror

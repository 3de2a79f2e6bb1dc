// Package models defines the domain entities shared by the hub, the state mirror and the REST client.
//
// The package contains three groups of types:
//
// 1. Entities mirrored from the music service
//   - [Notification] : bell entries with a monotonic [NotificationStatus]
//   - [Chat] and [Message] : conversations, ordered by timestamp then id
//   - [FriendRequest] and [Friend] : the social graph slice used by presence
//
// 2. Wire types exchanged over a push channel
//   - [Envelope] : the typed {kind, payload, seq} frame
//   - [Event] : one struct per [EventKind], decoded with [DecodeEvent]
//
// 3. Read models
//   - [Snapshot] : an immutable view a consumer renders from
//   - [UnreadCounts] : per-chat unread totals plus the global sum
package models

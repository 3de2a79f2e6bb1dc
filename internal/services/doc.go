// Package services implements the REST collaborator the hub reads from and mutates through.
//
// # Backend Interface
//
// [Backend] lists every call the hub makes: the notification listing and its mark-read, mark-handled and delete
// operations, the chat list, messages and unread counts, and the friend request endpoints. The state mirror resyncs
// from it and the mutation coordinator confirms optimistic changes through it.
//
// # HTTP Implementation
//
// [APIService] talks JSON over HTTP. The identity token is attached to every request by an [oauth2] transport built
// from a static token source, so the client never handles the Authorization header itself.
//
// # Error Handling
//
// Non-2xx responses become [HTTPError] values, wrapped with the method name ("services.MarkAsRead: ..."):
//   - [IsStatus] : match a specific status code
//   - [IsClientError] : any 4xx, which the mutation coordinator treats as a rejection
//
// Transport failures wrap [shared.ErrAPIRequest].
package services

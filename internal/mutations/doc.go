// Package mutations applies user intents optimistically and reconciles them with the server.
//
// # Lifecycle
//
// [Coordinator.Apply] runs every [Mutation] through the same steps:
//
//  1. Serialize on the entities it touches (bulk mutations claim their whole collection)
//  2. Patch the state mirror so readers see the result immediately
//  3. Confirm with the REST backend, or for reactions send on the chat channel and wait for the echo
//  4. Fold the patch into the server copy on success, or drop it on failure or after [Options.Timeout]
//  5. Announce the outcome on the event bridge
//
// A mutation that would not change the mirror (marking a read notification read) returns [Result.NoOp] without a
// request.
//
// # Errors
//
// Failures are returned as *[Error] and also published as [bridge.MutationRolledBack]. Err wraps one of:
//   - [shared.ErrMutationRejected] : the server refused (4xx, duplicate friend request)
//   - [shared.ErrMutationTimeout] : no confirmation within the timeout
//   - [shared.ErrNotConnected] : the channel a reaction needs is down
//   - [shared.ErrMutationFailed] : anything else
package mutations

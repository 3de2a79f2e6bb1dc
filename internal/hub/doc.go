// Package hub multiplexes the push channels of one signed-in user between any number of consumers.
//
// # Channels and Handlers
//
// A [Hub] holds at most one connection per channel. Consumers register a [Handler] under a key with
// [Hub.SetHandlers]; registering the same key again replaces the handler in place. The first registration on a
// channel connects it and removing the last one with [Hub.RemoveHandlers] disconnects it, unless
// [Options.KeepWarm] is set.
//
// # Event Pipeline
//
// Every inbound envelope is handled on its channel's read goroutine:
//
//  1. Decode into a typed [models.Event]
//  2. Merge into the state mirror
//  3. Dispatch to the channel's handlers in registration order (events the mirror already had are not dispatched)
//  4. Let the mutation coordinator match echoes it is waiting for
//  5. Publish server-side outcomes on the event bridge
//
// An unread count that disagrees with the mirror schedules a resync, and so does every transition into Connected.
//
// # Process Hub
//
// [Init] and [Default] manage one hub per process. [Hub.Logout] closes every channel and releases the default hub.
package hub

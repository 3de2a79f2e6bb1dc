// Package ui implements a live terminal interface over the hub using bubbletea's Elm architecture.
//
// The TUI is one more surface on the hub: it registers handlers on every channel under [HandlerKey] and rereads the
// state mirror whenever an event arrives, so it shows exactly what every other surface shows.
//  1. [NotificationsView] : Browse notifications, mark them read or handled, delete them
//  2. [ChatsView] : Browse chats with unread counts and friend presence
//  3. [MessagesView] : Read a chat, write messages and react
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Handlers never block the hub: events are pushed onto a buffered channel the model drains one message at a time.
// Mutations run off the update loop and their optimistic effect is picked up by a refresh shortly after.
//
// While any channel is reconnecting the header reads "Reconnecting…".
package ui

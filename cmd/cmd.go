// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
	}
}

// outputFlags are shared by every listing command.
func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format (text, markdown, csv, json)",
			Value:   "text",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write to file instead of stdout",
		},
	}
}

// setupCommand handles setup operations for the cache database, config file and identity.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize the snapshot cache and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write a config.toml from the embedded template",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:  "identity",
				Usage: "Store the signed-in user from browser request headers or explicit values",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command from browser DevTools (Copy as cURL)",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to .sh file containing cURL command",
					},
					&cli.StringFlag{
						Name:  "user",
						Usage: "User id",
					},
					&cli.StringFlag{
						Name:  "token",
						Usage: "Bearer token",
					},
				},
				Action: r.SetupIdentity,
			},
		},
	}
}

// notificationsCommand handles the notification feed.
func notificationsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "notifications",
		Aliases: []string{"notes", "n"},
		Usage:   "Notification feed operations",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List notifications, newest first",
				Flags:  outputFlags(),
				Action: r.NotificationsList,
			},
			{
				Name:      "read",
				Usage:     "Mark a notification read",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.NotificationsRead,
			},
			{
				Name:   "read-all",
				Usage:  "Mark every notification read",
				Action: r.NotificationsReadAll,
			},
			{
				Name:      "handle",
				Usage:     "Mark a notification handled",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.NotificationsHandle,
			},
			{
				Name:      "delete",
				Usage:     "Delete a notification",
				Arguments: []cli.Argument{&cli.StringArg{Name: "id"}},
				Action:    r.NotificationsDelete,
			},
			{
				Name:   "clear",
				Usage:  "Delete every notification",
				Action: r.NotificationsClear,
			},
		},
	}
}

// chatsCommand handles chats and messages.
func chatsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "chats",
		Aliases: []string{"chat"},
		Usage:   "Chat operations",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List chats with unread counts",
				Flags:  outputFlags(),
				Action: r.ChatsList,
			},
			{
				Name:      "messages",
				Usage:     "Show the messages of a chat",
				Arguments: []cli.Argument{&cli.StringArg{Name: "chat"}},
				Flags:     outputFlags(),
				Action:    r.ChatsMessages,
			},
			{
				Name:      "send",
				Usage:     "Send a message",
				Arguments: []cli.Argument{&cli.StringArg{Name: "chat"}, &cli.StringArg{Name: "content"}},
				Action:    r.ChatsSend,
			},
			{
				Name:  "react",
				Usage: "React to a message",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "chat"},
					&cli.StringArg{Name: "message"},
					&cli.StringArg{Name: "emoji", Value: "👍"},
				},
				Action: r.ChatsReact,
			},
			{
				Name:      "read",
				Usage:     "Mark a chat read",
				Arguments: []cli.Argument{&cli.StringArg{Name: "chat"}},
				Action:    r.ChatsRead,
			},
		},
	}
}

// friendsCommand handles friend requests and the friend list.
func friendsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "friends",
		Usage: "Friend operations",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List friends and who is online",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}},
				Action: r.FriendsList,
			},
			{
				Name:   "requests",
				Usage:  "List sent and received friend requests",
				Flags:  outputFlags(),
				Action: r.FriendsRequests,
			},
			{
				Name:      "add",
				Usage:     "Send a friend request",
				Arguments: []cli.Argument{&cli.StringArg{Name: "user"}},
				Action:    r.FriendsAdd,
			},
			{
				Name:      "respond",
				Usage:     "Accept or decline a friend request",
				Arguments: []cli.Argument{&cli.StringArg{Name: "request"}},
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "decline", Usage: "Decline instead of accepting"},
				},
				Action: r.FriendsRespond,
			},
		},
	}
}

// syncCommand resyncs the mirror and reports the sync journal.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Resync mirrored state from the server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "channel",
				Usage: "Only resync this channel (notifications, chat, friend-presence)",
			},
		},
		Action: r.Sync,
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show when each channel last synced",
				Flags:  []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}},
				Action: r.SyncStatus,
			},
		},
	}
}

// watchCommand streams live events until interrupted.
func watchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Connect to the push channels and print events as they arrive",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "channel",
				Usage: "Channels to watch (default: all)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print one JSON object per event",
			},
		},
		Action: r.Watch,
	}
}

// apiCommand handles direct REST calls for debugging.
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct REST calls to the music service",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET, prints raw JSON",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output compact JSON",
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "Direct POST with JSON body",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "path",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
			{
				Name:  "dump",
				Usage: "Mirror snapshot as JSON after a full resync",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to file instead of stdout",
					},
				},
				Action: r.APIDump,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"interactive", "ui"},
		Usage:   "Launch the interactive notification and chat client",
		Action:  r.TUI,
	}
}

package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/tunesync/internal/formatter"
	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/mutations"
	"github.com/urfave/cli/v3"
)

// FriendsList prints the friend list. Presence comes from the mirror when it is newer than the REST answer.
func (r *Runner) FriendsList(ctx context.Context, cmd *cli.Command) error {
	h, err := r.syncedHub(ctx, models.ChannelPresence)
	if err != nil {
		return err
	}

	friends, err := r.backend.Friends(ctx, h.UserID())
	if err != nil {
		return fmt.Errorf("failed to fetch friends: %w", err)
	}
	presence := h.Read().Presence
	for i, f := range friends {
		if online, ok := presence[f.UserID]; ok {
			friends[i].Online = online
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(friends, true)
	}

	r.writePlain("Friends: %d\n\n", len(friends))
	for _, f := range friends {
		mark := "○"
		if f.Online {
			mark = "●"
		}
		name := f.Name
		if name == "" {
			name = f.UserID
		}
		r.writePlain("%s %-20s %s\n", mark, name, f.UserID)
	}
	return nil
}

// FriendsRequests prints sent and received friend requests.
func (r *Runner) FriendsRequests(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	h, err := r.syncedHub(ctx, models.ChannelNotifications)
	if err != nil {
		return err
	}

	data, err := formatter.FriendRequests(format, h.UserID(), h.Read().FriendRequests)
	if err != nil {
		return fmt.Errorf("failed to format friend requests: %w", err)
	}
	return r.writeOutput(cmd.String("output"), data)
}

// FriendsAdd sends a friend request.
func (r *Runner) FriendsAdd(ctx context.Context, cmd *cli.Command) error {
	user, err := requireArg(cmd, "user")
	if err != nil {
		return err
	}

	res, err := r.mutate(ctx, models.ChannelNotifications, mutations.SendFriendRequest(user))
	if err != nil {
		return err
	}
	if res.Request != nil {
		r.writePlain("Request id: %s (%s)\n", res.Request.ID, res.Request.Status)
	}
	return nil
}

// FriendsRespond accepts a friend request, or declines it with --decline.
func (r *Runner) FriendsRespond(ctx context.Context, cmd *cli.Command) error {
	requestID, err := requireArg(cmd, "request")
	if err != nil {
		return err
	}

	res, err := r.mutate(ctx, models.ChannelNotifications, mutations.RespondFriendRequest(requestID, !cmd.Bool("decline")))
	if err != nil {
		return err
	}
	if res.Request != nil {
		r.writePlain("Request %s is now %s\n", res.Request.ID, res.Request.Status)
	}
	return nil
}

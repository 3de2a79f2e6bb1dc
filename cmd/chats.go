package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/tunesync/internal/formatter"
	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/mutations"
	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/urfave/cli/v3"
)

// ChatsList resyncs chats and prints them with their unread counts.
func (r *Runner) ChatsList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	h, err := r.syncedHub(ctx, models.ChannelChat)
	if err != nil {
		return err
	}
	snap := h.Read()

	data, err := formatter.Chats(format, snap.Chats, snap.UnreadMessages)
	if err != nil {
		return fmt.Errorf("failed to format chats: %w", err)
	}
	return r.writeOutput(cmd.String("output"), data)
}

// ChatsMessages prints the transcript of one chat.
func (r *Runner) ChatsMessages(ctx context.Context, cmd *cli.Command) error {
	chatID, err := requireArg(cmd, "chat")
	if err != nil {
		return err
	}
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	h, err := r.syncedHub(ctx, models.ChannelChat)
	if err != nil {
		return err
	}
	snap := h.Read()
	chat, ok := snap.Chat(chatID)
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrChatNotFound, chatID)
	}

	data, err := formatter.Messages(format, chat, snap.ChatMessages(chatID))
	if err != nil {
		return fmt.Errorf("failed to format messages: %w", err)
	}
	return r.writeOutput(cmd.String("output"), data)
}

// ChatsSend sends a message and prints the id the server assigned.
func (r *Runner) ChatsSend(ctx context.Context, cmd *cli.Command) error {
	chatID, err := requireArg(cmd, "chat")
	if err != nil {
		return err
	}
	content, err := requireArg(cmd, "content")
	if err != nil {
		return err
	}

	res, err := r.mutate(ctx, models.ChannelChat, mutations.SendMessage(chatID, content))
	if err != nil {
		return err
	}
	if res.ServerID != "" {
		r.writePlain("Message id: %s\n", res.ServerID)
	}
	return nil
}

// ChatsReact reacts to a message. Reactions travel over the chat channel, so it is connected first.
func (r *Runner) ChatsReact(ctx context.Context, cmd *cli.Command) error {
	chatID, err := requireArg(cmd, "chat")
	if err != nil {
		return err
	}
	messageID, err := requireArg(cmd, "message")
	if err != nil {
		return err
	}
	emoji := cmd.StringArg("emoji")
	if emoji == "" {
		emoji = "👍"
	}

	h, err := r.openHub()
	if err != nil {
		return err
	}
	conn, err := h.Connect(ctx, models.ChannelChat)
	if err != nil {
		return err
	}

	readyCtx, cancel := context.WithTimeout(ctx, r.config.Hub.MutationTimeout.Duration)
	defer cancel()
	if err := conn.Ready(readyCtx); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", models.ChannelChat, err)
	}

	_, err = r.mutate(ctx, models.ChannelChat, mutations.SendReaction(chatID, messageID, emoji))
	return err
}

// ChatsRead marks every message of a chat read.
func (r *Runner) ChatsRead(ctx context.Context, cmd *cli.Command) error {
	chatID, err := requireArg(cmd, "chat")
	if err != nil {
		return err
	}
	_, err = r.mutate(ctx, models.ChannelChat, mutations.MarkChatRead(chatID))
	return err
}

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

func requireArg(cmd *cli.Command, name string) (string, error) {
	v := cmd.StringArg(name)
	if v == "" {
		return "", fmt.Errorf("%w: <%s>", shared.ErrMissingArgument, name)
	}
	return v, nil
}

// mutate syncs ch, applies m through the hub and prints the outcome.
func (r *Runner) mutate(ctx context.Context, ch models.Channel, m mutations.Mutation) (*mutations.Result, error) {
	h, err := r.syncedHub(ctx, ch)
	if err != nil {
		return nil, err
	}

	res, err := h.Apply(ctx, m)
	if err != nil {
		return nil, err
	}
	if res.NoOp {
		r.writePlain("Nothing to do: %s %s\n", m.Kind, m.Target)
		return res, nil
	}

	r.logger.Debug("mutation applied", "id", res.ID, "kind", res.Kind, "target", res.Target)
	switch {
	case len(res.Affected) > 0:
		r.writePlain("✓ %s (%d affected)\n", m.Kind, len(res.Affected))
	case m.Target != "":
		r.writePlain("✓ %s %s\n", m.Kind, m.Target)
	default:
		r.writePlain("✓ %s\n", m.Kind)
	}
	return res, nil
}

// NotificationsList resyncs the notification feed and prints it.
func (r *Runner) NotificationsList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	h, err := r.syncedHub(ctx, models.ChannelNotifications)
	if err != nil {
		return err
	}
	snap := h.Read()

	data, err := formatter.Notifications(format, snap.Notifications, snap.UnreadNotifications)
	if err != nil {
		return fmt.Errorf("failed to format notifications: %w", err)
	}
	return r.writeOutput(cmd.String("output"), data)
}

// NotificationsRead marks one notification read.
func (r *Runner) NotificationsRead(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	_, err = r.mutate(ctx, models.ChannelNotifications, mutations.MarkRead(id))
	return err
}

// NotificationsReadAll marks every notification read.
func (r *Runner) NotificationsReadAll(ctx context.Context, cmd *cli.Command) error {
	_, err := r.mutate(ctx, models.ChannelNotifications, mutations.MarkAllRead())
	return err
}

// NotificationsHandle marks one notification handled, removing it from the list.
func (r *Runner) NotificationsHandle(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	_, err = r.mutate(ctx, models.ChannelNotifications, mutations.MarkHandled(id))
	return err
}

// NotificationsDelete deletes one notification.
func (r *Runner) NotificationsDelete(ctx context.Context, cmd *cli.Command) error {
	id, err := requireArg(cmd, "id")
	if err != nil {
		return err
	}
	_, err = r.mutate(ctx, models.ChannelNotifications, mutations.Delete(id))
	return err
}

// NotificationsClear deletes every notification.
func (r *Runner) NotificationsClear(ctx context.Context, cmd *cli.Command) error {
	_, err := r.mutate(ctx, models.ChannelNotifications, mutations.DeleteAll())
	return err
}

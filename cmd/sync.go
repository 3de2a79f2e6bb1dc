package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/tunesync/internal/mirror"
	"github.com/desertthunder/tunesync/internal/models"
	"github.com/desertthunder/tunesync/internal/repositories"
	"github.com/desertthunder/tunesync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Sync resyncs one channel, or all of them, printing progress as it goes.
func (r *Runner) Sync(ctx context.Context, cmd *cli.Command) error {
	var only models.Channel
	if name := cmd.String("channel"); name != "" {
		ch, err := models.ParseChannel(name)
		if err != nil {
			return err
		}
		only = ch
	}

	h, err := r.openHub()
	if err != nil {
		return err
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.Throttle:
				r.writePlain("⏳ %s\n", update.Message)
			case tasks.Fetch:
				r.writePlain("📥 [%d/%d] %s\n", update.Step, update.Total, update.Message)
			case tasks.Reconcile:
				r.writePlain("   %s\n", update.Message)
			case tasks.Cache:
				r.writePlain("💾 %s\n", update.Message)
			case tasks.Failed:
				r.writePlain("✗ %s\n", update.Message)
			}
		}
	}()

	var reports []*mirror.ResyncReport
	if only != "" {
		var report *mirror.ResyncReport
		if report, err = h.Resync(ctx, only, progressCh); err != nil {
			err = fmt.Errorf("failed to sync %s: %w", only, err)
		} else {
			reports = append(reports, report)
		}
	} else {
		reports, err = h.ResyncAll(ctx, progressCh)
	}
	close(progressCh)
	<-done

	r.writePlain("\n")
	r.writePlainHeader("Sync Complete")
	for _, report := range reports {
		state := "unchanged"
		if report.Changed {
			state = "updated"
		}
		r.writePlain("%-16s %4d fetched  %s\n", report.Channel, report.Fetched, state)
		if len(report.Stale) > 0 {
			r.writePlain("%-16s %d local changes were overwritten: %v\n", "", len(report.Stale), report.Stale)
		}
	}

	snap := h.Read()
	r.writePlain("\nUnread notifications: %d\n", snap.UnreadNotifications)
	r.writePlain("Unread messages: %d\n", snap.UnreadMessages.Global())
	return err
}

// SyncStatus prints the sync journal of the signed-in user.
func (r *Runner) SyncStatus(ctx context.Context, cmd *cli.Command) error {
	db, err := r.database()
	if err != nil {
		return err
	}

	states, err := repositories.NewSyncStateRepository(db).List(ctx, r.config.Identity.UserID)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		if states == nil {
			states = []repositories.SyncState{}
		}
		return r.writeJSON(states, true)
	}

	if len(states) == 0 {
		r.writePlain("No channels synced yet. Run 'tunesync sync'.\n")
		return nil
	}
	for _, s := range states {
		r.writePlain("%-16s %s (%s ago)", s.Channel, s.SyncedAt.Local().Format(time.DateTime), time.Since(s.SyncedAt).Round(time.Second))
		if s.StaleCount > 0 {
			r.writePlain("  %d stale", s.StaleCount)
		}
		r.writePlain("\n")
	}
	return nil
}

package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tunesync/internal/shared"
	"github.com/desertthunder/tunesync/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive notification and chat client.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if r.config.Identity.UserID == "" {
		return fmt.Errorf("%w: run 'tunesync setup identity' first", shared.ErrMissingCredentials)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/tunesync-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	shared.SetLogLevel(fileLogger, shared.ParseLogLevel(r.config.Log.Level))
	r.SetLogger(fileLogger)

	h, err := r.openHub()
	if err != nil {
		return err
	}

	model := ui.NewModel(ctx, h)
	if err := model.Start(); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	defer model.Stop()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

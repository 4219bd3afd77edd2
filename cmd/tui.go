package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/mdx/internal/shared"
	"github.com/desertthunder/mdx/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive search, playback and download screen.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/mdx-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	p, err := r.newPlayer(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrPlaybackFailed, err)
	}
	defer p.Close()

	opts := ui.Opts{
		Search:    r.api,
		Player:    p,
		Downloads: r.newManager(""),
		PageSize:  r.config.API.PageSize,
		Logger:    shared.WithLogger(fileLogger, "component", "ui"),
	}
	if _, err := r.database(); err == nil {
		opts.Cache = r.tracks
	}

	program := tea.NewProgram(ui.NewModel(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/mdx/internal/downloads"
	"github.com/desertthunder/mdx/internal/formatter"
	"github.com/desertthunder/mdx/internal/models"
	"github.com/desertthunder/mdx/internal/shared"
	"github.com/urfave/cli/v3"
)

const progressInterval = 500 * time.Millisecond

// Download fetches each hash in turn, printing progress while it runs.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	hashes := cmd.Args().Slice()
	if len(hashes) == 0 {
		return fmt.Errorf("%w: at least one track hash is required", shared.ErrMissingArgument)
	}

	manager := r.newManager(cmd.String("dir"))

	var errs []error
	for _, hash := range hashes {
		track := r.lookupTrack(hash)

		stop := r.reportProgress(manager.Tracker(), hash)
		record, err := manager.Download(ctx, track)
		stop()

		if err != nil {
			r.logger.Error("download failed", "hash", hash, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", hash, err))
			continue
		}
		r.writePlain("✓ Saved %s (%s)\n", record.Path, formatter.FormatBytes(record.Size))
	}

	return errors.Join(errs...)
}

// reportProgress prints the tracker entry for hash until the returned func is called.
func (r *Runner) reportProgress(tracker *downloads.Tracker, hash string) func() {
	done := make(chan struct{})
	finished := make(chan struct{})

	go func() {
		defer close(finished)

		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				entry, ok := tracker.Get(hash)
				if !ok {
					continue
				}
				r.writePlain("  %3d%% %s  %s  %s\n",
					entry.Progress,
					entry.Filename,
					formatter.FormatSpeed(entry.Speed),
					formatter.FormatETA(entry.TimeRemaining, entry.Progress),
				)
			}
		}
	}()

	return func() {
		close(done)
		<-finished
	}
}

// History lists, filters or clears the download history.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	if _, err := r.database(); err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}

	if cmd.Bool("clear") {
		n, err := r.history.Clear()
		if err != nil {
			return err
		}
		return r.writePlain("✓ Removed %d download record(s)\n", n)
	}

	var records []*models.DownloadRecord
	var err error
	if hash := cmd.String("hash"); hash != "" {
		records, err = r.history.ListByHash(hash)
	} else {
		records, err = r.history.List(cmd.Int("limit"))
	}
	if err != nil {
		return err
	}

	switch {
	case cmd.Bool("json"):
		return r.writeJSON(records, true)
	case cmd.Bool("csv"):
		data, err := formatter.HistoryToCSV(records)
		if err != nil {
			return err
		}
		return r.write(data)
	default:
		return r.write(formatter.HistoryToText(records))
	}
}

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/mdx/internal/formatter"
	"github.com/desertthunder/mdx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Search prints one page of search results and caches them for later commands.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	keyword := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if keyword == "" {
		return fmt.Errorf("%w: search keywords are required", shared.ErrMissingArgument)
	}

	pageSize := cmd.Int("page-size")
	if pageSize <= 0 {
		pageSize = r.config.API.PageSize
	}

	r.logger.Debug("searching", "keyword", keyword, "page", cmd.Int("page"), "page_size", pageSize)

	page, err := r.api.Search(ctx, keyword, cmd.Int("page"), pageSize)
	if err != nil {
		return err
	}

	r.cacheTracks(page.Tracks)

	switch {
	case cmd.Bool("json"):
		return r.writeJSON(page, true)
	case cmd.Bool("csv"):
		data, err := formatter.SearchToCSV(page.Tracks)
		if err != nil {
			return err
		}
		return r.write(data)
	case cmd.Bool("markdown"):
		return r.write(formatter.SearchToMarkdown(page))
	default:
		return r.write(formatter.SearchToText(page))
	}
}

// URL prints the playable URL of a track.
func (r *Runner) URL(ctx context.Context, cmd *cli.Command) error {
	hash := cmd.StringArg("hash")
	if hash == "" {
		return fmt.Errorf("%w: track hash is required", shared.ErrMissingArgument)
	}

	song, err := r.api.GetSongURL(ctx, hash)
	if err != nil {
		return err
	}

	r.writePlain("%s\n", song.Best())
	if song.ExtName != "" || song.FileSize > 0 {
		r.logger.Info("resolved", "hash", hash, "ext", song.ExtName, "size", formatter.FormatBytes(song.FileSize))
	}
	return nil
}

// Cover prints the cover art URL of a track and optionally opens it.
func (r *Runner) Cover(ctx context.Context, cmd *cli.Command) error {
	hash := cmd.StringArg("hash")
	if hash == "" {
		return fmt.Errorf("%w: track hash is required", shared.ErrMissingArgument)
	}

	track := r.lookupTrack(hash)
	images, err := r.api.GetAlbumImages(ctx, hash, track.AlbumID)
	if err != nil {
		return err
	}

	cover := images.CoverURL()
	if cover == "" {
		cover = track.Thumbnail
	}
	if cover == "" {
		return fmt.Errorf("%w: no cover art for %s", shared.ErrTrackNotFound, hash)
	}

	r.writePlain("%s\n", cover)

	if cmd.Bool("open") {
		if err := shared.OpenURL(cover); err != nil {
			return fmt.Errorf("failed to open cover: %w", err)
		}
	}
	return nil
}

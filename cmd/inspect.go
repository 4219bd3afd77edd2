package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/mdx/internal/downloads"
	"github.com/desertthunder/mdx/internal/formatter"
	"github.com/desertthunder/mdx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Inspect prints the tags of a downloaded file.
func (r *Runner) Inspect(ctx context.Context, cmd *cli.Command) error {
	path := cmd.StringArg("file")
	if path == "" {
		return fmt.Errorf("%w: file path is required", shared.ErrMissingArgument)
	}

	tags, err := downloads.ReadTags(path)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(tags, true)
	}

	cover := "none"
	if tags.HasCover {
		cover = tags.CoverMIME
	}

	r.writePlain("File:   %s (%s)\n", tags.Path, formatter.FormatBytes(tags.Size))
	r.writePlain("Format: %s %s\n", tags.FileType, tags.Format)
	r.writePlain("Title:  %s\n", tags.Title)
	r.writePlain("Artist: %s\n", tags.Artist)
	r.writePlain("Album:  %s\n", tags.Album)
	return r.writePlain("Cover:  %s\n", cover)
}

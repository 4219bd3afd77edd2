package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/mdx/internal/models"
	"github.com/desertthunder/mdx/internal/shared"
	"github.com/urfave/cli/v3"
)

// Play plays one track, or queues several, and returns once playback is finished.
func (r *Runner) Play(ctx context.Context, cmd *cli.Command) error {
	hashes := cmd.Args().Slice()
	if len(hashes) == 0 {
		return fmt.Errorf("%w: at least one track hash is required", shared.ErrMissingArgument)
	}

	tracks := make([]models.Track, 0, len(hashes))
	for _, hash := range hashes {
		tracks = append(tracks, r.lookupTrack(hash))
	}

	p, err := r.newPlayer(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrPlaybackFailed, err)
	}
	defer p.Close()

	if len(tracks) == 1 {
		p.SelectTrack(tracks[0])
	} else {
		p.SetQueue(tracks, 0)
	}

	var started bool
	var playing string
	for {
		select {
		case <-ctx.Done():
			r.writePlainln("■ Stopped")
			return nil
		case <-p.Changed():
		}

		state := p.State()
		if state.Error != "" {
			msg := strings.TrimPrefix(state.Error, shared.ErrPlaybackFailed.Error()+": ")
			return fmt.Errorf("%w: %s", shared.ErrPlaybackFailed, msg)
		}

		if state.IsPlaying && state.Track != nil {
			if key := fmt.Sprintf("%d:%s", state.QueueIndex, state.Track.Hash); key != playing {
				playing = key
				started = true
				r.writePlain("▶ %s\n", state.Track.Label())
			}
		}

		if started && state.Idle() {
			return r.writePlain("✓ Finished\n")
		}
	}
}

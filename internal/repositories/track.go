package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/mdx/internal/models"
	"github.com/desertthunder/mdx/internal/shared"
)

const trackColumns = `hash, title, artist, album, album_id, duration, thumbnail, created_at, updated_at`

// TrackRepository caches tracks seen in search results so later commands can recover
// their metadata from a hash alone.
type TrackRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewTrackRepository creates a new TrackRepository with the given database connection
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db, now: time.Now}
}

// Upsert inserts tracks or refreshes the cached copy of ones already known.
//
// The playable URL is never stored; it expires.
func (r *TrackRepository) Upsert(tracks ...models.Track) error {
	for _, track := range tracks {
		if err := track.Validate(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO tracks (` + trackColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			album_id = excluded.album_id,
			duration = excluded.duration,
			thumbnail = CASE WHEN excluded.thumbnail = '' THEN tracks.thumbnail ELSE excluded.thumbnail END,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := r.now()
	for _, track := range tracks {
		_, err := stmt.Exec(
			track.Hash,
			track.Title,
			track.Artist,
			track.Album,
			track.AlbumID,
			track.Duration,
			track.Thumbnail,
			now,
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert track %s: %w", track.Hash, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tracks: %w", err)
	}

	return nil
}

// Get retrieves a cached track by hash. Unknown hashes return [shared.ErrTrackNotFound].
func (r *TrackRepository) Get(hash string) (*models.Track, error) {
	row := r.db.QueryRow(`SELECT `+trackColumns+` FROM tracks WHERE hash = ?`, hash)

	track, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrTrackNotFound, hash)
	}
	if err != nil {
		return nil, err
	}
	return track, nil
}

// List returns cached tracks, most recently seen first. An artist filters by exact match;
// a limit of 0 returns everything.
func (r *TrackRepository) List(artist string, limit int) ([]*models.Track, error) {
	query := `SELECT ` + trackColumns + ` FROM tracks`
	args := []any{}

	if artist != "" {
		query += " WHERE artist = ?"
		args = append(args, artist)
	}

	query += " ORDER BY updated_at DESC, hash ASC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}

	return collect(rows, scanTrack)
}

// Delete removes a cached track. Deleting an unknown hash is not an error.
func (r *TrackRepository) Delete(hash string) error {
	if _, err := r.db.Exec(`DELETE FROM tracks WHERE hash = ?`, hash); err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}
	return nil
}

func scanTrack(row rowScanner) (*models.Track, error) {
	var (
		track     models.Track
		createdAt time.Time
		updatedAt time.Time
	)

	err := row.Scan(
		&track.Hash, &track.Title, &track.Artist, &track.Album, &track.AlbumID,
		&track.Duration, &track.Thumbnail, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan track: %w", err)
	}

	return &track, nil
}

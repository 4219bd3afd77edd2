package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/mdx/internal/models"
	"github.com/desertthunder/mdx/internal/shared"
)

const downloadColumns = `id, hash, title, artist, album, filename, path, size, created_at`

// DownloadRepository stores the history of completed downloads.
type DownloadRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewDownloadRepository creates a new DownloadRepository with the given database connection
func NewDownloadRepository(db *sql.DB) *DownloadRepository {
	return &DownloadRepository{db: db, now: time.Now}
}

// Create inserts record with a generated ID. CreatedAt is set when zero.
func (r *DownloadRepository) Create(record *models.DownloadRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	record.ID = shared.GenerateID()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = r.now()
	}

	_, err := r.db.Exec(`
		INSERT INTO downloads (`+downloadColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		record.Hash,
		record.Title,
		record.Artist,
		record.Album,
		record.Filename,
		record.Path,
		record.Size,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert download: %w", err)
	}

	return nil
}

// List returns the most recent downloads first. A limit of 0 returns everything.
func (r *DownloadRepository) List(limit int) ([]*models.DownloadRecord, error) {
	query := `SELECT ` + downloadColumns + ` FROM downloads ORDER BY created_at DESC, id ASC`
	args := []any{}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query downloads: %w", err)
	}

	return collect(rows, scanDownload)
}

// ListByHash returns every download of one track, most recent first.
func (r *DownloadRepository) ListByHash(hash string) ([]*models.DownloadRecord, error) {
	rows, err := r.db.Query(`
		SELECT `+downloadColumns+`
		FROM downloads
		WHERE hash = ?
		ORDER BY created_at DESC, id ASC
	`, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to query downloads: %w", err)
	}

	return collect(rows, scanDownload)
}

// Clear deletes the whole history and reports how many records were removed.
func (r *DownloadRepository) Clear() (int64, error) {
	result, err := r.db.Exec(`DELETE FROM downloads`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear downloads: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return rows, nil
}

func scanDownload(row rowScanner) (*models.DownloadRecord, error) {
	var record models.DownloadRecord

	err := row.Scan(
		&record.ID, &record.Hash, &record.Title, &record.Artist, &record.Album,
		&record.Filename, &record.Path, &record.Size, &record.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan download: %w", err)
	}

	return &record, nil
}

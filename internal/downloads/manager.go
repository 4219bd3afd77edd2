package downloads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mdx/internal/models"
	"github.com/desertthunder/mdx/internal/services"
	"github.com/desertthunder/mdx/internal/shared"
)

const (
	defaultGrace = time.Second
	// reportInterval spaces tracker updates so each speed sample spans a measurable window.
	reportInterval = 150 * time.Millisecond
)

// HistoryStore records completed downloads.
type HistoryStore interface {
	Create(record *models.DownloadRecord) error
}

// ManagerOpts configures a [Manager].
type ManagerOpts struct {
	Catalog services.Catalog
	Tracker *Tracker     // defaults to a new tracker
	Tagger  Tagger       // nil disables tagging
	History HistoryStore // nil disables history
	Dir     string       // destination directory, defaults to "."
	Grace   time.Duration
	Logger  *log.Logger
}

// Manager downloads tracks one at a time per hash, feeding a [Tracker].
type Manager struct {
	catalog services.Catalog
	tracker *Tracker
	tagger  Tagger
	history HistoryStore
	dir     string
	grace   time.Duration
	logger  *log.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

// NewManager creates a [Manager].
func NewManager(opts ManagerOpts) *Manager {
	if opts.Tracker == nil {
		opts.Tracker = NewTracker(nil)
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.Grace <= 0 {
		opts.Grace = defaultGrace
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(io.Discard)
	}

	return &Manager{
		catalog: opts.Catalog,
		tracker: opts.Tracker,
		tagger:  opts.Tagger,
		history: opts.History,
		dir:     shared.ExpandHome(opts.Dir),
		grace:   opts.Grace,
		logger:  opts.Logger,
		active:  make(map[string]struct{}),
	}
}

// Tracker returns the tracker fed by this manager.
func (m *Manager) Tracker() *Tracker {
	return m.tracker
}

// Active reports whether a download for hash is running, including at 0%.
func (m *Manager) Active(hash string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.active[hash]
	return ok
}

func (m *Manager) acquire(hash string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, busy := m.active[hash]; busy {
		return false
	}
	m.active[hash] = struct{}{}
	return true
}

func (m *Manager) release(hash string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, hash)
}

// Download saves track into the download directory as "Artist - Title.ext".
//
// Bytes are streamed into a ".part" file that is renamed once complete. On failure the
// tracker entry is cleared immediately; on success it shows 100% until the grace period ends.
// Tagging and history failures are logged and do not fail the download.
func (m *Manager) Download(ctx context.Context, track models.Track) (*models.DownloadRecord, error) {
	if track.Hash == "" {
		return nil, fmt.Errorf("%w: track has no hash", shared.ErrInvalidInput)
	}
	if !m.acquire(track.Hash) {
		return nil, fmt.Errorf("%w: %s", shared.ErrAlreadyDownloading, track.Label())
	}
	defer m.release(track.Hash)

	logger := shared.WithLogger(m.logger, "hash", track.Hash)

	record, err := m.download(ctx, track, logger)
	if err != nil {
		m.tracker.ClearProgress(track.Hash)
		logger.Error("download failed", "error", err)
		if !errors.Is(err, shared.ErrDownloadFailed) {
			err = fmt.Errorf("%w: %w", shared.ErrDownloadFailed, err)
		}
		return nil, err
	}

	m.tracker.Retire(track.Hash, m.grace)

	if m.history != nil {
		if err := m.history.Create(record); err != nil {
			logger.Warn("failed to record download", "error", err)
		}
	}

	logger.Info("downloaded", "path", record.Path, "size", record.Size)
	return record, nil
}

func (m *Manager) download(ctx context.Context, track models.Track, logger *log.Logger) (*models.DownloadRecord, error) {
	song, err := m.catalog.GetSongURL(ctx, track.Hash)
	if err != nil {
		return nil, err
	}

	source := song.Best()
	ext, ok := shared.NormalizeExtension(song.ExtName)
	if !ok {
		ext = shared.ExtensionFromURL(source)
	}

	filename := shared.MusicFilename(track.Artist, track.Title, ext)
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}

	dest := filepath.Join(m.dir, filename)
	part := dest + ".part"

	file, err := os.Create(part)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	m.tracker.ReportProgress(track.Hash, 0, song.FileSize, filename)
	n, err := m.catalog.DownloadBinary(ctx, source, file, m.progress(track.Hash, filename))
	closeErr := file.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(part)
		return nil, err
	}

	if err := os.Rename(part, dest); err != nil {
		os.Remove(part)
		return nil, fmt.Errorf("failed to move download into place: %w", err)
	}

	if m.tagger != nil {
		if err := m.tagger.Write(dest, m.metadata(ctx, track, logger)); err != nil {
			logger.Warn("failed to tag download", "path", dest, "error", err)
		}
	}

	m.tracker.ReportProgress(track.Hash, n, n, filename)

	size := n
	if info, err := os.Stat(dest); err == nil {
		size = info.Size()
	}

	return &models.DownloadRecord{
		Hash:     track.Hash,
		Title:    track.Title,
		Artist:   track.Artist,
		Album:    track.Album,
		Filename: filename,
		Path:     dest,
		Size:     size,
	}, nil
}

// progress forwards byte counts to the tracker at most once per reportInterval,
// always passing through the final count.
func (m *Manager) progress(hash, filename string) services.ProgressFunc {
	var last time.Time
	return func(loaded, total int64) {
		now := time.Now()
		if loaded != total && now.Sub(last) < reportInterval {
			return
		}
		last = now
		m.tracker.ReportProgress(hash, loaded, total, filename)
	}
}

// metadata builds the tags for track, fetching cover art when available.
func (m *Manager) metadata(ctx context.Context, track models.Track, logger *log.Logger) Metadata {
	meta := Metadata{Title: track.Title, Artist: track.Artist, Album: track.Album}

	coverURL := track.Thumbnail
	if images, err := m.catalog.GetAlbumImages(ctx, track.Hash, track.AlbumID); err != nil {
		logger.Debug("no album images", "error", err)
	} else if u := images.CoverURL(); u != "" {
		coverURL = u
	}
	if coverURL == "" {
		return meta
	}

	var buf bytes.Buffer
	if _, err := m.catalog.DownloadBinary(ctx, coverURL, &buf, nil); err != nil {
		logger.Debug("failed to fetch cover", "url", coverURL, "error", err)
		return meta
	}
	meta.Cover = buf.Bytes()
	return meta
}

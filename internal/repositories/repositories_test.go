package repositories

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/mdx/internal/models"
	"github.com/desertthunder/mdx/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.OpenDatabase(shared.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db
}

// clock returns a now func that advances one minute per call, starting at base.
func clock(base time.Time) func() time.Time {
	next := base
	return func() time.Time {
		now := next
		next = next.Add(time.Minute)
		return now
	}
}

func TestTrackRepository(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	song := models.Track{
		Hash:      "ABC123",
		Title:     "Song",
		Artist:    "Artist",
		Album:     "Album",
		AlbumID:   "42",
		Duration:  215,
		Thumbnail: "http://img/cover.jpg",
		URL:       "http://cdn/expiring.mp3",
	}

	t.Run("Upsert And Get", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))

		if err := repo.Upsert(song); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}

		got, err := repo.Get("ABC123")
		if err != nil {
			t.Fatalf("failed to get track: %v", err)
		}

		want := song
		want.URL = ""
		if *got != want {
			t.Errorf("expected %+v, got %+v", want, *got)
		}
	})

	t.Run("Upsert Refreshes Existing", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))

		if err := repo.Upsert(song); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}

		changed := song
		changed.Title = "Song (Remastered)"
		changed.Thumbnail = ""
		if err := repo.Upsert(changed); err != nil {
			t.Fatalf("failed to upsert again: %v", err)
		}

		got, err := repo.Get("ABC123")
		if err != nil {
			t.Fatalf("failed to get track: %v", err)
		}
		if got.Title != "Song (Remastered)" {
			t.Errorf("expected title to be refreshed, got %q", got.Title)
		}
		if got.Thumbnail != song.Thumbnail {
			t.Errorf("expected empty thumbnail not to erase cached one, got %q", got.Thumbnail)
		}

		all, err := repo.List("", 0)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(all) != 1 {
			t.Errorf("expected 1 cached track, got %d", len(all))
		}
	})

	t.Run("Upsert Validates Before Writing", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))

		err := repo.Upsert(song, models.Track{Hash: "nohash-title"})
		if err == nil {
			t.Fatal("expected validation error")
		}

		if _, err := repo.Get(song.Hash); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected nothing written, got %v", err)
		}
	})

	t.Run("Get Not Found", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))

		_, err := repo.Get("missing")
		if !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})

	t.Run("List", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))
		repo.now = clock(base)

		for _, tr := range []models.Track{
			{Hash: "a", Title: "One", Artist: "X"},
			{Hash: "b", Title: "Two", Artist: "Y"},
			{Hash: "c", Title: "Three", Artist: "X"},
		} {
			if err := repo.Upsert(tr); err != nil {
				t.Fatalf("failed to upsert %s: %v", tr.Hash, err)
			}
		}

		all, err := repo.List("", 0)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(all) != 3 || all[0].Hash != "c" || all[2].Hash != "a" {
			t.Errorf("expected most recent first, got %v", hashes(all))
		}

		byArtist, err := repo.List("X", 0)
		if err != nil {
			t.Fatalf("failed to list by artist: %v", err)
		}
		if len(byArtist) != 2 {
			t.Errorf("expected 2 tracks by X, got %v", hashes(byArtist))
		}

		limited, err := repo.List("", 1)
		if err != nil {
			t.Fatalf("failed to list with limit: %v", err)
		}
		if len(limited) != 1 || limited[0].Hash != "c" {
			t.Errorf("expected only c, got %v", hashes(limited))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewTrackRepository(setupTestDB(t))

		if err := repo.Upsert(song); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}
		if err := repo.Delete(song.Hash); err != nil {
			t.Fatalf("failed to delete: %v", err)
		}
		if err := repo.Delete(song.Hash); err != nil {
			t.Errorf("expected second delete to succeed, got %v", err)
		}
		if _, err := repo.Get(song.Hash); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected track gone, got %v", err)
		}
	})

	t.Run("Closed Database", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewTrackRepository(db)
		db.Close()

		if err := repo.Upsert(song); err == nil {
			t.Error("expected upsert error")
		}
		if _, err := repo.Get(song.Hash); err == nil || errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected query error, got %v", err)
		}
		if _, err := repo.List("", 0); err == nil {
			t.Error("expected list error")
		}
	})
}

func TestDownloadRepository(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	record := func(hash string) *models.DownloadRecord {
		return &models.DownloadRecord{
			Hash:     hash,
			Title:    "Song " + hash,
			Artist:   "Artist",
			Filename: "Artist - Song " + hash + ".mp3",
			Path:     "/music/Artist - Song " + hash + ".mp3",
			Size:     1024,
		}
	}

	t.Run("Create", func(t *testing.T) {
		repo := NewDownloadRepository(setupTestDB(t))
		repo.now = clock(base)

		r := record("h1")
		if err := repo.Create(r); err != nil {
			t.Fatalf("failed to create: %v", err)
		}

		if r.ID == "" {
			t.Error("expected ID to be generated")
		}
		if !r.CreatedAt.Equal(base) {
			t.Errorf("expected CreatedAt %v, got %v", base, r.CreatedAt)
		}

		list, err := repo.List(0)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(list) != 1 {
			t.Fatalf("expected 1 record, got %d", len(list))
		}

		got := list[0]
		if got.ID != r.ID || got.Path != r.Path || got.Size != 1024 || !got.CreatedAt.Equal(base) {
			t.Errorf("expected %+v, got %+v", r, got)
		}
	})

	t.Run("Create Keeps Given Timestamp", func(t *testing.T) {
		repo := NewDownloadRepository(setupTestDB(t))

		r := record("h1")
		r.CreatedAt = base.Add(-time.Hour)
		if err := repo.Create(r); err != nil {
			t.Fatalf("failed to create: %v", err)
		}
		if !r.CreatedAt.Equal(base.Add(-time.Hour)) {
			t.Errorf("expected timestamp kept, got %v", r.CreatedAt)
		}
	})

	t.Run("Create Validation", func(t *testing.T) {
		repo := NewDownloadRepository(setupTestDB(t))

		if err := repo.Create(&models.DownloadRecord{Hash: "h1"}); err == nil {
			t.Error("expected validation error for missing path")
		}
	})

	t.Run("List And ListByHash", func(t *testing.T) {
		repo := NewDownloadRepository(setupTestDB(t))
		repo.now = clock(base)

		for _, hash := range []string{"h1", "h2", "h1"} {
			if err := repo.Create(record(hash)); err != nil {
				t.Fatalf("failed to create %s: %v", hash, err)
			}
		}

		all, err := repo.List(0)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(all) != 3 || !all[0].CreatedAt.Equal(base.Add(2*time.Minute)) {
			t.Errorf("expected newest first, got %+v", all)
		}

		limited, err := repo.List(2)
		if err != nil {
			t.Fatalf("failed to list with limit: %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("expected 2 records, got %d", len(limited))
		}

		h1, err := repo.ListByHash("h1")
		if err != nil {
			t.Fatalf("failed to list by hash: %v", err)
		}
		if len(h1) != 2 || h1[0].CreatedAt.Before(h1[1].CreatedAt) {
			t.Errorf("expected 2 records newest first, got %+v", h1)
		}

		none, err := repo.ListByHash("missing")
		if err != nil {
			t.Fatalf("failed to list by hash: %v", err)
		}
		if len(none) != 0 {
			t.Errorf("expected no records, got %d", len(none))
		}
	})

	t.Run("Clear", func(t *testing.T) {
		repo := NewDownloadRepository(setupTestDB(t))

		for _, hash := range []string{"h1", "h2"} {
			if err := repo.Create(record(hash)); err != nil {
				t.Fatalf("failed to create: %v", err)
			}
		}

		n, err := repo.Clear()
		if err != nil {
			t.Fatalf("failed to clear: %v", err)
		}
		if n != 2 {
			t.Errorf("expected 2 removed, got %d", n)
		}

		all, _ := repo.List(0)
		if len(all) != 0 {
			t.Errorf("expected empty history, got %d", len(all))
		}
	})
}

func hashes(tracks []*models.Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.Hash
	}
	return out
}

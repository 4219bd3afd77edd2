// Package testing contains shared testing utilities
package testing

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/mdx/internal/models"
)

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// CatalogFixture configures [NewCatalogServer].
type CatalogFixture struct {
	Tracks       []models.Track // served by /search
	Audio        []byte         // served at /files/<hash>.<ext>
	Ext          string         // extName reported by /song/url, default "mp3"
	Cover        string         // album sizable_cover template served by /images
	Token        string         // token issued by /login/cellphone and accepted by /login/token
	UserID       int            // numeric userid issued by /login/cellphone
	Code         string         // SMS code accepted by /login/cellphone
	NoURL        bool           // /song/url returns empty URL lists
	FailDownload bool           // /files/* answers 500
}

// CatalogServer is a fake catalog API. Requests are recorded for assertions.
type CatalogServer struct {
	*httptest.Server
	fixture CatalogFixture

	mu       sync.Mutex
	requests []*http.Request
}

// NewCatalogServer starts a fake catalog API that is closed when the test ends.
func NewCatalogServer(t *testing.T, fixture CatalogFixture) *CatalogServer {
	t.Helper()

	if fixture.Ext == "" {
		fixture.Ext = "mp3"
	}

	cs := &CatalogServer{fixture: fixture}
	mux := http.NewServeMux()
	mux.HandleFunc("/search", cs.search)
	mux.HandleFunc("/song/url", cs.songURL)
	mux.HandleFunc("/images", cs.images)
	mux.HandleFunc("/captcha/sent", cs.captcha)
	mux.HandleFunc("/login/cellphone", cs.login)
	mux.HandleFunc("/login/token", cs.verify)
	mux.HandleFunc("/files/", cs.file)

	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.mu.Lock()
		cs.requests = append(cs.requests, r.Clone(r.Context()))
		cs.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(cs.Close)

	return cs
}

// Requests returns the requests received so far.
func (cs *CatalogServer) Requests() []*http.Request {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return append([]*http.Request(nil), cs.requests...)
}

// RequestsTo returns the requests received for path.
func (cs *CatalogServer) RequestsTo(path string) []*http.Request {
	var out []*http.Request
	for _, r := range cs.Requests() {
		if r.URL.Path == path {
			out = append(out, r)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (cs *CatalogServer) search(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("pagesize"))
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 15
	}

	lists := []map[string]any{}
	start := (page - 1) * size
	for i := start; i < start+size && i < len(cs.fixture.Tracks); i++ {
		tr := cs.fixture.Tracks[i]
		lists = append(lists, map[string]any{
			"FileHash":    tr.Hash,
			"OriSongName": tr.Title,
			"SongName":    tr.Title,
			"SingerName":  tr.Artist,
			"AlbumName":   tr.Album,
			"AlbumID":     tr.AlbumID,
			"Duration":    tr.Duration,
			"FileName":    tr.Artist + " - " + tr.Title,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": 1,
		"data": map[string]any{
			"lists":    lists,
			"total":    len(cs.fixture.Tracks),
			"page":     page,
			"pagesize": size,
		},
	})
}

func (cs *CatalogServer) songURL(w http.ResponseWriter, r *http.Request) {
	hash := r.URL.Query().Get("hash")
	if cs.fixture.NoURL {
		writeJSON(w, http.StatusOK, map[string]any{"status": 1, "backupUrl": []string{}, "url": []string{}})
		return
	}

	fileURL := cs.URL + "/files/" + hash + "." + cs.fixture.Ext
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    1,
		"hash":      hash,
		"backupUrl": []string{fileURL},
		"url":       []string{fileURL},
		"extName":   cs.fixture.Ext,
		"fileSize":  len(cs.fixture.Audio),
	})
}

func (cs *CatalogServer) images(w http.ResponseWriter, r *http.Request) {
	album := []map[string]any{}
	if cs.fixture.Cover != "" {
		album = append(album, map[string]any{"sizable_cover": cs.fixture.Cover})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": 1,
		"data":   []map[string]any{{"album": album, "author": []any{}}},
	})
}

func (cs *CatalogServer) captcha(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("mobile") == "" {
		writeJSON(w, http.StatusBadGateway, map[string]any{"status": 0, "error_msg": "mobile required"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": 1, "data": map[string]any{"count": 1}})
}

func (cs *CatalogServer) login(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("code") != cs.fixture.Code {
		writeJSON(w, http.StatusBadGateway, map[string]any{"status": 0, "error_code": 34175, "error_msg": "invalid code"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": 1,
		"data": map[string]any{
			"token":     cs.fixture.Token,
			"vip_token": "vip-" + cs.fixture.Token,
			"userid":    cs.fixture.UserID,
			"vip_type":  0,
		},
	})
}

func (cs *CatalogServer) verify(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("token") != cs.fixture.Token || cs.fixture.Token == "" {
		writeJSON(w, http.StatusBadGateway, map[string]any{"status": 0, "error_code": 20018, "error_msg": "token expired"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": 1, "data": map[string]any{"userid": cs.fixture.UserID}})
}

func (cs *CatalogServer) file(w http.ResponseWriter, r *http.Request) {
	if cs.fixture.FailDownload {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	if !strings.HasSuffix(r.URL.Path, "."+cs.fixture.Ext) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(cs.fixture.Audio)))
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Write(cs.fixture.Audio)
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertFileMissing(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

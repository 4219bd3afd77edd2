package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/desertthunder/mdx/internal/models"
	"github.com/desertthunder/mdx/internal/shared"
	"golang.org/x/oauth2"
)

// Store persists the login session as a JSON file readable only by the owner.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a [Store] backed by path ("~" is expanded).
func NewStore(path string) *Store {
	return &Store{path: shared.ExpandHome(path)}
}

// Path returns the session file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the saved session. A missing or empty session is [shared.ErrNotAuthenticated].
func (s *Store) Load() (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, shared.ErrNotAuthenticated
	} else if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("%w: corrupt session file %s: %v", shared.ErrNotAuthenticated, s.path, err)
	}

	if !session.Valid() {
		return nil, shared.ErrNotAuthenticated
	}
	return &session, nil
}

// Save writes session to disk, replacing any previous one.
func (s *Store) Save(session *models.Session) error {
	if !session.Valid() {
		return fmt.Errorf("%w: session has no token", shared.ErrInvalidInput)
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// Clear removes the saved session. Clearing an absent session is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	return nil
}

// SessionToken converts a session into the token form consumed by the API service.
func SessionToken(session *models.Session) *oauth2.Token {
	tok := &oauth2.Token{AccessToken: session.Token, TokenType: "cookie"}
	return tok.WithExtra(map[string]any{
		"userid":    session.UserID,
		"vip_token": session.VIPToken,
		"vip_type":  session.VIPType,
	})
}

type storeTokenSource struct {
	store *Store
}

func (s storeTokenSource) Token() (*oauth2.Token, error) {
	session, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	return SessionToken(session), nil
}

// TokenSource reads the session from disk on first use and reuses it afterwards.
//
// While no session is saved the source keeps returning [shared.ErrNotAuthenticated],
// which the API service treats as an anonymous request.
func (s *Store) TokenSource() oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, storeTokenSource{store: s})
}

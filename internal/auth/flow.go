package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/mdx/internal/models"
	"github.com/desertthunder/mdx/internal/shared"
)

var mobilePattern = regexp.MustCompile(`^\+?[0-9]{6,15}$`)

// Client is the part of the catalog API used for logging in.
type Client interface {
	SendCaptcha(ctx context.Context, mobile string) error
	LoginCellphone(ctx context.Context, mobile, code string) (*models.Session, error)
	VerifyToken(ctx context.Context, token, userID string) error
}

// Flow drives login, verification and logout against a [Client], persisting to a [Store].
type Flow struct {
	client Client
	store  *Store
	logger *log.Logger
}

// NewFlow creates a [Flow]. A nil logger discards output.
func NewFlow(client Client, store *Store, logger *log.Logger) *Flow {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &Flow{client: client, store: store, logger: logger}
}

// Status describes the saved session as reported by [Flow.Verify].
type Status struct {
	Session *models.Session
	Valid   bool
}

func normalizeMobile(mobile string) (string, error) {
	mobile = strings.ReplaceAll(strings.TrimSpace(mobile), " ", "")
	if mobile == "" {
		return "", fmt.Errorf("%w: mobile number is required", shared.ErrMissingArgument)
	}
	if !mobilePattern.MatchString(mobile) {
		return "", fmt.Errorf("%w: %q is not a phone number", shared.ErrInvalidArgument, mobile)
	}
	return mobile, nil
}

// SendCode requests an SMS login code for mobile.
func (f *Flow) SendCode(ctx context.Context, mobile string) error {
	mobile, err := normalizeMobile(mobile)
	if err != nil {
		return err
	}

	if err := f.client.SendCaptcha(ctx, mobile); err != nil {
		return err
	}

	f.logger.Info("login code sent", "mobile", mobile)
	return nil
}

// Login exchanges mobile and code for a session and saves it.
func (f *Flow) Login(ctx context.Context, mobile, code string) (*models.Session, error) {
	mobile, err := normalizeMobile(mobile)
	if err != nil {
		return nil, err
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: login code is required", shared.ErrMissingArgument)
	}

	session, err := f.client.LoginCellphone(ctx, mobile, code)
	if err != nil {
		return nil, err
	}

	if err := f.store.Save(session); err != nil {
		return nil, err
	}

	f.logger.Info("logged in", "userid", session.UserID, "path", f.store.Path())
	return session, nil
}

// Verify loads the saved session and asks the catalog whether its token is still accepted.
//
// A rejected token yields Valid=false with no error; the session is kept on disk.
func (f *Flow) Verify(ctx context.Context) (*Status, error) {
	session, err := f.store.Load()
	if err != nil {
		return nil, err
	}

	if err := f.client.VerifyToken(ctx, session.Token, session.UserID); err != nil {
		if errors.Is(err, shared.ErrTokenExpired) {
			f.logger.Warn("session token rejected", "userid", session.UserID)
			return &Status{Session: session}, nil
		}
		return nil, err
	}

	return &Status{Session: session, Valid: true}, nil
}

// Logout removes the saved session.
func (f *Flow) Logout() error {
	if err := f.store.Clear(); err != nil {
		return err
	}
	f.logger.Info("logged out")
	return nil
}

// RequireSession returns the saved session or [shared.ErrNotAuthenticated].
//
// It only checks that a session exists locally; use [Flow.Verify] to check it remotely.
func (f *Flow) RequireSession() (*models.Session, error) {
	session, err := f.store.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: run `mdx auth login` first", shared.ErrNotAuthenticated)
	}
	return session, nil
}

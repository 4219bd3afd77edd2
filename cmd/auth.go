package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/mdx/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthSendCode requests an SMS login code.
func (r *Runner) AuthSendCode(ctx context.Context, cmd *cli.Command) error {
	mobile := cmd.StringArg("mobile")
	if err := r.flow.SendCode(ctx, mobile); err != nil {
		return err
	}
	return r.writePlain("✓ Code sent. Run 'mdx auth login %s' to finish.\n", mobile)
}

// AuthLogin exchanges a mobile number and SMS code for a saved session.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	mobile := cmd.StringArg("mobile")
	if mobile == "" {
		return fmt.Errorf("%w: mobile number is required", shared.ErrMissingArgument)
	}

	code := cmd.String("code")
	if code == "" {
		var err error
		if code, err = r.prompt("SMS code: "); err != nil {
			return err
		}
	}

	session, err := r.flow.Login(ctx, mobile, code)
	if err != nil {
		return err
	}

	r.writePlain("✓ Logged in as user %s\n", session.UserID)
	return r.writePlain("Session saved to %s\n", r.store.Path())
}

// AuthStatus shows the saved session and whether the API still accepts it.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	status, err := r.flow.Verify(ctx)
	if errors.Is(err, shared.ErrNotAuthenticated) {
		return r.writePlain("✗ Not logged in\n")
	}
	if err != nil {
		return err
	}

	r.writePlain("User: %s\n", status.Session.UserID)
	if status.Session.VIPType != "" {
		r.writePlain("VIP type: %s\n", status.Session.VIPType)
	}
	r.writePlain("Saved: %s\n", status.Session.SavedAt.Local().Format("2006-01-02 15:04"))

	if status.Valid {
		return r.writePlain("Session: ✓ valid\n")
	}
	return r.writePlain("Session: ✗ expired, log in again\n")
}

// AuthLogout removes the saved session.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.flow.Logout(); err != nil {
		return err
	}
	return r.writePlain("✓ Logged out\n")
}

package client

import (
	"context"
	"fmt"

	"github.com/Sternrassler/mako-go/pkg/session"
)

// Authenticator is the login boundary of the API. Implementations talk to
// the OAuth endpoint and return complete sessions.
type Authenticator interface {
	// Login creates a session from the implementation's credentials.
	Login(ctx context.Context) (*session.Session, error)

	// Refresh exchanges current's refresh token for a new session. current
	// is a private copy and may be modified and returned.
	Refresh(ctx context.Context, current *session.Session) (*session.Session, error)
}

// Login authenticates through the configured Authenticator and installs the
// resulting session.
func (c *Client) Login(ctx context.Context) (*session.Session, error) {
	if c.auth == nil {
		return nil, fmt.Errorf("login: no authenticator configured")
	}
	next, err := c.auth.Login(ctx)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if next == nil || !next.LoggedIn() {
		return nil, fmt.Errorf("login: %w", ErrNotLoggedIn)
	}
	if next.TokenRefreshed.IsZero() {
		next.TokenRefreshed = c.now()
	}
	c.sessions.Replace(next)

	c.logger.Info().
		Str("account", next.Account).
		Bool("premium", next.IsPremium).
		Msg("Logged in")
	return c.sessions.Load(), nil
}

// Refresh renews the access token. Concurrent callers share one upstream
// refresh and observe the same new session.
func (c *Client) Refresh(ctx context.Context) (*session.Session, error) {
	if c.auth == nil {
		return nil, fmt.Errorf("refresh: no authenticator configured")
	}

	v, err, shared := c.refreshGroup.Do("refresh", func() (any, error) {
		current := c.sessions.Load()
		if current == nil || current.RefreshToken == "" {
			return nil, ErrNotLoggedIn
		}
		next, err := c.auth.Refresh(ctx, current)
		if err != nil {
			return nil, err
		}
		if next == nil || !next.LoggedIn() {
			return nil, ErrNotLoggedIn
		}
		next.TokenRefreshed = c.now()
		c.sessions.Replace(next)
		return c.sessions.Load(), nil
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Token refresh failed")
		return nil, fmt.Errorf("refresh: %w", err)
	}

	c.logger.Debug().Bool("shared", shared).Msg("Token refreshed")
	return v.(*session.Session).Clone(), nil
}

// ensureFresh refreshes the session before a request when the token is due.
func (c *Client) ensureFresh(ctx context.Context) error {
	if c.auth == nil {
		return nil
	}
	current := c.sessions.Load()
	if !current.LoggedIn() || !current.RefreshRequired(c.now()) {
		return nil
	}
	_, err := c.Refresh(ctx)
	return err
}

// EnsureLoggedIn returns ErrNotLoggedIn unless the session carries an access token.
func (c *Client) EnsureLoggedIn() error {
	if !c.sessions.Load().LoggedIn() {
		return ErrNotLoggedIn
	}
	return nil
}

// Package session holds the authenticated user state shared by all
// enumerations of one client.
//
// Sessions are treated as immutable values once published: a login or token
// refresh builds a new Session from the previous one and swaps it into the
// Store in a single atomic step. Readers always observe a complete snapshot,
// possibly a stale one, never a half-updated one.
package session

import (
	"slices"
	"time"
)

// RefreshInterval is how long an access token is used before it is refreshed.
const RefreshInterval = 50 * time.Minute

// Session is the state returned by a login or token refresh.
type Session struct {
	// Identity
	Name        string `json:"name"`
	ID          string `json:"id"`
	Account     string `json:"account"`
	MailAddress string `json:"mail_address"`
	AvatarURL   string `json:"avatar_url"`

	// Credentials
	AccessToken    string    `json:"access_token"`
	RefreshToken   string    `json:"refresh_token"`
	ExpiresAt      time.Time `json:"expires_at"`
	TokenRefreshed time.Time `json:"token_refreshed"`

	// IsPremium unlocks server-side popularity sorting for searches.
	IsPremium bool `json:"is_premium"`

	// Bypass marks requests routed around regional blocking. Only used for
	// diagnostics at this layer.
	Bypass     bool   `json:"bypass"`
	MirrorHost string `json:"mirror_host,omitempty"`

	// Result filters applied by engine validation.
	ExcludeTags []string `json:"exclude_tags,omitempty"`
	IncludeTags []string `json:"include_tags,omitempty"`
	MinBookmark int      `json:"min_bookmark"`
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.ExcludeTags = slices.Clone(s.ExcludeTags)
	c.IncludeTags = slices.Clone(s.IncludeTags)
	return &c
}

// LoggedIn reports whether the session carries an access token.
func (s *Session) LoggedIn() bool {
	return s != nil && s.AccessToken != ""
}

// RefreshRequired reports whether the access token is missing or old enough
// to be refreshed before the next request.
func (s *Session) RefreshRequired(now time.Time) bool {
	return s.AccessToken == "" || now.Sub(s.TokenRefreshed) >= RefreshInterval
}

// Snapshot returns the read-only view consumed by engines.
func (s *Session) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	return Snapshot{
		IsPremium:   s.IsPremium,
		Bypass:      s.Bypass,
		ExcludeTags: toSet(s.ExcludeTags),
		IncludeTags: toSet(s.IncludeTags),
		MinBookmark: s.MinBookmark,
	}
}

// Snapshot is the subset of a Session that influences filtering and ordering.
// Tag sets must not be modified by callers.
type Snapshot struct {
	IsPremium   bool
	Bypass      bool
	ExcludeTags map[string]struct{}
	IncludeTags map[string]struct{}
	MinBookmark int
}

// Source provides the current session snapshot.
type Source interface {
	Snapshot() Snapshot
}

// Static is a Source that always returns the same snapshot.
type Static Snapshot

// Snapshot implements Source.
func (s Static) Snapshot() Snapshot {
	return Snapshot(s)
}

func toSet(tags []string) map[string]struct{} {
	if len(tags) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		set[tag] = struct{}{}
	}
	return set
}

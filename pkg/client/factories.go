package client

import (
	"time"

	"github.com/Sternrassler/mako-go/pkg/endpoints"
	"github.com/Sternrassler/mako-go/pkg/model"
)

// deps binds the endpoint engines to this client. Every engine reads the
// live session store and observes the client's cancellation scope.
func (c *Client) deps() (endpoints.Deps, error) {
	if err := c.EnsureLoggedIn(); err != nil {
		return endpoints.Deps{}, err
	}
	logger := c.logger.With().Str("component", "endpoints").Logger()
	return endpoints.Deps{
		Fetcher:     c,
		Session:     c.sessions,
		Comparators: c.comparators,
		Context:     c.Context(),
		Logger:      &logger,
		Now:         c.now,
	}, nil
}

// userOrSelf falls back to the logged in account's id.
func (c *Client) userOrSelf(uid string) string {
	if uid != "" {
		return uid
	}
	if s := c.sessions.Load(); s != nil {
		return s.ID
	}
	return ""
}

// Bookmarks returns an engine over the bookmarks of uid, or of the logged in
// user when uid is empty.
func (c *Client) Bookmarks(uid string, restrict endpoints.RestrictionPolicy) (*endpoints.Engine, error) {
	d, err := c.deps()
	if err != nil {
		return nil, err
	}
	return endpoints.Bookmarks(d, c.userOrSelf(uid), restrict)
}

// Gallery returns an engine over the gallery of uid, or of the logged in
// user when uid is empty.
func (c *Client) Gallery(uid string, restrict endpoints.RestrictionPolicy) (*endpoints.Engine, error) {
	d, err := c.deps()
	if err != nil {
		return nil, err
	}
	return endpoints.Gallery(d, c.userOrSelf(uid), restrict)
}

// Search returns a keyword search engine.
func (c *Client) Search(p endpoints.SearchParams) (*endpoints.Engine, error) {
	d, err := c.deps()
	if err != nil {
		return nil, err
	}
	return endpoints.Search(d, p)
}

// Ranking returns an engine over the ranking list of date.
func (c *Client) Ranking(option endpoints.RankOption, date time.Time) (*endpoints.Engine, error) {
	d, err := c.deps()
	if err != nil {
		return nil, err
	}
	return endpoints.Ranking(d, option, date)
}

// Recommends returns an engine over recommended works.
func (c *Client) Recommends(sortOption model.SortOption, typ endpoints.RecommendationType) (*endpoints.Engine, error) {
	d, err := c.deps()
	if err != nil {
		return nil, err
	}
	return endpoints.Recommends(d, sortOption, typ)
}

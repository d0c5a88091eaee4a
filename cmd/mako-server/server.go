package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/mako-go/pkg/client"
	"github.com/Sternrassler/mako-go/pkg/endpoints"
	"github.com/Sternrassler/mako-go/pkg/engine"
	"github.com/Sternrassler/mako-go/pkg/logging"
	"github.com/Sternrassler/mako-go/pkg/metrics"
	"github.com/Sternrassler/mako-go/pkg/model"
	"github.com/Sternrassler/mako-go/pkg/pagination"
)

const (
	defaultLimit = 30
	maxLimit     = 1000
	dateLayout   = "2006-01-02"
)

type server struct {
	client  *client.Client
	redis   *redis.Client
	collect pagination.Config
	logger  zerolog.Logger
	now     func() time.Time
}

func newServer(c *client.Client, rdb *redis.Client, collect pagination.Config) *server {
	return &server{
		client:  c,
		redis:   rdb,
		collect: collect,
		logger:  logging.NewLogger("mako-server"),
		now:     time.Now,
	}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", s.readyHandler)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /ranking", s.rankingHandler)
	mux.HandleFunc("GET /search", s.searchHandler)
	mux.HandleFunc("GET /recommends", s.recommendsHandler)
	mux.HandleFunc("GET /users/{uid}/gallery", s.galleryHandler)
	mux.HandleFunc("GET /users/{uid}/bookmarks", s.bookmarksHandler)
	mux.HandleFunc("GET /discover", s.discoverHandler)
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func (s *server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if s.redis != nil {
		if err := s.redis.Ping(r.Context()).Err(); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	if err := s.client.EnsureLoggedIn(); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

type listResponse struct {
	Endpoint string                `json:"endpoint"`
	Count    int                   `json:"count"`
	Pages    int                   `json:"pages"`
	Items    []*model.Illustration `json:"items"`
}

type discoverResponse struct {
	Sources []sourceResponse `json:"sources"`
	Error   string           `json:"error,omitempty"`
}

type sourceResponse struct {
	Endpoint  string                `json:"endpoint"`
	Count     int                   `json:"count"`
	Truncated bool                  `json:"truncated,omitempty"`
	Error     string                `json:"error,omitempty"`
	Items     []*model.Illustration `json:"items"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *server) rankingHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("mode")
	if mode == "" {
		mode = "day"
	}
	option, err := endpoints.ParseRankOption(mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	date, err := s.parseDate(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.serveList(w, r, func() (*endpoints.Engine, error) {
		return s.client.Ranking(option, date)
	})
}

func (s *server) searchHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := endpoints.SearchParams{Keyword: q.Get("word")}
	if p.Keyword == "" {
		writeError(w, http.StatusBadRequest, errors.New("word is required"))
		return
	}

	var err error
	if p.Match, err = endpoints.ParseSearchMatchOption(q.Get("match")); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if p.Sort, err = model.ParseSortOption(q.Get("sort")); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if p.Duration, err = endpoints.ParseSearchDuration(q.Get("duration")); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if v := q.Get("start"); v != "" {
		if p.Start, err = strconv.Atoi(v); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("start: %w", err))
			return
		}
	}

	// Count stays unbounded: duplicates and filtered works would otherwise
	// leave the response short of limit.
	s.serveList(w, r, func() (*endpoints.Engine, error) {
		return s.client.Search(p)
	})
}

func (s *server) recommendsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sortOption, err := model.ParseSortOption(q.Get("sort"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	typ, err := endpoints.ParseRecommendationType(q.Get("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.serveList(w, r, func() (*endpoints.Engine, error) {
		return s.client.Recommends(sortOption, typ)
	})
}

func (s *server) galleryHandler(w http.ResponseWriter, r *http.Request) {
	s.serveUserList(w, r, s.client.Gallery)
}

func (s *server) bookmarksHandler(w http.ResponseWriter, r *http.Request) {
	s.serveUserList(w, r, s.client.Bookmarks)
}

func (s *server) serveUserList(w http.ResponseWriter, r *http.Request,
	build func(string, endpoints.RestrictionPolicy) (*endpoints.Engine, error)) {
	restrict, err := endpoints.ParseRestrictionPolicy(r.URL.Query().Get("restrict"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	uid := r.PathValue("uid")
	if uid == "me" {
		uid = ""
	}

	s.serveList(w, r, func() (*endpoints.Engine, error) {
		return build(uid, restrict)
	})
}

// serveList collects one enumeration into a JSON list.
func (s *server) serveList(w http.ResponseWriter, r *http.Request, build func() (*endpoints.Engine, error)) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	e, err := build()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	items, err := pagination.Collect[*model.Illustration](ctx, e, limit)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("endpoint", e.Name()).
			Int("items", len(items)).
			Msg("Collection failed")
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, listResponse{
		Endpoint: e.Name(),
		Count:    len(items),
		Pages:    e.RequestedPages(),
		Items:    items,
	})
}

// discoverHandler collects the ranking of the previous day and the
// recommendations side by side.
func (s *server) discoverHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ranking, err := s.client.Ranking(endpoints.RankDay, s.now().AddDate(0, 0, -1))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	recommends, err := s.client.Recommends(model.SortUnspecified, endpoints.RecommendUnspecified)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	cfg := s.collect
	cfg.Limit = limit
	bc := pagination.NewBatchCollector[*model.Illustration](cfg)

	results, err := bc.CollectAll(r.Context(), ranking, recommends)

	resp := discoverResponse{Sources: make([]sourceResponse, 0, len(results))}
	for _, c := range results {
		sr := sourceResponse{
			Endpoint:  c.Name,
			Count:     len(c.Items),
			Truncated: c.Truncated,
			Items:     c.Items,
		}
		if c.Err != nil {
			sr.Error = c.Err.Error()
		}
		resp.Sources = append(resp.Sources, sr)
	}

	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status = http.StatusPartialContent
	}
	writeJSON(w, status, resp)
}

func (s *server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.collect.Timeout > 0 {
		return context.WithTimeout(r.Context(), s.collect.Timeout)
	}
	return context.WithCancel(r.Context())
}

// parseDate reads a YYYY-MM-DD date, defaulting to yesterday.
func (s *server) parseDate(v string) (time.Time, error) {
	if v == "" {
		return s.now().AddDate(0, 0, -1), nil
	}
	t, err := time.ParseInLocation(dateLayout, v, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("date: %w", err)
	}
	return t, nil
}

func parseLimit(v string) (int, error) {
	if v == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > maxLimit {
		return 0, fmt.Errorf("limit must be between 1 and %d", maxLimit)
	}
	return n, nil
}

func statusFor(err error) int {
	var apiErr *client.APIError
	switch {
	case errors.Is(err, endpoints.ErrOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, client.ErrNotLoggedIn):
		return http.StatusUnauthorized
	case errors.Is(err, client.ErrRequestBlocked):
		return http.StatusTooManyRequests
	case errors.Is(err, engine.ErrEmptyPage):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound:
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

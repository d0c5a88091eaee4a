// Package endpoints binds the gallery API's page-based endpoints to the
// generic pagination engine.
//
// Each constructor validates its parameters before any network activity and
// returns an engine emitting *model.Illustration values. URL shapes follow
// the app API exactly, including the 5000 offset ceiling of keyword search
// and the yyyy-MM-dd date format.
package endpoints

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/mako-go/pkg/engine"
	"github.com/Sternrassler/mako-go/pkg/model"
	"github.com/Sternrassler/mako-go/pkg/session"
)

// BaseURL is the app API host that relative locators resolve against.
const BaseURL = "https://app-api.pixiv.net"

// SearchOffsetCeiling is the largest offset the search API serves.
const SearchOffsetCeiling = 5000

// RankingMaxAgeDays is how many calendar days before today a ranking date
// may lie.
const RankingMaxAgeDays = 2

const dateLayout = "2006-01-02"

// ErrOutOfRange is wrapped by construction-time parameter errors.
var ErrOutOfRange = errors.New("argument out of range")

// Engine is the engine type produced by every constructor.
type Engine = engine.Engine[*model.Illustration]

// Deps are the collaborators shared by all endpoint engines.
type Deps struct {
	// Fetcher performs the page requests. Required.
	Fetcher engine.Fetcher

	// Session supplies premium and filter settings. Read when an enumeration
	// starts and whenever InsertTo or Validate is called.
	Session session.Source

	// Comparators resolves sort options. Defaults to model.DefaultComparators.
	Comparators model.Comparators

	// Context is the owner's cancellation scope.
	Context context.Context

	Logger *zerolog.Logger

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

func (d Deps) withDefaults() (Deps, error) {
	if d.Fetcher == nil {
		return d, fmt.Errorf("fetcher is required")
	}
	if d.Session == nil {
		d.Session = session.Static{}
	}
	if d.Comparators == nil {
		d.Comparators = model.DefaultComparators()
	}
	if d.Context == nil {
		d.Context = context.Background()
	}
	if d.Logger == nil {
		l := log.With().Str("component", "endpoints").Logger()
		d.Logger = &l
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d, nil
}

func (d Deps) options(insert func(*[]*model.Illustration, *model.Illustration)) engine.Options[*model.Illustration] {
	return engine.Options[*model.Illustration]{
		Context:  d.Context,
		Session:  d.Session,
		Insert:   insert,
		Validate: d.accept,
		Logger:   d.Logger,
	}
}

// accept rejects duplicates by id, then applies the session tag and
// bookmark filters.
func (d Deps) accept(item *model.Illustration, collection []*model.Illustration) bool {
	return model.Accept(item, collection, d.Session.Snapshot())
}

func appendNonNil(collection *[]*model.Illustration, item *model.Illustration) {
	if item != nil {
		model.Append(collection, item)
	}
}

// sortedInsert returns an insertion policy ordering by the comparator for opt.
// Options without a comparator append. When premiumAppend is set and the
// session is premium with popularity sort, the server order is kept.
func (d Deps) sortedInsert(opt model.SortOption, premiumAppend bool) func(*[]*model.Illustration, *model.Illustration) {
	return func(collection *[]*model.Illustration, item *model.Illustration) {
		if item == nil {
			return
		}
		if premiumAppend && opt == model.SortPopularity && d.Session.Snapshot().IsPremium {
			model.Append(collection, item)
			return
		}
		cmp, ok := d.Comparators.Lookup(opt)
		if !ok {
			model.Append(collection, item)
			return
		}
		model.InsertSorted(collection, item, cmp)
	}
}

func illustEndpoint(name string, initial func() string) engine.Endpoint[*model.Illustration, illustPage] {
	return engine.Endpoint[*model.Illustration, illustPage]{
		Name:             name,
		InitialURL:       initial,
		NextURL:          nextURL,
		Translate:        translatePage,
		ValidateResponse: hasIllusts,
	}
}

// Bookmarks enumerates the bookmarked works of user uid.
func Bookmarks(d Deps, uid string, restrict RestrictionPolicy) (*Engine, error) {
	return bookmarks(d, "bookmarks", uid, restrict)
}

// Gallery enumerates a user's gallery, which the app API serves from the
// bookmark listing.
func Gallery(d Deps, uid string, restrict RestrictionPolicy) (*Engine, error) {
	return bookmarks(d, "gallery", uid, restrict)
}

func bookmarks(d Deps, name, uid string, restrict RestrictionPolicy) (*Engine, error) {
	d, err := d.withDefaults()
	if err != nil {
		return nil, err
	}
	param, ok := restrict.Param()
	if !ok {
		return nil, fmt.Errorf("%w: restriction policy %d", ErrOutOfRange, int(restrict))
	}
	if strings.TrimSpace(uid) == "" {
		return nil, fmt.Errorf("%w: user id is empty", ErrOutOfRange)
	}

	initial := fmt.Sprintf("/v1/user/bookmarks/illust?user_id=%s&restrict=%s&filter=for_ios",
		url.QueryEscape(uid), param)

	ep := illustEndpoint(name, func() string { return initial })
	ep.EmptyMessage = fmt.Sprintf(
		"The result collection is empty, this mostly indicates that the user with specified Uid: %s does not exists.", uid)

	return engine.New(d.Fetcher, ep, d.options(appendNonNil))
}

// SearchParams configures a keyword search.
type SearchParams struct {
	Keyword string

	// Start is the first result offset, in [1, SearchOffsetCeiling).
	// Zero means 1.
	Start int

	// Count caps the number of emitted items. engine.Unbounded (-1) means
	// no cap; zero means engine.Unbounded.
	Count int

	Match    SearchMatchOption
	Sort     model.SortOption
	Duration SearchDuration

	StartDate *time.Time
	EndDate   *time.Time
}

// Search enumerates keyword search results.
func Search(d Deps, p SearchParams) (*Engine, error) {
	if p.Start == 0 {
		p.Start = 1
	}
	if p.Start < 1 || p.Start >= SearchOffsetCeiling {
		return nil, fmt.Errorf("%w: desire range: [1, %d), actual value: start(%d)",
			ErrOutOfRange, SearchOffsetCeiling, p.Start)
	}
	if p.Count == 0 {
		p.Count = engine.Unbounded
	}
	if p.Count < engine.Unbounded {
		return nil, fmt.Errorf("%w: search count %d", ErrOutOfRange, p.Count)
	}
	if _, ok := p.Match.Target(); !ok {
		return nil, fmt.Errorf("%w: search match option %d", ErrOutOfRange, int(p.Match))
	}

	d, err := d.withDefaults()
	if err != nil {
		return nil, err
	}

	ep := illustEndpoint("search", func() string {
		return searchURL(p, d.Session.Snapshot().IsPremium)
	})
	ep.HasNextPage = belowOffsetCeiling(d.Logger)
	ep.HasMore = engine.CountCap(p.Count)
	ep.EmptyMessage = fmt.Sprintf("no results for keyword %q", p.Keyword)

	return engine.New(d.Fetcher, ep, d.options(d.sortedInsert(p.Sort, true)))
}

func searchURL(p SearchParams, premium bool) string {
	target, _ := p.Match.Target()

	var b strings.Builder
	fmt.Fprintf(&b, "/v1/search/illust?search_target=%s&word=%s&filter=for_ios&offset=%d",
		target, escapeKeyword(p.Keyword), p.Start)

	switch {
	case p.Sort == model.SortPopularity && premium:
		b.WriteString("&sort=popular_desc")
	case p.Sort == model.SortPublishDate:
		b.WriteString("&sort=date_desc")
	}
	if p.StartDate != nil {
		b.WriteString("&start_date=" + p.StartDate.Format(dateLayout))
	}
	if p.EndDate != nil {
		b.WriteString("&end_date=" + p.EndDate.Format(dateLayout))
	}
	if duration, ok := p.Duration.Param(); ok {
		b.WriteString("&duration=" + duration)
	}
	return b.String()
}

func escapeKeyword(keyword string) string {
	return strings.ReplaceAll(url.QueryEscape(keyword), "+", "%20")
}

// belowOffsetCeiling allows continuation while the offset carried by the
// next locator is below SearchOffsetCeiling. A locator without an offset
// cannot be checked against the ceiling and ends the search.
func belowOffsetCeiling(logger *zerolog.Logger) func(next string) bool {
	return func(next string) bool {
		if next == "" {
			return false
		}
		offset, present, err := continuationOffset(next)
		if err != nil {
			logger.Warn().Err(err).Str("next_url", next).Msg("Unparseable continuation offset, stopping")
			return false
		}
		if !present {
			logger.Debug().Str("next_url", next).Msg("Continuation without offset, stopping")
			return false
		}
		return offset < SearchOffsetCeiling
	}
}

func continuationOffset(next string) (offset int, present bool, err error) {
	u, err := url.Parse(next)
	if err != nil {
		return 0, false, fmt.Errorf("parse next url: %w", err)
	}
	raw := u.Query().Get("offset")
	if raw == "" {
		return 0, false, nil
	}
	offset, err = strconv.Atoi(raw)
	if err != nil {
		return 0, true, fmt.Errorf("parse offset %q: %w", raw, err)
	}
	return offset, true, nil
}

// Ranking enumerates a ranking list for date. Dates more than two days
// before today are rejected.
func Ranking(d Deps, option RankOption, date time.Time) (*Engine, error) {
	d, err := d.withDefaults()
	if err != nil {
		return nil, err
	}
	mode, ok := option.Mode()
	if !ok {
		return nil, fmt.Errorf("%w: rank option %d", ErrOutOfRange, int(option))
	}

	// Compare calendar days as written in the query, not elapsed hours.
	now := d.Now()
	today := calendarDay(now, now.Location())
	day := calendarDay(date, now.Location())
	if today.AddDate(0, 0, -RankingMaxAgeDays).After(day) {
		return nil, fmt.Errorf("%w: the parameter date(%s)'s value must not greater than two days before today",
			ErrOutOfRange, date.Format(dateLayout))
	}

	initial := fmt.Sprintf("/v1/illust/ranking?filter=for_android&mode=%s&date=%s", mode, date.Format(dateLayout))

	ep := illustEndpoint("ranking", func() string { return initial })
	ep.EmptyMessage = fmt.Sprintf("ranking %s for %s is empty", mode, date.Format(dateLayout))

	return engine.New(d.Fetcher, ep, d.options(appendNonNil))
}

// calendarDay places t's own year, month and day at midnight in loc.
func calendarDay(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Recommends enumerates recommended works ordered by sortOption. With a
// content type filter, works of other types are dropped during translation.
func Recommends(d Deps, sortOption model.SortOption, typ RecommendationType) (*Engine, error) {
	d, err := d.withDefaults()
	if err != nil {
		return nil, err
	}
	if typ < RecommendUnspecified || typ > RecommendManga {
		return nil, fmt.Errorf("%w: recommendation type %d", ErrOutOfRange, int(typ))
	}

	initial := "/v1/illust/recommended?include_ranking_label=true"
	contentType, filtered := typ.ContentType()
	if filtered {
		initial += "&content_type=" + contentType
	}

	ep := illustEndpoint("recommends", func() string { return initial })
	if filtered {
		ep.Translate = func(p *illustPage) []*model.Illustration {
			items := translatePage(p)
			kept := items[:0]
			for _, ill := range items {
				if ill.IsManga() == (typ == RecommendManga) {
					kept = append(kept, ill)
				}
			}
			return kept
		}
	}
	ep.EmptyMessage = "no recommendations available"

	return engine.New(d.Fetcher, ep, d.options(d.sortedInsert(sortOption, false)))
}

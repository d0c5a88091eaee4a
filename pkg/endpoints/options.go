package endpoints

import (
	"fmt"
	"strings"
)

// RestrictionPolicy selects public or private bookmarks.
type RestrictionPolicy int

const (
	RestrictPublic RestrictionPolicy = iota
	RestrictPrivate
)

// Param returns the value of the restrict query parameter.
func (r RestrictionPolicy) Param() (string, bool) {
	switch r {
	case RestrictPublic:
		return "public", true
	case RestrictPrivate:
		return "private", true
	default:
		return "", false
	}
}

// String returns the restriction name.
func (r RestrictionPolicy) String() string {
	if p, ok := r.Param(); ok {
		return p
	}
	return fmt.Sprintf("RestrictionPolicy(%d)", int(r))
}

// ParseRestrictionPolicy converts "public" or "private".
func ParseRestrictionPolicy(s string) (RestrictionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public", "":
		return RestrictPublic, nil
	case "private":
		return RestrictPrivate, nil
	default:
		return 0, fmt.Errorf("%w: unknown restriction policy %q", ErrOutOfRange, s)
	}
}

// RankOption is a ranking list variant.
type RankOption int

const (
	RankDay RankOption = iota
	RankWeek
	RankMonth
	RankDayMale
	RankDayFemale
	RankDayManga
	RankWeekManga
	RankWeekOriginal
	RankWeekRookie
	RankDayR18
	RankDayMaleR18
	RankDayFemaleR18
	RankWeekR18
	RankWeekR18G
)

var rankModes = [...]string{
	RankDay:          "day",
	RankWeek:         "week",
	RankMonth:        "month",
	RankDayMale:      "day_male",
	RankDayFemale:    "day_female",
	RankDayManga:     "day_manga",
	RankWeekManga:    "week_manga",
	RankWeekOriginal: "week_original",
	RankWeekRookie:   "week_rookie",
	RankDayR18:       "day_r18",
	RankDayMaleR18:   "day_male_r18",
	RankDayFemaleR18: "day_female_r18",
	RankWeekR18:      "week_r18",
	RankWeekR18G:     "week_r18g",
}

// Mode returns the value of the ranking mode query parameter.
func (r RankOption) Mode() (string, bool) {
	if r < 0 || int(r) >= len(rankModes) {
		return "", false
	}
	return rankModes[r], true
}

// String returns the ranking mode.
func (r RankOption) String() string {
	if m, ok := r.Mode(); ok {
		return m
	}
	return fmt.Sprintf("RankOption(%d)", int(r))
}

// ParseRankOption converts a ranking mode such as "week_rookie".
func ParseRankOption(s string) (RankOption, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, mode := range rankModes {
		if mode == s {
			return RankOption(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown rank option %q", ErrOutOfRange, s)
}

// SearchMatchOption controls how the keyword is matched. The zero value
// matches title and caption.
type SearchMatchOption int

const (
	MatchTitleAndCaption SearchMatchOption = iota
	MatchPartialTags
	MatchExactTags
)

// Target returns the value of the search_target query parameter.
func (m SearchMatchOption) Target() (string, bool) {
	switch m {
	case MatchTitleAndCaption:
		return "title_and_caption", true
	case MatchPartialTags:
		return "partial_match_for_tags", true
	case MatchExactTags:
		return "exact_match_for_tags", true
	default:
		return "", false
	}
}

// ParseSearchMatchOption converts a search_target value.
func ParseSearchMatchOption(s string) (SearchMatchOption, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "title_and_caption":
		return MatchTitleAndCaption, nil
	case "partial_match_for_tags":
		return MatchPartialTags, nil
	case "exact_match_for_tags":
		return MatchExactTags, nil
	default:
		return 0, fmt.Errorf("%w: unknown search match option %q", ErrOutOfRange, s)
	}
}

// SearchDuration restricts results to a recent window. The zero value adds
// no restriction.
type SearchDuration int

const (
	DurationAny SearchDuration = iota
	WithinLastDay
	WithinLastWeek
	WithinLastMonth
)

// Param returns the value of the duration query parameter, or false for
// DurationAny.
func (d SearchDuration) Param() (string, bool) {
	switch d {
	case WithinLastDay:
		return "within_last_day", true
	case WithinLastWeek:
		return "within_last_week", true
	case WithinLastMonth:
		return "within_last_month", true
	default:
		return "", false
	}
}

// ParseSearchDuration converts a duration value. An empty string is DurationAny.
func ParseSearchDuration(s string) (SearchDuration, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "any":
		return DurationAny, nil
	case "within_last_day":
		return WithinLastDay, nil
	case "within_last_week":
		return WithinLastWeek, nil
	case "within_last_month":
		return WithinLastMonth, nil
	default:
		return 0, fmt.Errorf("%w: unknown search duration %q", ErrOutOfRange, s)
	}
}

// RecommendationType filters recommendations by content type. The zero
// value leaves content_type unset.
type RecommendationType int

const (
	RecommendUnspecified RecommendationType = iota
	RecommendIllustration
	RecommendManga
)

// ContentType returns the value of the content_type query parameter, or
// false when no filter applies.
func (r RecommendationType) ContentType() (string, bool) {
	switch r {
	case RecommendIllustration:
		return "illust", true
	case RecommendManga:
		return "manga", true
	default:
		return "", false
	}
}

// ParseRecommendationType converts "illust", "manga" or "".
func ParseRecommendationType(s string) (RecommendationType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unspecified":
		return RecommendUnspecified, nil
	case "illust", "illustration":
		return RecommendIllustration, nil
	case "manga":
		return RecommendManga, nil
	default:
		return 0, fmt.Errorf("%w: unknown recommendation type %q", ErrOutOfRange, s)
	}
}

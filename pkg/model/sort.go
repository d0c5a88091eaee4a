package model

import (
	"fmt"
	"slices"
	"strings"
)

// SortOption selects the client-side ordering of search and recommendation
// results.
type SortOption int

const (
	SortUnspecified SortOption = iota
	SortPopularity
	SortPublishDate
)

// String returns the option name.
func (s SortOption) String() string {
	switch s {
	case SortPopularity:
		return "popularity"
	case SortPublishDate:
		return "publish_date"
	default:
		return "unspecified"
	}
}

// ParseSortOption converts a configuration value into a SortOption.
func ParseSortOption(s string) (SortOption, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "unspecified", "none":
		return SortUnspecified, nil
	case "popularity", "popular":
		return SortPopularity, nil
	case "publish_date", "date":
		return SortPublishDate, nil
	default:
		return SortUnspecified, fmt.Errorf("unknown sort option %q", s)
	}
}

// Comparator orders two works. A negative result places a before b.
type Comparator func(a, b *Illustration) int

// ByBookmarksDesc places works with more bookmarks first.
func ByBookmarksDesc(a, b *Illustration) int {
	return b.Bookmarks - a.Bookmarks
}

// ByPublishDateDesc places newer works first.
func ByPublishDateDesc(a, b *Illustration) int {
	return b.PublishDate.Compare(a.PublishDate)
}

// Comparators maps sort options to their ordering. Options without an entry
// fall back to appending.
type Comparators map[SortOption]Comparator

// DefaultComparators returns the built-in comparator table.
func DefaultComparators() Comparators {
	return Comparators{
		SortPopularity:  ByBookmarksDesc,
		SortPublishDate: ByPublishDateDesc,
	}
}

// Lookup returns the comparator registered for opt.
func (c Comparators) Lookup(opt SortOption) (Comparator, bool) {
	cmp, ok := c[opt]
	return cmp, ok && cmp != nil
}

// Append adds item at the end of collection.
func Append(collection *[]*Illustration, item *Illustration) {
	*collection = append(*collection, item)
}

// InsertSorted places item before the first element that cmp orders after it.
// Items comparing equal keep their arrival order.
func InsertSorted(collection *[]*Illustration, item *Illustration, cmp Comparator) {
	list := *collection
	for i, existing := range list {
		if existing != nil && cmp(item, existing) < 0 {
			*collection = slices.Insert(list, i, item)
			return
		}
	}
	*collection = append(list, item)
}

package model

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Sternrassler/mako-go/pkg/session"
)

func work(id int64, bookmarks int, tags ...string) *Illustration {
	ill := &Illustration{ID: id, Bookmarks: bookmarks}
	for _, tag := range tags {
		ill.Tags = append(ill.Tags, Tag{Name: tag})
	}
	return ill
}

func ids(list []*Illustration) []int64 {
	out := make([]int64, 0, len(list))
	for _, ill := range list {
		out = append(out, ill.ID)
	}
	return out
}

func TestIllustration_Flags(t *testing.T) {
	manga := &Illustration{Type: WorkTypeManga, XRestrict: 1}
	if !manga.IsManga() {
		t.Error("IsManga() = false, want true")
	}
	if !manga.IsR18() {
		t.Error("IsR18() = false, want true")
	}

	illust := &Illustration{Type: WorkTypeIllust}
	if illust.IsManga() || illust.IsR18() {
		t.Errorf("illust flags = (%v, %v), want (false, false)", illust.IsManga(), illust.IsR18())
	}
}

func TestAccept(t *testing.T) {
	existing := []*Illustration{work(1, 10)}

	tests := []struct {
		name     string
		item     *Illustration
		snap     session.Snapshot
		expected bool
	}{
		{
			name:     "nil item",
			item:     nil,
			expected: false,
		},
		{
			name:     "new item without filters",
			item:     work(2, 0),
			expected: true,
		},
		{
			name:     "duplicate id",
			item:     work(1, 500),
			expected: false,
		},
		{
			name:     "excluded tag",
			item:     work(2, 500, "landscape", "gore"),
			snap:     session.Snapshot{ExcludeTags: map[string]struct{}{"gore": {}}},
			expected: false,
		},
		{
			name:     "missing required tag",
			item:     work(2, 500, "portrait"),
			snap:     session.Snapshot{IncludeTags: map[string]struct{}{"landscape": {}}},
			expected: false,
		},
		{
			name:     "has required tag",
			item:     work(2, 500, "landscape"),
			snap:     session.Snapshot{IncludeTags: map[string]struct{}{"landscape": {}}},
			expected: true,
		},
		{
			name:     "below min bookmark",
			item:     work(2, 99),
			snap:     session.Snapshot{MinBookmark: 100},
			expected: false,
		},
		{
			name:     "at min bookmark",
			item:     work(2, 100),
			snap:     session.Snapshot{MinBookmark: 100},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Accept(tt.item, existing, tt.snap); got != tt.expected {
				t.Errorf("Accept() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAccept_DuplicateRejectedFirst(t *testing.T) {
	var collection []*Illustration
	first := work(7, 10)
	second := work(7, 999)

	for _, item := range []*Illustration{first, second} {
		if Accept(item, collection, session.Snapshot{}) {
			Append(&collection, item)
		}
	}

	if len(collection) != 1 || collection[0] != first {
		t.Errorf("collection = %v, want only the first item", ids(collection))
	}
}

func TestParseSortOption(t *testing.T) {
	tests := []struct {
		input    string
		expected SortOption
		wantErr  bool
	}{
		{"", SortUnspecified, false},
		{"popularity", SortPopularity, false},
		{"Popular", SortPopularity, false},
		{"publish_date", SortPublishDate, false},
		{"date", SortPublishDate, false},
		{"random", SortUnspecified, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSortOption(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSortOption(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("ParseSortOption(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestInsertSorted_ByBookmarks(t *testing.T) {
	var collection []*Illustration
	for _, ill := range []*Illustration{work(1, 50), work(2, 300), work(3, 10), work(4, 300), work(5, 120)} {
		InsertSorted(&collection, ill, ByBookmarksDesc)

		for i := 1; i < len(collection); i++ {
			if collection[i-1].Bookmarks < collection[i].Bookmarks {
				t.Fatalf("collection not ordered after inserting %d: %v", ill.ID, ids(collection))
			}
		}
	}

	// Equal bookmark counts keep arrival order.
	want := []int64{2, 4, 5, 1, 3}
	if diff := cmp.Diff(want, ids(collection)); diff != "" {
		t.Errorf("InsertSorted() order mismatch (-want +got):\n%s", diff)
	}
}

func TestInsertSorted_ByPublishDate(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	dated := func(id int64, days int) *Illustration {
		return &Illustration{ID: id, PublishDate: base.AddDate(0, 0, days)}
	}

	var collection []*Illustration
	for _, ill := range []*Illustration{dated(1, 3), dated(2, 10), dated(3, 1), dated(4, 5)} {
		InsertSorted(&collection, ill, ByPublishDateDesc)
	}

	want := []int64{2, 4, 1, 3}
	if diff := cmp.Diff(want, ids(collection)); diff != "" {
		t.Errorf("InsertSorted() order mismatch (-want +got):\n%s", diff)
	}
}

func TestComparators_Lookup(t *testing.T) {
	table := DefaultComparators()

	if _, ok := table.Lookup(SortPopularity); !ok {
		t.Error("Lookup(SortPopularity) missing")
	}
	if _, ok := table.Lookup(SortPublishDate); !ok {
		t.Error("Lookup(SortPublishDate) missing")
	}
	if _, ok := table.Lookup(SortUnspecified); ok {
		t.Error("Lookup(SortUnspecified) should not resolve")
	}
}

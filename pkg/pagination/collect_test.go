package pagination

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/mako-go/pkg/engine"
)

type testPage struct {
	Items []int
	Next  string
}

// pages serves testPage payloads by locator.
type pages struct {
	mu      sync.Mutex
	byURL   map[string]testPage
	errs    map[string]error
	delay   time.Duration
	active  atomic.Int32
	maxSeen atomic.Int32
}

func newPages() *pages {
	return &pages{byURL: map[string]testPage{}, errs: map[string]error{}}
}

func (p *pages) FetchJSON(ctx context.Context, locator string, out any) error {
	n := p.active.Add(1)
	defer p.active.Add(-1)
	for {
		seen := p.maxSeen.Load()
		if n <= seen || p.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.delay):
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err, ok := p.errs[locator]; ok {
		return err
	}
	pg, ok := p.byURL[locator]
	if !ok {
		return fmt.Errorf("no page for %s", locator)
	}
	*out.(*testPage) = pg
	return nil
}

func newEngine(t *testing.T, f engine.Fetcher, name, initial string, opts engine.Options[int]) *engine.Engine[int] {
	t.Helper()
	e, err := engine.New(f, engine.Endpoint[int, testPage]{
		Name:             name,
		InitialURL:       func() string { return initial },
		NextURL:          func(p *testPage) string { return p.Next },
		Translate:        func(p *testPage) []int { return p.Items },
		ValidateResponse: func(p *testPage) bool { return len(p.Items) > 0 },
		EmptyMessage:     name + " is empty",
	}, opts)
	if err != nil {
		t.Fatalf("engine.New() error = %v", err)
	}
	return e
}

func descending(collection *[]int, item int) {
	i, _ := slices.BinarySearchFunc(*collection, item, func(a, b int) int { return b - a })
	*collection = slices.Insert(*collection, i, item)
}

func TestCollect(t *testing.T) {
	api := newPages()
	api.byURL["/a/1"] = testPage{Items: []int{3, 1, 3}, Next: "/a/2"}
	api.byURL["/a/2"] = testPage{Items: []int{5, 2}}

	tests := []struct {
		name     string
		opts     engine.Options[int]
		limit    int
		expected []int
	}{
		{
			name:     "default policies drop duplicates",
			expected: []int{3, 1, 5, 2},
		},
		{
			name:     "custom insertion policy",
			opts:     engine.Options[int]{Insert: descending},
			expected: []int{5, 3, 2, 1},
		},
		{
			name:     "limit stops early",
			limit:    2,
			expected: []int{3, 1},
		},
		{
			name: "validation filter",
			opts: engine.Options[int]{Validate: func(item int, collection []int) bool {
				return item%2 == 1 && !slices.Contains(collection, item)
			}},
			expected: []int{3, 1, 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t, api, "a", "/a/1", tt.opts)

			got, err := Collect[int](context.Background(), e, tt.limit)
			if err != nil {
				t.Fatalf("Collect() error = %v", err)
			}
			if !slices.Equal(got, tt.expected) {
				t.Errorf("Collect() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCollect_LimitSkipsFurtherPages(t *testing.T) {
	api := newPages()
	api.byURL["/a/1"] = testPage{Items: []int{1, 2, 3}, Next: "/a/2"}
	api.errs["/a/2"] = errors.New("must not be fetched")

	e := newEngine(t, api, "a", "/a/1", engine.Options[int]{})
	got, err := Collect[int](context.Background(), e, 3)
	if err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if !slices.Equal(got, []int{1, 2, 3}) {
		t.Errorf("Collect() = %v, want [1 2 3]", got)
	}
	if e.RequestedPages() != 1 {
		t.Errorf("RequestedPages() = %d, want 1", e.RequestedPages())
	}
}

func TestCollect_PartialResultsOnError(t *testing.T) {
	api := newPages()
	api.byURL["/a/1"] = testPage{Items: []int{1, 2}, Next: "/a/2"}
	transportErr := errors.New("connection reset")
	api.errs["/a/2"] = transportErr

	e := newEngine(t, api, "a", "/a/1", engine.Options[int]{})
	got, err := Collect[int](context.Background(), e, 0)

	var fetchErr *engine.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Collect() error = %v, want *engine.FetchError", err)
	}
	if !errors.Is(err, transportErr) {
		t.Errorf("Collect() error = %v, want wrapped transport error", err)
	}
	if !slices.Equal(got, []int{1, 2}) {
		t.Errorf("Collect() = %v, want partial [1 2]", got)
	}
}

func TestCollect_TruncatedContinuation(t *testing.T) {
	api := newPages()
	api.byURL["/a/1"] = testPage{Items: []int{1}, Next: "/a/2"}
	api.byURL["/a/2"] = testPage{}

	e := newEngine(t, api, "a", "/a/1", engine.Options[int]{})
	c := collect[int](context.Background(), e, 0)

	if c.Err != nil {
		t.Errorf("Err = %v, want nil", c.Err)
	}
	if !c.Truncated {
		t.Error("Truncated = false, want true")
	}
	if !slices.Equal(c.Items, []int{1}) {
		t.Errorf("Items = %v, want [1]", c.Items)
	}
}

func TestBatchCollector_CollectAll(t *testing.T) {
	api := newPages()
	api.byURL["/a/1"] = testPage{Items: []int{1, 2}, Next: "/a/2"}
	api.byURL["/a/2"] = testPage{Items: []int{3}}
	api.byURL["/b/1"] = testPage{Items: []int{10}}
	api.byURL["/c/1"] = testPage{Items: []int{20, 21}}

	bc := NewBatchCollector[int](Config{MaxConcurrency: 2})
	results, err := bc.CollectAll(context.Background(),
		newEngine(t, api, "a", "/a/1", engine.Options[int]{}),
		newEngine(t, api, "b", "/b/1", engine.Options[int]{}),
		newEngine(t, api, "c", "/c/1", engine.Options[int]{}),
	)
	if err != nil {
		t.Fatalf("CollectAll() error = %v", err)
	}

	expected := map[string][]int{
		"a": {1, 2, 3},
		"b": {10},
		"c": {20, 21},
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	for i, name := range []string{"a", "b", "c"} {
		if results[i].Name != name {
			t.Errorf("results[%d].Name = %q, want %q", i, results[i].Name, name)
		}
		if !slices.Equal(results[i].Items, expected[name]) {
			t.Errorf("results[%d].Items = %v, want %v", i, results[i].Items, expected[name])
		}
	}
}

func TestBatchCollector_FailureKeepsSiblings(t *testing.T) {
	api := newPages()
	api.byURL["/a/1"] = testPage{Items: []int{1}}
	api.byURL["/b/1"] = testPage{}
	api.byURL["/c/1"] = testPage{Items: []int{3}}

	bc := NewBatchCollector[int](Config{MaxConcurrency: 1})
	results, err := bc.CollectAll(context.Background(),
		newEngine(t, api, "a", "/a/1", engine.Options[int]{}),
		newEngine(t, api, "b", "/b/1", engine.Options[int]{}),
		newEngine(t, api, "c", "/c/1", engine.Options[int]{}),
	)

	if !errors.Is(err, engine.ErrEmptyPage) {
		t.Fatalf("CollectAll() error = %v, want ErrEmptyPage", err)
	}
	if !slices.Equal(results[0].Items, []int{1}) {
		t.Errorf("results[0].Items = %v, want [1]", results[0].Items)
	}
	if results[1].Err == nil {
		t.Error("results[1].Err = nil, want empty page error")
	}
	if !slices.Equal(results[2].Items, []int{3}) {
		t.Errorf("results[2].Items = %v, want [3] after sibling failure", results[2].Items)
	}
}

func TestBatchCollector_ConcurrencyBound(t *testing.T) {
	api := newPages()
	api.delay = 20 * time.Millisecond

	var sources []Source[int]
	for i := 0; i < 6; i++ {
		url := fmt.Sprintf("/s%d/1", i)
		api.byURL[url] = testPage{Items: []int{i + 1}}
		sources = append(sources, newEngine(t, api, fmt.Sprintf("s%d", i), url, engine.Options[int]{}))
	}

	bc := NewBatchCollector[int](Config{MaxConcurrency: 2})
	if _, err := bc.CollectAll(context.Background(), sources...); err != nil {
		t.Fatalf("CollectAll() error = %v", err)
	}

	if got := api.maxSeen.Load(); got > 2 {
		t.Errorf("max concurrent fetches = %d, want <= 2", got)
	}
}

func TestBatchCollector_Timeout(t *testing.T) {
	api := newPages()
	api.delay = time.Second
	api.byURL["/slow/1"] = testPage{Items: []int{1}}

	bc := NewBatchCollector[int](Config{MaxConcurrency: 1, Timeout: 20 * time.Millisecond})
	results, err := bc.CollectAll(context.Background(),
		newEngine(t, api, "slow", "/slow/1", engine.Options[int]{}),
	)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("CollectAll() error = %v, want context.DeadlineExceeded", err)
	}
	if len(results[0].Items) != 0 {
		t.Errorf("Items = %v, want none", results[0].Items)
	}
}

func TestNewBatchCollector_Defaults(t *testing.T) {
	bc := NewBatchCollector[int](Config{MaxConcurrency: 0, Limit: -3})
	if bc.config.MaxConcurrency != 4 {
		t.Errorf("MaxConcurrency = %d, want 4", bc.config.MaxConcurrency)
	}
	if bc.config.Limit != 0 {
		t.Errorf("Limit = %d, want 0", bc.config.Limit)
	}

	cfg := DefaultConfig()
	if cfg.MaxConcurrency != 4 || cfg.Timeout != 5*time.Minute {
		t.Errorf("DefaultConfig() = %+v", cfg)
	}
}

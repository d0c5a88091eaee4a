package model

import "github.com/Sternrassler/mako-go/pkg/session"

// ContainsID reports whether collection already holds a work with id.
func ContainsID(collection []*Illustration, id int64) bool {
	for _, existing := range collection {
		if existing != nil && existing.ID == id {
			return true
		}
	}
	return false
}

// Accept applies the session filters to item, checking duplicates first.
//
// The checks run in a fixed order: duplicate id, excluded tags, required
// tags (only when the include set is non-empty), minimum bookmark count.
// A nil item is never accepted.
func Accept(item *Illustration, collection []*Illustration, snap session.Snapshot) bool {
	if item == nil {
		return false
	}
	if ContainsID(collection, item.ID) {
		return false
	}
	if item.HasAnyTag(snap.ExcludeTags) {
		return false
	}
	if len(snap.IncludeTags) > 0 && !item.HasAnyTag(snap.IncludeTags) {
		return false
	}
	return item.Bookmarks >= snap.MinBookmark
}

// Package model defines the gallery domain objects emitted by engines and the
// filtering and ordering rules applied to them by consumers.
package model

import "time"

// WorkType is the kind of work an illustration record describes.
type WorkType string

const (
	WorkTypeIllust  WorkType = "illust"
	WorkTypeManga   WorkType = "manga"
	WorkTypeUgoira  WorkType = "ugoira"
	WorkTypeUnknown WorkType = ""
)

// Tag is a work tag with its optional translation.
type Tag struct {
	Name           string `json:"name"`
	TranslatedName string `json:"translated_name,omitempty"`
}

// Illustration is a single gallery work.
type Illustration struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Caption      string    `json:"caption"`
	Type         WorkType  `json:"type"`
	ArtistID     int64     `json:"artist_id"`
	ArtistName   string    `json:"artist_name"`
	Tags         []Tag     `json:"tags"`
	Bookmarks    int       `json:"bookmarks"`
	Views        int       `json:"views"`
	PageCount    int       `json:"page_count"`
	PublishDate  time.Time `json:"publish_date"`
	ImageURL     string    `json:"image_url"`
	OriginalURL  string    `json:"original_url,omitempty"`
	IsBookmarked bool      `json:"is_bookmarked"`

	// XRestrict is the content rating: 0 all ages, 1 R-18, 2 R-18G.
	XRestrict int `json:"x_restrict"`
}

// IsManga reports whether the work is a manga.
func (i *Illustration) IsManga() bool {
	return i.Type == WorkTypeManga
}

// IsR18 reports whether the work carries an adult content rating.
func (i *Illustration) IsR18() bool {
	return i.XRestrict > 0
}

// TagNames returns the untranslated tag names in server order.
func (i *Illustration) TagNames() []string {
	names := make([]string, 0, len(i.Tags))
	for _, t := range i.Tags {
		names = append(names, t.Name)
	}
	return names
}

// HasAnyTag reports whether at least one of the work's tags is in set.
func (i *Illustration) HasAnyTag(set map[string]struct{}) bool {
	if len(set) == 0 {
		return false
	}
	for _, t := range i.Tags {
		if _, ok := set[t.Name]; ok {
			return true
		}
	}
	return false
}

package endpoints

import (
	"time"

	"github.com/Sternrassler/mako-go/pkg/model"
)

// illustPage is the page shape shared by the bookmark, search, ranking and
// recommendation endpoints.
type illustPage struct {
	Illusts []*illustRecord `json:"illusts"`
	NextURL string          `json:"next_url"`
}

type illustRecord struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Type      string `json:"type"`
	Caption   string `json:"caption"`
	ImageURLs struct {
		SquareMedium string `json:"square_medium"`
		Medium       string `json:"medium"`
		Large        string `json:"large"`
	} `json:"image_urls"`
	User struct {
		ID      int64  `json:"id"`
		Name    string `json:"name"`
		Account string `json:"account"`
	} `json:"user"`
	Tags []struct {
		Name           string `json:"name"`
		TranslatedName string `json:"translated_name"`
	} `json:"tags"`
	CreateDate     time.Time `json:"create_date"`
	PageCount      int       `json:"page_count"`
	XRestrict      int       `json:"x_restrict"`
	MetaSinglePage struct {
		OriginalImageURL string `json:"original_image_url"`
	} `json:"meta_single_page"`
	MetaPages []struct {
		ImageURLs struct {
			Original string `json:"original"`
		} `json:"image_urls"`
	} `json:"meta_pages"`
	TotalView      int   `json:"total_view"`
	TotalBookmarks int   `json:"total_bookmarks"`
	IsBookmarked   bool  `json:"is_bookmarked"`
	Visible        *bool `json:"visible"`
}

func nextURL(p *illustPage) string {
	return p.NextURL
}

func hasIllusts(p *illustPage) bool {
	return len(p.Illusts) > 0
}

// translatePage converts the records of p, dropping those that do not
// describe a visible work.
func translatePage(p *illustPage) []*model.Illustration {
	out := make([]*model.Illustration, 0, len(p.Illusts))
	for _, rec := range p.Illusts {
		if ill, ok := toIllustration(rec); ok {
			out = append(out, ill)
		}
	}
	return out
}

func toIllustration(rec *illustRecord) (*model.Illustration, bool) {
	if rec == nil || rec.ID == 0 {
		return nil, false
	}
	if rec.Visible != nil && !*rec.Visible {
		return nil, false
	}

	ill := &model.Illustration{
		ID:           rec.ID,
		Title:        rec.Title,
		Caption:      rec.Caption,
		Type:         workType(rec.Type),
		ArtistID:     rec.User.ID,
		ArtistName:   rec.User.Name,
		Bookmarks:    rec.TotalBookmarks,
		Views:        rec.TotalView,
		PageCount:    rec.PageCount,
		PublishDate:  rec.CreateDate,
		ImageURL:     rec.ImageURLs.Large,
		IsBookmarked: rec.IsBookmarked,
		XRestrict:    rec.XRestrict,
	}
	if ill.ImageURL == "" {
		ill.ImageURL = rec.ImageURLs.Medium
	}

	ill.OriginalURL = rec.MetaSinglePage.OriginalImageURL
	if ill.OriginalURL == "" && len(rec.MetaPages) > 0 {
		ill.OriginalURL = rec.MetaPages[0].ImageURLs.Original
	}

	if len(rec.Tags) > 0 {
		ill.Tags = make([]model.Tag, 0, len(rec.Tags))
		for _, t := range rec.Tags {
			ill.Tags = append(ill.Tags, model.Tag{Name: t.Name, TranslatedName: t.TranslatedName})
		}
	}

	return ill, true
}

func workType(s string) model.WorkType {
	switch model.WorkType(s) {
	case model.WorkTypeIllust, model.WorkTypeManga, model.WorkTypeUgoira:
		return model.WorkType(s)
	default:
		return model.WorkTypeUnknown
	}
}

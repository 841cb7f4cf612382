package content

import (
	"fmt"
	"sort"
)

// FeedInfo is the immutable metadata of a feed. Favicon is a
// MIME-prefixed base64 data URI, or empty when the backend has none.
type FeedInfo struct {
	ID           string
	Title        string
	URL          string
	SiteURL      string
	IsAggregator bool
	LastUpdated  int64
	Favicon      string
}

// Feed owns an ordered collection of articles, kept sorted by
// descending creation time, and a cached unread count adjusted by
// delta on every mutation. Full rescans happen only on bulk marks.
type Feed struct {
	FeedInfo

	unread   int
	articles []*Article
	index    map[string]*Article
}

func NewFeed(info FeedInfo) *Feed {
	return &Feed{FeedInfo: info, index: make(map[string]*Article)}
}

// AddArticle ingests an article, replacing any previous article with
// the same id, and keeps the descending-creation-time order.
func (f *Feed) AddArticle(a Article) {
	if old, ok := f.index[a.ID]; ok {
		if !old.Read {
			f.unread--
		}
		*old = a
	} else {
		stored := a
		f.articles = append(f.articles, &stored)
		f.index[a.ID] = &stored
	}
	if !a.Read {
		f.unread++
	}
	sort.SliceStable(f.articles, func(i, j int) bool {
		return f.articles[i].Created > f.articles[j].Created
	})
}

func (f *Feed) UnreadCount() int {
	return f.unread
}

// mark applies a state transition to one article and returns the
// unread delta (-1 or 0).
func (f *Feed) mark(state MarkState, articleID string) (int, error) {
	a, ok := f.index[articleID]
	if !ok {
		return 0, fmt.Errorf("no article by id %q in feed %q", articleID, f.ID)
	}
	return f.apply(state, a), nil
}

func (f *Feed) apply(state MarkState, a *Article) int {
	switch state {
	case StateRead:
		if a.Read {
			return 0
		}
		a.Read = true
		f.unread--
		return -1
	case StateSaved:
		a.Saved = true
	case StateUnsaved:
		a.Saved = false
	}
	return 0
}

// markAll is the bulk path: one fold over the whole feed, after which
// the cached count is recomputed rather than delta-adjusted.
func (f *Feed) markAll(state MarkState) {
	unread := 0
	for _, a := range f.articles {
		f.apply(state, a)
		if !a.Read {
			unread++
		}
	}
	f.unread = unread
}

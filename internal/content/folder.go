package content

import (
	"fmt"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// TitleOrder provides locale-aware ordering for folder and feed titles.
type TitleOrder struct {
	c *collate.Collator
}

func NewTitleOrder(tag language.Tag) *TitleOrder {
	return &TitleOrder{c: collate.New(tag, collate.IgnoreCase)}
}

func defaultOrder() *TitleOrder {
	return NewTitleOrder(language.Und)
}

func (o *TitleOrder) Less(a, b string) bool {
	return o.c.CompareString(a, b) < 0
}

// Folder is a named grouping of feeds, kept sorted by title. A folder
// with zero feeds is representable and contributes nothing to counts.
type Folder struct {
	ID    string
	Title string

	order  *TitleOrder
	unread int
	feeds  []*Feed
	index  map[string]*Feed
}

func NewFolder(id, title string, order *TitleOrder) *Folder {
	if order == nil {
		order = defaultOrder()
	}
	return &Folder{ID: id, Title: title, order: order, index: make(map[string]*Feed)}
}

// AddFeed inserts or replaces a feed by id and re-sorts by title.
func (fo *Folder) AddFeed(f *Feed) {
	if old, ok := fo.index[f.ID]; ok {
		fo.unread -= old.unread
		for i, existing := range fo.feeds {
			if existing.ID == f.ID {
				fo.feeds[i] = f
				break
			}
		}
	} else {
		fo.feeds = append(fo.feeds, f)
	}
	fo.index[f.ID] = f
	fo.unread += f.unread
	sort.SliceStable(fo.feeds, func(i, j int) bool {
		return fo.order.Less(fo.feeds[i].Title, fo.feeds[j].Title)
	})
}

func (fo *Folder) UnreadCount() int {
	return fo.unread
}

func (fo *Folder) feed(feedID string) (*Feed, error) {
	f, ok := fo.index[feedID]
	if !ok {
		return nil, fmt.Errorf("no feed by id %q in folder %q", feedID, fo.ID)
	}
	return f, nil
}

// markAll folds over every feed in the folder and recomputes the
// cached folder count from the feed counts.
func (fo *Folder) markAll(state MarkState) {
	unread := 0
	for _, f := range fo.feeds {
		f.markAll(state)
		unread += f.unread
	}
	fo.unread = unread
}

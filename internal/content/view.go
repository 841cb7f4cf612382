package content

import (
	"fmt"
	"sort"
)

// ArticleView is a read-only article projection. Views are snapshots:
// a later mutation of the tree is not reflected in a view already
// handed out.
type ArticleView struct {
	ID       string
	FeedID   string
	FolderID string
	Title    string
	Author   string
	HTML     string
	URL      string
	Created  int64
	Saved    bool
}

type FeedView struct {
	ID           string
	Title        string
	URL          string
	SiteURL      string
	IsAggregator bool
	LastUpdated  int64
	Favicon      string
	UnreadCount  int
}

type FolderView struct {
	ID          string
	Title       string
	UnreadCount int
}

// FolderFeeds pairs a folder projection with its feed projections. An
// ordered slice stands in for a mapping so the title sort survives.
type FolderFeeds struct {
	Folder FolderView
	Feeds  []FeedView
}

// ArticleView builds a flat snapshot of the articles in the scope the
// key addresses. Whatever the scope, the result is filtered to unread
// articles and sorted by descending creation time as a final step.
func (t *Tree) ArticleView(key SelectionKey) ([]ArticleView, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	var views []ArticleView
	switch key.Type {
	case SelectArticle:
		fo, err := t.folder(key.FolderID)
		if err != nil {
			return nil, err
		}
		f, err := fo.feed(key.FeedID)
		if err != nil {
			return nil, err
		}
		a, ok := f.index[key.ArticleID]
		if !ok {
			return nil, fmt.Errorf("no article by id %q in feed %q", key.ArticleID, f.ID)
		}
		views = appendArticleViews(views, fo.ID, []*Article{a})

	case SelectFeed:
		fo, err := t.folder(key.FolderID)
		if err != nil {
			return nil, err
		}
		f, err := fo.feed(key.FeedID)
		if err != nil {
			return nil, err
		}
		views = appendArticleViews(views, fo.ID, f.articles)

	case SelectFolder:
		fo, err := t.folder(key.FolderID)
		if err != nil {
			return nil, err
		}
		for _, f := range fo.feeds {
			views = appendArticleViews(views, fo.ID, f.articles)
		}

	case SelectAll:
		for _, fo := range t.folders {
			for _, f := range fo.feeds {
				views = appendArticleViews(views, fo.ID, f.articles)
			}
		}

	case SelectSaved:
		for _, fo := range t.folders {
			for _, f := range fo.feeds {
				for _, a := range f.articles {
					if a.Saved {
						views = appendArticleViews(views, fo.ID, []*Article{a})
					}
				}
			}
		}
	}

	sort.SliceStable(views, func(i, j int) bool {
		return views[i].Created > views[j].Created
	})
	return views, nil
}

// appendArticleViews projects the unread articles of a collection; the
// unread-only filter applies to every scope, saved included.
func appendArticleViews(views []ArticleView, folderID string, articles []*Article) []ArticleView {
	for _, a := range articles {
		if a.Read {
			continue
		}
		views = append(views, ArticleView{
			ID:       a.ID,
			FeedID:   a.FeedID,
			FolderID: folderID,
			Title:    a.Title,
			Author:   a.Author,
			HTML:     a.HTML,
			URL:      a.URL,
			Created:  a.Created,
			Saved:    a.Saved,
		})
	}
	return views
}

// FolderFeedView builds the folder-to-feeds snapshot used for
// tree-level navigation, in title order at both levels.
func (t *Tree) FolderFeedView() []FolderFeeds {
	out := make([]FolderFeeds, 0, len(t.folders))
	for _, fo := range t.folders {
		feeds := make([]FeedView, 0, len(fo.feeds))
		for _, f := range fo.feeds {
			feeds = append(feeds, FeedView{
				ID:           f.ID,
				Title:        f.Title,
				URL:          f.URL,
				SiteURL:      f.SiteURL,
				IsAggregator: f.IsAggregator,
				LastUpdated:  f.LastUpdated,
				Favicon:      f.Favicon,
				UnreadCount:  f.unread,
			})
		}
		out = append(out, FolderFeeds{
			Folder: FolderView{ID: fo.ID, Title: fo.Title, UnreadCount: fo.unread},
			Feeds:  feeds,
		})
	}
	return out
}

package content

import "fmt"

// MarkState is the target state of a mark operation. Read transitions
// are monotonic: there is no mark-unread.
type MarkState string

const (
	StateRead    MarkState = "read"
	StateSaved   MarkState = "saved"
	StateUnsaved MarkState = "unsaved"
)

// SelectionType discriminates what a SelectionKey addresses.
type SelectionType string

const (
	SelectArticle SelectionType = "article"
	SelectFeed    SelectionType = "feed"
	SelectFolder  SelectionType = "folder"
	SelectAll     SelectionType = "all"
	SelectSaved   SelectionType = "saved"
)

// SelectionKey addresses the target of a mark or view operation. The
// payload shape must match the selection type; a mismatch is a
// programming error and every consumer rejects it before doing lookups.
type SelectionKey struct {
	Type      SelectionType
	ArticleID string
	FeedID    string
	FolderID  string
}

func ArticleKey(articleID, feedID, folderID string) SelectionKey {
	return SelectionKey{Type: SelectArticle, ArticleID: articleID, FeedID: feedID, FolderID: folderID}
}

func FeedKey(feedID, folderID string) SelectionKey {
	return SelectionKey{Type: SelectFeed, FeedID: feedID, FolderID: folderID}
}

func FolderKey(folderID string) SelectionKey {
	return SelectionKey{Type: SelectFolder, FolderID: folderID}
}

func AllKey() SelectionKey {
	return SelectionKey{Type: SelectAll}
}

func SavedKey() SelectionKey {
	return SelectionKey{Type: SelectSaved}
}

func (k SelectionKey) Validate() error {
	switch k.Type {
	case SelectArticle:
		if k.ArticleID == "" || k.FeedID == "" || k.FolderID == "" {
			return fmt.Errorf("article key requires article, feed and folder ids: %+v", k)
		}
	case SelectFeed:
		if k.ArticleID != "" || k.FeedID == "" || k.FolderID == "" {
			return fmt.Errorf("feed key requires exactly feed and folder ids: %+v", k)
		}
	case SelectFolder:
		if k.ArticleID != "" || k.FeedID != "" || k.FolderID == "" {
			return fmt.Errorf("folder key requires exactly a folder id: %+v", k)
		}
	case SelectAll, SelectSaved:
		if k.ArticleID != "" || k.FeedID != "" || k.FolderID != "" {
			return fmt.Errorf("%s key carries no ids: %+v", k.Type, k)
		}
	default:
		return fmt.Errorf("unknown selection type %q", k.Type)
	}
	return nil
}

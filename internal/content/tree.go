package content

import (
	"fmt"
	"log"
	"sort"
)

// Tree is the aggregate root for the folder/feed/article hierarchy and
// the single source of truth for unread accounting. The invariant:
// every feed count equals its unread articles, every folder count
// equals the sum of its feed counts, and the tree count equals the sum
// of its folder counts. Marks maintain the counts by delta; only bulk
// marks fold over the affected subtree.
type Tree struct {
	order   *TitleOrder
	logger  *log.Logger
	unread  int
	folders []*Folder
	index   map[string]*Folder
}

func NewTree(order *TitleOrder, logger *log.Logger) *Tree {
	if order == nil {
		order = defaultOrder()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Tree{order: order, logger: logger, index: make(map[string]*Folder)}
}

// AddFolder inserts or replaces a folder by id. On replacement the old
// folder's unread contribution is subtracted before the new one is
// added, and a warning is logged.
func (t *Tree) AddFolder(fo *Folder) {
	if old, ok := t.index[fo.ID]; ok {
		t.logger.Printf("warning: replacing folder %q (id %s)", old.Title, old.ID)
		t.unread -= old.unread
		for i, existing := range t.folders {
			if existing.ID == fo.ID {
				t.folders[i] = fo
				break
			}
		}
	} else {
		t.folders = append(t.folders, fo)
	}
	t.index[fo.ID] = fo
	t.unread += fo.unread
	sort.SliceStable(t.folders, func(i, j int) bool {
		return t.order.Less(t.folders[i].Title, t.folders[j].Title)
	})
}

func (t *Tree) UnreadCount() int {
	return t.unread
}

func (t *Tree) folder(folderID string) (*Folder, error) {
	fo, ok := t.index[folderID]
	if !ok {
		return nil, fmt.Errorf("no folder by id %q", folderID)
	}
	return fo, nil
}

// Mark routes a state transition to the scope the key addresses and
// returns the resulting tree-wide unread count. Unknown ids are
// data-integrity errors, not expected runtime conditions.
func (t *Tree) Mark(state MarkState, key SelectionKey) (int, error) {
	if err := key.Validate(); err != nil {
		return t.unread, err
	}

	switch key.Type {
	case SelectArticle:
		fo, err := t.folder(key.FolderID)
		if err != nil {
			return t.unread, err
		}
		f, err := fo.feed(key.FeedID)
		if err != nil {
			return t.unread, err
		}
		delta, err := f.mark(state, key.ArticleID)
		if err != nil {
			return t.unread, err
		}
		fo.unread += delta
		t.unread += delta

	case SelectFeed:
		fo, err := t.folder(key.FolderID)
		if err != nil {
			return t.unread, err
		}
		f, err := fo.feed(key.FeedID)
		if err != nil {
			return t.unread, err
		}
		before := f.unread
		f.markAll(state)
		delta := f.unread - before
		fo.unread += delta
		t.unread += delta

	case SelectFolder:
		fo, err := t.folder(key.FolderID)
		if err != nil {
			return t.unread, err
		}
		before := fo.unread
		fo.markAll(state)
		t.unread += fo.unread - before

	case SelectAll:
		// The one case without a delta shortcut: recompute the total
		// as the fold over all folders.
		total := 0
		for _, fo := range t.folders {
			fo.markAll(state)
			total += fo.unread
		}
		t.unread = total

	case SelectSaved:
		// Known gap: the saved scope has no mark semantics.
		t.logger.Printf("mark %q on the saved scope is not supported; ignoring", state)
	}

	return t.unread, nil
}

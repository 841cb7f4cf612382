package backend

import (
	"context"

	"github.com/glabrego/feedsync/internal/content"
)

type Credentials struct {
	Username string
	Password string
}

// Phase identifies a completed fetch step during content
// initialization, so a caller can render incremental progress.
type Phase string

const (
	PhaseFolders  Phase = "folders"
	PhaseFeeds    Phase = "feeds"
	PhaseFavicons Phase = "favicons"
	PhaseItems    Phase = "items"
)

// Phases lists every phase in reporting order.
var Phases = []Phase{PhaseFolders, PhaseFeeds, PhaseFavicons, PhaseItems}

type ProgressFunc func(Phase)

// Adapter is the capability set both backend protocols implement.
//
// Auth outcomes are booleans: a failed login or a dead session is an
// expected condition the caller answers by re-prompting, not an error.
// Mark calls are network effects only. The caller applies the matching
// tree mutation itself; the two are not transactionally linked and a
// failed request is logged, never rolled back.
type Adapter interface {
	HandleAuth(ctx context.Context, creds Credentials) bool
	VerifyAuth(ctx context.Context) bool
	InitializeContent(ctx context.Context, progress ProgressFunc) (*content.Tree, error)
	MarkArticle(ctx context.Context, state content.MarkState, key content.SelectionKey) error
	MarkFeed(ctx context.Context, state content.MarkState, key content.SelectionKey) error
	MarkFolder(ctx context.Context, state content.MarkState, key content.SelectionKey) error
	MarkAll(ctx context.Context, state content.MarkState, key content.SelectionKey) error
}

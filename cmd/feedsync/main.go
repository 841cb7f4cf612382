package main

import (
	"context"
	"fmt"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/text/language"

	"github.com/glabrego/feedsync/internal/backend"
	"github.com/glabrego/feedsync/internal/config"
	"github.com/glabrego/feedsync/internal/content"
	"github.com/glabrego/feedsync/internal/fever"
	"github.com/glabrego/feedsync/internal/greader"
	"github.com/glabrego/feedsync/internal/session"
	"github.com/glabrego/feedsync/internal/tui"
)

func main() {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	store, err := session.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("session store init error: %v", err)
	}
	defer store.Close()

	initCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := store.Init(initCtx); err != nil {
		cancel()
		log.Fatalf("session store schema error: %v", err)
	}
	cancel()

	tag := language.Und
	if cfg.Locale != "" {
		tag, err = language.Parse(cfg.Locale)
		if err != nil {
			log.Fatalf("FEEDSYNC_LOCALE is not a valid language tag: %v", err)
		}
	}
	order := content.NewTitleOrder(tag)

	adapter := newAdapter(cfg, order, store)

	ctx := context.Background()
	if !adapter.VerifyAuth(ctx) {
		if !adapter.HandleAuth(ctx, backend.Credentials{Username: cfg.Username, Password: cfg.Password}) {
			log.Fatalf("authentication failed; check FEEDSYNC_USERNAME and FEEDSYNC_PASSWORD")
		}
	}

	program := tea.NewProgram(tui.NewProgressModel(backend.Phases))
	trees := make(chan *content.Tree, 1)
	go func() {
		tree, err := adapter.InitializeContent(ctx, func(p backend.Phase) {
			program.Send(tui.PhaseDoneMsg{Phase: p})
		})
		if err != nil {
			program.Send(tui.DoneMsg{Err: err})
			return
		}
		trees <- tree
		program.Send(tui.DoneMsg{Unread: tree.UnreadCount()})
	}()

	finalModel, err := program.Run()
	if err != nil {
		log.Fatalf("progress display error: %v", err)
	}
	if m, ok := finalModel.(tui.ProgressModel); ok && m.Err() != nil {
		log.Fatalf("content initialization failed: %v", m.Err())
	}

	select {
	case tree := <-trees:
		printSummary(tree)
	default:
		// Interrupted before the tree was built.
	}
}

// newAdapter is the one place a concrete backend type appears.
func newAdapter(cfg config.Config, order *content.TitleOrder, store *session.Store) backend.Adapter {
	switch cfg.Backend {
	case config.BackendGReader:
		return greader.NewClient(cfg.APIBaseURL, order, store, nil, nil)
	default:
		return fever.NewClient(cfg.APIBaseURL, order, nil, nil)
	}
}

func printSummary(tree *content.Tree) {
	for _, ff := range tree.FolderFeedView() {
		fmt.Printf("%s (%d unread)\n", ff.Folder.Title, ff.Folder.UnreadCount)
		for _, feed := range ff.Feeds {
			fmt.Printf("  %s (%d unread)\n", feed.Title, feed.UnreadCount)
		}
	}
	fmt.Printf("total unread: %d\n", tree.UnreadCount())
}

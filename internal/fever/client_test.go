package fever

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/glabrego/feedsync/internal/backend"
	"github.com/glabrego/feedsync/internal/content"
)

func TestHandleAuth_RequiresSessionCookie(t *testing.T) {
	// First server answers 2xx but never sets a cookie: authentication
	// must not be trusted on status alone.
	noCookie := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth" && r.Method == http.MethodPost {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer noCookie.Close()

	c := NewClient(noCookie.URL, nil, nil, noCookie.Client())
	if c.HandleAuth(context.Background(), backend.Credentials{Username: "u", Password: "p"}) {
		t.Fatal("expected auth to fail without a session cookie")
	}

	withCookie := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth" && r.Method == http.MethodPost {
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc", Path: "/"})
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer withCookie.Close()

	c = NewClient(withCookie.URL, nil, nil, withCookie.Client())
	if !c.HandleAuth(context.Background(), backend.Credentials{Username: "u", Password: "p"}) {
		t.Fatal("expected auth to succeed once the cookie is set")
	}
	if !c.VerifyAuth(context.Background()) {
		t.Fatal("expected VerifyAuth to see the session cookie")
	}
}

func TestFetchItems_PaginatesToExhaustion(t *testing.T) {
	pages := []int{50, 50, 37}
	requests := 0
	nextID := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !r.URL.Query().Has("items") {
			t.Fatalf("unexpected request: %s", r.URL.RawQuery)
		}
		if requests >= len(pages) {
			t.Fatalf("unexpected extra request %d", requests+1)
		}
		items := make([]map[string]any, 0, pages[requests])
		for i := 0; i < pages[requests]; i++ {
			nextID++
			items = append(items, map[string]any{"id": nextID, "feed_id": 1, "created_on_time": nextID})
		}
		requests++
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"items": items})
	}))
	defer ts.Close()

	c := NewClient(ts.URL, nil, nil, ts.Client())
	items, err := c.fetchItems(context.Background())
	if err != nil {
		t.Fatalf("fetchItems returned error: %v", err)
	}
	if requests != 3 {
		t.Fatalf("expected exactly 3 requests, got %d", requests)
	}
	if len(items) != 137 {
		t.Fatalf("expected 137 items, got %d", len(items))
	}
}

func TestFetchItems_CursorUsesExactDecimalMax(t *testing.T) {
	// Both ids exceed the float64 safe-integer range; only an exact
	// decimal comparison selects the right cursor.
	requests := make([]string, 0, 2)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Query().Get("since_id"))
		w.Header().Set("Content-Type", "application/json")
		if len(requests) == 1 {
			var b strings.Builder
			b.WriteString(`{"items":[`)
			b.WriteString(`{"id":9223372036854775806,"feed_id":1,"created_on_time":1},`)
			b.WriteString(`{"id":9223372036854775807,"feed_id":1,"created_on_time":2}`)
			for i := 0; i < 48; i++ {
				fmt.Fprintf(&b, `,{"id":%d,"feed_id":1,"created_on_time":3}`, i+1)
			}
			b.WriteString(`]}`)
			w.Write([]byte(b.String()))
			return
		}
		w.Write([]byte(`{"items":[]}`))
	}))
	defer ts.Close()

	c := NewClient(ts.URL, nil, nil, ts.Client())
	items, err := c.fetchItems(context.Background())
	if err != nil {
		t.Fatalf("fetchItems returned error: %v", err)
	}
	if len(items) != 50 {
		t.Fatalf("expected 50 items, got %d", len(items))
	}
	if len(requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(requests))
	}
	if requests[0] != "0" {
		t.Fatalf("expected first cursor 0, got %q", requests[0])
	}
	if requests[1] != "9223372036854775807" {
		t.Fatalf("expected cursor at exact max id, got %q", requests[1])
	}
	if items[1].ID.String() != "9223372036854775807" {
		t.Fatalf("expected id preserved losslessly, got %q", items[1].ID.String())
	}
}

func TestInitializeContent_BuildsTree(t *testing.T) {
	phases := make(map[backend.Phase]int)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case q.Has("groups"):
			w.Write([]byte(`{
				"groups":[{"id":1,"title":"Tech"},{"id":2,"title":"Orphans"}],
				"feeds_groups":[{"group_id":1,"feed_ids":"10,11"},{"group_id":2,"feed_ids":""}]
			}`))
		case q.Has("feeds"):
			w.Write([]byte(`{"feeds":[
				{"id":10,"favicon_id":100,"title":"Beta","url":"https://b/feed","site_url":"https://b","is_spark":0,"last_updated_on_time":5},
				{"id":11,"favicon_id":999,"title":"Alpha","url":"https://a/feed","site_url":"https://a","is_spark":1,"last_updated_on_time":6}
			]}`))
		case q.Has("favicons"):
			w.Write([]byte(`{"favicons":[{"id":100,"data":"image/png;base64,AAAA"}]}`))
		case q.Has("items"):
			if r.URL.Query().Get("since_id") != "0" {
				t.Fatalf("unexpected cursor: %s", r.URL.RawQuery)
			}
			w.Write([]byte(`{"items":[
				{"id":1,"feed_id":10,"title":"Read one","html":"<p>x</p>","url":"https://b/1","is_saved":0,"is_read":1,"created_on_time":10},
				{"id":2,"feed_id":10,"title":"Unread one","html":"<p>y</p>","url":"https://b/2","is_saved":1,"is_read":0,"created_on_time":20},
				{"id":3,"feed_id":11,"title":"Unread two","html":"<p>z</p>","url":"https://a/3","is_saved":0,"is_read":0,"created_on_time":30}
			]}`))
		default:
			t.Fatalf("unexpected request: %s", r.URL.RawQuery)
		}
	}))
	defer ts.Close()

	c := NewClient(ts.URL, nil, nil, ts.Client())
	tree, err := c.InitializeContent(context.Background(), func(p backend.Phase) { phases[p]++ })
	if err != nil {
		t.Fatalf("InitializeContent returned error: %v", err)
	}

	for _, p := range backend.Phases {
		if phases[p] != 1 {
			t.Fatalf("expected phase %q reported once, got %d", p, phases[p])
		}
	}
	if tree.UnreadCount() != 2 {
		t.Fatalf("expected 2 unread, got %d", tree.UnreadCount())
	}

	views := tree.FolderFeedView()
	if len(views) != 1 {
		t.Fatalf("expected the empty group to be skipped, got %d folders", len(views))
	}
	feeds := views[0].Feeds
	if len(feeds) != 2 || feeds[0].Title != "Alpha" || feeds[1].Title != "Beta" {
		t.Fatalf("unexpected feed order: %+v", feeds)
	}
	if feeds[1].Favicon != "image/png;base64,AAAA" {
		t.Fatalf("expected favicon joined onto feed, got %q", feeds[1].Favicon)
	}
	if feeds[0].Favicon != "" {
		t.Fatalf("expected missing favicon to stay empty, got %q", feeds[0].Favicon)
	}
	if !feeds[0].IsAggregator {
		t.Fatal("expected is_spark to map to the aggregator flag")
	}

	articles, err := tree.ArticleView(content.AllKey())
	if err != nil {
		t.Fatalf("ArticleView returned error: %v", err)
	}
	if len(articles) != 2 || articles[0].ID != "3" || articles[1].ID != "2" {
		t.Fatalf("unexpected article view: %+v", articles)
	}
	if !articles[1].Saved {
		t.Fatal("expected is_saved to map to the saved flag")
	}
}

func TestInitializeContent_FaviconFailureIsNonFatal(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case q.Has("groups"):
			w.Write([]byte(`{"groups":[{"id":1,"title":"Tech"}],"feeds_groups":[{"group_id":1,"feed_ids":"10"}]}`))
		case q.Has("feeds"):
			w.Write([]byte(`{"feeds":[{"id":10,"favicon_id":100,"title":"Beta","url":"u","site_url":"s"}]}`))
		case q.Has("favicons"):
			w.WriteHeader(http.StatusInternalServerError)
		case q.Has("items"):
			w.Write([]byte(`{"items":[]}`))
		}
	}))
	defer ts.Close()

	c := NewClient(ts.URL, nil, nil, ts.Client())
	tree, err := c.InitializeContent(context.Background(), nil)
	if err != nil {
		t.Fatalf("expected favicon failure to degrade, got error: %v", err)
	}
	views := tree.FolderFeedView()
	if len(views) != 1 || views[0].Feeds[0].Favicon != "" {
		t.Fatalf("expected feed without favicon, got %+v", views)
	}
}

func TestMarkOperations_SendExpectedQueries(t *testing.T) {
	queries := make([]string, 0, 4)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.RawQuery)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := NewClient(ts.URL, nil, nil, ts.Client())
	ctx := context.Background()

	if err := c.MarkArticle(ctx, content.StateRead, content.ArticleKey("12345678901234567890", "10", "1")); err != nil {
		t.Fatalf("MarkArticle returned error: %v", err)
	}
	if err := c.MarkFeed(ctx, content.StateRead, content.FeedKey("10", "1")); err != nil {
		t.Fatalf("MarkFeed returned error: %v", err)
	}
	if err := c.MarkFolder(ctx, content.StateRead, content.FolderKey("1")); err != nil {
		t.Fatalf("MarkFolder returned error: %v", err)
	}
	if err := c.MarkAll(ctx, content.StateRead, content.AllKey()); err != nil {
		t.Fatalf("MarkAll returned error: %v", err)
	}

	want := []string{
		"api&mark=item&as=read&id=12345678901234567890",
		"api&mark=feed&as=read&id=10",
		"api&mark=group&as=read&id=1",
		"api&mark=group&as=read&id=0",
	}
	for i := range want {
		if queries[i] != want[i] {
			t.Fatalf("request %d: got %q, want %q", i, queries[i], want[i])
		}
	}
}

func TestMarkArticle_RejectsMismatchedKey(t *testing.T) {
	c := NewClient("http://example.invalid", nil, nil, &http.Client{})
	err := c.MarkArticle(context.Background(), content.StateRead, content.FeedKey("10", "1"))
	if err == nil {
		t.Fatal("expected key type mismatch error")
	}
	if !strings.Contains(err.Error(), "does not match") {
		t.Fatalf("unexpected error: %v", err)
	}
}

package greader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/glabrego/feedsync/internal/backend"
	"github.com/glabrego/feedsync/internal/content"
)

const (
	// idPageSize is the ceiling on item references per stream page; a
	// shorter page ends the continuation loop.
	idPageSize = 1000
	// contentBatchSize caps the ids posted to the contents endpoint.
	contentBatchSize = 100

	readingListStream = "user/-/state/com.google/reading-list"
	readStateTag      = "user/-/state/com.google/read"
	starredStateTag   = "user/-/state/com.google/starred"

	// storeKey names this backend in the session store.
	storeKey = "greader"
)

// TokenStore persists the session token across runs.
type TokenStore interface {
	SaveToken(ctx context.Context, backend, token string) error
	LoadToken(ctx context.Context, backend string) (string, error)
}

// Client speaks the Google Reader API: token-authenticated, URI-coded
// identifiers, continuation-based pagination. The session token rides
// the Authorization header on every call; mutating calls additionally
// carry the short-lived post token as form field T.
type Client struct {
	baseURL string
	order   *content.TitleOrder
	logger  *log.Logger
	store   TokenStore
	icons   *IconCache
	http    *http.Client

	authToken string
	postToken string
}

func NewClient(baseURL string, order *content.TitleOrder, store TokenStore, logger *log.Logger, httpClient *http.Client) *Client {
	if logger == nil {
		logger = log.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		order:   order,
		logger:  logger,
		store:   store,
		icons:   NewIconCache(httpClient, logger),
		http:    httpClient,
	}
}

// HandleAuth logs in with a multipart form and keeps the returned
// session token both in memory and in the token store, so the session
// survives a restart.
func (c *Client) HandleAuth(ctx context.Context, creds backend.Credentials) bool {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	_ = form.WriteField("Email", creds.Username)
	_ = form.WriteField("Passwd", creds.Password)
	if err := form.Close(); err != nil {
		c.logger.Printf("encode login form: %v", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/accounts/ClientLogin", &buf)
	if err != nil {
		c.logger.Printf("build login request: %v", err)
		return false
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Printf("login request failed: %v", err)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false
	}

	var login struct {
		SID  string `json:"SID"`
		LSID string `json:"LSID"`
		Auth string `json:"Auth"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&login); err != nil {
		c.logger.Printf("decode login response: %v", err)
		return false
	}
	if login.Auth == "" {
		return false
	}

	c.authToken = login.Auth
	if err := c.store.SaveToken(ctx, storeKey, login.Auth); err != nil {
		c.logger.Printf("persist session token: %v", err)
	}
	return true
}

// VerifyAuth restores the session token from the store, failing closed
// when absent, then exchanges it for a fresh post token. The exchange
// doubles as a liveness check of the session.
func (c *Client) VerifyAuth(ctx context.Context) bool {
	token, err := c.store.LoadToken(ctx, storeKey)
	if err != nil {
		c.logger.Printf("load session token: %v", err)
		return false
	}
	if token == "" {
		return false
	}
	c.authToken = token

	post, err := c.fetchPostToken(ctx)
	if err != nil {
		c.logger.Printf("post token exchange failed: %v", err)
		return false
	}
	c.postToken = post
	return true
}

func (c *Client) fetchPostToken(ctx context.Context) (string, error) {
	req, err := c.newRequest(ctx, "/reader/api/0/token", nil, false)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request failed with status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", fmt.Errorf("empty post token")
	}
	return token, nil
}

// newRequest builds an authenticated request. A non-nil form always
// means POST; withPostToken attaches the anti-forgery token as field T
// (the item-ids stream is exempt).
func (c *Client) newRequest(ctx context.Context, path string, form url.Values, withPostToken bool) (*http.Request, error) {
	method := http.MethodGet
	var body io.Reader
	if form != nil {
		if withPostToken {
			form.Set("T", c.postToken)
		}
		method = http.MethodPost
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Authorization", "GoogleLogin auth="+c.authToken)
	return req, nil
}

func (c *Client) doJSON(req *http.Request, v any, resource string) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", resource, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s failed with status %d: %s", resource, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if v == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s response: %w", resource, err)
	}
	return nil
}

type subscriptionJSON struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	HTMLURL    string `json:"htmlUrl"`
	IconURL    string `json:"iconUrl"`
	Categories []struct {
		ID    string `json:"id"`
		Label string `json:"label"`
	} `json:"categories"`
}

type feedMeta struct {
	id      string
	title   string
	siteURL string
	iconURL string
}

type folderAccum struct {
	id    string
	title string
	feeds []feedMeta
}

// fetchFolders pulls the subscription list and accumulates folders and
// their feeds keyed by parsed folder id.
func (c *Client) fetchFolders(ctx context.Context) (map[string]*folderAccum, error) {
	req, err := c.newRequest(ctx, "/reader/api/0/subscription/list?output=json", nil, false)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Subscriptions []subscriptionJSON `json:"subscriptions"`
	}
	if err := c.doJSON(req, &resp, "subscription list"); err != nil {
		return nil, err
	}

	folders := make(map[string]*folderAccum)
	for _, sub := range resp.Subscriptions {
		feedID, err := parseFeedURI(sub.ID)
		if err != nil {
			return nil, err
		}
		if len(sub.Categories) == 0 {
			return nil, fmt.Errorf("subscription %q has no category", sub.ID)
		}
		cat := sub.Categories[0]
		folderID, err := parseLabelURI(cat.ID)
		if err != nil {
			return nil, err
		}

		fo, ok := folders[folderID]
		if !ok {
			fo = &folderAccum{id: folderID, title: cat.Label}
			folders[folderID] = fo
		}
		fo.feeds = append(fo.feeds, feedMeta{
			id:      feedID,
			title:   sub.Title,
			siteURL: sub.HTMLURL,
			iconURL: sub.IconURL,
		})
	}
	return folders, nil
}

// fetchItemRefs walks the unread reading list, following the
// continuation token until a short page, and converts every decimal
// reference id to its canonical hex form.
func (c *Client) fetchItemRefs(ctx context.Context) ([]string, error) {
	var ids []string
	continuation := ""
	for {
		form := url.Values{}
		form.Set("s", readingListStream)
		form.Set("xt", readStateTag)
		form.Set("n", strconv.Itoa(idPageSize))
		if continuation != "" {
			form.Set("c", continuation)
		}
		req, err := c.newRequest(ctx, "/reader/api/0/stream/items/ids", form, false)
		if err != nil {
			return nil, err
		}

		var page struct {
			ItemRefs []struct {
				ID string `json:"id"`
			} `json:"itemRefs"`
			Continuation string `json:"continuation"`
		}
		if err := c.doJSON(req, &page, "item ids"); err != nil {
			return nil, err
		}
		for _, ref := range page.ItemRefs {
			hex, err := refIDToHex(ref.ID)
			if err != nil {
				return nil, err
			}
			ids = append(ids, hex)
		}
		if len(page.ItemRefs) < idPageSize {
			return ids, nil
		}
		// A full page with no continuation leaves nothing to resume
		// from; looping again would re-post the first page forever.
		if page.Continuation == "" {
			return ids, nil
		}
		continuation = page.Continuation
	}
}

type itemContentJSON struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	Published int64  `json:"published"`
	Summary   struct {
		Content string `json:"content"`
	} `json:"summary"`
	Canonical []struct {
		Href string `json:"href"`
	} `json:"canonical"`
	Categories []string `json:"categories"`
}

// fetchContents resolves item ids to article contents in batches and
// groups the articles by the feed id carried in the second category.
func (c *Client) fetchContents(ctx context.Context, ids []string) (map[string][]content.Article, error) {
	byFeed := make(map[string][]content.Article)
	for start := 0; start < len(ids); start += contentBatchSize {
		end := start + contentBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		form := url.Values{}
		for _, id := range ids[start:end] {
			form.Add("i", id)
		}
		req, err := c.newRequest(ctx, "/reader/api/0/stream/items/contents", form, true)
		if err != nil {
			return nil, err
		}

		var page struct {
			Items []itemContentJSON `json:"items"`
		}
		if err := c.doJSON(req, &page, "item contents"); err != nil {
			return nil, err
		}

		for _, it := range page.Items {
			articleID, err := parseItemTag(it.ID)
			if err != nil {
				return nil, err
			}
			if len(it.Categories) < 2 {
				return nil, fmt.Errorf("item %q carries no feed category", it.ID)
			}
			feedID, err := parseFeedURI(it.Categories[1])
			if err != nil {
				return nil, err
			}
			var canonical string
			if len(it.Canonical) > 0 {
				canonical = it.Canonical[0].Href
			}
			byFeed[feedID] = append(byFeed[feedID], content.Article{
				ID:      articleID,
				FeedID:  feedID,
				Title:   it.Title,
				Author:  it.Author,
				HTML:    it.Summary.Content,
				URL:     canonical,
				Created: it.Published,
			})
		}
	}
	return byFeed, nil
}

// InitializeContent fetches subscriptions and the unread article set
// concurrently, then assembles the tree. The id and content loops stay
// strictly sequential inside their phase: each request depends on the
// previous response.
func (c *Client) InitializeContent(ctx context.Context, progress backend.ProgressFunc) (*content.Tree, error) {
	if progress == nil {
		progress = func(backend.Phase) {}
	}

	var (
		folders  map[string]*folderAccum
		articles map[string][]content.Article
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fetched, err := c.fetchFolders(gctx)
		if err != nil {
			return err
		}
		folders = fetched
		progress(backend.PhaseFolders)
		progress(backend.PhaseFeeds)
		return nil
	})
	g.Go(func() error {
		ids, err := c.fetchItemRefs(gctx)
		if err != nil {
			return err
		}
		fetched, err := c.fetchContents(gctx, ids)
		if err != nil {
			return err
		}
		articles = fetched
		progress(backend.PhaseItems)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tree := content.NewTree(c.order, c.logger)
	for _, acc := range folders {
		folder := content.NewFolder(acc.id, acc.title, c.order)
		for _, meta := range acc.feeds {
			feed := content.NewFeed(content.FeedInfo{
				ID:      meta.id,
				Title:   meta.title,
				SiteURL: meta.siteURL,
				Favicon: c.icons.Get(ctx, meta.iconURL),
			})
			// A feed with no accumulated articles just has no unread
			// items.
			for _, a := range articles[meta.id] {
				feed.AddArticle(a)
			}
			folder.AddFeed(feed)
		}
		tree.AddFolder(folder)
	}
	progress(backend.PhaseFavicons)
	return tree, nil
}

func (c *Client) MarkArticle(ctx context.Context, state content.MarkState, key content.SelectionKey) error {
	if err := requireKeyType(key, content.SelectArticle); err != nil {
		return err
	}
	form := url.Values{}
	form.Set("i", key.ArticleID)
	switch state {
	case content.StateRead:
		form.Set("a", readStateTag)
	case content.StateSaved:
		form.Set("a", starredStateTag)
	case content.StateUnsaved:
		form.Set("r", starredStateTag)
	default:
		return fmt.Errorf("unsupported mark state %q", state)
	}
	req, err := c.newRequest(ctx, "/reader/api/0/edit-tag", form, true)
	if err != nil {
		return err
	}
	return c.doJSON(req, nil, "edit tag")
}

func (c *Client) MarkFeed(ctx context.Context, state content.MarkState, key content.SelectionKey) error {
	if err := requireKeyType(key, content.SelectFeed); err != nil {
		return err
	}
	return c.markAllAsRead(ctx, state, url.Values{"s": {"feed/" + key.FeedID}})
}

func (c *Client) MarkFolder(ctx context.Context, state content.MarkState, key content.SelectionKey) error {
	if err := requireKeyType(key, content.SelectFolder); err != nil {
		return err
	}
	return c.markAllAsRead(ctx, state, url.Values{"t": {"user/-/label/" + key.FolderID}})
}

func (c *Client) MarkAll(ctx context.Context, state content.MarkState, key content.SelectionKey) error {
	if err := requireKeyType(key, content.SelectAll); err != nil {
		return err
	}
	// TODO: confirm the reading-list stream is what the server expects
	// for a whole-account mark; only feed and label streams are
	// verified against a live backend.
	return c.markAllAsRead(ctx, state, url.Values{"s": {readingListStream}})
}

func (c *Client) markAllAsRead(ctx context.Context, state content.MarkState, form url.Values) error {
	if state != content.StateRead {
		return fmt.Errorf("bulk mark supports only the read state, got %q", state)
	}
	req, err := c.newRequest(ctx, "/reader/api/0/mark-all-as-read", form, true)
	if err != nil {
		return err
	}
	return c.doJSON(req, nil, "mark all as read")
}

func requireKeyType(key content.SelectionKey, want content.SelectionType) error {
	if err := key.Validate(); err != nil {
		return err
	}
	if key.Type != want {
		return fmt.Errorf("selection key type %q does not match operation %q", key.Type, want)
	}
	return nil
}

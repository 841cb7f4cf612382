package fever

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/big"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/errgroup"

	"github.com/glabrego/feedsync/internal/backend"
	"github.com/glabrego/feedsync/internal/content"
)

// itemPageSize is the fixed server page size: a response with fewer
// items is the last page.
const itemPageSize = 50

// Client speaks the Fever API: a polling backend with 64-bit decimal
// identifiers and cookie-based sessions. Item ids exceed the safe
// float64 integer range, so ids are decoded as json.Number and used as
// strings everywhere; the only arithmetic is the exact big-decimal
// cursor comparison.
type Client struct {
	baseURL string
	order   *content.TitleOrder
	logger  *log.Logger
	http    *http.Client
}

func NewClient(baseURL string, order *content.TitleOrder, logger *log.Logger, httpClient *http.Client) *Client {
	if logger == nil {
		logger = log.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if httpClient.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err == nil {
			httpClient.Jar = jar
		} else {
			logger.Printf("cookie jar init failed, auth verification will fail: %v", err)
		}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		order:   order,
		logger:  logger,
		http:    httpClient,
	}
}

// HandleAuth posts credentials to the auth endpoint. A 2xx response
// alone does not prove authentication; only the cookie check does.
func (c *Client) HandleAuth(ctx context.Context, creds backend.Credentials) bool {
	payload, err := json.Marshal(map[string]string{
		"username": creds.Username,
		"password": creds.Password,
	})
	if err != nil {
		c.logger.Printf("encode credentials: %v", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth", bytes.NewReader(payload))
	if err != nil {
		c.logger.Printf("build auth request: %v", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Printf("auth request failed: %v", err)
		return false
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false
	}

	return c.VerifyAuth(ctx)
}

// VerifyAuth reports whether a session cookie is present for the API
// host.
func (c *Client) VerifyAuth(ctx context.Context) bool {
	if c.http.Jar == nil {
		return false
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return false
	}
	return len(c.http.Jar.Cookies(u)) > 0
}

type groupJSON struct {
	ID    json.Number `json:"id"`
	Title string      `json:"title"`
}

type feedsGroupJSON struct {
	GroupID json.Number `json:"group_id"`
	FeedIDs string      `json:"feed_ids"`
}

type groupsResponse struct {
	Groups      []groupJSON      `json:"groups"`
	FeedsGroups []feedsGroupJSON `json:"feeds_groups"`
}

type feedJSON struct {
	ID                json.Number `json:"id"`
	FaviconID         json.Number `json:"favicon_id"`
	Title             string      `json:"title"`
	URL               string      `json:"url"`
	SiteURL           string      `json:"site_url"`
	IsSpark           int         `json:"is_spark"`
	LastUpdatedOnTime int64       `json:"last_updated_on_time"`
}

type feedsResponse struct {
	Feeds []feedJSON `json:"feeds"`
}

type faviconJSON struct {
	ID   json.Number `json:"id"`
	Data string      `json:"data"`
}

type faviconsResponse struct {
	Favicons []faviconJSON `json:"favicons"`
}

type itemJSON struct {
	ID            json.Number `json:"id"`
	FeedID        json.Number `json:"feed_id"`
	Title         string      `json:"title"`
	Author        string      `json:"author"`
	HTML          string      `json:"html"`
	URL           string      `json:"url"`
	IsSaved       int         `json:"is_saved"`
	IsRead        int         `json:"is_read"`
	CreatedOnTime int64       `json:"created_on_time"`
}

type itemsResponse struct {
	Items []itemJSON `json:"items"`
}

// apiGet issues a `?api&...` request. Pass v == nil for calls that are
// side-effect only.
func (c *Client) apiGet(ctx context.Context, params string, v any, resource string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/?api&"+params, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", resource, err)
	}

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

// fetchItems pages through the item list with a monotonically
// advancing since_id cursor. The cursor advances by exact decimal
// comparison; ids never pass through a float.
func (c *Client) fetchItems(ctx context.Context) ([]itemJSON, error) {
	items := make([]itemJSON, 0, itemPageSize)
	cursor := big.NewInt(0)
	for {
		var page itemsResponse
		if err := c.apiGet(ctx, "items&since_id="+cursor.String(), &page, "items"); err != nil {
			return nil, err
		}
		for _, it := range page.Items {
			id, ok := new(big.Int).SetString(it.ID.String(), 10)
			if !ok {
				return nil, fmt.Errorf("unparseable item id %q", it.ID.String())
			}
			if id.Cmp(cursor) > 0 {
				cursor.Set(id)
			}
		}
		items = append(items, page.Items...)
		if len(page.Items) < itemPageSize {
			return items, nil
		}
	}
}

// InitializeContent runs the four fetch phases, groups/feeds/favicons
// concurrently with the sequential item loop, and builds the tree once
// all have joined. A favicon failure degrades to no icons; the other
// phases are required.
func (c *Client) InitializeContent(ctx context.Context, progress backend.ProgressFunc) (*content.Tree, error) {
	if progress == nil {
		progress = func(backend.Phase) {}
	}

	var (
		groups   groupsResponse
		feeds    feedsResponse
		favicons map[string]string
		items    []itemJSON
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := c.apiGet(gctx, "groups", &groups, "groups"); err != nil {
			return err
		}
		progress(backend.PhaseFolders)
		return nil
	})
	g.Go(func() error {
		if err := c.apiGet(gctx, "feeds", &feeds, "feeds"); err != nil {
			return err
		}
		progress(backend.PhaseFeeds)
		return nil
	})
	g.Go(func() error {
		var resp faviconsResponse
		if err := c.apiGet(gctx, "favicons", &resp, "favicons"); err != nil {
			c.logger.Printf("favicon fetch failed, continuing without icons: %v", err)
		} else {
			favicons = make(map[string]string, len(resp.Favicons))
			for _, f := range resp.Favicons {
				favicons[f.ID.String()] = f.Data
			}
		}
		progress(backend.PhaseFavicons)
		return nil
	})
	g.Go(func() error {
		fetched, err := c.fetchItems(gctx)
		if err != nil {
			return err
		}
		items = fetched
		progress(backend.PhaseItems)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return c.buildTree(groups, feeds.Feeds, favicons, items), nil
}

func (c *Client) buildTree(groups groupsResponse, feeds []feedJSON, favicons map[string]string, items []itemJSON) *content.Tree {
	feedIDsByGroup := make(map[string][]string, len(groups.FeedsGroups))
	for _, fg := range groups.FeedsGroups {
		var ids []string
		for _, id := range strings.Split(fg.FeedIDs, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		feedIDsByGroup[fg.GroupID.String()] = ids
	}

	feedByID := make(map[string]feedJSON, len(feeds))
	for _, f := range feeds {
		feedByID[f.ID.String()] = f
	}

	articlesByFeed := make(map[string][]content.Article)
	for _, it := range items {
		feedID := it.FeedID.String()
		articlesByFeed[feedID] = append(articlesByFeed[feedID], content.Article{
			ID:      it.ID.String(),
			FeedID:  feedID,
			Title:   it.Title,
			Author:  it.Author,
			HTML:    it.HTML,
			URL:     it.URL,
			Created: it.CreatedOnTime,
			Read:    it.IsRead != 0,
			Saved:   it.IsSaved != 0,
		})
	}

	tree := content.NewTree(c.order, c.logger)
	for _, gr := range groups.Groups {
		feedIDs := feedIDsByGroup[gr.ID.String()]
		// Groups with no associated feeds are never materialized.
		if len(feedIDs) == 0 {
			continue
		}
		folder := content.NewFolder(gr.ID.String(), gr.Title, c.order)
		for _, feedID := range feedIDs {
			meta, ok := feedByID[feedID]
			if !ok {
				c.logger.Printf("group %s references unknown feed %s; skipping", gr.ID.String(), feedID)
				continue
			}
			feed := content.NewFeed(content.FeedInfo{
				ID:           feedID,
				Title:        meta.Title,
				URL:          meta.URL,
				SiteURL:      meta.SiteURL,
				IsAggregator: meta.IsSpark != 0,
				LastUpdated:  meta.LastUpdatedOnTime,
				Favicon:      favicons[meta.FaviconID.String()],
			})
			for _, a := range articlesByFeed[feedID] {
				feed.AddArticle(a)
			}
			folder.AddFeed(feed)
		}
		tree.AddFolder(folder)
	}
	return tree
}

func (c *Client) MarkArticle(ctx context.Context, state content.MarkState, key content.SelectionKey) error {
	if err := requireKeyType(key, content.SelectArticle); err != nil {
		return err
	}
	return c.mark(ctx, "item", state, key.ArticleID)
}

func (c *Client) MarkFeed(ctx context.Context, state content.MarkState, key content.SelectionKey) error {
	if err := requireKeyType(key, content.SelectFeed); err != nil {
		return err
	}
	return c.mark(ctx, "feed", state, key.FeedID)
}

func (c *Client) MarkFolder(ctx context.Context, state content.MarkState, key content.SelectionKey) error {
	if err := requireKeyType(key, content.SelectFolder); err != nil {
		return err
	}
	return c.mark(ctx, "group", state, key.FolderID)
}

// MarkAll marks group 0, which the backend treats as the whole
// subscription set.
func (c *Client) MarkAll(ctx context.Context, state content.MarkState, key content.SelectionKey) error {
	if err := requireKeyType(key, content.SelectAll); err != nil {
		return err
	}
	return c.mark(ctx, "group", state, "0")
}

func (c *Client) mark(ctx context.Context, what string, state content.MarkState, id string) error {
	params := "mark=" + what + "&as=" + url.QueryEscape(string(state)) + "&id=" + url.QueryEscape(id)
	return c.apiGet(ctx, params, nil, "mark "+what)
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

package greader

import (
	"context"
	"encoding/base64"
	"io"
	"log"
	"net/http"
	"time"
)

const maxIconBytes = 1 << 20

// IconCache memoizes favicon downloads keyed by URL and converts them
// to MIME-prefixed data URIs. It is owned by the client that needs it
// and cleared explicitly between tests. A failed download memoizes the
// empty favicon; icons are never worth a retry storm.
type IconCache struct {
	http   *http.Client
	logger *log.Logger
	icons  map[string]string
}

func NewIconCache(httpClient *http.Client, logger *log.Logger) *IconCache {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 8 * time.Second}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &IconCache{http: httpClient, logger: logger, icons: make(map[string]string)}
}

// Get returns the data URI for iconURL, fetching it on first use.
// An empty URL or a failed fetch yields the absent favicon "".
func (c *IconCache) Get(ctx context.Context, iconURL string) string {
	if iconURL == "" {
		return ""
	}
	if data, ok := c.icons[iconURL]; ok {
		return data
	}
	data := c.fetch(ctx, iconURL)
	c.icons[iconURL] = data
	return data
}

func (c *IconCache) Clear() {
	c.icons = make(map[string]string)
}

func (c *IconCache) fetch(ctx context.Context, iconURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, iconURL, nil)
	if err != nil {
		c.logger.Printf("build favicon request for %s: %v", iconURL, err)
		return ""
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Printf("download favicon %s: %v", iconURL, err)
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Printf("download favicon %s: status %d", iconURL, resp.StatusCode)
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxIconBytes))
	if err != nil {
		c.logger.Printf("read favicon %s: %v", iconURL, err)
		return ""
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = http.DetectContentType(data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

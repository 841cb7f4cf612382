package content

// Article is a single content item belonging to one feed. Identifiers
// are opaque strings: decimal for the polling backend, lowercase hex
// for the stream backend. Everything except the Read and Saved flags
// is immutable after ingestion.
type Article struct {
	ID     string
	FeedID string
	Title  string
	Author string
	HTML   string
	URL    string
	// Created is seconds since the epoch.
	Created int64
	Read    bool
	Saved   bool
}

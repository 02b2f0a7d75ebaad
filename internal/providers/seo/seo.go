package seo

import "context"

// Indexer asks a search engine to (re)crawl one URL.
type Indexer interface {
	SubmitURL(ctx context.Context, url string) error
}

// SitemapPinger tells search engines the sitemap changed.
type SitemapPinger interface {
	Ping(ctx context.Context, sitemapURL string) error
}

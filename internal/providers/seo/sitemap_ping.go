package seo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPPinger issues GET <endpoint>?sitemap=<url> against each endpoint.
type HTTPPinger struct {
	endpoints []string
	client    *http.Client
}

func NewHTTPPinger(endpoints []string) *HTTPPinger {
	return &HTTPPinger{endpoints: endpoints, client: &http.Client{Timeout: 10 * time.Second}}
}

func (p *HTTPPinger) Ping(ctx context.Context, sitemapURL string) error {
	var errs []error
	for _, ep := range p.endpoints {
		if err := p.ping(ctx, ep, sitemapURL); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", ep, err))
		}
	}
	return errors.Join(errs...)
}

func (p *HTTPPinger) ping(ctx context.Context, endpoint, sitemapURL string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return err
	}
	q := u.Query()
	q.Set("sitemap", sitemapURL)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

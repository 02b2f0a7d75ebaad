package services

import (
	"context"
	"encoding/xml"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/erasreview/internal/models"
	"github.com/yoockh/erasreview/internal/providers/seo"
)

const (
	seoOK      = "ok"
	seoSkipped = "skipped"
)

type SEOResults struct {
	Indexing    string `json:"indexing"`
	SitemapPing string `json:"sitemap_ping"`
}

type SEOService interface {
	SubmitURL(ctx context.Context, url string) SEOResults
	Sitemap(posts []models.BlogPost) ([]byte, error)
}

type seoService struct {
	indexer seo.Indexer       // nil when not configured
	pinger  seo.SitemapPinger // nil when not configured
	siteURL string
	log     *logrus.Logger
}

func NewSEOService(indexer seo.Indexer, pinger seo.SitemapPinger, siteURL string, log *logrus.Logger) SEOService {
	return &seoService{indexer: indexer, pinger: pinger, siteURL: siteURL, log: log}
}

// SubmitURL never fails; each channel reports ok, skipped or the error text.
func (s *seoService) SubmitURL(ctx context.Context, url string) SEOResults {
	res := SEOResults{Indexing: seoSkipped, SitemapPing: seoSkipped}

	if s.indexer != nil {
		res.Indexing = s.outcome("indexing", url, s.indexer.SubmitURL(ctx, url))
	}
	if s.pinger != nil {
		res.SitemapPing = s.outcome("sitemap_ping", url, s.pinger.Ping(ctx, s.siteURL+"/sitemap.xml"))
	}
	return res
}

func (s *seoService) outcome(channel, url string, err error) string {
	if err == nil {
		return seoOK
	}
	s.log.WithError(err).WithFields(logrus.Fields{"channel": channel, "url": url}).Warn("seo submission failed")
	return "error: " + err.Error()
}

var staticPaths = []string{"/", "/pricing", "/how-it-works", "/blog"}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

func (s *seoService) Sitemap(posts []models.BlogPost) ([]byte, error) {
	set := urlSet{Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, p := range staticPaths {
		set.URLs = append(set.URLs, sitemapURL{Loc: s.siteURL + p})
	}
	for _, p := range posts {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:     BlogPostURL(s.siteURL, p.Slug),
			LastMod: p.UpdatedAt.UTC().Format(time.DateOnly),
		})
	}

	body, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}

func BlogPostURL(siteURL, slug string) string { return siteURL + "/blog/" + slug }

package services

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/erasreview/internal/cache"
	"github.com/yoockh/erasreview/internal/metrics"
	"github.com/yoockh/erasreview/internal/models"
	"github.com/yoockh/erasreview/internal/notify"
	"github.com/yoockh/erasreview/internal/providers/llm"
	mongorepo "github.com/yoockh/erasreview/internal/repositories/mongo"
	"github.com/yoockh/erasreview/internal/utils"
)

const blogCacheTTL = 5 * time.Minute

type BlogConfig struct {
	Topics      []string
	AutoPublish bool
	SiteURL     string
}

type BlogInput struct {
	Slug    string   `json:"slug"`
	Title   string   `json:"title"`
	Excerpt string   `json:"excerpt"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

type PublishResult struct {
	Post *models.BlogPost `json:"post"`
	SEO  SEOResults       `json:"seo"`
}

type GenerateResult struct {
	Status string      `json:"status"` // created|published|skipped
	Slug   string      `json:"slug"`
	Topic  string      `json:"topic"`
	SEO    *SEOResults `json:"seo,omitempty"`
}

type BlogService interface {
	Create(ctx context.Context, in BlogInput) (*models.BlogPost, error)
	Update(ctx context.Context, slug string, in BlogInput) (*models.BlogPost, error)
	Publish(ctx context.Context, slug string) (*PublishResult, error)
	Delete(ctx context.Context, slug string) error
	ListAll(ctx context.Context, limit, skip int64) ([]models.BlogPost, error)

	ListPublished(ctx context.Context, limit int64) ([]models.BlogPost, error)
	GetPublished(ctx context.Context, slug string) (*models.BlogPost, error)

	// GenerateNext writes the post for the day's topic at most once.
	GenerateNext(ctx context.Context, now time.Time) (*GenerateResult, error)
}

type blogService struct {
	repo     mongorepo.BlogRepository
	cache    cache.Cache
	llm      llm.Provider
	seo      SEOService
	notifier notify.Notifier
	cfg      BlogConfig
	log      *logrus.Logger
}

func NewBlogService(repo mongorepo.BlogRepository, c cache.Cache, gen llm.Provider, seo SEOService, n notify.Notifier, cfg BlogConfig, log *logrus.Logger) BlogService {
	return &blogService{repo: repo, cache: c, llm: gen, seo: seo, notifier: n, cfg: cfg, log: log}
}

const maxSlugLen = 80

var (
	nonSlug  = regexp.MustCompile(`[^a-z0-9]+`)
	dashTrim = regexp.MustCompile(`^-+|-+$`)
)

// Slugify lower-cases s and joins its alphanumeric runs with dashes.
func Slugify(s string) string {
	out := dashTrim.ReplaceAllString(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "")
	if len(out) > maxSlugLen {
		out = strings.TrimRight(out[:maxSlugLen], "-")
	}
	return out
}

// TopicFor picks the topic for the calendar day of now.
func TopicFor(topics []string, now time.Time) string {
	if len(topics) == 0 {
		return ""
	}
	return topics[now.YearDay()%len(topics)]
}

func (s *blogService) invalidate(ctx context.Context) {
	if err := s.cache.DelPrefix(ctx, cache.PrefixBlog); err != nil {
		s.log.WithError(err).Warn("blog cache invalidation failed")
	}
}

func (s *blogService) Create(ctx context.Context, in BlogInput) (*models.BlogPost, error) {
	const op = "BlogService.Create"

	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Content) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "title and content are required", nil)
	}
	slug := Slugify(in.Slug)
	if slug == "" {
		slug = Slugify(in.Title)
	}
	if slug == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "slug is empty", nil)
	}

	p := &models.BlogPost{
		Slug:    slug,
		Title:   strings.TrimSpace(in.Title),
		Excerpt: strings.TrimSpace(in.Excerpt),
		Content: in.Content,
		Tags:    in.Tags,
		Status:  models.BlogStatusDraft,
		Source:  models.BlogSourceManual,
	}
	if err := s.repo.Insert(ctx, p); err != nil {
		if errors.Is(err, utils.ErrConflict) {
			return nil, utils.E(utils.CodeConflict, op, "slug already exists", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to create post", err)
	}
	s.invalidate(ctx)
	return p, nil
}

func (s *blogService) Update(ctx context.Context, slug string, in BlogInput) (*models.BlogPost, error) {
	const op = "BlogService.Update"

	cur, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, repoErr(op, "failed to load post", err)
	}
	if t := strings.TrimSpace(in.Title); t != "" {
		cur.Title = t
	}
	if in.Excerpt != "" {
		cur.Excerpt = strings.TrimSpace(in.Excerpt)
	}
	if in.Content != "" {
		cur.Content = in.Content
	}
	if in.Tags != nil {
		cur.Tags = in.Tags
	}

	if err := s.repo.Update(ctx, slug, cur); err != nil {
		return nil, repoErr(op, "failed to update post", err)
	}
	s.invalidate(ctx)
	return cur, nil
}

func (s *blogService) Publish(ctx context.Context, slug string) (*PublishResult, error) {
	const op = "BlogService.Publish"

	now := time.Now().UTC()
	if err := s.repo.Publish(ctx, slug, now); err != nil {
		return nil, repoErr(op, "failed to publish post", err)
	}
	s.invalidate(ctx)

	p, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, repoErr(op, "failed to load post", err)
	}

	url := BlogPostURL(s.cfg.SiteURL, slug)
	res := &PublishResult{Post: p, SEO: s.seo.SubmitURL(ctx, url)}

	s.notifier.Notify(ctx, models.Notification{
		Kind:    models.NotifyBlogPublished,
		Subject: "Blog post published",
		Body:    p.Title,
		Fields:  map[string]string{"url": url, "source": p.Source},
	})
	return res, nil
}

func (s *blogService) Delete(ctx context.Context, slug string) error {
	const op = "BlogService.Delete"

	if err := s.repo.Delete(ctx, slug); err != nil {
		return repoErr(op, "failed to delete post", err)
	}
	s.invalidate(ctx)
	return nil
}

func (s *blogService) ListAll(ctx context.Context, limit, skip int64) ([]models.BlogPost, error) {
	const op = "BlogService.ListAll"

	out, err := s.repo.ListAll(ctx, limit, skip)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list posts", err)
	}
	return out, nil
}

func (s *blogService) ListPublished(ctx context.Context, limit int64) ([]models.BlogPost, error) {
	const op = "BlogService.ListPublished"

	key := cache.KeyBlogList + strconv.FormatInt(limit, 10)
	var out []models.BlogPost
	if hit, err := s.cache.GetJSON(ctx, key, &out); err == nil && hit {
		return out, nil
	}

	out, err := s.repo.ListPublished(ctx, limit, 0)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list posts", err)
	}
	if err := s.cache.SetJSON(ctx, key, out, blogCacheTTL); err != nil {
		s.log.WithError(err).Warn("blog cache write failed")
	}
	return out, nil
}

func (s *blogService) GetPublished(ctx context.Context, slug string) (*models.BlogPost, error) {
	const op = "BlogService.GetPublished"

	var p models.BlogPost
	if hit, err := s.cache.GetJSON(ctx, cache.BlogPostKey(slug), &p); err == nil && hit {
		return &p, nil
	}

	got, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, repoErr(op, "failed to load post", err)
	}
	if got.Status != models.BlogStatusPublished {
		return nil, utils.E(utils.CodeNotFound, op, "not found", nil)
	}
	if err := s.cache.SetJSON(ctx, cache.BlogPostKey(slug), got, blogCacheTTL); err != nil {
		s.log.WithError(err).Warn("blog cache write failed")
	}
	return got, nil
}

type generatedPost struct {
	Title   string   `json:"title"`
	Excerpt string   `json:"excerpt"`
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

func blogPrompt(topic string) string {
	return "You write for a service that reviews ERAS residency applications. " +
		"Write a practical, accurate blog post for medical students and IMGs on the topic below. " +
		"Respond with a JSON object with keys title, excerpt (one sentence), content (markdown, 800-1200 words) and tags (3-5 lowercase strings).\n\n" +
		"Topic: " + topic
}

// parseGenerated accepts the JSON shape requested by blogPrompt and falls
// back to treating the whole reply as markdown.
func parseGenerated(raw, topic string) generatedPost {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimSuffix(strings.TrimPrefix(raw, "```"), "```")

	var g generatedPost
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &g); err != nil || strings.TrimSpace(g.Content) == "" {
		g = generatedPost{Content: raw}
	}
	if strings.TrimSpace(g.Title) == "" {
		g.Title = topic
	}
	return g
}

func (s *blogService) GenerateNext(ctx context.Context, now time.Time) (*GenerateResult, error) {
	const op = "BlogService.GenerateNext"

	topic := TopicFor(s.cfg.Topics, now)
	if topic == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "no blog topics configured", nil)
	}
	slug := Slugify(topic) + "-" + now.UTC().Format("2006-01-02")
	res := &GenerateResult{Status: "skipped", Slug: slug, Topic: topic}

	exists, err := s.repo.ExistsBySlug(ctx, slug)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to check existing post", err)
	}
	if exists {
		metrics.BlogPostsGenerated.WithLabelValues("skipped").Inc()
		return res, nil
	}

	if s.llm == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "content generator is not configured", nil)
	}
	raw, err := s.llm.Generate(ctx, blogPrompt(topic))
	if err != nil {
		metrics.BlogPostsGenerated.WithLabelValues("error").Inc()
		return nil, utils.E(utils.CodeUnavailable, op, "content generation failed", err)
	}
	g := parseGenerated(raw, topic)

	p := &models.BlogPost{
		Slug:    slug,
		Title:   g.Title,
		Excerpt: g.Excerpt,
		Content: g.Content,
		Tags:    g.Tags,
		Status:  models.BlogStatusDraft,
		Source:  models.BlogSourceGenerated,
		Topic:   topic,
	}
	if err := s.repo.Insert(ctx, p); err != nil {
		if errors.Is(err, utils.ErrConflict) {
			// a concurrent run stored it first
			metrics.BlogPostsGenerated.WithLabelValues("skipped").Inc()
			return res, nil
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to store generated post", err)
	}
	s.invalidate(ctx)
	res.Status = "created"

	if s.cfg.AutoPublish {
		pub, err := s.Publish(ctx, slug)
		if err != nil {
			return nil, err
		}
		res.Status = "published"
		res.SEO = &pub.SEO
	}

	metrics.BlogPostsGenerated.WithLabelValues(res.Status).Inc()
	s.log.WithFields(logrus.Fields{"slug": slug, "status": res.Status}).Info("blog post generated")
	return res, nil
}

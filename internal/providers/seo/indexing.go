package seo

import (
	"context"
	"strings"

	"google.golang.org/api/indexing/v3"
	"google.golang.org/api/option"
)

const notificationUpdated = "URL_UPDATED"

type GoogleIndexer struct {
	svc *indexing.Service
}

// NewGoogleIndexer accepts either a service-account JSON blob or a path to one.
func NewGoogleIndexer(ctx context.Context, credentials string) (*GoogleIndexer, error) {
	var opt option.ClientOption
	if strings.HasPrefix(strings.TrimSpace(credentials), "{") {
		opt = option.WithCredentialsJSON([]byte(credentials))
	} else {
		opt = option.WithCredentialsFile(credentials)
	}

	svc, err := indexing.NewService(ctx, opt, option.WithScopes(indexing.IndexingScope))
	if err != nil {
		return nil, err
	}
	return &GoogleIndexer{svc: svc}, nil
}

func (g *GoogleIndexer) SubmitURL(ctx context.Context, url string) error {
	_, err := g.svc.UrlNotifications.Publish(&indexing.UrlNotification{
		Url:  url,
		Type: notificationUpdated,
	}).Context(ctx).Do()
	return err
}

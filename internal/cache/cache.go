package cache

import (
	"context"
	"time"
)

type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	DelPrefix(ctx context.Context, prefix string) error
}

// Key namespaces
const (
	PrefixUserRole = "user:role:"
	PrefixBlog     = "blog:"
	KeyBlogList    = "blog:list:"
)

func UserRoleKey(userID string) string { return PrefixUserRole + userID }

func BlogPostKey(slug string) string { return PrefixBlog + "post:" + slug }

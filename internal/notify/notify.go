package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/erasreview/internal/models"
)

const DefaultStream = "notifications:stream"

// Notifier enqueues a notification. It never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

type RedisNotifier struct {
	rdb    *redis.Client
	stream string
	log    *logrus.Logger
}

func NewRedisNotifier(rdb *redis.Client, stream string, log *logrus.Logger) *RedisNotifier {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisNotifier{rdb: rdb, stream: stream, log: log}
}

func (n *RedisNotifier) Notify(ctx context.Context, note models.Notification) {
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(note)
	if err != nil {
		n.log.WithError(err).WithField("kind", note.Kind).Warn("notification encode failed")
		return
	}

	err = n.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		MaxLen: 10000,
		Approx: true,
		Values: map[string]any{"kind": string(note.Kind), "payload": string(raw)},
	}).Err()
	if err != nil {
		n.log.WithError(err).WithField("kind", note.Kind).Warn("notification enqueue failed")
	}
}

// Decode reads a notification back from a stream message.
func Decode(values map[string]any) (models.Notification, error) {
	var n models.Notification
	raw, _ := values["payload"].(string)
	err := json.Unmarshal([]byte(raw), &n)
	return n, err
}

package workers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/erasreview/internal/metrics"
	"github.com/yoockh/erasreview/internal/models"
	"github.com/yoockh/erasreview/internal/notify"
	"github.com/yoockh/erasreview/internal/providers/chat"
	"github.com/yoockh/erasreview/internal/providers/mail"
)

// AdminEventsChannel carries every notification to the admin live feed.
const AdminEventsChannel = "admin:events"

type NotificationWorkerPool struct {
	Redis      *redis.Client
	NumWorkers int

	Chat chat.Poster // nil disables chat delivery
	Mail mail.Sender

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
}

func (p *NotificationWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil {
		return errors.New("NotificationWorkerPool missing dependency: Redis must be set")
	}
	if p.Stream == "" {
		p.Stream = notify.DefaultStream
	}
	if p.Group == "" {
		p.Group = "notification-workers"
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.Mail == nil {
		p.Mail = mail.Nop{}
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		go p.runConsumer(ctx, consumer)
	}
	return nil
}

func (p *NotificationWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			p.Logger.WithError(err).WithField("consumer", consumer).Warn("notification read failed")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				// no retries: ack regardless of delivery outcome
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *NotificationWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	n, err := notify.Decode(msg.Values)
	if err != nil {
		p.Logger.WithError(err).WithField("redis_id", msg.ID).Warn("notification decode failed")
		return
	}
	p.Deliver(ctx, n)
}

// Deliver fans one notification out to its sinks. Failures are logged only.
func (p *NotificationWorkerPool) Deliver(ctx context.Context, n models.Notification) {
	log := p.Logger.WithFields(logrus.Fields{"kind": n.Kind, "user_id": n.UserID})

	if n.Kind.AdminFacing() && p.Chat != nil {
		p.record(log, n.Kind, "chat", p.Chat.Post(ctx, n.Subject, n.Body, n.Fields))
	}

	if n.Kind == models.NotifyReviewCompleted && n.Email != "" {
		p.record(log, n.Kind, "email", p.Mail.Send(ctx, n.Email, n.Subject, n.Body))
	}

	raw, err := notifyJSON(n)
	if err == nil {
		err = p.Redis.Publish(ctx, AdminEventsChannel, raw).Err()
	}
	if err != nil {
		log.WithError(err).Warn("admin event publish failed")
	}
}

func (p *NotificationWorkerPool) record(log *logrus.Entry, kind models.NotificationKind, sink string, err error) {
	if err != nil {
		metrics.NotificationsDelivered.WithLabelValues(string(kind), "error").Inc()
		log.WithError(err).WithField("sink", sink).Warn("notification delivery failed")
		return
	}
	metrics.NotificationsDelivered.WithLabelValues(string(kind), "ok").Inc()
}

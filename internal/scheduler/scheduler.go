package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler runs named jobs on cron specs. A job never overlaps itself.
type Scheduler struct {
	cron    *cron.Cron
	log     *logrus.Logger
	timeout time.Duration
}

func New(log *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:     log,
		timeout: 5 * time.Minute,
	}
}

func (s *Scheduler) Add(spec, name string, job func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		start := time.Now()
		entry := s.log.WithField("job", name)
		if err := job(ctx); err != nil {
			entry.WithError(err).Error("scheduled job failed")
			return
		}
		entry.WithField("latency_ms", time.Since(start).Milliseconds()).Info("scheduled job done")
	})
	return err
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for running jobs or ctx, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

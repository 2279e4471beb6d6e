package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orderbot_backend/platform/config"
	"orderbot_backend/platform/logger"

	"github.com/hibiken/asynq"
)

const defaultSyncInterval = 10 * time.Minute

// CatalogSyncDispatcher enqueues a catalog sync task on a fixed interval.
// It runs inside the scheduler binary next to the worker so syncs keep
// flowing without an external cron.
type CatalogSyncDispatcher struct {
	client   *asynq.Client
	queue    string
	interval time.Duration
	log      *logger.Logger
}

func NewCatalogSyncDispatcher(cfg config.SchedulerConfig, interval time.Duration, log *logger.Logger) (*CatalogSyncDispatcher, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}
	if interval <= 0 {
		interval = defaultSyncInterval
	}

	return &CatalogSyncDispatcher{
		client:   asynq.NewClient(opt),
		queue:    queue,
		interval: interval,
		log:      log,
	}, nil
}

func (d *CatalogSyncDispatcher) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}

func (d *CatalogSyncDispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil {
		return
	}

	d.enqueue(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		d.enqueue(ctx)
	}
}

func (d *CatalogSyncDispatcher) enqueue(ctx context.Context) {
	task, err := NewCatalogSyncTask(CatalogSyncPayload{Reason: "periodic"})
	if err != nil {
		d.log.Warn("catalog sync task build failed", "error", err)
		return
	}

	// Unique for the interval window so a slow worker does not pile up
	// duplicate syncs.
	_, err = d.client.EnqueueContext(ctx, task,
		asynq.Queue(d.queue),
		asynq.Unique(d.interval),
	)
	if err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		d.log.Warn("catalog sync enqueue failed", "error", err)
	}
}

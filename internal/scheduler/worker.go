package scheduler

import (
	"context"
	"fmt"

	"orderbot_backend/internal/erp"
	"orderbot_backend/platform/config"
	"orderbot_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Worker consumes scheduler tasks. Catalog syncs pull the ERP and upsert
// the local catalog through the erp service.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	erp    *erp.Service
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, erpSvc *erp.Service, log *logger.Logger) (*Worker, error) {
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

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		erp:    erpSvc,
		log:    log,
	}

	mux.HandleFunc(TaskCatalogSync, w.handleCatalogSync)

	return w, nil
}

func (w *Worker) handleCatalogSync(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseCatalogSyncPayload(task)
	if err != nil {
		return err
	}

	upserted, skipped, err := w.erp.PullSync(ctx)
	if err != nil {
		return fmt.Errorf("catalog sync (%s): %w", payload.Reason, err)
	}

	w.log.Info("catalog sync completed",
		"reason", payload.Reason,
		"upserted", upserted,
		"skipped", skipped,
	)
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

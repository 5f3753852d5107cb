package scheduler

import (
	"context"
	"fmt"

	"leadhunt_backend/internal/hunting"
	"leadhunt_backend/platform/config"
	"leadhunt_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Worker consumes scheduler tasks. On-demand hunt runs land here so the API
// process never blocks on a full hunting cycle.
type Worker struct {
	server       *asynq.Server
	mux          *asynq.ServeMux
	orchestrator *hunting.Orchestrator
	log          *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, orchestrator *hunting.Orchestrator, log *logger.Logger) (*Worker, error) {
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
		server:       server,
		mux:          mux,
		orchestrator: orchestrator,
		log:          log,
	}

	mux.HandleFunc(TaskHuntRun, w.handleHuntRun)

	return w, nil
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

func (w *Worker) handleHuntRun(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseHuntRunPayload(task)
	if err != nil {
		return err
	}

	tenantID, err := uuid.Parse(payload.TenantID)
	if err != nil {
		return err
	}

	result, err := w.orchestrator.RunNow(ctx, tenantID)
	if err != nil {
		return err
	}
	if result.SkipReason != "" {
		w.log.Info("on-demand hunt skipped", "tenantId", tenantID, "reason", result.SkipReason)
	}
	return nil
}

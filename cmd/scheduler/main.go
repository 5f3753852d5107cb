package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadhunt_backend/internal/email"
	"leadhunt_backend/internal/events"
	"leadhunt_backend/internal/hunting"
	"leadhunt_backend/internal/hunting/repository"
	"leadhunt_backend/internal/hunting/scoring"
	"leadhunt_backend/internal/notification"
	"leadhunt_backend/internal/reddit"
	"leadhunt_backend/internal/responses"
	"leadhunt_backend/internal/scheduler"
	"leadhunt_backend/internal/tiers"
	"leadhunt_backend/platform/config"
	"leadhunt_backend/platform/db"
	"leadhunt_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)

	repo := repository.New(pool)

	// Notification handlers run in this process too: background runs publish
	// the same events as API actions.
	notificationModule := notification.NewModule(pool, email.NewSender(cfg), repo, log)
	notificationModule.RegisterHandlers(eventBus)

	tokens := reddit.NewManager(cfg, cfg.GetCredentialCipherKey(), repo, log)
	client := reddit.NewClient(cfg, log)

	policy, err := tiers.NewPolicyFromFile(cfg.GetTierLimitsPath())
	if err != nil {
		log.Error("failed to load tier limits", "error", err)
		panic("failed to load tier limits: " + err.Error())
	}

	scorer := scoring.New(initLLM(ctx, cfg, log), log)

	orchestrator := hunting.NewOrchestrator(repo, tokens, client, scorer, policy, eventBus, log)
	monitor := responses.New(repo, client, tokens, eventBus, log)

	cycle := scheduler.NewHuntingCycle(cfg, repo, orchestrator, log)
	go cycle.Run(ctx)

	responseMonitor := scheduler.NewResponseMonitor(cfg, repo, monitor, log)
	go responseMonitor.Run(ctx)

	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; on-demand hunt runs disabled")
		<-ctx.Done()
		log.Info("scheduler stopped")
		return
	}

	worker, err := scheduler.NewWorker(cfg, orchestrator, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
	log.Info("scheduler stopped")
}

// initLLM builds the Gemini completion client. Without an API key scoring
// degrades to its reject-all verdict and no leads are created.
func initLLM(ctx context.Context, cfg config.GeminiConfig, log *logger.Logger) scoring.CompletionClient {
	if cfg.GetGeminiAPIKey() == "" {
		log.Warn("GEMINI_API_KEY not configured; scoring degrades to reject-all")
		return nil
	}

	llm, err := scoring.NewGeminiClient(ctx, cfg)
	if err != nil {
		log.Error("failed to initialize gemini client", "error", err)
		return nil
	}
	return llm
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}

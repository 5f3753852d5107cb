package hunting

import (
	"leadhunt_backend/internal/events"
	apphttp "leadhunt_backend/internal/http"
	"leadhunt_backend/internal/hunting/handler"
	"leadhunt_backend/internal/hunting/repository"
	"leadhunt_backend/internal/hunting/service"
	"leadhunt_backend/internal/reddit"
	"leadhunt_backend/platform/config"
	"leadhunt_backend/platform/logger"
	"leadhunt_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the hunting bounded context module implementing http.Module.
type Module struct {
	handler  *handler.Handler
	leads    *service.Service
	sessions *service.SessionService
	repo     *repository.Repository
	tokens   *reddit.Manager
}

// ModuleConfig combines the config interfaces the hunting module needs.
type ModuleConfig interface {
	config.RedditConfig
	config.CryptoConfig
}

// NewModule creates and initializes the hunting module with all its
// dependencies. The enqueuer dispatches on-demand hunt runs to the scheduler
// worker.
func NewModule(pool *pgxpool.Pool, eventBus events.Bus, val *validator.Validator, cfg ModuleConfig, enqueue service.HuntEnqueuer, log *logger.Logger) *Module {
	repo := repository.New(pool)
	client := reddit.NewClient(cfg, log)
	tokens := reddit.NewManager(cfg, cfg.GetCredentialCipherKey(), repo, log)

	leadsSvc := service.New(repo, tokens, client, eventBus, log)
	sessionSvc := service.NewSessionService(repo, enqueue, eventBus)

	return &Module{
		handler:  handler.New(leadsSvc, sessionSvc, val),
		leads:    leadsSvc,
		sessions: sessionSvc,
		repo:     repo,
		tokens:   tokens,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "hunting"
}

// Repository returns the shared hunting repository for other modules.
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// Tokens returns the provider credential manager.
func (m *Module) Tokens() *reddit.Manager {
	return m.tokens
}

// RegisterRoutes mounts the hunting routes. Everything requires auth.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterLeadRoutes(ctx.Protected.Group("/leads"))
	m.handler.RegisterSessionRoutes(ctx.Protected.Group("/session"))
}

var _ apphttp.Module = (*Module)(nil)

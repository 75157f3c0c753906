package payments

import (
	"funnel_backend/internal/events"
	apphttp "funnel_backend/internal/http"
	"funnel_backend/platform/config"
	"funnel_backend/platform/logger"
	"funnel_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the payments bounded context module implementing http.Module.
type Module struct {
	service *Service
	handler *Handler
}

// NewModule creates and initializes the payments module with all its dependencies.
func NewModule(pool *pgxpool.Pool, provider ProviderClient, leads LeadGate, scheduler DeadlineScheduler, bus events.Bus, cfg config.PaymentConfig, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	svc := NewService(repo, provider, leads, scheduler, bus, cfg, log)

	return &Module{
		service: svc,
		handler: NewHandler(svc, val),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "payments"
}

// Service exposes the reconciler for the scheduler worker.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts payment routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	payment := ctx.V1.Group("/payment")
	payment.POST("/checkout", m.handler.HandleCreateCheckout)

	webhook := ctx.V1.Group("/webhook")
	webhook.Use(ctx.WebhookRateLimiter.RateLimit())
	webhook.POST("/payment", m.handler.HandleWebhook)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)

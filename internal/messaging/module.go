package messaging

import (
	apphttp "funnel_backend/internal/http"
	"funnel_backend/platform/config"
	"funnel_backend/platform/logger"
)

// Module is the messaging bounded context module implementing http.Module.
type Module struct {
	handler *Handler
}

// NewModule creates and initializes the messaging module.
func NewModule(cfg config.MessagingConfig, linker IdentityLinker, replier Replier, log *logger.Logger) *Module {
	svc := NewService(linker, replier, log)
	return &Module{handler: NewHandler(svc, cfg, log)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "messaging"
}

// RegisterRoutes mounts the signed webhook endpoint.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/webhook")
	group.Use(ctx.WebhookRateLimiter.RateLimit())
	group.POST("/messaging", m.handler.HandleWebhook)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)

package feedback

import (
	"funnel_backend/internal/events"
	apphttp "funnel_backend/internal/http"
	"funnel_backend/platform/config"
	"funnel_backend/platform/logger"
	"funnel_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the feedback bounded context module implementing http.Module.
type Module struct {
	service *Service
	tokens  *LinkTokens
	handler *Handler
}

// NewModule creates and initializes the feedback module with all its dependencies.
func NewModule(pool *pgxpool.Pool, leads LeadGate, bus events.Bus, rewardCfg config.RewardConfig, tokenCfg config.LinkTokenConfig, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	svc := NewService(repo, leads, bus, rewardCfg, log)
	tokens := NewLinkTokens(tokenCfg)

	return &Module{
		service: svc,
		tokens:  tokens,
		handler: NewHandler(svc, tokens, val),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "feedback"
}

// Tokens exposes the link-token issuer for the notification module.
func (m *Module) Tokens() *LinkTokens {
	return m.tokens
}

// RegisterRoutes mounts feedback routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/feedback")
	group.POST("", m.handler.HandleSubmitFeedback)
	group.GET("/form/:token", m.handler.HandleResolveForm)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)

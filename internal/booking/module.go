package booking

import (
	"funnel_backend/internal/events"
	apphttp "funnel_backend/internal/http"
	"funnel_backend/platform/config"
	"funnel_backend/platform/logger"
	"funnel_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the booking bounded context module implementing http.Module.
type Module struct {
	service *Service
	handler *Handler
}

// NewModule creates and initializes the booking module with all its dependencies.
func NewModule(pool *pgxpool.Pool, calendar CalendarClient, leads LeadGate, scheduler ConfirmScheduler, bus events.Bus, cfg config.BookingConfig, calCfg config.CalendarConfig, val *validator.Validator, log *logger.Logger) *Module {
	repo := NewRepository(pool)
	svc := NewService(repo, calendar, leads, scheduler, bus, cfg, calCfg, log)

	return &Module{
		service: svc,
		handler: NewHandler(svc, val),
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "booking"
}

// Service exposes the booking service for the scheduler worker.
func (m *Module) Service() *Service {
	return m.service
}

// RegisterRoutes mounts booking routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/calendar")
	group.POST("/slots", m.handler.HandleGetSlots)
	group.POST("/book", m.handler.HandleCreateBooking)
	group.GET("/book/:bookingId", m.handler.HandleGetBooking)
	group.DELETE("/book/:bookingId", m.handler.HandleCancelBooking)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)

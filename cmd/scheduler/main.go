package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"funnel_backend/internal/adapters/calendarapi"
	"funnel_backend/internal/adapters/messagingapi"
	"funnel_backend/internal/adapters/paymentapi"
	"funnel_backend/internal/booking"
	"funnel_backend/internal/events"
	"funnel_backend/internal/feedback"
	"funnel_backend/internal/leads"
	"funnel_backend/internal/notification"
	"funnel_backend/internal/payments"
	"funnel_backend/internal/scheduler"
	"funnel_backend/platform/config"
	"funnel_backend/platform/db"
	"funnel_backend/platform/logger"
	"funnel_backend/platform/validator"
)

// The worker binary consumes delayed tasks. It wires the same booking and
// payment services as the API so a retried confirmation or an expired
// deadline moves the funnel exactly the way a live request would.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	taskClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize task scheduler client", "error", err)
		panic("failed to initialize task scheduler client: " + err.Error())
	}
	defer func() {
		_ = taskClient.Close()
	}()

	calendarClient := calendarapi.NewClient(cfg, log)
	messagingClient := messagingapi.NewClient(cfg, log)
	providerClient := paymentapi.NewClient(cfg, log)

	leadsModule := leads.NewModule(pool, eventBus, val, log)
	engine := leadsModule.Service()

	bookingModule := booking.NewModule(pool, calendarClient, engine, taskClient, eventBus, cfg, cfg, val, log)
	paymentsModule := payments.NewModule(pool, providerClient, engine, taskClient, eventBus, cfg, val, log)
	feedbackModule := feedback.NewModule(pool, engine, eventBus, cfg, cfg, val, log)

	var sender notification.Sender = notification.NoopSender{}
	if cfg.EmailEnabled {
		sender = notification.NewSMTPSender(cfg)
	}
	notificationModule := notification.NewModule(sender, messagingClient, engine, feedbackModule.Tokens(), cfg, log)
	notificationModule.Subscribe(eventBus)

	worker, err := scheduler.NewWorker(cfg, bookingModule.Service(), paymentsModule.Service(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	log.Info("scheduler worker running", "queue", cfg.AsynqQueueName, "concurrency", cfg.AsynqConcurrency)
	worker.Run(ctx)
	log.Info("scheduler worker stopped")
}

package scheduler

import (
	"context"
	"fmt"

	"funnel_backend/internal/booking"
	"funnel_backend/internal/payments"
	"funnel_backend/platform/apperr"
	"funnel_backend/platform/config"
	"funnel_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Worker consumes delayed tasks: pending-booking confirmation retries and
// payment deadline expiries.
type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	bookings *booking.Service
	payments *payments.Service
	log      *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, bookings *booking.Service, paymentSvc *payments.Service, log *logger.Logger) (*Worker, error) {
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
		server:   server,
		mux:      mux,
		bookings: bookings,
		payments: paymentSvc,
		log:      log,
	}

	mux.HandleFunc(TaskBookingConfirmRetry, w.handleBookingConfirmRetry)
	mux.HandleFunc(TaskPaymentDeadline, w.handlePaymentDeadline)

	return w, nil
}

// Run blocks until ctx is cancelled.
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

func (w *Worker) handleBookingConfirmRetry(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseBookingConfirmRetryPayload(task)
	if err != nil {
		return err
	}

	bookingID, err := uuid.Parse(payload.BookingID)
	if err != nil {
		return err
	}

	if err := w.bookings.ConfirmPending(ctx, bookingID); err != nil {
		if apperr.Is(err, apperr.KindUnavailable) {
			// Calendar still down; let asynq back off and retry.
			return err
		}
		w.log.Error("booking confirm retry failed terminally",
			"booking_id", payload.BookingID, "error", err.Error())
		return nil
	}
	return nil
}

func (w *Worker) handlePaymentDeadline(ctx context.Context, task *asynq.Task) error {
	payload, err := ParsePaymentDeadlinePayload(task)
	if err != nil {
		return err
	}

	return w.payments.ExpireIfPending(ctx, payload.ProviderSessionID)
}

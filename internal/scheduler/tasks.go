// Package scheduler owns the delayed-task plumbing: enqueuing through asynq
// and consuming in the worker binary.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskBookingConfirmRetry = "bookings.confirm_retry"

const TaskPaymentDeadline = "payments.deadline"

// BookingConfirmRetryPayload retries calendar event creation for a pending booking.
type BookingConfirmRetryPayload struct {
	BookingID string `json:"bookingId"`
}

// PaymentDeadlinePayload expires a checkout session that never settled.
type PaymentDeadlinePayload struct {
	ProviderSessionID string `json:"providerSessionId"`
}

func NewBookingConfirmRetryTask(payload BookingConfirmRetryPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBookingConfirmRetry, data), nil
}

func ParseBookingConfirmRetryPayload(task *asynq.Task) (BookingConfirmRetryPayload, error) {
	var payload BookingConfirmRetryPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return BookingConfirmRetryPayload{}, err
	}
	return payload, nil
}

func NewPaymentDeadlineTask(payload PaymentDeadlinePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentDeadline, data), nil
}

func ParsePaymentDeadlinePayload(task *asynq.Task) (PaymentDeadlinePayload, error) {
	var payload PaymentDeadlinePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return PaymentDeadlinePayload{}, err
	}
	return payload, nil
}

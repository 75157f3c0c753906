package scheduler

import (
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

func TestBookingConfirmRetryTaskRoundTrip(t *testing.T) {
	bookingID := uuid.New().String()

	task, err := NewBookingConfirmRetryTask(BookingConfirmRetryPayload{BookingID: bookingID})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if task.Type() != TaskBookingConfirmRetry {
		t.Errorf("type = %q, want %q", task.Type(), TaskBookingConfirmRetry)
	}

	payload, err := ParseBookingConfirmRetryPayload(task)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if payload.BookingID != bookingID {
		t.Errorf("booking id = %q, want %q", payload.BookingID, bookingID)
	}
}

func TestPaymentDeadlineTaskRoundTrip(t *testing.T) {
	task, err := NewPaymentDeadlineTask(PaymentDeadlinePayload{ProviderSessionID: "cs_1"})
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if task.Type() != TaskPaymentDeadline {
		t.Errorf("type = %q, want %q", task.Type(), TaskPaymentDeadline)
	}

	payload, err := ParsePaymentDeadlinePayload(task)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if payload.ProviderSessionID != "cs_1" {
		t.Errorf("session id = %q, want cs_1", payload.ProviderSessionID)
	}
}

func TestParsePayloadRejectsGarbage(t *testing.T) {
	task := asynq.NewTask(TaskBookingConfirmRetry, []byte("not json"))
	if _, err := ParseBookingConfirmRetryPayload(task); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

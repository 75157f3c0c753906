package scheduler

import (
	"context"
	"testing"
	"time"

	"funnel_backend/platform/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(&config.Config{RedisURL: "redis://" + mr.Addr(), AsynqQueueName: "funnel"})
	if err != nil {
		t.Fatalf("client setup failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestScheduleBookingConfirmRetry(t *testing.T) {
	client := newTestClient(t)
	if err := client.ScheduleBookingConfirmRetry(context.Background(), uuid.New(), 2*time.Minute); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
}

func TestSchedulePaymentDeadline(t *testing.T) {
	client := newTestClient(t)
	if err := client.SchedulePaymentDeadline(context.Background(), "cs_1", 24*time.Hour); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
}

func TestNilClientDropsEnqueues(t *testing.T) {
	var client *Client
	if err := client.ScheduleBookingConfirmRetry(context.Background(), uuid.New(), time.Minute); err != nil {
		t.Errorf("nil client returned %v", err)
	}
	if err := client.SchedulePaymentDeadline(context.Background(), "cs_1", time.Minute); err != nil {
		t.Errorf("nil client returned %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("nil client close returned %v", err)
	}
}

func TestNewClientRequiresRedisURL(t *testing.T) {
	if _, err := NewClient(&config.Config{}); err == nil {
		t.Fatal("expected error without redis url")
	}
}

package notify

import (
	"context"
	"testing"
	"time"
)

type countingSender struct {
	calls int
}

func (c *countingSender) Send(ctx context.Context, ch Channel, recipient, subject, content string) error {
	c.calls++
	if _, ok := ctx.Deadline(); !ok {
		return context.DeadlineExceeded
	}
	return nil
}

func TestNewLimitedValidation(t *testing.T) {
	if _, err := NewLimited(nil, 1, 1, time.Second); err == nil {
		t.Error("nil sender must be rejected")
	}
	if _, err := NewLimited(&countingSender{}, 0, 1, time.Second); err == nil {
		t.Error("zero rate must be rejected")
	}
	if _, err := NewLimited(&countingSender{}, 1, 0, time.Second); err == nil {
		t.Error("zero burst must be rejected")
	}
}

func TestLimitedAppliesTimeout(t *testing.T) {
	next := &countingSender{}
	l, err := NewLimited(next, 100, 10, time.Second)
	if err != nil {
		t.Fatalf("NewLimited: %v", err)
	}
	if err := l.Send(context.Background(), ChannelEmail, "a@b.c", "s", "c"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if next.calls != 1 {
		t.Errorf("calls = %d", next.calls)
	}
}

func TestLimitedHonorsCancelledContext(t *testing.T) {
	next := &countingSender{}
	l, err := NewLimited(next, 1, 1, time.Second)
	if err != nil {
		t.Fatalf("NewLimited: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Send(ctx, ChannelSMS, "+52", "s", "c"); err == nil {
		t.Error("cancelled context must fail the send")
	}
	if next.calls != 0 {
		t.Errorf("next sender must not be reached, calls = %d", next.calls)
	}
}

func TestLogSender(t *testing.T) {
	if err := (LogSender{}).Send(context.Background(), ChannelSMS, "+52", "s", "c"); err != nil {
		t.Fatalf("LogSender: %v", err)
	}
}

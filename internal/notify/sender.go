package notify

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"aptogate.org/internal/obs"
)

// Channel is a delivery channel. SMS and email are independent: each carries
// its own idempotency subject and one channel's failure never blocks the
// other.
type Channel string

const (
	ChannelSMS   Channel = "SMS"
	ChannelEmail Channel = "EMAIL"
)

// Sender delivers one message on one channel. Implementations must be safe
// for concurrent use and should bound their own transport timeouts.
type Sender interface {
	Send(ctx context.Context, ch Channel, recipient, subject, content string) error
}

// LogSender writes messages to the shared logger instead of a transport.
// Default for development and smoke environments.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, ch Channel, recipient, subject, content string) error {
	obs.Log("info", "notification", map[string]any{
		"channel":   string(ch),
		"recipient": recipient,
		"subject":   subject,
		"content":   content,
	})
	return nil
}

// Limited wraps a Sender with a token-bucket rate limit and a bounded
// per-send timeout.
type Limited struct {
	next    Sender
	limiter *rate.Limiter
	timeout time.Duration
}

func NewLimited(next Sender, perSecond float64, burst int, timeout time.Duration) (*Limited, error) {
	if next == nil {
		return nil, errors.New("notify: sender is required")
	}
	if perSecond <= 0 || burst <= 0 {
		return nil, errors.New("notify: rate limit must be positive")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Limited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		timeout: timeout,
	}, nil
}

func (l *Limited) Send(ctx context.Context, ch Channel, recipient, subject, content string) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	return l.next.Send(ctx, ch, recipient, subject, content)
}

package alert

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"aptogate.org/internal/notify"
	"aptogate.org/internal/obs"
)

// DaysUntil computes the whole-day distance from one instant to another,
// normalizing both to UTC midnight first. A certificate expiring later
// today is day 0, never negative or fractional.
func DaysUntil(target, from time.Time) int {
	a := midnightUTC(target)
	b := midnightUTC(from)
	return int(a.Sub(b) / (24 * time.Hour))
}

func midnightUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Sweeper runs the daily expiry reconciliation. Runs are idempotent per
// (certificate, threshold, channel): a repeated run for the same day sends
// nothing new. The sweep is expected to be single-flight per day; under
// concurrent invocation the NotificationLog's unique key is the safety net.
type Sweeper struct {
	store  Store
	sender notify.Sender
}

func NewSweeper(store Store, sender notify.Sender) (*Sweeper, error) {
	if store == nil {
		return nil, errors.New("alert: store is required")
	}
	if sender == nil {
		return nil, errors.New("alert: sender is required")
	}
	return &Sweeper{store: store, sender: sender}, nil
}

// Run executes one reconciliation pass as of the given instant. Per-channel
// and per-certificate failures are counted and logged but never abort the
// sweep; only a failure to read the candidate set is a hard error.
func (s *Sweeper) Run(ctx context.Context, asOf time.Time) (Report, error) {
	var rep Report

	to := asOf.Add(SelectionWindowDays * 24 * time.Hour)
	certs, err := s.store.ListExpiring(ctx, asOf, to)
	if err != nil {
		return rep, fmt.Errorf("alert: list expiring certificates: %w", err)
	}

	for _, ec := range certs {
		rep.Processed++

		days := DaysUntil(ec.Certificate.ExpirationDate, asOf)
		if !slices.Contains(Thresholds, days) {
			rep.Skipped++
			continue
		}

		// SMS and email are independent channels with independent
		// idempotency subjects; neither blocks the other.
		s.notifyChannel(ctx, &rep, ec, days, notify.ChannelSMS, ec.ContactPhone, smsContent(ec, days))
		s.notifyChannel(ctx, &rep, ec, days, notify.ChannelEmail, ec.ContactEmail, emailContent(ec, days))
	}

	obs.ObserveSweepRun()
	return rep, nil
}

func (s *Sweeper) notifyChannel(ctx context.Context, rep *Report, ec ExpiringCertificate, days int, ch notify.Channel, recipient, content string) {
	certID := ec.Certificate.ID
	if recipient == "" {
		rep.Skipped++
		obs.ObserveNotification(string(ch), "skipped")
		obs.Log("warn", "expiry notification skipped: no contact", map[string]any{
			"certificate_id": certID,
			"channel":        string(ch),
		})
		return
	}

	subject := Subject(ch, certID, days)

	sent, err := s.store.AlreadySent(ctx, ch, recipient, subject)
	if err != nil {
		rep.Failed++
		obs.ObserveNotification(string(ch), "failed")
		obs.Log("error", "expiry notification dedupe check failed", map[string]any{
			"certificate_id": certID,
			"channel":        string(ch),
			"error":          err.Error(),
		})
		return
	}
	if sent {
		rep.Skipped++
		obs.ObserveNotification(string(ch), "skipped")
		return
	}

	if err := s.sender.Send(ctx, ch, recipient, subject, content); err != nil {
		rep.Failed++
		obs.ObserveNotification(string(ch), "failed")
		obs.Log("error", "expiry notification send failed", map[string]any{
			"certificate_id": certID,
			"channel":        string(ch),
			"recipient":      recipient,
			"error":          err.Error(),
		})
		return
	}

	// Send-then-log: a crash between the two causes at most one duplicate
	// on the next run, which beats a log-first scheme silently suppressing
	// a send that never happened.
	inserted, err := s.store.RecordSent(ctx, Record{
		Channel:   ch,
		Recipient: recipient,
		Subject:   subject,
		Content:   content,
		Status:    "sent",
		SentAt:    time.Now().UTC(),
	})
	if err != nil {
		// The message went out; count it sent but surface the log gap.
		obs.Log("error", "notification log write failed", map[string]any{
			"certificate_id": certID,
			"channel":        string(ch),
			"subject":        subject,
			"error":          err.Error(),
		})
	} else if !inserted {
		obs.Log("warn", "notification log row already present", map[string]any{
			"certificate_id": certID,
			"subject":        subject,
		})
	}

	rep.Sent++
	obs.ObserveNotification(string(ch), "sent")
}

func smsContent(ec ExpiringCertificate, days int) string {
	return fmt.Sprintf("Aviso: el COI de %s para %s vence en %d días (el %s). Por favor sube la renovación.",
		ec.VendorName, ec.BuildingName, days, ec.Certificate.ExpirationDate.Format("2006-01-02"))
}

func emailContent(ec ExpiringCertificate, days int) string {
	return fmt.Sprintf("Aviso de vencimiento de COI para %s en %s: vence en %d días (el %s).",
		ec.VendorName, ec.BuildingName, days, ec.Certificate.ExpirationDate.Format("2006-01-02"))
}

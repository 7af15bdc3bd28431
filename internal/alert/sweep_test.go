package alert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aptogate.org/internal/compliance"
	"aptogate.org/internal/notify"
)

// memStore is an in-memory alert.Store backed by a (channel, recipient,
// subject) set, mirroring the unique key of the notification log.
type memStore struct {
	mu      sync.Mutex
	certs   []ExpiringCertificate
	rows    map[string]Record
	listErr error
}

func newMemStore(certs ...ExpiringCertificate) *memStore {
	return &memStore{certs: certs, rows: map[string]Record{}}
}

func key(ch notify.Channel, recipient, subject string) string {
	return fmt.Sprintf("%s|%s|%s", ch, recipient, subject)
}

func (m *memStore) ListExpiring(_ context.Context, from, to time.Time) ([]ExpiringCertificate, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []ExpiringCertificate
	for _, ec := range m.certs {
		exp := ec.Certificate.ExpirationDate
		if !exp.Before(from) && !exp.After(to) {
			out = append(out, ec)
		}
	}
	return out, nil
}

func (m *memStore) AlreadySent(_ context.Context, ch notify.Channel, recipient, subject string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[key(ch, recipient, subject)]
	return ok, nil
}

func (m *memStore) RecordSent(_ context.Context, rec Record) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(rec.Channel, rec.Recipient, rec.Subject)
	if _, ok := m.rows[k]; ok {
		return false, nil
	}
	m.rows[k] = rec
	return true, nil
}

type sentMsg struct {
	ch        notify.Channel
	recipient string
	subject   string
}

// fakeSender records sends and can fail selected channels.
type fakeSender struct {
	mu     sync.Mutex
	sent   []sentMsg
	failCh map[notify.Channel]bool
}

func (f *fakeSender) Send(_ context.Context, ch notify.Channel, recipient, subject, content string) error {
	if f.failCh[ch] {
		return errors.New("transport down")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMsg{ch: ch, recipient: recipient, subject: subject})
	return nil
}

func expiring(id string, expiresAt time.Time) ExpiringCertificate {
	return ExpiringCertificate{
		Certificate: compliance.Certificate{
			ID:             id,
			VendorID:       "v1",
			BuildingID:     "b1",
			Status:         compliance.StatusApproved,
			EffectiveDate:  expiresAt.AddDate(-1, 0, 0),
			ExpirationDate: expiresAt,
		},
		VendorName:   "Limpieza SA",
		ContactPhone: "+525512345678",
		ContactEmail: "coi@limpieza.example",
		BuildingName: "Torre Norte",
	}
}

var asOf = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func TestDaysUntil(t *testing.T) {
	base := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

	assert.Equal(t, 0, DaysUntil(base.Add(5*time.Hour), base), "later today is day 0")
	assert.Equal(t, 1, DaysUntil(base.Add(15*time.Hour), base), "tomorrow early morning is day 1")
	assert.Equal(t, 30, DaysUntil(base.AddDate(0, 0, 30), base))

	// Clock times never shift the whole-day distance.
	late := time.Date(2024, 6, 1, 23, 59, 0, 0, time.UTC)
	early := time.Date(2024, 7, 1, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 30, DaysUntil(early, late))
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "COI_EXPIRY_SMS_c1_D30", Subject(notify.ChannelSMS, "c1", 30))
	assert.Equal(t, "COI_EXPIRY_EMAIL_c1_D7", Subject(notify.ChannelEmail, "c1", 7))
}

func TestRunNotifiesAtThresholds(t *testing.T) {
	store := newMemStore(
		expiring("c30", asOf.AddDate(0, 0, 30)),
		expiring("c15", asOf.AddDate(0, 0, 15)),
		expiring("c7", asOf.AddDate(0, 0, 7)),
	)
	sender := &fakeSender{}
	s, err := NewSweeper(store, sender)
	require.NoError(t, err)

	rep, err := s.Run(context.Background(), asOf)
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Processed)
	assert.Equal(t, 6, rep.Sent, "SMS and email per certificate")
	assert.Zero(t, rep.Skipped)
	assert.Zero(t, rep.Failed)
	assert.Len(t, store.rows, 6)
}

func TestRunSkipsOffThresholdDays(t *testing.T) {
	store := newMemStore(
		expiring("c29", asOf.AddDate(0, 0, 29)),
		expiring("c8", asOf.AddDate(0, 0, 8)),
		expiring("c1", asOf.AddDate(0, 0, 1)),
	)
	sender := &fakeSender{}
	s, err := NewSweeper(store, sender)
	require.NoError(t, err)

	rep, err := s.Run(context.Background(), asOf)
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Processed)
	assert.Zero(t, rep.Sent)
	assert.Equal(t, 3, rep.Skipped, "one skip per off-threshold certificate")
	assert.Empty(t, sender.sent)
}

func TestRunIgnoresCertificatesOutsideWindow(t *testing.T) {
	store := newMemStore(
		expiring("c31", asOf.AddDate(0, 0, 31)),
		expiring("gone", asOf.AddDate(0, 0, -1)),
	)
	sender := &fakeSender{}
	s, err := NewSweeper(store, sender)
	require.NoError(t, err)

	rep, err := s.Run(context.Background(), asOf)
	require.NoError(t, err)
	assert.Zero(t, rep.Processed)
}

func TestRunIsIdempotent(t *testing.T) {
	store := newMemStore(expiring("c30", asOf.AddDate(0, 0, 30)))
	sender := &fakeSender{}
	s, err := NewSweeper(store, sender)
	require.NoError(t, err)

	first, err := s.Run(context.Background(), asOf)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Sent)

	second, err := s.Run(context.Background(), asOf)
	require.NoError(t, err)
	assert.Zero(t, second.Sent, "second run for the same day sends nothing")
	assert.Equal(t, 2, second.Skipped)

	assert.Len(t, sender.sent, 2, "one SMS and one email total")
	assert.Len(t, store.rows, 2, "one log row per channel")
}

func TestRunChannelsAreIndependent(t *testing.T) {
	store := newMemStore(expiring("c7", asOf.AddDate(0, 0, 7)))
	sender := &fakeSender{failCh: map[notify.Channel]bool{notify.ChannelSMS: true}}
	s, err := NewSweeper(store, sender)
	require.NoError(t, err)

	rep, err := s.Run(context.Background(), asOf)
	require.NoError(t, err, "a channel failure never aborts the sweep")

	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 1, rep.Sent)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, notify.ChannelEmail, sender.sent[0].ch)

	// The failed SMS left no log row, so the next run retries it.
	sender.failCh = nil
	rep, err = s.Run(context.Background(), asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Sent)
	assert.Equal(t, 1, rep.Skipped, "email already logged")
}

func TestRunMissingContactSkipsChannel(t *testing.T) {
	ec := expiring("c15", asOf.AddDate(0, 0, 15))
	ec.ContactPhone = ""
	store := newMemStore(ec)
	sender := &fakeSender{}
	s, err := NewSweeper(store, sender)
	require.NoError(t, err)

	rep, err := s.Run(context.Background(), asOf)
	require.NoError(t, err)

	assert.Equal(t, 1, rep.Sent, "email still goes out")
	assert.Equal(t, 1, rep.Skipped, "missing phone skips SMS only")
	require.Len(t, sender.sent, 1)
	assert.Equal(t, notify.ChannelEmail, sender.sent[0].ch)
}

func TestRunListFailureIsFatal(t *testing.T) {
	store := newMemStore()
	store.listErr = errors.New("db down")
	s, err := NewSweeper(store, &fakeSender{})
	require.NoError(t, err)

	_, err = s.Run(context.Background(), asOf)
	assert.Error(t, err)
}

package alert

import (
	"context"
	"fmt"
	"time"

	"aptogate.org/internal/compliance"
	"aptogate.org/internal/notify"
)

// Thresholds are the expiry milestones, in whole days, that trigger a
// notification. A certificate is acted on only when its distance to expiry
// equals one of these exactly; missed days are skipped, never accumulated.
var Thresholds = []int{30, 15, 7}

// SelectionWindowDays bounds the daily query: only certificates expiring
// within this many days of "now" are considered.
const SelectionWindowDays = 30

// ThresholdTag renders the D30/D15/D7 label for a day distance.
func ThresholdTag(days int) string {
	return fmt.Sprintf("D%d", days)
}

// Subject builds the deterministic idempotency key for one
// (certificate, threshold, channel) triple. Existence of a NotificationLog
// row with this subject is the sole duplicate-suppression signal, so the
// format must stay stable and collision-free.
func Subject(ch notify.Channel, certificateID string, days int) string {
	return fmt.Sprintf("COI_EXPIRY_%s_%s_%s", ch, certificateID, ThresholdTag(days))
}

// ExpiringCertificate joins a certificate with the contact data needed to
// notify its vendor.
type ExpiringCertificate struct {
	Certificate  compliance.Certificate
	VendorName   string
	ContactPhone string
	ContactEmail string
	BuildingName string
}

// Record is one append-only NotificationLog row.
type Record struct {
	ID        string
	Channel   notify.Channel
	Recipient string
	Subject   string
	Content   string
	Status    string
	SentAt    time.Time
}

// Store is the persistence surface of the sweep.
type Store interface {
	// ListExpiring returns APPROVED and PENDING certificates whose
	// expiration date falls in [from, to], joined with vendor and building
	// information.
	ListExpiring(ctx context.Context, from, to time.Time) ([]ExpiringCertificate, error)

	// AlreadySent reports whether a notification row with this exact
	// (channel, recipient, subject) exists.
	AlreadySent(ctx context.Context, ch notify.Channel, recipient, subject string) (bool, error)

	// RecordSent inserts the notification row. The insert must be
	// conditional on the (channel, recipient, subject) unique key — a
	// concurrent run that already logged the same subject makes this a
	// no-op — and reports whether a row was written.
	RecordSent(ctx context.Context, rec Record) (bool, error)
}

// Report summarizes one sweep run. Processed counts certificates examined;
// Sent, Skipped and Failed count per-channel outcomes (a certificate off
// every threshold counts one skip).
type Report struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

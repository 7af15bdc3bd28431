package compliance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aptogate.org/internal/audit"
	"aptogate.org/internal/notify"
	"aptogate.org/internal/obs"
)

// VendorContact resolves the notification contact for a certificate's
// vendor, when it has one. ErrNotFound when the certificate belongs to a
// tenant or the vendor has no contact data.
type VendorContact interface {
	CertificateVendorContact(ctx context.Context, certificateID string) (name, email string, err error)
}

// Reviewer applies certificate review outcomes: a single-row status
// transition, an audit entry, and a best-effort rejection notice. Re-review
// is allowed and overwrites the previous outcome.
type Reviewer struct {
	store    CertificateStore
	recorder *audit.Recorder
	sender   notify.Sender
	contacts VendorContact
}

// NewReviewer constructs a Reviewer. Recorder, sender and contacts are
// optional; without them review still transitions status.
func NewReviewer(store CertificateStore, recorder *audit.Recorder, sender notify.Sender, contacts VendorContact) (*Reviewer, error) {
	if store == nil {
		return nil, errors.New("compliance: certificate store is required")
	}
	return &Reviewer{store: store, recorder: recorder, sender: sender, contacts: contacts}, nil
}

// Review transitions the certificate to APPROVED or REJECTED. The status
// write is the operation that must not be lost; the audit entry and the
// rejection notice are best-effort side effects.
func (r *Reviewer) Review(ctx context.Context, certificateID string, status Status, notes, actorID string) (*Certificate, error) {
	if certificateID == "" {
		return nil, ErrInvalidInput
	}
	if status != StatusApproved && status != StatusRejected {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	cert, err := r.store.ReviewCertificate(ctx, certificateID, status, notes, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	r.recorder.Record(ctx, audit.Entry{
		EntityType: "COI",
		EntityID:   cert.ID,
		Action:     "REVIEW_COI",
		ActorID:    actorID,
		Metadata: map[string]any{
			"status": string(status),
			"notes":  notes,
		},
	})

	if status == StatusRejected {
		r.notifyRejection(ctx, cert, notes)
	}
	return cert, nil
}

func (r *Reviewer) notifyRejection(ctx context.Context, cert *Certificate, notes string) {
	if r.sender == nil || r.contacts == nil || cert.VendorID == "" {
		return
	}
	name, email, err := r.contacts.CertificateVendorContact(ctx, cert.ID)
	if err != nil || email == "" {
		return
	}
	subject := fmt.Sprintf("COI_REJECTED_%s", cert.ID)
	content := fmt.Sprintf("Aviso: el COI de %s fue rechazado. Motivo: %s. Por favor sube un certificado corregido.", name, notes)
	if err := r.sender.Send(ctx, notify.ChannelEmail, email, subject, content); err != nil {
		obs.Log("warn", "rejection notice failed", map[string]any{
			"certificate_id": cert.ID,
			"error":          err.Error(),
		})
	}
}

package audit

import (
	"context"
	"strings"
	"time"

	"aptogate.org/internal/obs"
)

// Entry is one append-only audit record of a state-changing decision.
// Entries are never updated or deleted.
type Entry struct {
	ID         string         `json:"id"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Action     string         `json:"action"`
	ActorID    string         `json:"actor_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	TraceID    string         `json:"trace_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Store appends immutable entries.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
}

// Recorder writes audit entries on a best-effort basis. Audit is
// observability, not a transactional guarantee: a failed write is logged and
// swallowed so it can never fail the calling operation.
type Recorder struct {
	store Store
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record appends one entry. Safe to call on a nil recorder.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil || r.store == nil {
		return
	}
	if entry.ActorID == "" {
		entry.ActorID = "system"
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.TraceID == "" {
		entry.TraceID = requestIDFromContext(ctx)
	}
	if err := r.store.Append(ctx, &entry); err != nil {
		obs.Log("warn", "audit append failed", map[string]any{
			"entity_type": entry.EntityType,
			"entity_id":   entry.EntityID,
			"action":      entry.Action,
			"error":       err.Error(),
		})
	}
}

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context; Record picks
// it up as the trace id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

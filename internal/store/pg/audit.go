package pg

import (
	"context"
	"encoding/json"

	"aptogate.org/internal/audit"
	"aptogate.org/internal/ids"
)

// Append writes one immutable audit row.
func (s *Store) Append(ctx context.Context, entry *audit.Entry) error {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into audit_log(id, entity_type, entity_id, action, actor_id, metadata, trace_id, created_at)
		values ($1,$2,$3,$4,$5,$6,nullif($7,''),$8)
	`, entry.ID, entry.EntityType, entry.EntityID, entry.Action, entry.ActorID, meta, entry.TraceID, entry.CreatedAt)
	return err
}

// Package audit appends one immutable record per processed signal.
package audit

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"

	"signal-bridge/internal/events"
	"signal-bridge/pkg/db"
)

// Entry is what the caller knows about one processed signal. Payload is the
// original webhook body; Results the per-account outcomes. Credential
// material must never reach this struct.
type Entry struct {
	OwnerID    string
	StrategyID string
	Symbol     string
	Action     string
	Status     string
	Message    string
	Payload    []byte
	Results    any
}

// Recorder writes audit rows best-effort: a failed write is logged and
// surfaced on the bus, never returned, so it cannot fail the webhook
// response.
type Recorder struct {
	queries *db.Queries
	bus     *events.Bus
}

func NewRecorder(queries *db.Queries, bus *events.Bus) *Recorder {
	return &Recorder{queries: queries, bus: bus}
}

// Record appends one audit row for a processed signal.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	var results string
	if e.Results != nil {
		raw, err := json.Marshal(e.Results)
		if err != nil {
			log.Printf("audit: marshal results: %v", err)
		} else {
			results = string(raw)
		}
	}

	rec := db.AuditRecord{
		ID:         uuid.NewString(),
		UserID:     e.OwnerID,
		StrategyID: e.StrategyID,
		Symbol:     e.Symbol,
		Action:     e.Action,
		Status:     e.Status,
		Message:    e.Message,
		Payload:    string(e.Payload),
		Results:    results,
	}
	if err := r.queries.InsertAudit(ctx, rec); err != nil {
		log.Printf("audit: write failed for owner %s: %v", e.OwnerID, err)
		if r.bus != nil {
			r.bus.Publish(events.EventAuditWriteFailed, map[string]string{
				"owner_id": e.OwnerID,
				"error":    err.Error(),
			})
		}
	}
}

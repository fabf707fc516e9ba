// Package metrics is lightweight pilot telemetry, distinct from the audit
// log: counters and timing events about system behavior rather than an
// accountability trail of who-did-what.
package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"
)

// EventType enumerates the pilot metrics events this module emits.
type EventType string

const (
	EventComplaintCreated     EventType = "COMPLAINT_CREATED"
	EventFirstAuthorityAction EventType = "FIRST_AUTHORITY_ACTION"
	EventEscalationTriggered  EventType = "ESCALATION_TRIGGERED"
	EventComplaintResolved    EventType = "COMPLAINT_RESOLVED"
)

// Event is one row of pilot telemetry.
type Event struct {
	ID          int64
	Type        EventType
	ComplaintID sql.NullInt64
	UserID      sql.NullInt64
	DurationMS  sql.NullInt64
	Metadata    string // JSON-encoded, opaque to this package
	CreatedAt   time.Time
}

// Recorder emits pilot metrics events. Every Emit* call is fire-and-forget:
// a failed insert is logged, never returned to the caller.
type Recorder struct {
	db *sql.DB
}

func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

func (r *Recorder) emit(ctx context.Context, e Event) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pilot_metrics_events (event_type, complaint_id, user_id, duration_ms, metadata)
		VALUES (?, ?, ?, ?, ?)`,
		e.Type, e.ComplaintID, e.UserID, e.DurationMS, e.Metadata)
	if err != nil {
		log.Printf("[METRICS] failed to emit %s: %v", e.Type, err)
	}
}

// EmitComplaintCreated records intake.
func (r *Recorder) EmitComplaintCreated(ctx context.Context, complaintID, citizenID int64) {
	r.emit(ctx, Event{
		Type:        EventComplaintCreated,
		ComplaintID: sql.NullInt64{Int64: complaintID, Valid: true},
		UserID:      sql.NullInt64{Int64: citizenID, Valid: true},
	})
}

// EmitFirstAuthorityAction records time-to-first-touch.
func (r *Recorder) EmitFirstAuthorityAction(ctx context.Context, complaintID, staffID int64, complaintCreatedAt time.Time) {
	r.emit(ctx, Event{
		Type:        EventFirstAuthorityAction,
		ComplaintID: sql.NullInt64{Int64: complaintID, Valid: true},
		UserID:      sql.NullInt64{Int64: staffID, Valid: true},
		DurationMS:  sql.NullInt64{Int64: time.Since(complaintCreatedAt).Milliseconds(), Valid: true},
	})
}

// EmitEscalationTriggered records an escalation event for pilot dashboards.
func (r *Recorder) EmitEscalationTriggered(ctx context.Context, complaintID int64, level int) {
	r.emit(ctx, Event{
		Type:        EventEscalationTriggered,
		ComplaintID: sql.NullInt64{Int64: complaintID, Valid: true},
		Metadata:    fmt.Sprintf(`{"escalation_level":%d}`, level),
	})
}

// EmitComplaintResolved records time-to-resolution.
func (r *Recorder) EmitComplaintResolved(ctx context.Context, complaintID int64, complaintCreatedAt time.Time, status string) {
	r.emit(ctx, Event{
		Type:        EventComplaintResolved,
		ComplaintID: sql.NullInt64{Int64: complaintID, Valid: true},
		DurationMS:  sql.NullInt64{Int64: time.Since(complaintCreatedAt).Milliseconds(), Valid: true},
		Metadata:    fmt.Sprintf(`{"status":%q}`, status),
	})
}

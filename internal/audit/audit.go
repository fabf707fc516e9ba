// Package audit records every material state change. Writes must go
// through WithTx so the audit row lands in the same transaction as the
// business mutation it documents: if the audit write fails, the mutation
// rolls back with it. There is deliberately no update or delete method
// here: audit rows are append-only.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/civictech/grievance-core/domain"
	"github.com/civictech/grievance-core/internal/repository"
)

// Recorder writes AuditLog entries and reads them back for compliance views.
type Recorder struct {
	repo *repository.AuditRepository
}

func NewRecorder(repo *repository.AuditRepository) *Recorder {
	return &Recorder{repo: repo}
}

// WithTx returns a Recorder bound to tx, for use inside one request's
// business transaction.
func (r *Recorder) WithTx(tx *sql.Tx) *Recorder {
	return &Recorder{repo: repository.NewAuditRepository(tx)}
}

func actorFields(caller domain.CallerContext) (domain.ActorType, sql.NullInt64) {
	if caller.IsSystem() {
		return domain.ActorTypeSystem, sql.NullInt64{}
	}
	return domain.ActorTypeUser, caller.UserID
}

// Record writes one audit entry attributed to caller.
func (r *Recorder) Record(ctx context.Context, entityType domain.EntityType, entityID int64, action domain.AuditAction, oldValue, newValue string, caller domain.CallerContext, reason string) (*domain.AuditLog, error) {
	actorType, actorID := actorFields(caller)
	entry := &domain.AuditLog{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		OldValue:   nullString(oldValue),
		NewValue:   nullString(newValue),
		ActorType:  actorType,
		ActorID:    actorID,
		Reason:     nullString(reason),
	}
	id, err := r.repo.Create(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("audit record failed for %s %d action %s: %w", entityType, entityID, action, err)
	}
	entry.ID = id
	return entry, nil
}

// RecordStateChange is the convenience variant for CSS transitions.
func (r *Recorder) RecordStateChange(ctx context.Context, complaintID int64, from, to domain.Status, caller domain.CallerContext, reason string) (*domain.AuditLog, error) {
	return r.Record(ctx, domain.EntityComplaint, complaintID, domain.ActionStateChange, string(from), string(to), caller, reason)
}

// RecordEscalation is the convenience variant for escalation level raises.
// Levels are written as their textual names ("L0"/"L1"/"L2") so the audit
// history reads without further decoding.
func (r *Recorder) RecordEscalation(ctx context.Context, complaintID int64, fromLevel, toLevel domain.EscalationLevel, caller domain.CallerContext, reason string) (*domain.AuditLog, error) {
	return r.Record(ctx, domain.EntityEscalation, complaintID, domain.ActionEscalation,
		fromLevel.String(), toLevel.String(), caller, reason)
}

// RecordAssignment is the convenience variant for staff reassignment.
func (r *Recorder) RecordAssignment(ctx context.Context, complaintID int64, oldAssignee, newAssignee sql.NullInt64, caller domain.CallerContext, reason string) (*domain.AuditLog, error) {
	return r.Record(ctx, domain.EntityComplaint, complaintID, domain.ActionAssignment,
		nullIntString(oldAssignee), nullIntString(newAssignee), caller, reason)
}

// History returns every audit entry for one entity, oldest first.
func (r *Recorder) History(ctx context.Context, entityType domain.EntityType, entityID int64) ([]*domain.AuditLog, error) {
	return r.repo.FindByEntity(ctx, entityType, entityID)
}

// ByActor returns every entry attributed to a given human actor.
func (r *Recorder) ByActor(ctx context.Context, actorID int64) ([]*domain.AuditLog, error) {
	return r.repo.FindByActor(ctx, actorID)
}

// ByAction returns every entry of a given action kind, oldest first.
func (r *Recorder) ByAction(ctx context.Context, action domain.AuditAction) ([]*domain.AuditLog, error) {
	return r.repo.FindByAction(ctx, action)
}

// ByActionWindow returns every entry of a given action kind within [from, to).
func (r *Recorder) ByActionWindow(ctx context.Context, action domain.AuditAction, from, to time.Time) ([]*domain.AuditLog, error) {
	return r.repo.FindByActionInWindow(ctx, action, from, to)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullIntString(v sql.NullInt64) string {
	if !v.Valid {
		return ""
	}
	return fmt.Sprintf("%d", v.Int64)
}

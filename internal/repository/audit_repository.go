package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/civictech/grievance-core/domain"
)

// AuditRepository is the append-only store for AuditLog rows. There is
// deliberately no Update or Delete method on this type: nothing in
// internal/audit is permitted to call one.
type AuditRepository struct {
	db Querier
}

func NewAuditRepository(db Querier) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, a *domain.AuditLog) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs
			(entity_type, entity_id, action, old_value, new_value,
			 actor_type, actor_id, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.EntityType, a.EntityID, a.Action, a.OldValue, a.NewValue,
		a.ActorType, a.ActorID, a.Reason,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create audit log entry: %w", err)
	}
	return result.LastInsertId()
}

func scanAuditLog(row interface{ Scan(...interface{}) error }) (*domain.AuditLog, error) {
	var a domain.AuditLog
	if err := row.Scan(&a.ID, &a.EntityType, &a.EntityID, &a.Action,
		&a.OldValue, &a.NewValue, &a.ActorType, &a.ActorID, &a.Reason, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

const auditColumns = `audit_id, entity_type, entity_id, action, old_value,
	new_value, actor_type, actor_id, reason, created_at`

// FindByEntity returns the full audit trail for one entity, oldest first.
func (r *AuditRepository) FindByEntity(ctx context.Context, entityType domain.EntityType, entityID int64) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+auditColumns+` FROM audit_logs WHERE entity_type = ? AND entity_id = ? ORDER BY created_at ASC`,
		entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs for %s %d: %w", entityType, entityID, err)
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		a, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// FindByAction returns every audit entry of a given action kind, oldest first.
func (r *AuditRepository) FindByAction(ctx context.Context, action domain.AuditAction) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+auditColumns+` FROM audit_logs WHERE action = ? ORDER BY created_at ASC`,
		action)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs by action: %w", err)
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		a, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// FindByActionInWindow supports compliance reporting: every audit entry of
// a given action kind within [from, to).
func (r *AuditRepository) FindByActionInWindow(ctx context.Context, action domain.AuditAction, from, to time.Time) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+auditColumns+` FROM audit_logs WHERE action = ? AND created_at >= ? AND created_at < ? ORDER BY created_at ASC`,
		action, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs by action window: %w", err)
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		a, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// FindByActor returns every audit entry attributed to a given human actor,
// for an accountability review.
func (r *AuditRepository) FindByActor(ctx context.Context, actorID int64) ([]*domain.AuditLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+auditColumns+` FROM audit_logs WHERE actor_type = 'USER' AND actor_id = ? ORDER BY created_at DESC`,
		actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs by actor %d: %w", actorID, err)
	}
	defer rows.Close()
	var out []*domain.AuditLog
	for rows.Next() {
		a, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

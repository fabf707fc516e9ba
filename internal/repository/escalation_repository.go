package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/civictech/grievance-core/domain"
	mysqldriver "github.com/go-sql-driver/mysql"
)

// EscalationRepository persists EscalationEvent rows. Per-level
// uniqueness is enforced by a database constraint (uq_complaint_level in
// schema.go); Create surfaces a duplicate as *domain.ConflictingUpdateError
// instead of a generic driver error, so internal/escalation can treat a
// lost idempotency race as a no-op rather than a failure.
type EscalationRepository struct {
	db Querier
}

func NewEscalationRepository(db Querier) *EscalationRepository {
	return &EscalationRepository{db: db}
}

// Create inserts an escalation event. Returns *domain.ConflictingUpdateError
// if (complaint_id, escalation_level) already exists.
func (r *EscalationRepository) Create(ctx context.Context, e *domain.EscalationEvent) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO escalation_events
			(complaint_id, previous_level, escalation_level, escalated_to_role,
			 reason, days_overdue, sla_deadline_snapshot, is_automated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ComplaintID, e.PreviousLevel, e.Level, e.EscalatedToRole,
		e.Reason, e.DaysOverdue, e.SLADeadlineSnapshot, e.IsAutomated,
	)
	if err != nil {
		var mysqlErr *mysqldriver.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return 0, &domain.ConflictingUpdateError{
				Detail: fmt.Sprintf("escalation event already recorded for complaint %d at level %d", e.ComplaintID, e.Level),
			}
		}
		return 0, fmt.Errorf("failed to create escalation event: %w", err)
	}
	return result.LastInsertId()
}

// ExistsFor reports whether an escalation event already exists for
// (complaintID, level), used for a pre-flight check before the insert
// attempt (belt-and-braces alongside the unique constraint).
func (r *EscalationRepository) ExistsFor(ctx context.Context, complaintID int64, level domain.EscalationLevel) (bool, error) {
	var n int
	row := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM escalation_events WHERE complaint_id = ? AND escalation_level = ?`,
		complaintID, level)
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check escalation existence: %w", err)
	}
	return n > 0, nil
}

// HistoryByComplaint returns every escalation event for a complaint, oldest first.
func (r *EscalationRepository) HistoryByComplaint(ctx context.Context, complaintID int64) ([]*domain.EscalationEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT event_id, complaint_id, previous_level, escalation_level,
			escalated_at, escalated_to_role, reason, days_overdue,
			sla_deadline_snapshot, is_automated
		FROM escalation_events WHERE complaint_id = ? ORDER BY escalated_at ASC`, complaintID)
	if err != nil {
		return nil, fmt.Errorf("failed to query escalation history: %w", err)
	}
	defer rows.Close()
	var out []*domain.EscalationEvent
	for rows.Next() {
		var e domain.EscalationEvent
		if err := rows.Scan(&e.ID, &e.ComplaintID, &e.PreviousLevel, &e.Level,
			&e.EscalatedAt, &e.EscalatedToRole, &e.Reason, &e.DaysOverdue,
			&e.SLADeadlineSnapshot, &e.IsAutomated); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

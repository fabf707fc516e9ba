package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/civictech/grievance-core/domain"
)

// ComplaintRepository is the data-access surface for the Complaint
// entity. It accepts a Querier so it can run inside a caller-managed
// transaction.
type ComplaintRepository struct {
	db Querier
}

func NewComplaintRepository(db Querier) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

func scanComplaint(row interface{ Scan(...interface{}) error }) (*domain.Complaint, error) {
	var c domain.Complaint
	if err := row.Scan(
		&c.ID, &c.Title, &c.Description, &c.Location, &c.CitizenID,
		&c.DepartmentID, &c.StaffID, &c.CategoryID, &c.Priority, &c.Status,
		&c.EscalationLevel, &c.SLADeadline, &c.CreatedAt, &c.StartedAt,
		&c.ResolvedAt, &c.ClosedAt, &c.NeedsManualRouting, &c.AIConfidence,
		&c.CitizenSatisfaction,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

const complaintColumns = `complaint_id, title, description, location, citizen_id,
	department_id, staff_id, category_id, priority, status,
	escalation_level, sla_deadline, created_at, started_at,
	resolved_at, closed_at, needs_manual_routing, ai_confidence,
	citizen_satisfaction`

// Create inserts a new complaint at intake.
func (r *ComplaintRepository) Create(ctx context.Context, c *domain.Complaint) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO complaints
			(title, description, location, citizen_id, department_id,
			 category_id, priority, status, sla_deadline,
			 needs_manual_routing, ai_confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Title, c.Description, c.Location, c.CitizenID, c.DepartmentID,
		c.CategoryID, c.Priority, c.Status, c.SLADeadline,
		c.NeedsManualRouting, c.AIConfidence,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create complaint: %w", err)
	}
	return result.LastInsertId()
}

// FindByID fetches a single complaint, wrapped in a *NotFoundError if absent.
func (r *ComplaintRepository) FindByID(ctx context.Context, id int64) (*domain.Complaint, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE complaint_id = ?`, id)
	c, err := scanComplaint(row)
	if err == sql.ErrNoRows {
		return nil, &domain.NotFoundError{Entity: "complaint", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find complaint %d: %w", id, err)
	}
	return c, nil
}

// FindByIDForUpdate locks the row for the duration of the enclosing
// transaction, closing the TOCTOU gap a plain read-then-write would leave
// between the guard check and the status write.
func (r *ComplaintRepository) FindByIDForUpdate(ctx context.Context, tx *sql.Tx, id int64) (*domain.Complaint, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE complaint_id = ? FOR UPDATE`, id)
	c, err := scanComplaint(row)
	if err == sql.ErrNoRows {
		return nil, &domain.NotFoundError{Entity: "complaint", ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock complaint %d: %w", id, err)
	}
	return c, nil
}

// UpdateStatus writes the complaint's status, routing, timestamp, and
// satisfaction fields in one statement, so the transaction carries a
// single mutation for this entity.
func (r *ComplaintRepository) UpdateStatus(ctx context.Context, c *domain.Complaint) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE complaints SET
			status = ?, staff_id = ?, department_id = ?, needs_manual_routing = ?,
			started_at = ?, resolved_at = ?, closed_at = ?,
			escalation_level = ?, citizen_satisfaction = ?
		WHERE complaint_id = ?`,
		c.Status, c.StaffID, c.DepartmentID, c.NeedsManualRouting, c.StartedAt, c.ResolvedAt,
		c.ClosedAt, c.EscalationLevel, c.CitizenSatisfaction, c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update complaint %d status: %w", c.ID, err)
	}
	return nil
}

// RaiseEscalationLevel only takes effect if the stored level is still
// lower than newLevel, so a race between two evaluators resolves to the
// higher level winning and never to silently downgrading.
func (r *ComplaintRepository) RaiseEscalationLevel(ctx context.Context, complaintID int64, newLevel domain.EscalationLevel) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE complaints SET escalation_level = ? WHERE complaint_id = ? AND escalation_level < ?`,
		newLevel, complaintID, newLevel)
	if err != nil {
		return false, fmt.Errorf("failed to raise escalation level for complaint %d: %w", complaintID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func queryComplaints(ctx context.Context, db Querier, query string, args ...interface{}) ([]*domain.Complaint, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query complaints: %w", err)
	}
	defer rows.Close()
	var out []*domain.Complaint
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FindActiveWithDeadline returns every complaint the escalation evaluator
// should consider: not terminal, with an SLA deadline set.
func (r *ComplaintRepository) FindActiveWithDeadline(ctx context.Context) ([]*domain.Complaint, error) {
	return queryComplaints(ctx, r.db, `SELECT `+complaintColumns+` FROM complaints
		WHERE status NOT IN ('CLOSED', 'CANCELLED') AND sla_deadline IS NOT NULL`)
}

// FindByCitizen lists a citizen's own complaints, newest first.
func (r *ComplaintRepository) FindByCitizen(ctx context.Context, citizenID int64) ([]*domain.Complaint, error) {
	return queryComplaints(ctx, r.db, `SELECT `+complaintColumns+` FROM complaints
		WHERE citizen_id = ? ORDER BY created_at DESC`, citizenID)
}

// FindByStaff lists complaints currently assigned to a staff member.
func (r *ComplaintRepository) FindByStaff(ctx context.Context, staffID int64) ([]*domain.Complaint, error) {
	return queryComplaints(ctx, r.db, `SELECT `+complaintColumns+` FROM complaints
		WHERE staff_id = ? ORDER BY created_at DESC`, staffID)
}

// FindByDepartment lists every complaint routed to a department.
func (r *ComplaintRepository) FindByDepartment(ctx context.Context, departmentID int64) ([]*domain.Complaint, error) {
	return queryComplaints(ctx, r.db, `SELECT `+complaintColumns+` FROM complaints
		WHERE department_id = ? ORDER BY created_at DESC`, departmentID)
}

// FindUnassignedActiveByDepartment supports the department head's work
// queue: complaints routed to the department but not yet picked up.
func (r *ComplaintRepository) FindUnassignedActiveByDepartment(ctx context.Context, departmentID int64) ([]*domain.Complaint, error) {
	return queryComplaints(ctx, r.db, `SELECT `+complaintColumns+` FROM complaints
		WHERE department_id = ? AND staff_id IS NULL
		AND status NOT IN ('CLOSED', 'CANCELLED') ORDER BY created_at ASC`, departmentID)
}

// FindEscalated lists every complaint currently above escalation level 0,
// for the commissioner/dept-head dashboards.
func (r *ComplaintRepository) FindEscalated(ctx context.Context) ([]*domain.Complaint, error) {
	return queryComplaints(ctx, r.db, `SELECT `+complaintColumns+` FROM complaints
		WHERE escalation_level > 0 ORDER BY escalation_level DESC, sla_deadline ASC`)
}

// CountByStatus returns the number of complaints in a status, optionally
// scoped to one department (departmentID = 0 means unscoped), for the
// pilot metrics and dashboard surfaces.
func (r *ComplaintRepository) CountByStatus(ctx context.Context, status domain.Status, departmentID int64) (int, error) {
	var row *sql.Row
	if departmentID > 0 {
		row = r.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM complaints WHERE status = ? AND department_id = ?`, status, departmentID)
	} else {
		row = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM complaints WHERE status = ?`, status)
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count complaints by status: %w", err)
	}
	return n, nil
}

// CategoryRepository resolves classification/SLA lookups used at intake.
type CategoryRepository struct {
	db Querier
}

func NewCategoryRepository(db Querier) *CategoryRepository {
	return &CategoryRepository{db: db}
}

func (r *CategoryRepository) FindSLARuleByCategory(ctx context.Context, categoryID int64) (*domain.SLARule, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT rule_id, category_id, sla_days, base_priority, department_id
		 FROM sla_rules WHERE category_id = ?`, categoryID)
	var s domain.SLARule
	if err := row.Scan(&s.ID, &s.CategoryID, &s.SLADays, &s.BasePriority, &s.DepartmentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, &domain.NotFoundError{Entity: "sla_rule for category", ID: categoryID}
		}
		return nil, fmt.Errorf("failed to find sla rule for category %d: %w", categoryID, err)
	}
	return &s, nil
}

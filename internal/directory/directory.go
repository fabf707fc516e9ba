// Package directory resolves department and officer lookups used by
// intake routing and by escalation recipient resolution.
package directory

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/civictech/grievance-core/domain"
)

// Department is a routing target: the administrative unit a complaint
// category is assigned to.
type Department struct {
	ID       int64
	Name     string
	IsActive bool
}

// Officer is a staff member who can be assigned complaints within a department.
type Officer struct {
	ID           int64
	DepartmentID int64
	Name         string
	Role         domain.Role
	IsActive     bool
}

// Directory resolves routing and escalation-recipient lookups against the
// departments/officers tables. The category-to-department mapping is
// data, not code: it lives in sla_rules.
type Directory struct {
	db *sql.DB
}

func New(db *sql.DB) *Directory {
	return &Directory{db: db}
}

// DepartmentForCategory resolves the routing target for a category,
// falling back to the default department when no mapping exists.
func (d *Directory) DepartmentForCategory(ctx context.Context, categoryID int64) (*Department, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT dep.department_id, dep.name, dep.is_active
		FROM sla_rules sr
		JOIN departments dep ON dep.department_id = sr.department_id
		WHERE sr.category_id = ?`, categoryID)
	var dep Department
	if err := row.Scan(&dep.ID, &dep.Name, &dep.IsActive); err != nil {
		if err == sql.ErrNoRows {
			return d.defaultDepartment(ctx)
		}
		return nil, fmt.Errorf("failed to resolve department for category %d: %w", categoryID, err)
	}
	return &dep, nil
}

func (d *Directory) defaultDepartment(ctx context.Context) (*Department, error) {
	row := d.db.QueryRowContext(ctx, `SELECT department_id, name, is_active FROM departments WHERE is_default = TRUE LIMIT 1`)
	var dep Department
	if err := row.Scan(&dep.ID, &dep.Name, &dep.IsActive); err != nil {
		return nil, fmt.Errorf("failed to resolve default department: %w", err)
	}
	return &dep, nil
}

// OfficerForDepartment returns the officer to recommend for first
// assignment within a department, least-loaded first.
func (d *Directory) OfficerForDepartment(ctx context.Context, departmentID int64) (*Officer, error) {
	row := d.db.QueryRowContext(ctx, `
		SELECT o.officer_id, o.department_id, o.name, o.role, o.is_active
		FROM officers o
		WHERE o.department_id = ? AND o.is_active = TRUE AND o.role = 'STAFF'
		ORDER BY (SELECT COUNT(*) FROM complaints c WHERE c.staff_id = o.officer_id
			AND c.status NOT IN ('CLOSED', 'CANCELLED')) ASC
		LIMIT 1`, departmentID)
	var o Officer
	if err := row.Scan(&o.ID, &o.DepartmentID, &o.Name, &o.Role, &o.IsActive); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find officer for department %d: %w", departmentID, err)
	}
	return &o, nil
}

// RecipientForEscalation resolves the officer who should be notified for
// a given escalation level: L1 goes to the department's head, L2 to a
// commissioner. A commissioner sits above the department hierarchy, so
// the L2 lookup is city-wide rather than scoped to the complaint's
// department.
func (d *Directory) RecipientForEscalation(ctx context.Context, departmentID int64, level domain.EscalationLevel) (*Officer, error) {
	role := domain.RoleForLevel(level)
	query := `
		SELECT o.officer_id, o.department_id, o.name, o.role, o.is_active
		FROM officers o
		WHERE o.department_id = ? AND o.is_active = TRUE AND o.role = ?
		LIMIT 1`
	args := []interface{}{departmentID, role}
	if level == domain.EscalationL2 {
		query = `
		SELECT o.officer_id, o.department_id, o.name, o.role, o.is_active
		FROM officers o
		WHERE o.is_active = TRUE AND o.role = ?
		LIMIT 1`
		args = []interface{}{role}
	}
	row := d.db.QueryRowContext(ctx, query, args...)
	var o Officer
	if err := row.Scan(&o.ID, &o.DepartmentID, &o.Name, &o.Role, &o.IsActive); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to resolve %s recipient for department %d: %w", role, departmentID, err)
	}
	return &o, nil
}

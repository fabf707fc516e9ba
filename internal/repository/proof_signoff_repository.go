package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/civictech/grievance-core/domain"
	mysqldriver "github.com/go-sql-driver/mysql"
)

// ResolutionProofRepository persists staff's proof-of-work rows.
type ResolutionProofRepository struct {
	db Querier
}

func NewResolutionProofRepository(db Querier) *ResolutionProofRepository {
	return &ResolutionProofRepository{db: db}
}

func (r *ResolutionProofRepository) Create(ctx context.Context, p *domain.ResolutionProof) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO resolution_proofs
			(complaint_id, staff_id, image_reference, latitude, longitude,
			 captured_at, remarks)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ComplaintID, p.StaffID, p.ImageReference, p.Latitude, p.Longitude,
		p.CapturedAt, p.Remarks,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create resolution proof: %w", err)
	}
	return result.LastInsertId()
}

// ExistsFor backs the resolution guard: IN_PROGRESS->RESOLVED requires at
// least one proof row on file.
func (r *ResolutionProofRepository) ExistsFor(ctx context.Context, complaintID int64) (bool, error) {
	var n int
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM resolution_proofs WHERE complaint_id = ?`, complaintID)
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check resolution proof existence: %w", err)
	}
	return n > 0, nil
}

func (r *ResolutionProofRepository) ListByComplaint(ctx context.Context, complaintID int64) ([]*domain.ResolutionProof, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT proof_id, complaint_id, staff_id, image_reference, latitude,
			longitude, captured_at, remarks, is_verified, created_at
		FROM resolution_proofs WHERE complaint_id = ? ORDER BY created_at ASC`, complaintID)
	if err != nil {
		return nil, fmt.Errorf("failed to list resolution proofs: %w", err)
	}
	defer rows.Close()
	var out []*domain.ResolutionProof
	for rows.Next() {
		var p domain.ResolutionProof
		if err := rows.Scan(&p.ID, &p.ComplaintID, &p.StaffID, &p.ImageReference,
			&p.Latitude, &p.Longitude, &p.CapturedAt, &p.Remarks, &p.IsVerified, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// CitizenSignoffRepository persists citizen accept/dispute rows.
type CitizenSignoffRepository struct {
	db Querier
}

func NewCitizenSignoffRepository(db Querier) *CitizenSignoffRepository {
	return &CitizenSignoffRepository{db: db}
}

// Create inserts a signoff. A dispute insert that races another pending
// dispute for the same complaint hits uq_pending_dispute and is surfaced
// as *domain.DuplicateDisputeError.
func (r *CitizenSignoffRepository) Create(ctx context.Context, s *domain.CitizenSignoff) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO citizen_signoffs
			(complaint_id, citizen_id, is_accepted, rating, feedback,
			 dispute_reason, dispute_image_reference)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ComplaintID, s.CitizenID, s.IsAccepted, s.Rating, s.Feedback,
		s.DisputeReason, s.DisputeImageReference,
	)
	if err != nil {
		var mysqlErr *mysqldriver.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return 0, &domain.DuplicateDisputeError{ComplaintID: s.ComplaintID}
		}
		return 0, fmt.Errorf("failed to create citizen signoff: %w", err)
	}
	return result.LastInsertId()
}

func scanSignoff(row interface{ Scan(...interface{}) error }) (*domain.CitizenSignoff, error) {
	var s domain.CitizenSignoff
	if err := row.Scan(
		&s.ID, &s.ComplaintID, &s.CitizenID, &s.IsAccepted, &s.Rating,
		&s.Feedback, &s.DisputeReason, &s.DisputeImageReference, &s.SignedOffAt,
		&s.DisputeApproved, &s.DisputeApprovedBy, &s.DisputeReviewedAt,
		&s.DisputeRejectionReason,
	); err != nil {
		return nil, err
	}
	return &s, nil
}

const signoffColumns = `signoff_id, complaint_id, citizen_id, is_accepted, rating,
	feedback, dispute_reason, dispute_image_reference, signed_off_at,
	dispute_approved, dispute_approved_by, dispute_reviewed_at,
	dispute_rejection_reason`

// ExistsAcceptedFor backs the closure guard: RESOLVED->CLOSED by a human
// requires an accepted signoff on file.
func (r *CitizenSignoffRepository) ExistsAcceptedFor(ctx context.Context, complaintID int64) (bool, error) {
	var n int
	row := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM citizen_signoffs WHERE complaint_id = ? AND is_accepted = TRUE`, complaintID)
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check accepted signoff existence: %w", err)
	}
	return n > 0, nil
}

// FindPendingDispute returns the in-flight dispute for a complaint, if any.
func (r *CitizenSignoffRepository) FindPendingDispute(ctx context.Context, complaintID int64) (*domain.CitizenSignoff, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+signoffColumns+` FROM citizen_signoffs
		WHERE complaint_id = ? AND is_accepted = FALSE AND dispute_approved IS NULL`, complaintID)
	s, err := scanSignoff(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find pending dispute for complaint %d: %w", complaintID, err)
	}
	return s, nil
}

// ExistsRecentlyApproved reports whether a complaint has a dispute whose
// review just approved it for reopening (dispute_approved = true). Used by
// the guard for RESOLVED->IN_PROGRESS: by the time this runs, ReviewDispute
// has already flipped the row's dispute_approved from null to true, so it
// is no longer "pending" in the is_pending_dispute sense; this check
// looks at the outcome of the review rather than its pendency. resolvedAt
// scopes the check to the current resolution cycle: a complaint that was
// disputed, reopened, and resolved again must not reopen on the stale
// prior approval, so only reviews after the current resolution count.
func (r *CitizenSignoffRepository) ExistsRecentlyApproved(ctx context.Context, complaintID int64, resolvedAt time.Time) (bool, error) {
	var n int
	row := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM citizen_signoffs
		 WHERE complaint_id = ? AND dispute_approved = TRUE AND dispute_reviewed_at > ?`,
		complaintID, resolvedAt)
	if err := row.Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check approved dispute existence: %w", err)
	}
	return n > 0, nil
}

// FindPendingDisputesByDepartment lists every dispute a department head
// must triage, for the dispute-review queue.
func (r *CitizenSignoffRepository) FindPendingDisputesByDepartment(ctx context.Context, departmentID int64) ([]*domain.CitizenSignoff, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.signoff_id, s.complaint_id, s.citizen_id, s.is_accepted, s.rating,
			s.feedback, s.dispute_reason, s.dispute_image_reference, s.signed_off_at,
			s.dispute_approved, s.dispute_approved_by, s.dispute_reviewed_at,
			s.dispute_rejection_reason
		FROM citizen_signoffs s
		JOIN complaints c ON c.complaint_id = s.complaint_id
		WHERE c.department_id = ? AND s.is_accepted = FALSE AND s.dispute_approved IS NULL
		ORDER BY s.signed_off_at ASC`, departmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending disputes for department %d: %w", departmentID, err)
	}
	defer rows.Close()
	var out []*domain.CitizenSignoff
	for rows.Next() {
		s, err := scanSignoff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ResolveDispute records the department head's accept/reject decision.
func (r *CitizenSignoffRepository) ResolveDispute(ctx context.Context, signoffID int64, approved bool, reviewerID int64, rejectionReason sql.NullString) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE citizen_signoffs SET
			dispute_approved = ?, dispute_approved_by = ?,
			dispute_reviewed_at = NOW(), dispute_rejection_reason = ?
		WHERE signoff_id = ?`,
		approved, reviewerID, rejectionReason, signoffID,
	)
	if err != nil {
		return fmt.Errorf("failed to resolve dispute %d: %w", signoffID, err)
	}
	return nil
}

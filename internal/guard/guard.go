// Package guard holds the transition preconditions the state machine
// doesn't encode: proof-of-work before resolution, citizen signoff before
// closure, ownership on cancellation, an approved dispute before a reopen.
// The evaluator is read-only: nothing here writes to the database.
package guard

import (
	"context"
	"database/sql"

	"github.com/civictech/grievance-core/domain"
	"github.com/civictech/grievance-core/internal/repository"
)

// Evaluator runs the preconditions for a single transition. It carries no
// state: every check opens its repository against the in-flight
// transaction it's handed.
type Evaluator struct{}

func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Check runs every precondition that applies to from->to for caller against
// complaint, returning the first typed error encountered, or nil if the
// transition may proceed. Besides the repository-backed checks (proof,
// signoff, approved dispute), it also enforces the department match for
// staff and department heads resolving a complaint and the citizen's
// ownership on cancellation.
func (e *Evaluator) Check(ctx context.Context, tx *sql.Tx, complaint *domain.Complaint, to domain.Status, caller domain.CallerContext) error {
	from := complaint.Status

	if from == domain.StatusInProgress && to == domain.StatusResolved {
		ok, err := e.proofsTx(tx).ExistsFor(ctx, complaint.ID)
		if err != nil {
			return &domain.TransientIOError{Op: "check resolution proof", Err: err}
		}
		if !ok {
			return &domain.ResolutionProofRequiredError{ComplaintID: complaint.ID}
		}
		if caller.Role == domain.RoleStaff || caller.Role == domain.RoleDeptHead {
			if !caller.DepartmentID.Valid || !complaint.DepartmentID.Valid ||
				caller.DepartmentID.Int64 != complaint.DepartmentID.Int64 {
				return &domain.DepartmentMismatchError{
					ComplaintID:     complaint.ID,
					CallerDeptID:    caller.DepartmentID.Int64,
					ComplaintDeptID: complaint.DepartmentID.Int64,
				}
			}
		}
		return nil
	}

	if from == domain.StatusResolved && to == domain.StatusClosed {
		if caller.Role == domain.RoleSystem {
			return nil
		}
		ok, err := e.signoffsTx(tx).ExistsAcceptedFor(ctx, complaint.ID)
		if err != nil {
			return &domain.TransientIOError{Op: "check citizen signoff", Err: err}
		}
		if !ok {
			return &domain.SignoffRequiredError{ComplaintID: complaint.ID}
		}
		return nil
	}

	if to == domain.StatusCancelled && caller.Role == domain.RoleCitizen {
		if !caller.UserID.Valid || caller.UserID.Int64 != complaint.CitizenID {
			return &domain.OwnershipViolationError{ComplaintID: complaint.ID, CallerID: caller.UserID.Int64}
		}
		return nil
	}

	if from == domain.StatusResolved && to == domain.StatusInProgress {
		// Only an approval reviewed after the current resolution counts;
		// a stale approval from a prior dispute cycle must not reopen a
		// complaint that has since been resolved again.
		approved, err := e.signoffsTx(tx).ExistsRecentlyApproved(ctx, complaint.ID, complaint.ResolvedAt.Time)
		if err != nil {
			return &domain.TransientIOError{Op: "check approved dispute", Err: err}
		}
		if !approved {
			return &domain.InvalidTransitionError{From: from, To: to}
		}
		return nil
	}

	return nil
}

// proofsTx/signoffsTx rebind the evaluator's repositories onto the
// in-flight transaction so every guard read participates in the same
// transaction the business mutation commits in.
func (e *Evaluator) proofsTx(tx *sql.Tx) *repository.ResolutionProofRepository {
	return repository.NewResolutionProofRepository(tx)
}

func (e *Evaluator) signoffsTx(tx *sql.Tx) *repository.CitizenSignoffRepository {
	return repository.NewCitizenSignoffRepository(tx)
}

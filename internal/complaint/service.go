// Package complaint is the primary API surface for complaint state
// changes: intake, transitions, resolution proof, and signoff acceptance.
// Every mutation follows the same sequence (load and lock, validate
// transition, validate role, guard, mutate, persist, audit, commit,
// notify) with the audit write inside the transaction and notifications
// after it.
package complaint

import (
	"context"
	"database/sql"
	"time"

	"github.com/civictech/grievance-core/domain"
	"github.com/civictech/grievance-core/internal/audit"
	"github.com/civictech/grievance-core/internal/guard"
	"github.com/civictech/grievance-core/internal/notify"
	"github.com/civictech/grievance-core/internal/repository"
	"github.com/civictech/grievance-core/internal/statemachine"
)

// TransitionResult is the updated complaint plus whether this call was a
// no-op (from == target).
type TransitionResult struct {
	Complaint *domain.Complaint
	NoOp      bool
}

// Service handles complaint state changes. ownershipChecked and
// departmentChecked encode which transitions need an ownership check and
// which need a department check.
type Service struct {
	db       *sql.DB
	guard    *guard.Evaluator
	recorder *audit.Recorder
	notifier *notify.Dispatcher
}

func NewService(db *sql.DB, guardEvaluator *guard.Evaluator, recorder *audit.Recorder, notifier *notify.Dispatcher) *Service {
	return &Service{db: db, guard: guardEvaluator, recorder: recorder, notifier: notifier}
}

// ownershipChecked transitions are the CITIZEN-initiated cancel/close
// paths, where the caller must own the complaint.
func ownershipChecked(to domain.Status) bool {
	return to == domain.StatusCancelled || to == domain.StatusClosed
}

// departmentChecked transitions are staff-side operational transitions,
// where the caller's department must match the complaint's. Ownership and
// department checks never both apply to the same transition in this
// lifecycle.
func departmentChecked(from, to domain.Status, role domain.Role) bool {
	return from == domain.StatusInProgress && to == domain.StatusResolved &&
		(role == domain.RoleStaff || role == domain.RoleDeptHead)
}

// Transition moves a complaint to target on behalf of caller, enforcing
// the state machine, RBAC, and the transition's guards.
func (s *Service) Transition(ctx context.Context, complaintID int64, target domain.Status, caller domain.CallerContext, reason string) (*TransitionResult, error) {
	var result *TransitionResult

	err := repository.TxRunner(ctx, s.db, func(tx *sql.Tx) error {
		complaints := repository.NewComplaintRepository(tx)

		c, err := complaints.FindByIDForUpdate(ctx, tx, complaintID)
		if err != nil {
			return err
		}

		from := c.Status
		if from == target {
			result = &TransitionResult{Complaint: c, NoOp: true}
			return nil
		}

		if !statemachine.IsLegal(from, target) {
			return &domain.InvalidTransitionError{From: from, To: target, LegalTargets: statemachine.AllowedTargets(from)}
		}

		if !statemachine.RoleAllowed(from, target, caller.Role) {
			return &domain.UnauthorizedError{Role: caller.Role, AllowedRoles: statemachine.AllowedRoles(from, target), From: from, To: target}
		}

		if caller.Role == domain.RoleCitizen && ownershipChecked(target) {
			if !caller.UserID.Valid || caller.UserID.Int64 != c.CitizenID {
				return &domain.OwnershipViolationError{ComplaintID: c.ID, CallerID: caller.UserID.Int64}
			}
		}

		if departmentChecked(from, target, caller.Role) {
			if !caller.DepartmentID.Valid || !c.DepartmentID.Valid || caller.DepartmentID.Int64 != c.DepartmentID.Int64 {
				return &domain.DepartmentMismatchError{ComplaintID: c.ID, CallerDeptID: caller.DepartmentID.Int64, ComplaintDeptID: c.DepartmentID.Int64}
			}
		}

		if err := s.guard.Check(ctx, tx, c, target, caller); err != nil {
			return err
		}

		now := time.Now()
		c.Status = target
		switch target {
		case domain.StatusResolved:
			c.ResolvedAt = sql.NullTime{Time: now, Valid: true}
		case domain.StatusClosed:
			c.ClosedAt = sql.NullTime{Time: now, Valid: true}
		}

		if err := complaints.UpdateStatus(ctx, c); err != nil {
			return err
		}

		if _, err := s.recorder.WithTx(tx).RecordStateChange(ctx, c.ID, from, target, caller, reason); err != nil {
			return err
		}

		result = &TransitionResult{Complaint: c, NoOp: false}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.NoOp {
		s.notifyAfterCommit(ctx, result.Complaint, target)
	}
	return result, nil
}

func (s *Service) notifyAfterCommit(ctx context.Context, c *domain.Complaint, target domain.Status) {
	complaintRef := sql.NullInt64{Int64: c.ID, Valid: true}

	_, _ = s.notifier.Send(ctx, c.CitizenID, domain.NotifyStatusChanged,
		"Your complaint status changed", "Complaint is now "+string(target), complaintRef, sql.NullString{})

	switch target {
	case domain.StatusResolved:
		_, _ = s.notifier.Send(ctx, c.CitizenID, domain.NotifyResolved,
			"Your complaint was resolved", "Please review the resolution", complaintRef, sql.NullString{})
		_, _ = s.notifier.Send(ctx, c.CitizenID, domain.NotifyRatingRequest,
			"Rate your resolution", "Let us know how we did", complaintRef, sql.NullString{})
	case domain.StatusClosed:
		_, _ = s.notifier.Send(ctx, c.CitizenID, domain.NotifyClosed,
			"Your complaint was closed", "This complaint is now closed", complaintRef, sql.NullString{})
	}
}

// AllowedTransitions returns the targets a role may reach from a status,
// for UI affordance (which action buttons a caller may see).
func (s *Service) AllowedTransitions(from domain.Status, role domain.Role) []domain.Status {
	return statemachine.AllowedTransitionsForRole(from, role)
}

// SubmitResolutionProof records staff's proof of work. The submitting
// staff member must belong to the complaint's department; the proof row
// and its audit entry commit together.
func (s *Service) SubmitResolutionProof(ctx context.Context, complaintID int64, staff domain.CallerContext, imageRef string, lat, lon float64, remarks string) (*domain.ResolutionProof, error) {
	var created *domain.ResolutionProof
	err := repository.TxRunner(ctx, s.db, func(tx *sql.Tx) error {
		complaints := repository.NewComplaintRepository(tx)
		c, err := complaints.FindByIDForUpdate(ctx, tx, complaintID)
		if err != nil {
			return err
		}
		if !staff.DepartmentID.Valid || !c.DepartmentID.Valid || staff.DepartmentID.Int64 != c.DepartmentID.Int64 {
			return &domain.DepartmentMismatchError{ComplaintID: c.ID, CallerDeptID: staff.DepartmentID.Int64, ComplaintDeptID: c.DepartmentID.Int64}
		}

		proof := &domain.ResolutionProof{
			ComplaintID:    complaintID,
			StaffID:        staff.UserID.Int64,
			ImageReference: imageRef,
			Latitude:       lat,
			Longitude:      lon,
			CapturedAt:     time.Now(),
			Remarks:        remarks,
		}
		id, err := repository.NewResolutionProofRepository(tx).Create(ctx, proof)
		if err != nil {
			return err
		}
		proof.ID = id

		if _, err := s.recorder.WithTx(tx).Record(ctx, domain.EntityComplaint, complaintID, domain.ActionCreate,
			"", imageRef, staff, "resolution proof submitted"); err != nil {
			return err
		}

		created = proof
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// AcceptSignoff records the citizen accepting a RESOLVED complaint's
// resolution, with a 1-5 rating copied onto the complaint as its
// satisfaction score. The reject branch is
// internal/dispute.Service.FileDispute.
func (s *Service) AcceptSignoff(ctx context.Context, complaintID int64, citizen domain.CallerContext, rating int, feedback string) (*domain.CitizenSignoff, error) {
	if rating < 1 || rating > 5 {
		return nil, &domain.InvalidDisputeStateError{ComplaintID: complaintID, Reason: "rating must be between 1 and 5 on an accepted signoff"}
	}

	var created *domain.CitizenSignoff
	err := repository.TxRunner(ctx, s.db, func(tx *sql.Tx) error {
		complaints := repository.NewComplaintRepository(tx)
		c, err := complaints.FindByIDForUpdate(ctx, tx, complaintID)
		if err != nil {
			return err
		}
		if c.Status != domain.StatusResolved {
			return &domain.InvalidDisputeStateError{ComplaintID: complaintID, Reason: "complaint is not RESOLVED"}
		}
		if !citizen.UserID.Valid || citizen.UserID.Int64 != c.CitizenID {
			return &domain.OwnershipViolationError{ComplaintID: complaintID, CallerID: citizen.UserID.Int64}
		}

		signoff := &domain.CitizenSignoff{
			ComplaintID: complaintID,
			CitizenID:   c.CitizenID,
			IsAccepted:  true,
			Rating:      sql.NullInt64{Int64: int64(rating), Valid: true},
			Feedback:    sql.NullString{String: feedback, Valid: feedback != ""},
			SignedOffAt: time.Now(),
		}
		id, err := repository.NewCitizenSignoffRepository(tx).Create(ctx, signoff)
		if err != nil {
			return err
		}
		signoff.ID = id

		c.CitizenSatisfaction = sql.NullInt64{Int64: int64(rating), Valid: true}
		if err := complaints.UpdateStatus(ctx, c); err != nil {
			return err
		}

		if _, err := s.recorder.WithTx(tx).Record(ctx, domain.EntityComplaint, complaintID, domain.ActionAccept,
			"RESOLVED", "ACCEPTED", citizen, feedback); err != nil {
			return err
		}

		created = signoff
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

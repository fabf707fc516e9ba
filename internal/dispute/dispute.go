// Package dispute handles citizen rejection of a resolution and the
// department head's review of that rejection. An approved review reopens
// the complaint through the complaint service, the only path from
// RESOLVED back to IN_PROGRESS.
package dispute

import (
	"context"
	"database/sql"
	"time"

	"github.com/civictech/grievance-core/domain"
	"github.com/civictech/grievance-core/internal/audit"
	"github.com/civictech/grievance-core/internal/complaint"
	"github.com/civictech/grievance-core/internal/directory"
	"github.com/civictech/grievance-core/internal/notify"
	"github.com/civictech/grievance-core/internal/repository"
)

// Service implements dispute filing and review.
type Service struct {
	db        *sql.DB
	recorder  *audit.Recorder
	notifier  *notify.Dispatcher
	complaint *complaint.Service
}

func NewService(db *sql.DB, recorder *audit.Recorder, notifier *notify.Dispatcher, complaintService *complaint.Service) *Service {
	return &Service{db: db, recorder: recorder, notifier: notifier, complaint: complaintService}
}

// FileDispute records the citizen rejecting a RESOLVED complaint's
// resolution. The complaint stays RESOLVED until the dispute is reviewed;
// only one dispute may be pending per complaint at a time.
func (s *Service) FileDispute(ctx context.Context, complaintID int64, caller domain.CallerContext, reason string, evidenceImageRef sql.NullString) (*domain.CitizenSignoff, error) {
	var created *domain.CitizenSignoff
	var assignedStaff sql.NullInt64
	var departmentID sql.NullInt64

	err := repository.TxRunner(ctx, s.db, func(tx *sql.Tx) error {
		complaints := repository.NewComplaintRepository(tx)
		signoffs := repository.NewCitizenSignoffRepository(tx)

		c, err := complaints.FindByIDForUpdate(ctx, tx, complaintID)
		if err != nil {
			return err
		}
		if c.Status != domain.StatusResolved {
			return &domain.InvalidDisputeStateError{ComplaintID: complaintID, Reason: "complaint is not RESOLVED"}
		}
		if !caller.UserID.Valid || caller.UserID.Int64 != c.CitizenID {
			return &domain.OwnershipViolationError{ComplaintID: complaintID, CallerID: caller.UserID.Int64}
		}

		pending, err := signoffs.FindPendingDispute(ctx, complaintID)
		if err != nil {
			return err
		}
		if pending != nil {
			return &domain.DuplicateDisputeError{ComplaintID: complaintID}
		}

		signoff := &domain.CitizenSignoff{
			ComplaintID:           complaintID,
			CitizenID:             c.CitizenID,
			IsAccepted:            false,
			DisputeReason:         sql.NullString{String: reason, Valid: true},
			DisputeImageReference: evidenceImageRef,
			SignedOffAt:           time.Now(),
		}
		id, err := signoffs.Create(ctx, signoff)
		if err != nil {
			return err
		}
		signoff.ID = id

		if _, err := s.recorder.WithTx(tx).Record(ctx, domain.EntityComplaint, complaintID, domain.ActionDispute,
			"RESOLVED", "DISPUTED", caller, reason); err != nil {
			return err
		}

		created = signoff
		assignedStaff = c.StaffID
		departmentID = c.DepartmentID
		return nil
	})
	if err != nil {
		return nil, err
	}

	complaintRef := sql.NullInt64{Int64: complaintID, Valid: true}
	if assignedStaff.Valid {
		_, _ = s.notifier.Send(ctx, assignedStaff.Int64, domain.NotifyDisputeResolved,
			"Resolution disputed", reason, complaintRef, sql.NullString{})
	}
	if departmentID.Valid {
		head, err := directory.New(s.db).RecipientForEscalation(ctx, departmentID.Int64, domain.EscalationL1)
		if err == nil && head != nil {
			_, _ = s.notifier.Send(ctx, head.ID, domain.NotifyDisputeReceived,
				"New dispute filed", reason, complaintRef, sql.NullString{})
		}
	}
	return created, nil
}

// ReviewDispute records the department head's verdict on a pending
// dispute. Approval reopens the complaint; rejection leaves it RESOLVED
// and tells the citizen why.
func (s *Service) ReviewDispute(ctx context.Context, signoffID int64, deptHead domain.CallerContext, approved bool, rejectionReason sql.NullString) error {
	var complaintID int64
	var citizenID int64
	var staffID sql.NullInt64

	err := repository.TxRunner(ctx, s.db, func(tx *sql.Tx) error {
		signoffs := repository.NewCitizenSignoffRepository(tx)
		complaints := repository.NewComplaintRepository(tx)

		// Resolve the signoff to its complaint, then confirm it is the
		// complaint's pending dispute.
		row := tx.QueryRowContext(ctx, `SELECT complaint_id FROM citizen_signoffs WHERE signoff_id = ?`, signoffID)
		if err := row.Scan(&complaintID); err != nil {
			if err == sql.ErrNoRows {
				return &domain.NotFoundError{Entity: "citizen_signoff", ID: signoffID}
			}
			return err
		}

		pending, err := signoffs.FindPendingDispute(ctx, complaintID)
		if err != nil {
			return err
		}
		if pending == nil || pending.ID != signoffID {
			return &domain.InvalidDisputeStateError{ComplaintID: complaintID, Reason: "signoff is not a pending dispute"}
		}

		c, err := complaints.FindByIDForUpdate(ctx, tx, complaintID)
		if err != nil {
			return err
		}
		if !deptHead.DepartmentID.Valid || !c.DepartmentID.Valid || deptHead.DepartmentID.Int64 != c.DepartmentID.Int64 {
			return &domain.DepartmentMismatchError{ComplaintID: complaintID, CallerDeptID: deptHead.DepartmentID.Int64, ComplaintDeptID: c.DepartmentID.Int64}
		}

		if err := signoffs.ResolveDispute(ctx, signoffID, approved, deptHead.UserID.Int64, rejectionReason); err != nil {
			return err
		}

		action := "rejected"
		if approved {
			action = "approved"
		}
		if _, err := s.recorder.WithTx(tx).Record(ctx, domain.EntityComplaint, complaintID, domain.ActionDispute,
			"PENDING", action, deptHead, rejectionReason.String); err != nil {
			return err
		}

		citizenID = c.CitizenID
		staffID = c.StaffID
		return nil
	})
	if err != nil {
		return err
	}

	complaintRef := sql.NullInt64{Int64: complaintID, Valid: true}
	if approved {
		if _, err := s.complaint.Transition(ctx, complaintID, domain.StatusInProgress,
			domain.CallerContext{Role: domain.RoleSystem}, "dispute approved"); err != nil {
			return err
		}
		_, _ = s.notifier.Send(ctx, citizenID, domain.NotifyDisputeApproved,
			"Your dispute was approved", "The complaint has been reopened", complaintRef, sql.NullString{})
		if staffID.Valid {
			_, _ = s.notifier.Send(ctx, staffID.Int64, domain.NotifyComplaintReopened,
				"Complaint reopened", "A disputed resolution was reopened", complaintRef, sql.NullString{})
		}
		return nil
	}

	_, _ = s.notifier.Send(ctx, citizenID, domain.NotifyDisputeRejected,
		"Your dispute was rejected", rejectionReason.String, complaintRef, sql.NullString{})
	return nil
}

package complaint

import (
	"context"
	"database/sql"
	"time"

	"github.com/civictech/grievance-core/domain"
	"github.com/civictech/grievance-core/internal/evidence"
	"github.com/civictech/grievance-core/internal/repository"
)

// RoutingConfidenceThreshold is the classifier-confidence floor File
// applies; below this, a complaint is held in FILED pending manual
// department assignment instead of being auto-routed. File always uses
// this constant; config.RoutingConfig.ConfidenceThreshold is not read.
const RoutingConfidenceThreshold = 0.7

// FileRequest is the caller-supplied content of a new complaint.
type FileRequest struct {
	Title       string
	Description string
	Location    string
	CitizenID   int64
	CategoryID  sql.NullInt64

	// AIConfidence is the classifier's confidence in CategoryID, used to
	// decide whether routing can proceed automatically.
	AIConfidence float64

	// EvidenceImage is optional citizen-submitted evidence captured at
	// filing time, distinct from staff's ResolutionProof at resolution
	// time. Nil EvidenceImage means no evidence was attached.
	EvidenceImage    []byte
	EvidenceFileName string
	EvidenceLat      float64
	EvidenceLon      float64
}

// File creates a new complaint. It always starts in FILED. If category
// routing succeeds and AIConfidence meets the threshold, routing fields
// are set and the complaint is transitioned FILED -> IN_PROGRESS by
// SYSTEM in the same call; otherwise it is flagged needs_manual_routing
// and left in FILED with no department until an admin assigns one.
func (s *Service) File(ctx context.Context, req FileRequest, categories *repository.CategoryRepository) (*domain.Complaint, error) {
	c := &domain.Complaint{
		Title:        req.Title,
		Description:  req.Description,
		Location:     req.Location,
		CitizenID:    req.CitizenID,
		CategoryID:   req.CategoryID,
		Priority:     domain.PriorityMedium,
		Status:       domain.StatusFiled,
		AIConfidence: req.AIConfidence,
	}

	var rule *domain.SLARule
	if req.CategoryID.Valid {
		r, err := categories.FindSLARuleByCategory(ctx, req.CategoryID.Int64)
		if err == nil {
			rule = r
		}
	}

	routable := rule != nil && req.AIConfidence >= RoutingConfidenceThreshold
	if routable {
		c.DepartmentID = sql.NullInt64{Int64: rule.DepartmentID, Valid: true}
		c.Priority = rule.BasePriority
		c.SLADeadline = sql.NullTime{
			Time:  time.Now().Add(time.Duration(rule.SLADays) * 24 * time.Hour),
			Valid: true,
		}
	} else {
		c.NeedsManualRouting = true
	}

	var created *domain.Complaint
	err := repository.TxRunner(ctx, s.db, func(tx *sql.Tx) error {
		complaints := repository.NewComplaintRepository(tx)
		id, err := complaints.Create(ctx, c)
		if err != nil {
			return err
		}
		c.ID = id

		if _, err := s.recorder.WithTx(tx).Record(ctx, domain.EntityComplaint, c.ID, domain.ActionCreate,
			"", string(domain.StatusFiled), domain.CallerContext{Role: domain.RoleSystem}, "complaint filed"); err != nil {
			return err
		}

		if len(req.EvidenceImage) > 0 {
			capturedAt := time.Now()
			attachment := &domain.Attachment{
				ComplaintID:  c.ID,
				FileName:     req.EvidenceFileName,
				FilePath:     req.EvidenceFileName,
				EvidenceHash: evidence.Hash(req.EvidenceImage, req.EvidenceLat, req.EvidenceLon, capturedAt),
				Latitude:     sql.NullFloat64{Float64: req.EvidenceLat, Valid: true},
				Longitude:    sql.NullFloat64{Float64: req.EvidenceLon, Valid: true},
				CapturedAt:   sql.NullTime{Time: capturedAt, Valid: true},
				UploadedBy:   req.CitizenID,
			}
			if _, err := repository.NewAttachmentRepository(tx).Create(ctx, attachment); err != nil {
				return err
			}
		}

		if routable {
			c.StartedAt = sql.NullTime{Time: time.Now(), Valid: true}
			c.Status = domain.StatusInProgress
			if err := complaints.UpdateStatus(ctx, c); err != nil {
				return err
			}
			if _, err := s.recorder.WithTx(tx).RecordStateChange(ctx, c.ID, domain.StatusFiled, domain.StatusInProgress,
				domain.CallerContext{Role: domain.RoleSystem}, "automated routing"); err != nil {
				return err
			}
		}

		created = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	_, _ = s.notifier.Send(ctx, created.CitizenID, domain.NotifyStatusChanged,
		"Complaint filed", "We've received your complaint", sql.NullInt64{Int64: created.ID, Valid: true}, sql.NullString{})
	return created, nil
}

// AssignDepartment lets an admin manually route a FILED complaint that was
// held for needs_manual_routing, then performs the SYSTEM-driven
// FILED -> IN_PROGRESS transition.
func (s *Service) AssignDepartment(ctx context.Context, complaintID, departmentID int64, caller domain.CallerContext) (*domain.Complaint, error) {
	var updated *domain.Complaint
	err := repository.TxRunner(ctx, s.db, func(tx *sql.Tx) error {
		complaints := repository.NewComplaintRepository(tx)
		c, err := complaints.FindByIDForUpdate(ctx, tx, complaintID)
		if err != nil {
			return err
		}
		oldDept := c.DepartmentID
		c.DepartmentID = sql.NullInt64{Int64: departmentID, Valid: true}
		c.NeedsManualRouting = false
		c.Status = domain.StatusInProgress
		c.StartedAt = sql.NullTime{Time: time.Now(), Valid: true}
		if err := complaints.UpdateStatus(ctx, c); err != nil {
			return err
		}
		if _, err := s.recorder.WithTx(tx).RecordAssignment(ctx, c.ID, oldDept, c.DepartmentID, caller, "manual department assignment"); err != nil {
			return err
		}
		if _, err := s.recorder.WithTx(tx).RecordStateChange(ctx, c.ID, domain.StatusFiled, domain.StatusInProgress, domain.CallerContext{Role: domain.RoleSystem}, "manual routing completed"); err != nil {
			return err
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	_, _ = s.notifier.Send(ctx, updated.CitizenID, domain.NotifyAssigned,
		"Your complaint was routed", "Your complaint is now being worked on", sql.NullInt64{Int64: updated.ID, Valid: true}, sql.NullString{})
	return updated, nil
}

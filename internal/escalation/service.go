package escalation

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/civictech/grievance-core/domain"
	"github.com/civictech/grievance-core/internal/audit"
	"github.com/civictech/grievance-core/internal/directory"
	"github.com/civictech/grievance-core/internal/metrics"
	"github.com/civictech/grievance-core/internal/notify"
	"github.com/civictech/grievance-core/internal/repository"
)

// Service orchestrates escalation for one or many complaints. A complaint
// escalates at most once per level, enforced twice: an existence check
// inside the transaction, and the unique index on
// (complaint_id, escalation_level) as the backstop under concurrency. A
// lost insert race surfaces as *domain.ConflictingUpdateError and is
// treated as a successful no-op rather than a failure.
type Service struct {
	db         *sql.DB
	evaluator  *Evaluator
	recorder   *audit.Recorder
	dispatcher *notify.Dispatcher
	directory  *directory.Directory
	metrics    *metrics.Recorder
}

func NewService(db *sql.DB, evaluator *Evaluator, recorder *audit.Recorder, dispatcher *notify.Dispatcher, dir *directory.Directory, metricsRecorder *metrics.Recorder) *Service {
	return &Service{db: db, evaluator: evaluator, recorder: recorder, dispatcher: dispatcher, directory: dir, metrics: metricsRecorder}
}

// Evaluator exposes the pure escalation-level evaluator for read-side
// operations that need a verdict without performing Process's side effects.
func (s *Service) Evaluator() *Evaluator {
	return s.evaluator
}

// Process evaluates one complaint and, if a higher level is required,
// records the escalation event, raises the complaint's level, and writes
// the audit entry, all in one transaction. Notifications go out after
// commit, best-effort. Returns nil when nothing escalated.
func (s *Service) Process(ctx context.Context, complaint *domain.Complaint, today time.Time) (*domain.EscalationEvent, error) {
	outcome := s.evaluator.Evaluate(complaint, today)
	if !outcome.Required {
		return nil, nil
	}

	var event *domain.EscalationEvent
	err := repository.TxRunner(ctx, s.db, func(tx *sql.Tx) error {
		escalations := repository.NewEscalationRepository(tx)
		complaints := repository.NewComplaintRepository(tx)

		exists, err := escalations.ExistsFor(ctx, complaint.ID, outcome.RequiredLevel)
		if err != nil {
			return err
		}
		if exists {
			event = nil
			return nil
		}

		e := &domain.EscalationEvent{
			ComplaintID:         complaint.ID,
			PreviousLevel:       outcome.CurrentLevel,
			Level:               outcome.RequiredLevel,
			EscalatedToRole:     domain.RoleForLevel(outcome.RequiredLevel),
			Reason:              outcome.Reason,
			DaysOverdue:         outcome.DaysOverdue,
			SLADeadlineSnapshot: outcome.SLADeadline,
			IsAutomated:         true,
		}
		id, err := escalations.Create(ctx, e)
		if err != nil {
			var conflict *domain.ConflictingUpdateError
			if errors.As(err, &conflict) {
				event = nil
				return nil
			}
			return err
		}
		e.ID = id

		if outcome.RequiredLevel > complaint.EscalationLevel {
			if _, err := complaints.RaiseEscalationLevel(ctx, complaint.ID, outcome.RequiredLevel); err != nil {
				return err
			}
		}

		if _, err := s.recorder.WithTx(tx).RecordEscalation(ctx, complaint.ID, outcome.CurrentLevel, outcome.RequiredLevel, domain.CallerContext{Role: domain.RoleSystem}, outcome.Reason); err != nil {
			return err
		}

		event = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	if event == nil {
		return nil, nil
	}

	s.notifyAfterCommit(ctx, complaint, event)
	return event, nil
}

func (s *Service) notifyAfterCommit(ctx context.Context, complaint *domain.Complaint, event *domain.EscalationEvent) {
	if s.metrics != nil {
		s.metrics.EmitEscalationTriggered(ctx, complaint.ID, int(event.Level))
	}

	if complaint.DepartmentID.Valid {
		recipient, err := s.directory.RecipientForEscalation(ctx, complaint.DepartmentID.Int64, event.Level)
		if err != nil {
			log.Printf("[ESCALATION] failed to resolve recipient for complaint %d: %v", complaint.ID, err)
		} else if recipient != nil {
			_, _ = s.dispatcher.Send(ctx, recipient.ID, domain.NotifyEscalationAlert,
				"Complaint escalated", event.Reason, sql.NullInt64{Int64: complaint.ID, Valid: true}, sql.NullString{})
		}
	}

	_, _ = s.dispatcher.Send(ctx, complaint.CitizenID, domain.NotifyStatusChanged,
		"Your complaint has been escalated", event.Reason,
		sql.NullInt64{Int64: complaint.ID, Valid: true}, sql.NullString{})
}

// ProcessBatch runs Process for each complaint, logging and continuing
// past any single failure, and returns the count of escalations actually
// performed. A single complaint's failure never aborts the batch, but a
// cancelled context stops it: remaining complaints are skipped and the
// count so far is returned.
func (s *Service) ProcessBatch(ctx context.Context, complaints []*domain.Complaint, today time.Time) int {
	count := 0
	for _, c := range complaints {
		if ctx.Err() != nil {
			log.Printf("[ESCALATION] batch cancelled after %d escalations: %v", count, ctx.Err())
			return count
		}
		event, err := s.Process(ctx, c, today)
		if err != nil {
			log.Printf("[ESCALATION] failed to process complaint %d: %v", c.ID, err)
			continue
		}
		if event != nil {
			count++
		}
	}
	return count
}

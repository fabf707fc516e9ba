// Package govcore wires every component of the governance core together
// and exposes the module's public operations as methods on Core. Caller
// identity is an explicit domain.CallerContext parameter on every
// operation rather than ambient request state.
package govcore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/civictech/grievance-core/domain"
	"github.com/civictech/grievance-core/internal/audit"
	"github.com/civictech/grievance-core/internal/complaint"
	"github.com/civictech/grievance-core/internal/config"
	"github.com/civictech/grievance-core/internal/directory"
	"github.com/civictech/grievance-core/internal/dispute"
	"github.com/civictech/grievance-core/internal/escalation"
	"github.com/civictech/grievance-core/internal/guard"
	"github.com/civictech/grievance-core/internal/metrics"
	"github.com/civictech/grievance-core/internal/notify"
	"github.com/civictech/grievance-core/internal/repository"
	"github.com/civictech/grievance-core/worker"

	_ "github.com/go-sql-driver/mysql"
)

// Core is the module's single wiring point: construct one, call Start,
// and every public operation is reachable as a method.
type Core struct {
	DB *sql.DB

	Complaints    *repository.ComplaintRepository
	Categories    *repository.CategoryRepository
	Proofs        *repository.ResolutionProofRepository
	Signoffs      *repository.CitizenSignoffRepository
	Escalations   *repository.EscalationRepository
	Audits        *repository.AuditRepository
	Notifications *repository.NotificationRepository
	Attachments   *repository.AttachmentRepository

	Directory  *directory.Directory
	Recorder   *audit.Recorder
	Dispatcher *notify.Dispatcher
	Guard      *guard.Evaluator

	ComplaintService  *complaint.Service
	EscalationService *escalation.Service
	DisputeService    *dispute.Service
	Scheduler         *escalation.Scheduler
	Metrics           *metrics.Recorder

	workers *worker.Manager
}

// Open connects to MySQL using cfg.Database and wires the full component
// graph.
func Open(cfg *config.Config) (*Core, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		cfg.Database.User, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)
	if cfg.Database.DatabaseURL != "" {
		dsn = cfg.Database.DatabaseURL
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := repository.InitializeSchema(db); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return New(db, cfg), nil
}

// New wires the component graph over an already-open *sql.DB, for tests
// and embedders that manage their own connection lifecycle.
func New(db *sql.DB, cfg *config.Config) *Core {
	complaints := repository.NewComplaintRepository(db)
	categories := repository.NewCategoryRepository(db)
	proofs := repository.NewResolutionProofRepository(db)
	signoffs := repository.NewCitizenSignoffRepository(db)
	escalations := repository.NewEscalationRepository(db)
	audits := repository.NewAuditRepository(db)
	notifications := repository.NewNotificationRepository(db)
	attachments := repository.NewAttachmentRepository(db)

	dir := directory.New(db)
	recorder := audit.NewRecorder(audits)
	dispatcher := notify.New(notifications, notify.NewEmailSender(), notify.NewSMSSender(), notify.NewWhatsAppSender())
	guardEvaluator := guard.NewEvaluator()

	metricsRecorder := metrics.NewRecorder(db)
	complaintService := complaint.NewService(db, guardEvaluator, recorder, dispatcher)
	evaluator := escalation.NewEvaluator(escalation.Thresholds{
		L1Days: cfg.Escalation.L1ThresholdDays,
		L2Days: cfg.Escalation.L2ThresholdDays,
	})
	escalationService := escalation.NewService(db, evaluator, recorder, dispatcher, dir, metricsRecorder)
	scheduler := escalation.NewScheduler(escalationService, complaints, cfg.Escalation.SchedulerPeriod)
	disputeService := dispute.NewService(db, recorder, dispatcher, complaintService)

	workers := worker.NewManager(scheduler, dispatcher)

	return &Core{
		DB: db,

		Complaints:    complaints,
		Categories:    categories,
		Proofs:        proofs,
		Signoffs:      signoffs,
		Escalations:   escalations,
		Audits:        audits,
		Notifications: notifications,
		Attachments:   attachments,

		Directory:  dir,
		Recorder:   recorder,
		Dispatcher: dispatcher,
		Guard:      guardEvaluator,

		ComplaintService:  complaintService,
		EscalationService: escalationService,
		DisputeService:    disputeService,
		Scheduler:         scheduler,
		Metrics:           metricsRecorder,

		workers: workers,
	}
}

// Start launches the background escalation scheduler and notification
// dispatcher loops.
func (c *Core) Start() {
	c.workers.Start()
}

// Stop halts every background loop and closes the database connection.
func (c *Core) Stop() error {
	c.workers.Stop()
	return c.DB.Close()
}

// FileComplaint creates a new complaint and routes it when the
// classifier is confident enough.
func (c *Core) FileComplaint(ctx context.Context, req complaint.FileRequest) (*domain.Complaint, error) {
	created, err := c.ComplaintService.File(ctx, req, c.Categories)
	if err != nil {
		return nil, err
	}
	c.Metrics.EmitComplaintCreated(ctx, created.ID, created.CitizenID)
	return created, nil
}

// Transition moves a complaint to target on behalf of caller.
func (c *Core) Transition(ctx context.Context, complaintID int64, target domain.Status, caller domain.CallerContext, reason string) (*complaint.TransitionResult, error) {
	result, err := c.ComplaintService.Transition(ctx, complaintID, target, caller, reason)
	if err != nil {
		return nil, err
	}
	if !result.NoOp && target == domain.StatusResolved {
		c.Metrics.EmitComplaintResolved(ctx, result.Complaint.ID, result.Complaint.CreatedAt, string(target))
	}
	return result, nil
}

// GetComplaint fetches one complaint by id.
func (c *Core) GetComplaint(ctx context.Context, complaintID int64) (*domain.Complaint, error) {
	return c.Complaints.FindByID(ctx, complaintID)
}

// AssignDepartment is the admin's manual-routing completion for a
// complaint held in FILED with needs_manual_routing set.
func (c *Core) AssignDepartment(ctx context.Context, complaintID, departmentID int64, caller domain.CallerContext) (*domain.Complaint, error) {
	return c.ComplaintService.AssignDepartment(ctx, complaintID, departmentID, caller)
}

// PendingDisputesByDepartment is the department head's dispute-review queue.
func (c *Core) PendingDisputesByDepartment(ctx context.Context, departmentID int64) ([]*domain.CitizenSignoff, error) {
	return c.Signoffs.FindPendingDisputesByDepartment(ctx, departmentID)
}

// GetAllowedTransitions returns the targets reachable from the
// complaint's current status, intersected with the RBAC policy for the
// caller's role.
func (c *Core) GetAllowedTransitions(ctx context.Context, complaintID int64, caller domain.CallerContext) ([]domain.Status, error) {
	loaded, err := c.Complaints.FindByID(ctx, complaintID)
	if err != nil {
		return nil, err
	}
	return c.ComplaintService.AllowedTransitions(loaded.Status, caller.Role), nil
}

// FileDispute records the citizen rejecting a resolution.
func (c *Core) FileDispute(ctx context.Context, complaintID int64, caller domain.CallerContext, reason string, evidenceImageRef sql.NullString) (*domain.CitizenSignoff, error) {
	return c.DisputeService.FileDispute(ctx, complaintID, caller, reason, evidenceImageRef)
}

// ReviewDispute records the department head's verdict on a pending dispute.
func (c *Core) ReviewDispute(ctx context.Context, signoffID int64, deptHead domain.CallerContext, approved bool, rejectionReason sql.NullString) error {
	return c.DisputeService.ReviewDispute(ctx, signoffID, deptHead, approved, rejectionReason)
}

// SubmitResolutionProof records staff's proof of work on a complaint.
// The submitting staff member must belong to the complaint's department.
func (c *Core) SubmitResolutionProof(ctx context.Context, complaintID int64, staff domain.CallerContext, imageRef string, lat, lon float64, remarks string) (*domain.ResolutionProof, error) {
	proof, err := c.ComplaintService.SubmitResolutionProof(ctx, complaintID, staff, imageRef, lat, lon, remarks)
	if err != nil {
		return nil, err
	}
	if loaded, lookupErr := c.Complaints.FindByID(ctx, complaintID); lookupErr == nil && staff.UserID.Valid {
		c.Metrics.EmitFirstAuthorityAction(ctx, complaintID, staff.UserID.Int64, loaded.CreatedAt)
	}
	return proof, nil
}

// SubmitSignoff validates the citizen owns the complaint, then routes to
// the accept path (internal/complaint) or the dispute path
// (internal/dispute) depending on isAccepted.
func (c *Core) SubmitSignoff(ctx context.Context, complaintID int64, citizen domain.CallerContext, isAccepted bool, rating int, feedback, disputeReason string, evidenceImageRef sql.NullString) (*domain.CitizenSignoff, error) {
	if isAccepted {
		return c.ComplaintService.AcceptSignoff(ctx, complaintID, citizen, rating, feedback)
	}
	return c.DisputeService.FileDispute(ctx, complaintID, citizen, disputeReason, evidenceImageRef)
}

// TriggerEscalationNow runs an escalation sweep immediately and returns
// the number of escalations performed. Restricted to administrative and
// automated callers.
func (c *Core) TriggerEscalationNow(ctx context.Context, caller domain.CallerContext) (int, error) {
	switch caller.Role {
	case domain.RoleAdmin, domain.RoleSuperAdmin, domain.RoleSystem:
	default:
		return 0, &domain.UnauthorizedError{Role: caller.Role,
			AllowedRoles: []domain.Role{domain.RoleAdmin, domain.RoleSuperAdmin, domain.RoleSystem}}
	}
	return c.Scheduler.TriggerNow(ctx)
}

// GetEscalationHistory returns a complaint's escalation events, oldest
// first.
func (c *Core) GetEscalationHistory(ctx context.Context, complaintID int64) ([]*domain.EscalationEvent, error) {
	return c.Escalations.HistoryByComplaint(ctx, complaintID)
}

// GetAuditForComplaint returns a complaint's audit trail, oldest first.
func (c *Core) GetAuditForComplaint(ctx context.Context, complaintID int64) ([]*domain.AuditLog, error) {
	return c.Recorder.History(ctx, domain.EntityComplaint, complaintID)
}

// OverdueComplaint annotates an active, past-deadline complaint with the
// escalation evaluator's verdict.
type OverdueComplaint struct {
	Complaint     *domain.Complaint
	CurrentLevel  domain.EscalationLevel
	RequiredLevel domain.EscalationLevel
	DaysOverdue   int
}

// GetOverdueComplaints returns every active complaint whose sla_deadline
// has passed today, each annotated with its current and required
// escalation level.
func (c *Core) GetOverdueComplaints(ctx context.Context, today time.Time) ([]OverdueComplaint, error) {
	active, err := c.Complaints.FindActiveWithDeadline(ctx)
	if err != nil {
		return nil, err
	}
	var out []OverdueComplaint
	for _, complaint := range active {
		outcome := c.EscalationService.Evaluator().Evaluate(complaint, today)
		if outcome.DaysOverdue <= 0 {
			continue
		}
		out = append(out, OverdueComplaint{
			Complaint:     complaint,
			CurrentLevel:  outcome.CurrentLevel,
			RequiredLevel: outcome.RequiredLevel,
			DaysOverdue:   outcome.DaysOverdue,
		})
	}
	return out, nil
}

// ListNotifications returns a user's notifications, newest first.
func (c *Core) ListNotifications(ctx context.Context, userID int64, limit int) ([]*domain.Notification, error) {
	return c.Dispatcher.List(ctx, userID, limit)
}

// UnreadNotifications returns a user's unread notifications.
func (c *Core) UnreadNotifications(ctx context.Context, userID int64) ([]*domain.Notification, error) {
	return c.Dispatcher.Unread(ctx, userID)
}

// UnreadNotificationCount returns a user's badge count.
func (c *Core) UnreadNotificationCount(ctx context.Context, userID int64) (int, error) {
	return c.Dispatcher.UnreadCount(ctx, userID)
}

// MarkNotificationRead marks one notification read; the notification
// must belong to userID.
func (c *Core) MarkNotificationRead(ctx context.Context, notificationID, userID int64) error {
	return c.Dispatcher.MarkRead(ctx, notificationID, userID)
}

// MarkAllNotificationsRead marks every unread notification for a user as read.
func (c *Core) MarkAllNotificationsRead(ctx context.Context, userID int64) error {
	return c.Dispatcher.MarkAllRead(ctx, userID)
}

// MarkNotificationsReadForComplaint marks everything a user received
// about one complaint as read.
func (c *Core) MarkNotificationsReadForComplaint(ctx context.Context, userID, complaintID int64) error {
	return c.Dispatcher.MarkReadForComplaint(ctx, userID, complaintID)
}

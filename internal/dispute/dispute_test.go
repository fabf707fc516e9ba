package dispute

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/civictech/grievance-core/domain"
	"github.com/civictech/grievance-core/internal/audit"
	"github.com/civictech/grievance-core/internal/complaint"
	"github.com/civictech/grievance-core/internal/guard"
	"github.com/civictech/grievance-core/internal/notify"
	"github.com/civictech/grievance-core/internal/repository"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *sql.DB) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	recorder := audit.NewRecorder(repository.NewAuditRepository(db))
	dispatcher := notify.New(repository.NewNotificationRepository(db))
	complaintSvc := complaint.NewService(db, guard.NewEvaluator(), recorder, dispatcher)
	svc := NewService(db, recorder, dispatcher, complaintSvc)
	return svc, mock, db
}

func complaintRow(id int64, status domain.Status, citizenID int64, deptID sql.NullInt64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"complaint_id", "title", "description", "location", "citizen_id",
		"department_id", "staff_id", "category_id", "priority", "status",
		"escalation_level", "sla_deadline", "created_at", "started_at",
		"resolved_at", "closed_at", "needs_manual_routing", "ai_confidence",
		"citizen_satisfaction",
	}).AddRow(id, "t", "d", "loc", citizenID,
		deptID, nil, nil, domain.PriorityMedium, status,
		domain.EscalationL0, nil, time.Now(), nil,
		nil, nil, false, 0.9, nil)
}

func signoffRow(id, complaintID int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"signoff_id", "complaint_id", "citizen_id", "is_accepted", "rating",
		"feedback", "dispute_reason", "dispute_image_reference", "signed_off_at",
		"dispute_approved", "dispute_approved_by", "dispute_reviewed_at",
		"dispute_rejection_reason",
	}).AddRow(id, complaintID, 42, false, nil,
		nil, "broken again", nil, time.Now(),
		nil, nil, nil, nil)
}

func TestFileDispute_Success(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT .* FROM complaints WHERE complaint_id = \? FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnRows(complaintRow(1, domain.StatusResolved, 42, sql.NullInt64{}))
	mock.ExpectQuery(`(?s)SELECT .* FROM citizen_signoffs`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{
			"signoff_id", "complaint_id", "citizen_id", "is_accepted", "rating",
			"feedback", "dispute_reason", "dispute_image_reference", "signed_off_at",
			"dispute_approved", "dispute_approved_by", "dispute_reviewed_at",
			"dispute_rejection_reason",
		}))
	mock.ExpectExec(`INSERT INTO citizen_signoffs`).WillReturnResult(sqlmock.NewResult(9, 1))
	mock.ExpectExec(`INSERT INTO audit_logs`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	caller := domain.CallerContext{Role: domain.RoleCitizen, UserID: sql.NullInt64{Int64: 42, Valid: true}}
	signoff, err := svc.FileDispute(context.Background(), 1, caller, "leak persists", sql.NullString{})
	require.NoError(t, err)
	require.False(t, signoff.IsAccepted)
}

func TestFileDispute_RejectsDuplicate(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT .* FROM complaints WHERE complaint_id = \? FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnRows(complaintRow(1, domain.StatusResolved, 42, sql.NullInt64{}))
	mock.ExpectQuery(`(?s)SELECT .* FROM citizen_signoffs`).
		WithArgs(int64(1)).
		WillReturnRows(signoffRow(5, 1))
	mock.ExpectRollback()

	caller := domain.CallerContext{Role: domain.RoleCitizen, UserID: sql.NullInt64{Int64: 42, Valid: true}}
	_, err := svc.FileDispute(context.Background(), 1, caller, "still broken", sql.NullString{})

	var dup *domain.DuplicateDisputeError
	require.True(t, errors.As(err, &dup))
}

// resolvedComplaintRow is a RESOLVED complaint with a department, an
// assigned staff member, and a resolution timestamp, for exercising the
// reopen path.
func resolvedComplaintRow(id, citizenID, deptID, staffID int64, resolvedAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"complaint_id", "title", "description", "location", "citizen_id",
		"department_id", "staff_id", "category_id", "priority", "status",
		"escalation_level", "sla_deadline", "created_at", "started_at",
		"resolved_at", "closed_at", "needs_manual_routing", "ai_confidence",
		"citizen_satisfaction",
	}).AddRow(id, "t", "d", "loc", citizenID,
		deptID, staffID, nil, domain.PriorityMedium, domain.StatusResolved,
		domain.EscalationL0, nil, resolvedAt.Add(-7*24*time.Hour), nil,
		resolvedAt, nil, false, 0.9, nil)
}

func TestReviewDispute_Approved_ReopensComplaint(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	resolvedAt := time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC)

	// Review transaction: resolve the signoff, verify it is pending,
	// lock the complaint, record the verdict, audit.
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT complaint_id FROM citizen_signoffs WHERE signoff_id = \?`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"complaint_id"}).AddRow(1))
	mock.ExpectQuery(`(?s)SELECT .* FROM citizen_signoffs`).
		WithArgs(int64(1)).
		WillReturnRows(signoffRow(5, 1))
	mock.ExpectQuery(`(?s)SELECT .* FROM complaints WHERE complaint_id = \? FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnRows(resolvedComplaintRow(1, 42, 7, 9, resolvedAt))
	mock.ExpectExec(`UPDATE citizen_signoffs SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO audit_logs`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	// Reopen transaction: the approved review satisfies the guard and the
	// complaint transitions RESOLVED -> IN_PROGRESS as SYSTEM.
	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT .* FROM complaints WHERE complaint_id = \? FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnRows(resolvedComplaintRow(1, 42, 7, 9, resolvedAt))
	mock.ExpectQuery(`(?s)SELECT COUNT\(\*\) FROM citizen_signoffs\s+WHERE complaint_id = \? AND dispute_approved = TRUE AND dispute_reviewed_at > \?`).
		WithArgs(int64(1), resolvedAt).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(`UPDATE complaints SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO audit_logs`).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	// After the reopen commits: status-change notice to the citizen, then
	// DISPUTE_APPROVED to the citizen and COMPLAINT_REOPENED to staff.
	mock.ExpectExec(`INSERT INTO notifications`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO notifications`).WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectExec(`INSERT INTO notifications`).WillReturnResult(sqlmock.NewResult(3, 1))

	deptHead := domain.CallerContext{Role: domain.RoleDeptHead,
		UserID: sql.NullInt64{Int64: 77, Valid: true}, DepartmentID: sql.NullInt64{Int64: 7, Valid: true}}
	err := svc.ReviewDispute(context.Background(), 5, deptHead, true, sql.NullString{})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewDispute_Rejected(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT complaint_id FROM citizen_signoffs WHERE signoff_id = \?`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"complaint_id"}).AddRow(1))
	mock.ExpectQuery(`(?s)SELECT .* FROM citizen_signoffs`).
		WithArgs(int64(1)).
		WillReturnRows(signoffRow(5, 1))
	mock.ExpectQuery(`(?s)SELECT .* FROM complaints WHERE complaint_id = \? FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnRows(complaintRow(1, domain.StatusResolved, 42, sql.NullInt64{Int64: 7, Valid: true}))
	mock.ExpectExec(`UPDATE citizen_signoffs SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO audit_logs`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectExec(`INSERT INTO notifications`).WillReturnResult(sqlmock.NewResult(1, 1))

	deptHead := domain.CallerContext{Role: domain.RoleDeptHead, DepartmentID: sql.NullInt64{Int64: 7, Valid: true}}
	err := svc.ReviewDispute(context.Background(), 5, deptHead, false, sql.NullString{String: "proof stands", Valid: true})
	require.NoError(t, err)
}

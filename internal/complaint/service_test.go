package complaint

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/civictech/grievance-core/domain"
	"github.com/civictech/grievance-core/internal/audit"
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
	svc := NewService(db, guard.NewEvaluator(), recorder, dispatcher)
	return svc, mock, db
}

func complaintRow(id int64, status domain.Status, citizenID int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"complaint_id", "title", "description", "location", "citizen_id",
		"department_id", "staff_id", "category_id", "priority", "status",
		"escalation_level", "sla_deadline", "created_at", "started_at",
		"resolved_at", "closed_at", "needs_manual_routing", "ai_confidence",
		"citizen_satisfaction",
	}).AddRow(id, "t", "d", "loc", citizenID,
		nil, nil, nil, domain.PriorityMedium, status,
		domain.EscalationL0, nil, time.Now(), nil,
		nil, nil, false, 0.9, nil)
}

func TestTransition_CitizenCancelsOwnComplaint(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT .* FROM complaints WHERE complaint_id = \? FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnRows(complaintRow(1, domain.StatusFiled, 42))
	mock.ExpectExec(`UPDATE complaints SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO audit_logs`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectExec(`INSERT INTO notifications`).WillReturnResult(sqlmock.NewResult(1, 1))

	caller := domain.CallerContext{Role: domain.RoleCitizen, UserID: sql.NullInt64{Int64: 42, Valid: true}}
	result, err := svc.Transition(context.Background(), 1, domain.StatusCancelled, caller, "changed my mind")
	require.NoError(t, err)
	require.False(t, result.NoOp)
	require.Equal(t, domain.StatusCancelled, result.Complaint.Status)
}

func TestTransition_CitizenCancelsSomeoneElsesComplaint_OwnershipViolation(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT .* FROM complaints WHERE complaint_id = \? FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnRows(complaintRow(1, domain.StatusFiled, 42))
	mock.ExpectRollback()

	caller := domain.CallerContext{Role: domain.RoleCitizen, UserID: sql.NullInt64{Int64: 99, Valid: true}}
	_, err := svc.Transition(context.Background(), 1, domain.StatusCancelled, caller, "not mine")

	var violation *domain.OwnershipViolationError
	require.True(t, errors.As(err, &violation))
}

func TestTransition_IllegalTarget(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT .* FROM complaints WHERE complaint_id = \? FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnRows(complaintRow(1, domain.StatusClosed, 42))
	mock.ExpectRollback()

	caller := domain.CallerContext{Role: domain.RoleAdmin}
	_, err := svc.Transition(context.Background(), 1, domain.StatusInProgress, caller, "")

	var invalid *domain.InvalidTransitionError
	require.True(t, errors.As(err, &invalid))
}

func TestTransition_NoOpWhenAlreadyAtTarget(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT .* FROM complaints WHERE complaint_id = \? FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnRows(complaintRow(1, domain.StatusFiled, 42))
	mock.ExpectCommit()

	caller := domain.CallerContext{Role: domain.RoleAdmin}
	result, err := svc.Transition(context.Background(), 1, domain.StatusFiled, caller, "")
	require.NoError(t, err)
	require.True(t, result.NoOp)
}

func TestSubmitResolutionProof_DepartmentMismatch(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	mock.ExpectBegin()
	row := complaintRow(1, domain.StatusInProgress, 42)
	mock.ExpectQuery(`(?s)SELECT .* FROM complaints WHERE complaint_id = \? FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnRows(row)
	mock.ExpectRollback()

	staff := domain.CallerContext{Role: domain.RoleStaff, DepartmentID: sql.NullInt64{Int64: 7, Valid: true}}
	_, err := svc.SubmitResolutionProof(context.Background(), 1, staff, "img.jpg", 1.0, 2.0, "done")

	var mismatch *domain.DepartmentMismatchError
	require.True(t, errors.As(err, &mismatch))
}

func TestAcceptSignoff_RecordsRatingAndSatisfaction(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT .* FROM complaints WHERE complaint_id = \? FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnRows(complaintRow(1, domain.StatusResolved, 42))
	mock.ExpectExec(`INSERT INTO citizen_signoffs`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE complaints SET`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO audit_logs`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	citizen := domain.CallerContext{Role: domain.RoleCitizen, UserID: sql.NullInt64{Int64: 42, Valid: true}}
	signoff, err := svc.AcceptSignoff(context.Background(), 1, citizen, 5, "fixed quickly")
	require.NoError(t, err)
	require.True(t, signoff.IsAccepted)
	require.Equal(t, int64(5), signoff.Rating.Int64)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptSignoff_RejectsOutOfRangeRating(t *testing.T) {
	svc, _, db := newTestService(t)
	defer db.Close()

	citizen := domain.CallerContext{Role: domain.RoleCitizen, UserID: sql.NullInt64{Int64: 42, Valid: true}}
	_, err := svc.AcceptSignoff(context.Background(), 1, citizen, 0, "")

	var invalid *domain.InvalidDisputeStateError
	require.True(t, errors.As(err, &invalid))

	_, err = svc.AcceptSignoff(context.Background(), 1, citizen, 6, "")
	require.True(t, errors.As(err, &invalid))
}

func TestAcceptSignoff_RejectsWhenNotResolved(t *testing.T) {
	svc, mock, db := newTestService(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT .* FROM complaints WHERE complaint_id = \? FOR UPDATE`).
		WithArgs(int64(1)).
		WillReturnRows(complaintRow(1, domain.StatusInProgress, 42))
	mock.ExpectRollback()

	citizen := domain.CallerContext{Role: domain.RoleCitizen, UserID: sql.NullInt64{Int64: 42, Valid: true}}
	_, err := svc.AcceptSignoff(context.Background(), 1, citizen, 5, "great")

	var invalid *domain.InvalidDisputeStateError
	require.True(t, errors.As(err, &invalid))
}

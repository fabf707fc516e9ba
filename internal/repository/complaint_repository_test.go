package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/civictech/grievance-core/domain"
	"github.com/stretchr/testify/require"
)

func newMockComplaintRepo(t *testing.T) (*ComplaintRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return NewComplaintRepository(db), mock, func() { db.Close() }
}

func sampleComplaintRow() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"complaint_id", "title", "description", "location", "citizen_id",
		"department_id", "staff_id", "category_id", "priority", "status",
		"escalation_level", "sla_deadline", "created_at", "started_at",
		"resolved_at", "closed_at", "needs_manual_routing", "ai_confidence",
		"citizen_satisfaction",
	}).AddRow(
		1, "pothole", "big hole", "main st", 42,
		sql.NullInt64{Int64: 3, Valid: true}, sql.NullInt64{}, sql.NullInt64{Int64: 9, Valid: true},
		domain.PriorityHigh, domain.StatusFiled,
		domain.EscalationL0, sql.NullTime{Time: time.Now(), Valid: true}, time.Now(), sql.NullTime{},
		sql.NullTime{}, sql.NullTime{}, false, 0.9,
		sql.NullInt64{},
	)
}

func TestComplaintRepository_FindByID_Found(t *testing.T) {
	repo, mock, closeDB := newMockComplaintRepo(t)
	defer closeDB()

	mock.ExpectQuery(`(?s)SELECT .+ FROM complaints WHERE complaint_id = \?`).
		WithArgs(int64(1)).
		WillReturnRows(sampleComplaintRow())

	c, err := repo.FindByID(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), c.ID)
	require.Equal(t, domain.StatusFiled, c.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestComplaintRepository_FindByID_NotFound(t *testing.T) {
	repo, mock, closeDB := newMockComplaintRepo(t)
	defer closeDB()

	mock.ExpectQuery(`(?s)SELECT .+ FROM complaints WHERE complaint_id = \?`).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), 99)
	var nf *domain.NotFoundError
	require.True(t, errors.As(err, &nf))
	require.Equal(t, int64(99), nf.ID)
}

func TestComplaintRepository_Create(t *testing.T) {
	repo, mock, closeDB := newMockComplaintRepo(t)
	defer closeDB()

	mock.ExpectExec(`INSERT INTO complaints`).
		WillReturnResult(sqlmock.NewResult(7, 1))

	c := &domain.Complaint{Title: "t", Description: "d", Location: "l", CitizenID: 1, Status: domain.StatusFiled}
	id, err := repo.Create(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, int64(7), id)
}

func TestComplaintRepository_RaiseEscalationLevel_Monotonic(t *testing.T) {
	repo, mock, closeDB := newMockComplaintRepo(t)
	defer closeDB()

	mock.ExpectExec(`UPDATE complaints SET escalation_level = \? WHERE complaint_id = \? AND escalation_level < \?`).
		WithArgs(domain.EscalationL1, int64(1), domain.EscalationL1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	raised, err := repo.RaiseEscalationLevel(context.Background(), 1, domain.EscalationL1)
	require.NoError(t, err)
	require.True(t, raised)
}

func TestComplaintRepository_RaiseEscalationLevel_AlreadyHigher(t *testing.T) {
	repo, mock, closeDB := newMockComplaintRepo(t)
	defer closeDB()

	mock.ExpectExec(`UPDATE complaints SET escalation_level = \? WHERE complaint_id = \? AND escalation_level < \?`).
		WithArgs(domain.EscalationL1, int64(1), domain.EscalationL1).
		WillReturnResult(sqlmock.NewResult(0, 0))

	raised, err := repo.RaiseEscalationLevel(context.Background(), 1, domain.EscalationL1)
	require.NoError(t, err)
	require.False(t, raised)
}

func TestComplaintRepository_CountByStatus_ScopedToDepartment(t *testing.T) {
	repo, mock, closeDB := newMockComplaintRepo(t)
	defer closeDB()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM complaints WHERE status = \? AND department_id = \?`).
		WithArgs(domain.StatusFiled, int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	n, err := repo.CountByStatus(context.Background(), domain.StatusFiled, 3)
	require.NoError(t, err)
	require.Equal(t, 5, n)
}

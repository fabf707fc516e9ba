package govcore

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/civictech/grievance-core/domain"
	"github.com/civictech/grievance-core/internal/config"
	"github.com/stretchr/testify/require"
)

func newTestCore(t *testing.T) (*Core, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Escalation: config.EscalationConfig{L1ThresholdDays: 1, L2ThresholdDays: 3, SchedulerPeriod: 6 * time.Hour},
		Routing:    config.RoutingConfig{ConfidenceThreshold: 0.7},
	}
	return New(db, cfg), mock
}

func mockComplaintByID(mock sqlmock.Sqlmock, id int64, status domain.Status, citizenID int64) {
	rows := sqlmock.NewRows([]string{
		"complaint_id", "title", "description", "location", "citizen_id",
		"department_id", "staff_id", "category_id", "priority", "status",
		"escalation_level", "sla_deadline", "created_at", "started_at",
		"resolved_at", "closed_at", "needs_manual_routing", "ai_confidence",
		"citizen_satisfaction",
	}).AddRow(id, "t", "d", "loc", citizenID,
		nil, nil, nil, domain.PriorityMedium, status,
		domain.EscalationL0, nil, time.Now(), nil,
		nil, nil, false, 0.9, nil)
	mock.ExpectQuery(`(?s)SELECT .+ FROM complaints WHERE complaint_id = \?`).
		WithArgs(id).
		WillReturnRows(rows)
}

func TestGetAllowedTransitions_CitizenOnResolvedComplaint(t *testing.T) {
	core, mock := newTestCore(t)

	mockComplaintByID(mock, 1, domain.StatusResolved, 42)

	citizen := domain.CallerContext{Role: domain.RoleCitizen, UserID: sql.NullInt64{Int64: 42, Valid: true}}
	targets, err := core.GetAllowedTransitions(context.Background(), 1, citizen)
	require.NoError(t, err)
	require.ElementsMatch(t, []domain.Status{domain.StatusClosed, domain.StatusCancelled}, targets)
}

func TestGetAllowedTransitions_TerminalComplaintHasNone(t *testing.T) {
	core, mock := newTestCore(t)

	mockComplaintByID(mock, 1, domain.StatusClosed, 42)

	admin := domain.CallerContext{Role: domain.RoleAdmin, UserID: sql.NullInt64{Int64: 7, Valid: true}}
	targets, err := core.GetAllowedTransitions(context.Background(), 1, admin)
	require.NoError(t, err)
	require.Empty(t, targets)
}

func TestGetAllowedTransitions_UnknownComplaint(t *testing.T) {
	core, mock := newTestCore(t)

	mock.ExpectQuery(`(?s)SELECT .+ FROM complaints WHERE complaint_id = \?`).
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)

	_, err := core.GetAllowedTransitions(context.Background(), 404,
		domain.CallerContext{Role: domain.RoleAdmin, UserID: sql.NullInt64{Int64: 7, Valid: true}})

	var notFound *domain.NotFoundError
	require.True(t, errors.As(err, &notFound))
}

func TestTriggerEscalationNow_RejectsNonAdminCallers(t *testing.T) {
	core, _ := newTestCore(t)

	for _, role := range []domain.Role{domain.RoleCitizen, domain.RoleStaff, domain.RoleDeptHead, domain.RoleCommissioner} {
		caller := domain.CallerContext{Role: role, UserID: sql.NullInt64{Int64: 1, Valid: true}}
		_, err := core.TriggerEscalationNow(context.Background(), caller)

		var unauthorized *domain.UnauthorizedError
		require.True(t, errors.As(err, &unauthorized), "role %s should be rejected", role)
	}
}

func TestTriggerEscalationNow_AdminRunsSweep(t *testing.T) {
	core, mock := newTestCore(t)

	mock.ExpectQuery(`(?s)SELECT .+ FROM complaints`).
		WillReturnRows(sqlmock.NewRows([]string{"complaint_id"}))

	n, err := core.TriggerEscalationNow(context.Background(),
		domain.CallerContext{Role: domain.RoleAdmin, UserID: sql.NullInt64{Int64: 7, Valid: true}})
	require.NoError(t, err)
	require.Equal(t, 0, n)
}

func TestGetOverdueComplaints_AnnotatesLevels(t *testing.T) {
	core, mock := newTestCore(t)

	today := time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"complaint_id", "title", "description", "location", "citizen_id",
		"department_id", "staff_id", "category_id", "priority", "status",
		"escalation_level", "sla_deadline", "created_at", "started_at",
		"resolved_at", "closed_at", "needs_manual_routing", "ai_confidence",
		"citizen_satisfaction",
	}).
		AddRow(1, "overdue", "d", "loc", 42, nil, nil, nil, domain.PriorityMedium, domain.StatusInProgress,
			domain.EscalationL0, today.Add(-5*24*time.Hour), today.Add(-10*24*time.Hour), nil, nil, nil, false, 0.9, nil).
		AddRow(2, "on time", "d", "loc", 43, nil, nil, nil, domain.PriorityMedium, domain.StatusInProgress,
			domain.EscalationL0, today.Add(2*24*time.Hour), today.Add(-1*24*time.Hour), nil, nil, nil, false, 0.9, nil)

	mock.ExpectQuery(`(?s)SELECT .+ FROM complaints`).WillReturnRows(rows)

	overdue, err := core.GetOverdueComplaints(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	require.Equal(t, int64(1), overdue[0].Complaint.ID)
	require.Equal(t, domain.EscalationL0, overdue[0].CurrentLevel)
	require.Equal(t, domain.EscalationL2, overdue[0].RequiredLevel)
	require.Equal(t, 5, overdue[0].DaysOverdue)
}

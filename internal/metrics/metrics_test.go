package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestEmitComplaintCreated(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	recorder := NewRecorder(db)

	mock.ExpectExec(`INSERT INTO pilot_metrics_events`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	recorder.EmitComplaintCreated(context.Background(), 1, 42)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmitEscalationTriggered_IncludesLevel(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	recorder := NewRecorder(db)

	mock.ExpectExec(`INSERT INTO pilot_metrics_events`).
		WithArgs(EventEscalationTriggered, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), `{"escalation_level":2}`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	recorder.EmitEscalationTriggered(context.Background(), 1, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmit_FailureDoesNotPropagate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	recorder := NewRecorder(db)

	mock.ExpectExec(`INSERT INTO pilot_metrics_events`).
		WillReturnError(context.DeadlineExceeded)

	// Emit* never returns an error to its caller; a failed insert is only logged.
	recorder.EmitComplaintResolved(context.Background(), 1, time.Now().Add(-time.Hour), "RESOLVED")
	require.NoError(t, mock.ExpectationsWereMet())
}

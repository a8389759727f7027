package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"walkerwatch/internal/models"
	"walkerwatch/internal/repository"
)

func TestInsertEvent_MarshalsPayload(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := repository.NewPostgresEventsRepository(db)

	mock.ExpectExec("INSERT INTO ingest_events").
		WithArgs(sqlmock.AnyArg(), "r1", int64(1700000000), models.EventHeavyLean,
			models.SeverityMedium, `{"tiltDeg":41.5}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.InsertEvent(context.Background(), &models.SafetyEvent{
		ResidentID: "r1",
		EventType:  models.EventHeavyLean,
		Severity:   models.SeverityMedium,
		Ts:         1700000000,
		Payload:    map[string]interface{}{"tiltDeg": 41.5},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertEvent_NilPayload(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := repository.NewPostgresEventsRepository(db)

	mock.ExpectExec("INSERT INTO ingest_events").
		WithArgs(sqlmock.AnyArg(), "r1", int64(1700000000), models.EventFall,
			models.SeverityHigh, "{}").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.InsertEvent(context.Background(), &models.SafetyEvent{
		ResidentID: "r1",
		EventType:  models.EventFall,
		Severity:   models.SeverityHigh,
		Ts:         1700000000,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRecent_DefaultsLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := repository.NewPostgresEventsRepository(db)

	columns := []string{"id", "resident_id", "ts", "event_type", "severity", "payload_json", "created_at"}
	mock.ExpectQuery("FROM ingest_events").
		WithArgs("r1", int64(0), 100).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("id-2", "r1", int64(1700000100), models.EventFall, models.SeverityHigh, "{}", time.Now()).
			AddRow("id-1", "r1", int64(1700000000), models.EventHeavyLean, models.SeverityMedium, "{}", time.Now()))

	rows, err := repo.ListRecent(context.Background(), "r1", 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, models.EventFall, rows[0].EventType)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResidentsEnsure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := repository.NewPostgresResidentsRepository(db)

	mock.ExpectExec("INSERT INTO residents").
		WithArgs("r1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Ensure(context.Background(), "r1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

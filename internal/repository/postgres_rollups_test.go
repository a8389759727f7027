package repository_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"walkerwatch/internal/repository"
)

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func TestUpsertHourly_ExpandsDelta(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := repository.NewPostgresRollupsRepository(db)

	delta := &repository.RollupDelta{
		ActiveSeconds: 2,
		Steps:         intPtr(42),
		Cadence:       floatPtr(90.0),
		Fall:          true,
		HeavyLean:     true,
	}

	mock.ExpectExec("INSERT INTO hourly_metric_rollups").
		WithArgs(sqlmock.AnyArg(), "r1", int64(1699999200), "2023-11-14",
			int64(42), 90.0, int64(1), 0.0, int64(0),
			int64(1), int64(0), int64(1), int64(0), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.UpsertHourly(context.Background(), "r1", 1699999200, "2023-11-14", delta)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertDaily_EmptyDelta(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := repository.NewPostgresRollupsRepository(db)

	mock.ExpectExec("INSERT INTO daily_metric_rollups").
		WithArgs(sqlmock.AnyArg(), "r1", "2023-11-14",
			int64(0), 0.0, int64(0), 0.0, int64(0),
			int64(0), int64(0), int64(0), int64(0), int64(0)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.UpsertDaily(context.Background(), "r1", "2023-11-14", &repository.RollupDelta{})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListHourly_ScansRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := repository.NewPostgresRollupsRepository(db)

	columns := []string{"id", "resident_id", "bucket_start_ts", "date",
		"sample_count", "steps_max", "cadence_sum", "cadence_count",
		"step_var_sum", "step_var_count", "fall_count", "tilt_spike_count",
		"heavy_lean_count", "inactivity_count", "active_seconds"}
	mock.ExpectQuery("FROM hourly_metric_rollups").
		WithArgs("r1", int64(1699999200), int64(1700002800)).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("id-1", "r1", int64(1699999200), "2023-11-14",
				int64(12), int64(420), 180.0, int64(2),
				0.16, int64(2), int64(1), int64(0),
				int64(2), int64(0), int64(24)))

	rows, err := repo.ListHourly(context.Background(), "r1", 1699999200, 1700002800)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, int64(420), rows[0].StepsMax)
	require.InDelta(t, 90.0, *rows[0].CadenceAvg(), 1e-6)
	require.InDelta(t, 0.08, *rows[0].StepVarAvg(), 1e-6)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteDailyBefore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := repository.NewPostgresRollupsRepository(db)

	mock.ExpectExec("DELETE FROM daily_metric_rollups").
		WithArgs("2022-11-14").
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := repo.DeleteDailyBefore(context.Background(), "2022-11-14")
	require.NoError(t, err)
	require.Equal(t, int64(7), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

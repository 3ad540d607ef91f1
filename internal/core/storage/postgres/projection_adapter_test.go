package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	v1 "github.com/kurslog-lab/project-kurslog/internal/api/v1"
)

func newMockProjectionAdapter(t *testing.T) (*ProjectionAdapter, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	return NewProjectionAdapter(db), mock, db
}

func TestProjectionAdapter_UpsertIfNewer(t *testing.T) {
	adapter, mock, db := newMockProjectionAdapter(t)
	defer db.Close()

	key := v1.StatusKey{StudentID: "student-1", Course: "Math", Year: 2025, Semester: 1}
	candidate := v1.StatusCandidate{
		LastType:        "admitted",
		LastOccurredUTC: "2025-03-01T00:00:00Z",
		LastRecordedUTC: "2025-03-01T00:00:01Z",
		LastEventID:     "e2",
	}

	// A losing candidate matches zero rows; that is still success.
	mock.ExpectExec(regexp.QuoteMeta(queryUpsertStatus)).
		WithArgs(
			"student-1",
			"Math",
			2025,
			1,
			"admitted",
			"2025-03-01T00:00:00Z",
			"2025-03-01T00:00:01Z",
			"e2",
			sql.NullString{},
		).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, adapter.UpsertIfNewer(context.Background(), key, candidate))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectionAdapter_UpsertIfNewer_Error(t *testing.T) {
	adapter, mock, db := newMockProjectionAdapter(t)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(queryUpsertStatus)).
		WillReturnError(errors.New("connection reset"))

	err := adapter.UpsertIfNewer(context.Background(),
		v1.StatusKey{StudentID: "s", Course: "c", Year: 2025, Semester: 1},
		v1.StatusCandidate{LastType: "applied"})
	require.Error(t, err)
	require.ErrorContains(t, err, "upsert status")
	require.NoError(t, mock.ExpectationsWereMet())
}

func replayRowColumns() []string {
	return []string{
		"student_id", "course", "year", "semester",
		"type", "occurred_utc", "recorded_utc", "event_id", "reason",
	}
}

func TestProjectionAdapter_Rebuild(t *testing.T) {
	adapter, mock, db := newMockProjectionAdapter(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(queryLockProjection)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(queryClearProjection)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectQuery(regexp.QuoteMeta(queryReplayEvents)).
		WithArgs(v1.TypeRegistration).
		WillReturnRows(sqlmock.NewRows(replayRowColumns()).
			AddRow("student-1", "Math", 2025, 1, "applied", "2025-02-01T00:00:00Z", "2025-02-01T00:00:01Z", "e1", nil).
			AddRow("student-1", "Math", 2025, 1, "admitted", "2025-03-01T00:00:00Z", "2025-03-01T00:00:01Z", "e2", "second round"),
		).RowsWillBeClosed()
	mock.ExpectPrepare(regexp.QuoteMeta(queryUpsertStatus))
	mock.ExpectExec(regexp.QuoteMeta(queryUpsertStatus)).
		WithArgs("student-1", "Math", 2025, 1, "applied", "2025-02-01T00:00:00Z", "2025-02-01T00:00:01Z", "e1", sql.NullString{}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(queryUpsertStatus)).
		WithArgs("student-1", "Math", 2025, 1, "admitted", "2025-03-01T00:00:00Z", "2025-03-01T00:00:01Z", "e2", sql.NullString{String: "second round", Valid: true}).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, adapter.Rebuild(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectionAdapter_Rebuild_RollsBackOnReplayError(t *testing.T) {
	adapter, mock, db := newMockProjectionAdapter(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(queryLockProjection)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(queryClearProjection)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(queryReplayEvents)).
		WithArgs(v1.TypeRegistration).
		WillReturnError(errors.New("relation gone"))
	mock.ExpectRollback()

	err := adapter.Rebuild(context.Background())
	require.Error(t, err)
	require.ErrorContains(t, err, "rebuild: query replay events")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectionAdapter_ListStatus_ByStudent(t *testing.T) {
	adapter, mock, db := newMockProjectionAdapter(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(queryListStatusByStudent)).
		WithArgs("student-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"student_id", "course", "year", "semester",
			"last_type", "last_occurred_utc", "last_recorded_utc", "last_event_id", "reason",
		}).
			AddRow("student-1", "Math", 2025, 1, "admitted", "2025-03-01T00:00:00Z", "2025-03-01T00:00:01Z", "e2", nil),
		).RowsWillBeClosed()

	rows, err := adapter.ListStatus(context.Background(), "student-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "admitted", rows[0].LastType)
	require.Equal(t, "e2", rows[0].LastEventID)
	require.Empty(t, rows[0].Reason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectionAdapter_ListStatus_All(t *testing.T) {
	adapter, mock, db := newMockProjectionAdapter(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(queryListStatusAll)).
		WillReturnRows(sqlmock.NewRows([]string{
			"student_id", "course", "year", "semester",
			"last_type", "last_occurred_utc", "last_recorded_utc", "last_event_id", "reason",
		}).
			AddRow("student-1", "Math", 2025, 1, "applied", "2025-02-01T00:00:00Z", "2025-02-01T00:00:01Z", "e1", "late application").
			AddRow("student-2", "Math", 2025, 2, "applied", "2025-02-02T00:00:00Z", "2025-02-02T00:00:01Z", "e3", nil),
		).RowsWillBeClosed()

	rows, err := adapter.ListStatus(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "late application", rows[0].Reason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectionAdapter_Stats(t *testing.T) {
	adapter, mock, db := newMockProjectionAdapter(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(queryStats)).
		WillReturnRows(sqlmock.NewRows([]string{"course", "year", "semester", "last_type", "n"}).
			AddRow("Math", 2025, 1, "admitted", int64(1)).
			AddRow("Math", 2025, 1, "applied", int64(2)),
		).RowsWillBeClosed()

	stats, err := adapter.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, []v1.StatRow{
		{Course: "Math", Year: 2025, Semester: 1, LastType: "admitted", Count: 1},
		{Course: "Math", Year: 2025, Semester: 1, LastType: "applied", Count: 2},
	}, stats)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectionAdapter_StatsTotal(t *testing.T) {
	adapter, mock, db := newMockProjectionAdapter(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(queryStatsTotal)).
		WillReturnRows(sqlmock.NewRows([]string{"course", "semester", "last_type", "n"}).
			AddRow("Math", 1, "applied", int64(5)),
		).RowsWillBeClosed()

	stats, err := adapter.StatsTotal(context.Background())
	require.NoError(t, err)
	require.Equal(t, []v1.StatTotalRow{
		{Course: "Math", Semester: 1, LastType: "applied", Count: 5},
	}, stats)
	require.NoError(t, mock.ExpectationsWereMet())
}

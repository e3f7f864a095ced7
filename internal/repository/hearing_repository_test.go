package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/court-dcm-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func hearingRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "case_id", "bench_id", "judge_id", "hearing_date", "start_minute", "estimated_duration_minutes", "status", "notes", "created_at", "updated_at"}).
		AddRow("h-1", "c-1", "b-1", "j-1", now, 540, 60, string(models.HearingStatusScheduled), "", now, now)
}

func TestHearingFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHearingRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, case_id, bench_id, judge_id, hearing_date, start_minute, estimated_duration_minutes, status, notes, created_at, updated_at FROM hearings WHERE id = $1")).
		WithArgs("h-1").
		WillReturnRows(hearingRows(now))

	h, err := repo.FindByID(context.Background(), "h-1")
	require.NoError(t, err)
	assert.Equal(t, "c-1", h.CaseID)
	assert.Equal(t, 540, h.StartMinute)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHearingListByDateRangeExcludesCancelled(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHearingRepository(db)

	from := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, case_id, bench_id, judge_id, hearing_date, start_minute, estimated_duration_minutes, status, notes, created_at, updated_at FROM hearings WHERE hearing_date >= $1 AND hearing_date <= $2 AND status != $3 ORDER BY hearing_date ASC, bench_id ASC, start_minute ASC")).
		WithArgs(from, to, models.HearingStatusCancelled).
		WillReturnRows(hearingRows(from))

	hearings, err := repo.ListByDateRange(context.Background(), from, to)
	require.NoError(t, err)
	assert.Len(t, hearings, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHearingListCauseListByDate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHearingRepository(db)

	date := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"hearing_id", "case_id", "case_number", "case_title", "track", "bench_id", "bench_name", "judge_id", "judge_name", "start_minute", "estimated_duration_minutes", "status"}).
		AddRow("h-1", "c-1", "CIV-001", "First matter", string(models.TrackFast), "b-1", "Court 1", "j-1", "Justice One", 540, 60, string(models.HearingStatusScheduled)).
		AddRow("h-2", "c-2", "CIV-002", "Second matter", nil, "b-1", "Court 1", "j-1", "Justice One", 600, 90, string(models.HearingStatusScheduled))

	mock.ExpectQuery("SELECT h.id AS hearing_id").
		WithArgs(date, models.HearingStatusCancelled).
		WillReturnRows(rows)

	list, err := repo.ListCauseListByDate(context.Background(), date)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Court 1", list[0].BenchName)
	require.NotNil(t, list[0].Track)
	assert.Equal(t, models.TrackFast, *list[0].Track)
	assert.Nil(t, list[1].Track)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHearingListFiltersByBench(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHearingRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, case_id, bench_id, judge_id, hearing_date, start_minute, estimated_duration_minutes, status, notes, created_at, updated_at FROM hearings WHERE 1=1 AND bench_id = $1 ORDER BY hearing_date ASC, start_minute ASC LIMIT 20 OFFSET 0")).
		WithArgs("b-1").
		WillReturnRows(hearingRows(now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM hearings WHERE 1=1 AND bench_id = $1")).
		WithArgs("b-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	hearings, total, err := repo.List(context.Background(), models.HearingFilter{BenchID: "b-1"})
	require.NoError(t, err)
	assert.Len(t, hearings, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHearingUpdate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHearingRepository(db)

	mock.ExpectExec("UPDATE hearings SET status").WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), &models.Hearing{
		ID:     "h-1",
		Status: models.HearingStatusAdjourned,
		Notes:  "adjourned on request",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHearingBulkCreateWithTx(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHearingRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO hearings").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO hearings").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)

	day := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	hearings := []models.Hearing{
		{CaseID: "c-1", BenchID: "b-1", JudgeID: "j-1", HearingDate: day, StartMinute: 540, EstimatedDurationMinutes: 60, Status: models.HearingStatusScheduled},
		{CaseID: "c-2", BenchID: "b-1", JudgeID: "j-1", HearingDate: day, StartMinute: 600, EstimatedDurationMinutes: 90, Status: models.HearingStatusScheduled},
	}
	require.NoError(t, repo.BulkCreateWithTx(context.Background(), tx, hearings))
	require.NoError(t, tx.Commit())

	assert.NotEmpty(t, hearings[0].ID)
	assert.NotEmpty(t, hearings[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/court-dcm-api/internal/models"
)

func benchRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "court_number", "daily_capacity_minutes", "active", "created_at", "updated_at"}).
		AddRow("b-1", "Court 1", 1, 480, true, now, now).
		AddRow("b-2", "Court 2", 2, 360, true, now, now)
}

func TestBenchListActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBenchRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM benches WHERE active = TRUE ORDER BY court_number ASC")).
		WillReturnRows(benchRows(time.Now()))

	benches, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, benches, 2)
	assert.Equal(t, 1, benches[0].CourtNumber)
	assert.Equal(t, 480, benches[0].CapacityMinutes())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBenchCreateGeneratesID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBenchRepository(db)

	mock.ExpectExec("INSERT INTO benches").WillReturnResult(sqlmock.NewResult(1, 1))

	bench := &models.Bench{Name: "Court 3", CourtNumber: 3, DailyCapacityMinutes: 480, Active: true}
	require.NoError(t, repo.Create(context.Background(), bench))
	assert.NotEmpty(t, bench.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBenchDeactivate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBenchRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE benches SET active = FALSE, updated_at = $2 WHERE id = $1")).
		WithArgs("b-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Deactivate(context.Background(), "b-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

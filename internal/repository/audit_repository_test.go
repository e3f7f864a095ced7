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

func TestAuditCreateGeneratesID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	userID := "user-1"
	resourceID := "c-1"
	entry := &models.AuditLog{
		UserID:     &userID,
		Action:     models.AuditActionCaseCreate,
		Resource:   "cases",
		ResourceID: &resourceID,
		NewValues:  []byte(`{"case_number":"CIV-001"}`),
		IPAddress:  "127.0.0.1",
		UserAgent:  "test-agent",
	}
	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditListByResourceDefaultsLimit(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	now := time.Now()
	userID := "user-1"
	resourceID := "c-1"
	rows := sqlmock.NewRows([]string{"id", "user_id", "action", "resource", "resource_id", "old_values", "new_values", "ip_address", "user_agent", "created_at"}).
		AddRow("a-1", userID, models.AuditActionTrackOverride, "cases", resourceID, nil, []byte(`{"track":"COMPLEX"}`), "127.0.0.1", "test-agent", now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM audit_logs WHERE resource = $1 AND resource_id = $2 ORDER BY created_at DESC LIMIT 50")).
		WithArgs("cases", "c-1").
		WillReturnRows(rows)

	logs, err := repo.ListByResource(context.Background(), "cases", "c-1", 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.AuditActionTrackOverride, logs[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}

package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/court-dcm-api/internal/dto"
	"github.com/noah-isme/court-dcm-api/internal/models"
	"github.com/noah-isme/court-dcm-api/internal/repository"
	appErrors "github.com/noah-isme/court-dcm-api/pkg/errors"
	"github.com/noah-isme/court-dcm-api/pkg/jobs"
	"github.com/noah-isme/court-dcm-api/pkg/storage"
)

type mockExportJobStore struct {
	jobs    map[string]*models.ExportJob
	nextSeq int
}

func newMockExportJobStore() *mockExportJobStore {
	return &mockExportJobStore{jobs: make(map[string]*models.ExportJob)}
}

func (m *mockExportJobStore) Create(ctx context.Context, job *models.ExportJob) error {
	m.nextSeq++
	if job.ID == "" {
		job.ID = fmt.Sprintf("job-%d", m.nextSeq)
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Date(2026, 3, 16, 10, 0, 0, 0, time.UTC)
	}
	m.jobs[job.ID] = job
	return nil
}

func (m *mockExportJobStore) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *job
	return &clone, nil
}

func (m *mockExportJobStore) Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error {
	job, ok := m.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.ResultURL != nil {
		job.ResultURL = params.ResultURL
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

func (m *mockExportJobStore) ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error) {
	out := make([]models.ExportJob, 0)
	for _, job := range m.jobs {
		if job.Status == models.ExportStatusQueued {
			out = append(out, *job)
		}
	}
	return out, nil
}

type mockEnqueuer struct {
	enqueued []jobs.Job
	err      error
}

func (m *mockEnqueuer) Enqueue(job jobs.Job) error {
	if m.err != nil {
		return m.err
	}
	m.enqueued = append(m.enqueued, job)
	return nil
}

type fakeExportCaseSource struct {
	cases []models.Case
}

func (f *fakeExportCaseSource) List(ctx context.Context, filter models.CaseFilter) ([]models.Case, int, error) {
	return f.cases, len(f.cases), nil
}

type fakeExportCauseListSource struct {
	rows []models.CauseListRow
}

func (f *fakeExportCauseListSource) ListCauseListByDate(ctx context.Context, date time.Time) ([]models.CauseListRow, error) {
	return f.rows, nil
}

func newTestExportService(t *testing.T, repo *mockExportJobStore, queue *mockEnqueuer) *ExportService {
	t.Helper()

	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("export-secret", time.Hour)

	track := models.TrackFast
	cases := &fakeExportCaseSource{cases: []models.Case{{
		ID: "c-1", CaseNumber: "CIV-001", Title: "First matter",
		CaseType: models.CaseTypeCivil, Status: models.CaseStatusScheduled,
		Priority: models.PriorityMedium, Track: &track,
		FilingDate:               time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		EstimatedDurationMinutes: 60,
	}}}
	hearings := &fakeExportCauseListSource{rows: []models.CauseListRow{{
		HearingID: "h-1", CaseID: "c-1", CaseNumber: "CIV-001", CaseTitle: "First matter",
		BenchID: "b-1", BenchName: "Court 1", JudgeID: "j-1", JudgeName: "Justice One",
		StartMinute: 540, Duration: 60, Status: models.HearingStatusScheduled,
	}}}

	svc := NewExportService(repo, cases, hearings, store, signer, validator.New(), zap.NewNop(), ExportServiceConfig{
		DownloadPrefix: "/api/v1/exports/download",
	})
	if queue != nil {
		svc.BindQueue(queue)
	}
	return svc
}

func TestExportCreateJobPersistsAndEnqueues(t *testing.T) {
	repo := newMockExportJobStore()
	queue := &mockEnqueuer{}
	svc := newTestExportService(t, repo, queue)

	resp, err := svc.CreateJob(context.Background(), dto.ExportRequest{
		Type:   models.ExportTypeCauseList,
		Format: models.ExportFormatCSV,
		Date:   "2026-03-16",
	}, "clerk-1")

	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, resp.Status)

	stored := repo.jobs[resp.ID]
	require.NotNil(t, stored)
	assert.Equal(t, "clerk-1", stored.CreatedBy)
	assert.Equal(t, "2026-03-16", stored.Params.Date)

	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, resp.ID, queue.enqueued[0].ID)
}

func TestExportCreateJobCauseListRequiresDate(t *testing.T) {
	svc := newTestExportService(t, newMockExportJobStore(), &mockEnqueuer{})

	_, err := svc.CreateJob(context.Background(), dto.ExportRequest{
		Type:   models.ExportTypeCauseList,
		Format: models.ExportFormatCSV,
	}, "clerk-1")

	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestExportCreateJobSurvivesEnqueueFailure(t *testing.T) {
	repo := newMockExportJobStore()
	queue := &mockEnqueuer{err: fmt.Errorf("queue stopped")}
	svc := newTestExportService(t, repo, queue)

	resp, err := svc.CreateJob(context.Background(), dto.ExportRequest{
		Type:   models.ExportTypeCaseRegister,
		Format: models.ExportFormatCSV,
	}, "clerk-1")

	// the persisted row survives a failed enqueue and is picked up on recovery
	require.NoError(t, err)
	assert.Equal(t, models.ExportStatusQueued, repo.jobs[resp.ID].Status)
}

func TestExportProcessCauseListCSV(t *testing.T) {
	repo := newMockExportJobStore()
	svc := newTestExportService(t, repo, &mockEnqueuer{})

	resp, err := svc.CreateJob(context.Background(), dto.ExportRequest{
		Type:   models.ExportTypeCauseList,
		Format: models.ExportFormatCSV,
		Date:   "2026-03-16",
	}, "clerk-1")
	require.NoError(t, err)

	err = svc.Process(context.Background(), jobs.Job{ID: resp.ID, Type: "export"})
	require.NoError(t, err)

	job := repo.jobs[resp.ID]
	assert.Equal(t, models.ExportStatusFinished, job.Status)
	require.NotNil(t, job.FinishedAt)
	require.NotNil(t, job.ResultURL)
	require.True(t, strings.HasPrefix(*job.ResultURL, "/api/v1/exports/download?token="))

	token := strings.TrimPrefix(*job.ResultURL, "/api/v1/exports/download?token=")
	file, relPath, err := svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck

	assert.True(t, strings.HasSuffix(relPath, ".csv"))
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Case Number")
	assert.Contains(t, string(content), "CIV-001")
	assert.Contains(t, string(content), "09:00")
}

func TestExportProcessCaseRegisterPDF(t *testing.T) {
	repo := newMockExportJobStore()
	svc := newTestExportService(t, repo, &mockEnqueuer{})

	resp, err := svc.CreateJob(context.Background(), dto.ExportRequest{
		Type:   models.ExportTypeCaseRegister,
		Format: models.ExportFormatPDF,
	}, "admin-1")
	require.NoError(t, err)

	err = svc.Process(context.Background(), jobs.Job{ID: resp.ID, Type: "export"})
	require.NoError(t, err)

	job := repo.jobs[resp.ID]
	assert.Equal(t, models.ExportStatusFinished, job.Status)
	require.NotNil(t, job.ResultURL)

	token := strings.TrimPrefix(*job.ResultURL, "/api/v1/exports/download?token=")
	file, relPath, err := svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer file.Close() //nolint:errcheck

	assert.True(t, strings.HasSuffix(relPath, ".pdf"))
	header := make([]byte, 4)
	_, err = file.Read(header)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(header))
}

func TestExportProcessMarksFailedOnBadParams(t *testing.T) {
	repo := newMockExportJobStore()
	svc := newTestExportService(t, repo, &mockEnqueuer{})

	job := &models.ExportJob{
		Type:   models.ExportTypeCauseList,
		Params: models.ExportJobParams{Date: "not-a-date", Format: models.ExportFormatCSV},
		Status: models.ExportStatusQueued,
	}
	require.NoError(t, repo.Create(context.Background(), job))

	err := svc.Process(context.Background(), jobs.Job{ID: job.ID, Type: "export"})
	require.Error(t, err)

	stored := repo.jobs[job.ID]
	assert.Equal(t, models.ExportStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Contains(t, *stored.ErrorMessage, "invalid cause list date")
	assert.NotNil(t, stored.FinishedAt)
}

func TestExportProcessSkipsFinishedJob(t *testing.T) {
	repo := newMockExportJobStore()
	svc := newTestExportService(t, repo, &mockEnqueuer{})

	url := "/api/v1/exports/download?token=old"
	job := &models.ExportJob{
		Type:      models.ExportTypeCaseRegister,
		Params:    models.ExportJobParams{Format: models.ExportFormatCSV},
		Status:    models.ExportStatusFinished,
		ResultURL: &url,
	}
	require.NoError(t, repo.Create(context.Background(), job))

	err := svc.Process(context.Background(), jobs.Job{ID: job.ID, Type: "export"})
	require.NoError(t, err)
	assert.Equal(t, &url, repo.jobs[job.ID].ResultURL)
}

func TestExportResolveDownloadRejectsBadToken(t *testing.T) {
	svc := newTestExportService(t, newMockExportJobStore(), &mockEnqueuer{})

	_, _, err := svc.ResolveDownload(context.Background(), "tampered.token.value.sig")

	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestExportResolveDownloadRejectsUnfinishedJob(t *testing.T) {
	repo := newMockExportJobStore()
	svc := newTestExportService(t, repo, &mockEnqueuer{})

	job := &models.ExportJob{
		Type:   models.ExportTypeCaseRegister,
		Params: models.ExportJobParams{Format: models.ExportFormatCSV},
		Status: models.ExportStatusQueued,
	}
	require.NoError(t, repo.Create(context.Background(), job))

	signer := storage.NewSignedURLSigner("export-secret", time.Hour)
	token, _, err := signer.Generate(job.ID, "2026-03-16/"+job.ID+".csv")
	require.NoError(t, err)

	_, _, err = svc.ResolveDownload(context.Background(), token)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
}

func TestExportRecoverPendingJobs(t *testing.T) {
	repo := newMockExportJobStore()
	queue := &mockEnqueuer{}
	svc := newTestExportService(t, repo, queue)

	for i := 0; i < 2; i++ {
		require.NoError(t, repo.Create(context.Background(), &models.ExportJob{
			Type:   models.ExportTypeCaseRegister,
			Params: models.ExportJobParams{Format: models.ExportFormatCSV},
			Status: models.ExportStatusQueued,
		}))
	}

	require.NoError(t, svc.RecoverPendingJobs(context.Background()))
	assert.Len(t, queue.enqueued, 2)
}

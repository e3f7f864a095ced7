package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/court-dcm-api/internal/dto"
	"github.com/noah-isme/court-dcm-api/internal/models"
	"github.com/noah-isme/court-dcm-api/internal/repository"
	appErrors "github.com/noah-isme/court-dcm-api/pkg/errors"
	"github.com/noah-isme/court-dcm-api/pkg/export"
	"github.com/noah-isme/court-dcm-api/pkg/jobs"
)

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error)
}

type exportCaseSource interface {
	List(ctx context.Context, filter models.CaseFilter) ([]models.Case, int, error)
}

type exportCauseListSource interface {
	ListCauseListByDate(ctx context.Context, date time.Time) ([]models.CauseListRow, error)
}

type exportEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type exportStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
}

type exportSigner interface {
	Generate(jobID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error)
}

// ExportServiceConfig configures export processing.
type ExportServiceConfig struct {
	// DownloadPrefix is the externally visible path of the download endpoint,
	// e.g. "/api/v1/exports/download".
	DownloadPrefix string
	// MaxRegisterRows caps the case register export size.
	MaxRegisterRows int
}

// ExportService runs asynchronous cause list and case register exports.
// Jobs are persisted first, then handed to the in-memory worker queue; on
// startup RecoverPendingJobs re-enqueues jobs a previous process left queued.
type ExportService struct {
	repo      exportJobStore
	cases     exportCaseSource
	hearings  exportCauseListSource
	queue     exportEnqueuer
	storage   exportStorage
	signer    exportSigner
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ExportServiceConfig
}

// NewExportService creates an instance of ExportService. The queue is set
// later via BindQueue because the queue handler needs the service itself.
func NewExportService(repo exportJobStore, cases exportCaseSource, hearings exportCauseListSource, storage exportStorage, signer exportSigner, validate *validator.Validate, logger *zap.Logger, cfg ExportServiceConfig) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DownloadPrefix == "" {
		cfg.DownloadPrefix = "/api/v1/exports/download"
	}
	if cfg.MaxRegisterRows <= 0 {
		cfg.MaxRegisterRows = 5000
	}
	return &ExportService{
		repo:      repo,
		cases:     cases,
		hearings:  hearings,
		storage:   storage,
		signer:    signer,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// BindQueue attaches the worker queue used for dispatching jobs.
func (s *ExportService) BindQueue(queue exportEnqueuer) {
	s.queue = queue
}

// CreateJob validates the request, persists a QUEUED job, and enqueues it.
func (s *ExportService) CreateJob(ctx context.Context, req dto.ExportRequest, actorID string) (*dto.ExportJobResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	if req.Type == models.ExportTypeCauseList && req.Date == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cause list exports require a date")
	}

	job := &models.ExportJob{
		Type: req.Type,
		Params: models.ExportJobParams{
			Date:    req.Date,
			BenchID: req.BenchID,
			Track:   req.Track,
			Status:  req.Status,
			Format:  req.Format,
		},
		Status:    models.ExportStatusQueued,
		CreatedBy: actorID,
	}

	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist export job")
	}

	if err := s.enqueue(job.ID); err != nil {
		// The job row survives; RecoverPendingJobs will retry it on restart.
		s.logger.Warn("failed to enqueue export job", zap.String("job_id", job.ID), zap.Error(err))
	}

	return &dto.ExportJobResponse{ID: job.ID, Status: job.Status}, nil
}

// GetStatus returns the job lifecycle state and result URL once finished.
func (s *ExportService) GetStatus(ctx context.Context, id string) (*dto.ExportStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	return &dto.ExportStatusResponse{
		ID:        job.ID,
		Status:    job.Status,
		ResultURL: job.ResultURL,
		Error:     job.ErrorMessage,
	}, nil
}

// ResolveDownload validates a signed token and opens the underlying file.
// The caller is responsible for closing the returned handle.
func (s *ExportService) ResolveDownload(ctx context.Context, token string) (*os.File, string, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}

	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.Status != models.ExportStatusFinished {
		return nil, "", appErrors.Clone(appErrors.ErrPreconditionFailed, "export is not finished")
	}

	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export file missing")
	}
	return file, relPath, nil
}

// RecoverPendingJobs re-enqueues jobs that were queued when the process died.
func (s *ExportService) RecoverPendingJobs(ctx context.Context) error {
	pending, err := s.repo.ListQueued(ctx, 0)
	if err != nil {
		return err
	}
	for _, job := range pending {
		if err := s.enqueue(job.ID); err != nil {
			s.logger.Warn("failed to recover export job", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	if len(pending) > 0 {
		s.logger.Info("recovered pending export jobs", zap.Int("count", len(pending)))
	}
	return nil
}

// Process is the queue handler. It renders the dataset and stores the result.
func (s *ExportService) Process(ctx context.Context, queued jobs.Job) error {
	job, err := s.repo.GetByID(ctx, queued.ID)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", queued.ID, err)
	}
	if job.Status == models.ExportStatusFinished {
		return nil
	}

	processing := models.ExportStatusProcessing
	if err := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &processing}); err != nil {
		return fmt.Errorf("mark export job processing: %w", err)
	}

	resultURL, err := s.run(ctx, job)
	finishedAt := time.Now().UTC()
	if err != nil {
		failed := models.ExportStatusFailed
		msg := err.Error()
		if updateErr := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
			Status:       &failed,
			ErrorMessage: &msg,
			FinishedAt:   &finishedAt,
		}); updateErr != nil {
			s.logger.Error("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(updateErr))
		}
		return err
	}

	finished := models.ExportStatusFinished
	if err := s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:     &finished,
		ResultURL:  &resultURL,
		FinishedAt: &finishedAt,
	}); err != nil {
		return fmt.Errorf("mark export job finished: %w", err)
	}

	s.logger.Info("export job finished",
		zap.String("job_id", job.ID),
		zap.String("type", string(job.Type)),
		zap.String("format", string(job.Params.Format)))
	return nil
}

func (s *ExportService) run(ctx context.Context, job *models.ExportJob) (string, error) {
	var (
		dataset export.Dataset
		title   string
		err     error
	)
	switch job.Type {
	case models.ExportTypeCauseList:
		dataset, title, err = s.causeListDataset(ctx, job.Params)
	case models.ExportTypeCaseRegister:
		dataset, title, err = s.caseRegisterDataset(ctx, job.Params)
	default:
		return "", fmt.Errorf("unsupported export type %q", job.Type)
	}
	if err != nil {
		return "", err
	}

	var payload []byte
	ext := "csv"
	switch job.Params.Format {
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
		ext = "pdf"
	default:
		payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		return "", fmt.Errorf("render export: %w", err)
	}

	relPath := fmt.Sprintf("%s/%s.%s", job.CreatedAt.UTC().Format("2006-01-02"), job.ID, ext)
	if _, err := s.storage.Save(relPath, payload); err != nil {
		return "", fmt.Errorf("store export: %w", err)
	}

	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return "", fmt.Errorf("sign export url: %w", err)
	}
	return s.cfg.DownloadPrefix + "?token=" + token, nil
}

func (s *ExportService) causeListDataset(ctx context.Context, params models.ExportJobParams) (export.Dataset, string, error) {
	date, err := time.ParseInLocation("2006-01-02", params.Date, time.UTC)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("invalid cause list date %q", params.Date)
	}

	rows, err := s.hearings.ListCauseListByDate(ctx, date)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load cause list: %w", err)
	}

	headers := []string{"Bench", "Start", "Case Number", "Title", "Track", "Judge", "Duration (min)", "Status"}
	dataset := export.Dataset{Headers: headers, Rows: make([]map[string]string, 0, len(rows))}
	for _, row := range rows {
		if params.BenchID != "" && row.BenchID != params.BenchID {
			continue
		}
		track := ""
		if row.Track != nil {
			track = string(*row.Track)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Bench":          row.BenchName,
			"Start":          minuteClock(row.StartMinute),
			"Case Number":    row.CaseNumber,
			"Title":          row.CaseTitle,
			"Track":          track,
			"Judge":          row.JudgeName,
			"Duration (min)": strconv.Itoa(row.Duration),
			"Status":         string(row.Status),
		})
	}
	return dataset, "Cause List " + params.Date, nil
}

func (s *ExportService) caseRegisterDataset(ctx context.Context, params models.ExportJobParams) (export.Dataset, string, error) {
	filter := models.CaseFilter{Page: 1, PageSize: s.cfg.MaxRegisterRows}
	if params.Track != "" {
		track := models.CaseTrack(params.Track)
		filter.Track = &track
	}
	if params.Status != "" {
		status := models.CaseStatus(params.Status)
		filter.Status = &status
	}

	cases, _, err := s.cases.List(ctx, filter)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load case register: %w", err)
	}

	headers := []string{"Case Number", "Title", "Type", "Track", "Status", "Priority", "Filed", "Duration (min)"}
	dataset := export.Dataset{Headers: headers, Rows: make([]map[string]string, 0, len(cases))}
	for _, c := range cases {
		track := ""
		if c.Track != nil {
			track = string(*c.Track)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Case Number":    c.CaseNumber,
			"Title":          c.Title,
			"Type":           string(c.CaseType),
			"Track":          track,
			"Status":         string(c.Status),
			"Priority":       string(c.Priority),
			"Filed":          c.FilingDate.Format("2006-01-02"),
			"Duration (min)": strconv.Itoa(c.EstimatedDurationMinutes),
		})
	}
	return dataset, "Case Register", nil
}

func (s *ExportService) enqueue(jobID string) error {
	if s.queue == nil {
		return fmt.Errorf("export queue not configured")
	}
	return s.queue.Enqueue(jobs.Job{ID: jobID, Type: "export"})
}

package service

import (
	"container/heap"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/court-dcm-api/internal/dto"
	"github.com/noah-isme/court-dcm-api/internal/models"
	appErrors "github.com/noah-isme/court-dcm-api/pkg/errors"
)

type schedulerCaseSource interface {
	ListSchedulable(ctx context.Context, ids []string) ([]models.Case, error)
	UpdateStatusWithTx(ctx context.Context, tx *sqlx.Tx, id string, status models.CaseStatus) error
}

type schedulerBenchSource interface {
	ListActive(ctx context.Context) ([]models.Bench, error)
}

type schedulerJudgeSource interface {
	ListActiveJudges(ctx context.Context) ([]models.User, error)
}

type schedulerHearingStore interface {
	ListByDateRange(ctx context.Context, from, to time.Time) ([]models.Hearing, error)
	ListByDate(ctx context.Context, date time.Time) ([]models.Hearing, error)
	BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, hearings []models.Hearing) error
}

type schedulerTxProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type schedulerAuditWriter interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

type trackResolver interface {
	Classify(c models.Case) models.Classification
}

type schedulerCacheInvalidator interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

type allocationObserver interface {
	ObserveAllocationRun(scheduled, unplaced int, placementRate float64, duration time.Duration)
}

// SchedulerConfig tunes the greedy allocator.
type SchedulerConfig struct {
	DailyCapacityMinutes int
	SlackFraction        float64
	OpeningTime          string
	MaxWindowDays        int
}

// SchedulerService runs the greedy hearing allocator: it places a
// priority-ordered backlog of cases onto dated bench slots, one calendar day
// at a time, re-queuing unplaced cases for the next day. A run is
// synchronous and in-memory; runs are serialized within this process so two
// allocations never race on the same capacity snapshot.
type SchedulerService struct {
	cases      schedulerCaseSource
	benches    schedulerBenchSource
	judges     schedulerJudgeSource
	hearings   schedulerHearingStore
	classifier trackResolver
	tx         schedulerTxProvider
	audit      schedulerAuditWriter
	cache      schedulerCacheInvalidator
	metrics    allocationObserver
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        SchedulerConfig

	openingMinute int
	now           func() time.Time
	mu            sync.Mutex
}

// NewSchedulerService wires allocator dependencies.
func NewSchedulerService(
	cases schedulerCaseSource,
	benches schedulerBenchSource,
	judges schedulerJudgeSource,
	hearings schedulerHearingStore,
	classifier trackResolver,
	tx schedulerTxProvider,
	audit schedulerAuditWriter,
	cache schedulerCacheInvalidator,
	metrics allocationObserver,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SchedulerConfig,
) *SchedulerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DailyCapacityMinutes <= 0 {
		cfg.DailyCapacityMinutes = models.DefaultBenchCapacityMinutes
	}
	if cfg.SlackFraction < 0 || cfg.SlackFraction >= 1 {
		cfg.SlackFraction = 0.15
	}
	if cfg.MaxWindowDays <= 0 {
		cfg.MaxWindowDays = 90
	}
	return &SchedulerService{
		cases:         cases,
		benches:       benches,
		judges:        judges,
		hearings:      hearings,
		classifier:    classifier,
		tx:            tx,
		audit:         audit,
		cache:         cache,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
		cfg:           cfg,
		openingMinute: parseClockMinute(cfg.OpeningTime, 9*60),
		now:           time.Now,
	}
}

// Allocate schedules the pending backlog over the requested window and, when
// the request is not a dry run, persists the hearing proposals and case
// status updates in one transaction. Partial placement is the expected
// steady state; unplaced cases are returned, never dropped.
func (s *SchedulerService) Allocate(ctx context.Context, req dto.AllocateRequest, actorID string) (*dto.SchedulingResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid allocation payload")
	}
	startDate, err := time.ParseInLocation("2006-01-02", req.StartDate, time.UTC)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "startDate must be formatted as YYYY-MM-DD")
	}
	if req.NumDays > s.cfg.MaxWindowDays {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("numDays must not exceed %d", s.cfg.MaxWindowDays))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	runStart := s.now()

	backlog, err := s.cases.ListSchedulable(ctx, req.CaseIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedulable cases")
	}
	benches, err := s.benches.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load benches")
	}
	if len(benches) == 0 {
		return nil, appErrors.ErrNoActiveBenches
	}
	judges, err := s.judges.ListActiveJudges(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load judges")
	}
	presiding := make([]models.User, 0, len(judges))
	for _, j := range judges {
		if j.CanPreside() {
			presiding = append(presiding, j)
		}
	}
	if len(presiding) == 0 {
		return nil, appErrors.ErrNoActiveJudges
	}

	endDate := startDate.AddDate(0, 0, req.NumDays-1)
	existing, err := s.hearings.ListByDateRange(ctx, startDate, endDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing hearings")
	}

	result, proposals := s.allocate(backlog, startDate, req.NumDays, benches, presiding, existing)

	if !req.DryRun && len(proposals) > 0 {
		if err := s.persist(ctx, proposals); err != nil {
			return nil, err
		}
		s.invalidateCauseLists(ctx, proposals)
	}

	s.recordRun(ctx, actorID, req, result)
	if s.metrics != nil {
		s.metrics.ObserveAllocationRun(result.Stats.ScheduledCount, result.Stats.UnplacedCount, result.Stats.PlacementRatePct, s.now().Sub(runStart))
	}

	s.logger.Info("allocation run complete",
		zap.String("start_date", req.StartDate),
		zap.Int("num_days", req.NumDays),
		zap.Int("scheduled", result.Stats.ScheduledCount),
		zap.Int("unplaced", result.Stats.UnplacedCount),
		zap.Bool("dry_run", req.DryRun),
	)

	return result, nil
}

// FindConflicts loads the stored hearings for a date and reports every pair
// whose time intervals overlap on the same bench.
func (s *SchedulerService) FindConflicts(ctx context.Context, date time.Time) ([]models.HearingConflict, error) {
	hearings, err := s.hearings.ListByDate(ctx, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load hearings")
	}
	return detectConflicts(hearings, date), nil
}

// PriorityScore derives the scheduling priority for a case. Higher scores are
// scheduled sooner. The score combines the DCM track weight, case age, the
// declared priority level, and a duration penalty so shorter cases pack
// earlier in a greedy sweep.
func (s *SchedulerService) PriorityScore(c models.Case) float64 {
	score := float64(trackWeight(s.resolveTrack(c))) * 10

	daysOld := s.now().UTC().Sub(c.FilingDate).Hours() / 24
	if daysOld < 0 {
		daysOld = 0
	}
	score += math.Min(daysOld*0.1, 10)

	switch c.Priority {
	case models.PriorityUrgent:
		score += 20
	case models.PriorityHigh:
		score += 15
	case models.PriorityLow:
		score += 5
	default:
		score += 10
	}

	score -= float64(c.EstimatedDurationMinutes) / 60 * 2

	return score
}

func (s *SchedulerService) resolveTrack(c models.Case) models.CaseTrack {
	if c.Track != nil {
		return *c.Track
	}
	if s.classifier != nil {
		return s.classifier.Classify(c).Track
	}
	return models.TrackComplex
}

func trackWeight(track models.CaseTrack) int {
	switch track {
	case models.TrackFast:
		return 3
	case models.TrackRegular:
		return 2
	default:
		return 1
	}
}

// allocate is the pure greedy sweep over the date window. It never touches
// storage; the caller supplies the capacity snapshot and persists the output.
func (s *SchedulerService) allocate(
	backlog []models.Case,
	startDate time.Time,
	numDays int,
	benches []models.Bench,
	judges []models.User,
	existing []models.Hearing,
) (*dto.SchedulingResult, []models.Hearing) {
	scheduledIDs := make(map[string]struct{}, len(existing))
	for _, h := range existing {
		scheduledIDs[h.CaseID] = struct{}{}
	}

	pending := &caseHeap{}
	heap.Init(pending)
	totalEligible := 0
	for _, c := range backlog {
		if _, ok := scheduledIDs[c.ID]; ok {
			continue
		}
		heap.Push(pending, caseEntry{score: s.PriorityScore(c), c: c})
		totalEligible++
	}

	result := &dto.SchedulingResult{
		ScheduledHearings: []dto.HearingProposal{},
		UnplacedCases:     []dto.UnplacedCase{},
	}
	result.Stats.TotalCases = totalEligible

	proposals := make([]models.Hearing, 0, totalEligible)
	judgeIdx := 0

	for offset := 0; offset < numDays; offset++ {
		day := startDate.AddDate(0, 0, offset)

		capacity := make(map[string]int, len(benches))
		cursor := make(map[string]int, len(benches))
		for _, b := range benches {
			capacity[b.ID] = s.availableMinutes(b, day, existing)
			cursor[b.ID] = s.openingMinute
		}
		for _, h := range existing {
			if !sameCalendarDay(h.HearingDate, day) {
				continue
			}
			if end := h.EndMinute(); end > cursor[h.BenchID] {
				cursor[h.BenchID] = end
			}
		}

		dailyScheduled := 0
		dailyDuration := 0
		carry := make([]caseEntry, 0, pending.Len())

		for pending.Len() > 0 {
			entry := heap.Pop(pending).(caseEntry)
			benchID, ok := tightestFitBench(benches, capacity, entry.c.EstimatedDurationMinutes)
			if !ok {
				carry = append(carry, entry)
				continue
			}

			judge := judges[judgeIdx%len(judges)]
			judgeIdx++

			start := cursor[benchID]
			hearing := models.Hearing{
				CaseID:                   entry.c.ID,
				BenchID:                  benchID,
				JudgeID:                  judge.ID,
				HearingDate:              day,
				StartMinute:              start,
				EstimatedDurationMinutes: entry.c.EstimatedDurationMinutes,
				Status:                   models.HearingStatusScheduled,
				Notes:                    fmt.Sprintf("Auto-scheduled via DCM allocator (priority %.2f)", entry.score),
			}
			proposals = append(proposals, hearing)

			result.ScheduledHearings = append(result.ScheduledHearings, dto.HearingProposal{
				CaseID:                   entry.c.ID,
				CaseNumber:               entry.c.CaseNumber,
				BenchID:                  benchID,
				JudgeID:                  judge.ID,
				HearingDate:              day.Format("2006-01-02"),
				StartTime:                minuteClock(start),
				EstimatedDurationMinutes: entry.c.EstimatedDurationMinutes,
				PriorityScore:            round2(entry.score),
			})

			capacity[benchID] -= entry.c.EstimatedDurationMinutes
			cursor[benchID] = start + entry.c.EstimatedDurationMinutes
			dailyScheduled++
			dailyDuration += entry.c.EstimatedDurationMinutes
			result.Stats.ScheduledCount++
			result.Stats.TotalDurationScheduled += entry.c.EstimatedDurationMinutes
		}

		for _, entry := range carry {
			heap.Push(pending, entry)
		}

		remaining := 0
		for _, minutes := range capacity {
			remaining += minutes
		}
		result.Stats.Days = append(result.Stats.Days, dto.DayBreakdown{
			Date:                 day.Format("2006-01-02"),
			ScheduledCount:       dailyScheduled,
			TotalDurationMinutes: dailyDuration,
			RemainingMinutes:     remaining,
		})
	}

	for pending.Len() > 0 {
		entry := heap.Pop(pending).(caseEntry)
		result.UnplacedCases = append(result.UnplacedCases, dto.UnplacedCase{
			CaseID:                   entry.c.ID,
			CaseNumber:               entry.c.CaseNumber,
			Track:                    entry.c.Track,
			EstimatedDurationMinutes: entry.c.EstimatedDurationMinutes,
		})
		result.Stats.UnplacedCount++
	}

	if result.Stats.TotalCases > 0 {
		result.Stats.PlacementRatePct = round2(float64(result.Stats.ScheduledCount) / float64(result.Stats.TotalCases) * 100)
	}
	if result.Stats.ScheduledCount > 0 {
		result.Stats.AverageDurationPerCase = round2(float64(result.Stats.TotalDurationScheduled) / float64(result.Stats.ScheduledCount))
	}

	return result, proposals
}

// availableMinutes computes the allocatable minutes for a bench on a date:
// the daily capacity minus the duration already booked, with the configured
// slack fraction withheld as buffer, floored and clamped at zero.
func (s *SchedulerService) availableMinutes(bench models.Bench, date time.Time, existing []models.Hearing) int {
	capacity := bench.DailyCapacityMinutes
	if capacity <= 0 {
		capacity = s.cfg.DailyCapacityMinutes
	}
	remaining := capacity
	for _, h := range existing {
		if h.BenchID == bench.ID && sameCalendarDay(h.HearingDate, date) {
			remaining -= h.EstimatedDurationMinutes
		}
	}
	allocatable := int(math.Floor(float64(remaining) * (1 - s.cfg.SlackFraction)))
	if allocatable < 0 {
		return 0
	}
	return allocatable
}

// tightestFitBench picks the eligible bench with the least surplus capacity,
// leaving larger benches open for subsequently larger cases. Ties resolve to
// the earlier bench in the supplied ordering.
func tightestFitBench(benches []models.Bench, capacity map[string]int, required int) (string, bool) {
	bestID := ""
	bestMinutes := 0
	for _, b := range benches {
		minutes := capacity[b.ID]
		if minutes < required {
			continue
		}
		if bestID == "" || minutes < bestMinutes {
			bestID = b.ID
			bestMinutes = minutes
		}
	}
	return bestID, bestID != ""
}

// detectConflicts flags every pair of hearings on the same bench and date
// whose half-open [start, start+duration) intervals overlap.
func detectConflicts(hearings []models.Hearing, date time.Time) []models.HearingConflict {
	byBench := make(map[string][]models.Hearing)
	order := make([]string, 0)
	for _, h := range hearings {
		if !sameCalendarDay(h.HearingDate, date) {
			continue
		}
		if _, ok := byBench[h.BenchID]; !ok {
			order = append(order, h.BenchID)
		}
		byBench[h.BenchID] = append(byBench[h.BenchID], h)
	}

	conflicts := make([]models.HearingConflict, 0)
	for _, benchID := range order {
		group := byBench[benchID]
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				if group[i].Overlaps(group[j]) {
					conflicts = append(conflicts, models.HearingConflict{
						Type:       "time_overlap",
						BenchID:    benchID,
						Date:       date,
						HearingID1: group[i].ID,
						HearingID2: group[j].ID,
						Description: fmt.Sprintf("Hearings %s and %s overlap on bench %s (%s-%s vs %s-%s)",
							group[i].ID, group[j].ID, benchID,
							minuteClock(group[i].StartMinute), minuteClock(group[i].EndMinute()),
							minuteClock(group[j].StartMinute), minuteClock(group[j].EndMinute())),
					})
				}
			}
		}
	}
	return conflicts
}

func (s *SchedulerService) persist(ctx context.Context, proposals []models.Hearing) error {
	if s.tx == nil {
		return appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin allocation transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.hearings.BulkCreateWithTx(ctx, tx, proposals); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist hearing proposals")
		return err
	}
	for _, h := range proposals {
		if err = s.cases.UpdateStatusWithTx(ctx, tx, h.CaseID, models.CaseStatusScheduled); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update case status")
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit allocation transaction")
		return err
	}
	return nil
}

func (s *SchedulerService) invalidateCauseLists(ctx context.Context, proposals []models.Hearing) {
	if s.cache == nil {
		return
	}
	seen := make(map[string]struct{})
	for _, h := range proposals {
		key := h.HearingDate.Format("2006-01-02")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if err := s.cache.DeleteByPattern(ctx, "causelist:"+key+"*"); err != nil {
			s.logger.Warn("failed to invalidate cause list cache", zap.String("date", key), zap.Error(err))
		}
	}
}

func (s *SchedulerService) recordRun(ctx context.Context, actorID string, req dto.AllocateRequest, result *dto.SchedulingResult) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"start_date":     req.StartDate,
		"num_days":       req.NumDays,
		"dry_run":        req.DryRun,
		"scheduled":      result.Stats.ScheduledCount,
		"unplaced":       result.Stats.UnplacedCount,
		"placement_rate": result.Stats.PlacementRatePct,
	})
	var userID *string
	if actorID != "" {
		userID = &actorID
	}
	if err := s.audit.Create(ctx, &models.AuditLog{
		UserID:    userID,
		Action:    models.AuditActionScheduleRun,
		Resource:  "schedule",
		NewValues: payload,
	}); err != nil {
		s.logger.Warn("failed to record allocation audit log", zap.Error(err))
	}
}

// caseEntry orders the backlog: highest priority score first, ties broken by
// case id ascending so runs are reproducible.
type caseEntry struct {
	score float64
	c     models.Case
}

type caseHeap []caseEntry

func (h caseHeap) Len() int { return len(h) }

func (h caseHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score > h[j].score
	}
	return h[i].c.ID < h[j].c.ID
}

func (h caseHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *caseHeap) Push(x interface{}) {
	*h = append(*h, x.(caseEntry))
}

func (h *caseHeap) Pop() interface{} {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[:n-1]
	return entry
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func minuteClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

func parseClockMinute(raw string, fallback int) int {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 {
		return fallback
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return fallback
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return fallback
	}
	return hour*60 + minute
}

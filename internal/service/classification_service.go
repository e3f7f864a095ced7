package service

import (
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/court-dcm-api/internal/models"
	"github.com/noah-isme/court-dcm-api/pkg/config"
)

// Score boundaries of the DCM tracks. A score at or below the fast threshold
// resolves to the fast track; at or above the complex threshold to complex.
const (
	fastTrackThreshold    = -2.0
	complexTrackThreshold = 3.0
)

var simpleTitleWords = []string{"simple", "minor", "small"}
var complexTitleWords = []string{"complex", "major", "serious", "criminal"}

// ClassificationService is the DCM rules engine. It classifies cases into
// Fast/Regular/Complex tracks from an immutable rule table injected at
// construction time. Classification is pure and total: every case resolves
// to exactly one track and the call never fails.
type ClassificationService struct {
	fastKeywords    []string
	complexKeywords []string
	complexTypes    map[models.CaseType]struct{}
	fastDuration    int
	longDuration    int
	priorityWeights map[models.CasePriority]float64
	logger          *zap.Logger
}

// NewClassificationService builds the engine from the configured rule tables.
func NewClassificationService(cfg config.DCMConfig, logger *zap.Logger) *ClassificationService {
	if logger == nil {
		logger = zap.NewNop()
	}

	fast := make([]string, 0, len(cfg.FastTrackKeywords))
	for _, kw := range cfg.FastTrackKeywords {
		fast = append(fast, strings.ToLower(kw))
	}
	complexKw := make([]string, 0, len(cfg.ComplexTrackKeywords))
	for _, kw := range cfg.ComplexTrackKeywords {
		complexKw = append(complexKw, strings.ToLower(kw))
	}
	complexTypes := make(map[models.CaseType]struct{}, len(cfg.ComplexCaseTypes))
	for _, ct := range cfg.ComplexCaseTypes {
		complexTypes[models.CaseType(strings.ToUpper(ct))] = struct{}{}
	}

	fastDuration := cfg.FastDurationMinutes
	if fastDuration <= 0 {
		fastDuration = 120
	}
	longDuration := cfg.LongDurationMinutes
	if longDuration <= 0 {
		longDuration = 480
	}

	weights := map[models.CasePriority]float64{
		models.PriorityUrgent: 1.5,
		models.PriorityHigh:   1.2,
		models.PriorityMedium: 1.0,
		models.PriorityLow:    0.8,
	}
	for name, w := range cfg.PriorityWeights {
		if w > 0 {
			weights[models.CasePriority(strings.ToUpper(name))] = w
		}
	}

	return &ClassificationService{
		fastKeywords:    fast,
		complexKeywords: complexKw,
		complexTypes:    complexTypes,
		fastDuration:    fastDuration,
		longDuration:    longDuration,
		priorityWeights: weights,
		logger:          logger,
	}
}

// Classify assigns a DCM track to the case, returning the signed rule score,
// a confidence in [0,1], and the list of reasons that contributed.
func (s *ClassificationService) Classify(c models.Case) models.Classification {
	score := 0.0
	reasons := make([]string, 0, 4)

	synopsis := strings.ToLower(c.Synopsis)

	var fastFound []string
	for _, kw := range s.fastKeywords {
		if strings.Contains(synopsis, kw) {
			fastFound = append(fastFound, kw)
			score -= 2.0
		}
	}
	if len(fastFound) > 0 {
		reasons = append(reasons, fmt.Sprintf("Fast track keywords found: %s", strings.Join(fastFound, ", ")))
	}

	var complexFound []string
	for _, kw := range s.complexKeywords {
		if strings.Contains(synopsis, kw) {
			complexFound = append(complexFound, kw)
			score += 3.0
		}
	}
	if len(complexFound) > 0 {
		reasons = append(reasons, fmt.Sprintf("Complex track keywords found: %s", strings.Join(complexFound, ", ")))
	}

	if _, ok := s.complexTypes[c.CaseType]; ok {
		score += 2.0
		reasons = append(reasons, fmt.Sprintf("Case type '%s' typically requires complex handling", c.CaseType))
	}

	weight, ok := s.priorityWeights[c.Priority]
	if !ok {
		weight = 1.0
	}
	if weight > 1.0 {
		score += (weight - 1.0) * 2
		reasons = append(reasons, fmt.Sprintf("High priority case (weight: %g)", weight))
	} else if weight < 1.0 {
		score -= (1.0 - weight) * 1
		reasons = append(reasons, fmt.Sprintf("Lower priority case (weight: %g)", weight))
	}

	duration := c.EstimatedDurationMinutes
	switch {
	case duration <= s.fastDuration:
		score -= 1.0
		reasons = append(reasons, fmt.Sprintf("Short estimated duration (%d minutes)", duration))
	case duration >= s.longDuration:
		score += 2.0
		reasons = append(reasons, fmt.Sprintf("Long estimated duration (%d minutes)", duration))
	default:
		reasons = append(reasons, fmt.Sprintf("Medium estimated duration (%d minutes)", duration))
	}

	title := strings.ToLower(c.Title)
	if containsAny(title, simpleTitleWords) {
		score -= 1.0
		reasons = append(reasons, "Title suggests simple case")
	} else if containsAny(title, complexTitleWords) {
		score += 1.5
		reasons = append(reasons, "Title suggests complex case")
	}

	var track models.CaseTrack
	var confidence float64
	switch {
	case score <= fastTrackThreshold:
		track = models.TrackFast
		confidence = math.Min(0.9, math.Abs(score)/5.0)
	case score >= complexTrackThreshold:
		track = models.TrackComplex
		confidence = math.Min(0.9, score/8.0)
	default:
		track = models.TrackRegular
		confidence = 0.7
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "Standard case classification applied")
	}

	return models.Classification{
		CaseID:     c.ID,
		Track:      track,
		Score:      round2(score),
		Confidence: round2(confidence),
		Reasons:    reasons,
	}
}

// ClassifyBatch classifies every case independently, preserving input order.
func (s *ClassificationService) ClassifyBatch(cases []models.Case) []models.Classification {
	out := make([]models.Classification, 0, len(cases))
	for _, c := range cases {
		out = append(out, s.Classify(c))
	}
	return out
}

// Summary aggregates batch classification output into per-track counts,
// percentages, and mean score/confidence.
func (s *ClassificationService) Summary(cases []models.Case) models.ClassificationSummary {
	classifications := s.ClassifyBatch(cases)

	counts := map[models.CaseTrack]int{
		models.TrackFast:    0,
		models.TrackRegular: 0,
		models.TrackComplex: 0,
	}
	totalScore := 0.0
	totalConfidence := 0.0
	for _, cl := range classifications {
		counts[cl.Track]++
		totalScore += cl.Score
		totalConfidence += cl.Confidence
	}

	total := len(classifications)
	percentages := make(map[models.CaseTrack]float64, len(counts))
	for track, count := range counts {
		if total > 0 {
			percentages[track] = round1(float64(count) / float64(total) * 100)
		} else {
			percentages[track] = 0
		}
	}

	summary := models.ClassificationSummary{
		TotalCases:        total,
		TrackDistribution: counts,
		TrackPercentages:  percentages,
	}
	if total > 0 {
		summary.AverageScore = round2(totalScore / float64(total))
		summary.AverageConfidence = round2(totalConfidence / float64(total))
	}
	return summary
}

func containsAny(haystack string, words []string) bool {
	for _, w := range words {
		if strings.Contains(haystack, w) {
			return true
		}
	}
	return false
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/court-dcm-api/internal/models"
	"github.com/noah-isme/court-dcm-api/pkg/config"
)

func testDCMConfig() config.DCMConfig {
	return config.DCMConfig{
		FastTrackKeywords:    []string{"traffic violation", "cheque bounce"},
		ComplexTrackKeywords: []string{"murder", "conspiracy", "money laundering"},
		ComplexCaseTypes:     []string{"CONSTITUTIONAL", "COMMERCIAL"},
		FastDurationMinutes:  120,
		LongDurationMinutes:  480,
	}
}

func TestClassifyFastTrack(t *testing.T) {
	svc := NewClassificationService(testDCMConfig(), zap.NewNop())

	result := svc.Classify(models.Case{
		ID:                       "case-1",
		Title:                    "Minor traffic offence",
		Synopsis:                 "Routine traffic violation near the city center",
		CaseType:                 models.CaseTypeCivil,
		Priority:                 models.PriorityLow,
		EstimatedDurationMinutes: 60,
	})

	// keyword -2.0, low priority -0.2, short duration -1.0, simple title -1.0
	assert.Equal(t, models.TrackFast, result.Track)
	assert.InDelta(t, -4.2, result.Score, 0.001)
	assert.InDelta(t, 0.84, result.Confidence, 0.001)
	assert.Contains(t, result.Reasons, "Fast track keywords found: traffic violation")
	assert.Contains(t, result.Reasons, "Short estimated duration (60 minutes)")
	assert.Contains(t, result.Reasons, "Title suggests simple case")
}

func TestClassifyComplexTrack(t *testing.T) {
	svc := NewClassificationService(testDCMConfig(), zap.NewNop())

	result := svc.Classify(models.Case{
		ID:                       "case-2",
		Title:                    "Serious criminal matter",
		Synopsis:                 "Murder with an alleged conspiracy across state lines",
		CaseType:                 models.CaseTypeConstitutional,
		Priority:                 models.PriorityUrgent,
		EstimatedDurationMinutes: 600,
	})

	// two keywords +6.0, complex type +2.0, urgent +1.0, long duration +2.0, title +1.5
	assert.Equal(t, models.TrackComplex, result.Track)
	assert.InDelta(t, 12.5, result.Score, 0.001)
	assert.InDelta(t, 0.9, result.Confidence, 0.001)
	assert.Contains(t, result.Reasons, "Case type 'CONSTITUTIONAL' typically requires complex handling")
	assert.Contains(t, result.Reasons, "High priority case (weight: 1.5)")
}

func TestClassifyRegularDefault(t *testing.T) {
	svc := NewClassificationService(testDCMConfig(), zap.NewNop())

	result := svc.Classify(models.Case{
		ID:                       "case-3",
		Title:                    "Property boundary dispute",
		Synopsis:                 "Disagreement over a shared fence line",
		CaseType:                 models.CaseTypeCivil,
		Priority:                 models.PriorityMedium,
		EstimatedDurationMinutes: 240,
	})

	assert.Equal(t, models.TrackRegular, result.Track)
	assert.InDelta(t, 0, result.Score, 0.001)
	assert.InDelta(t, 0.7, result.Confidence, 0.001)
	assert.Contains(t, result.Reasons, "Medium estimated duration (240 minutes)")
}

func TestClassifyFastThresholdInclusive(t *testing.T) {
	svc := NewClassificationService(testDCMConfig(), zap.NewNop())

	// keyword -2.0 and nothing else scoring: medium duration, medium priority.
	result := svc.Classify(models.Case{
		ID:                       "case-4",
		Title:                    "Bounced payment recovery",
		Synopsis:                 "Cheque bounce recovery claim",
		CaseType:                 models.CaseTypeCivil,
		Priority:                 models.PriorityMedium,
		EstimatedDurationMinutes: 240,
	})

	assert.Equal(t, models.TrackFast, result.Track)
	assert.InDelta(t, -2.0, result.Score, 0.001)
	assert.InDelta(t, 0.4, result.Confidence, 0.001)
}

func TestClassifyComplexThresholdInclusive(t *testing.T) {
	svc := NewClassificationService(testDCMConfig(), zap.NewNop())

	// one keyword +3.0 and nothing else scoring.
	result := svc.Classify(models.Case{
		ID:                       "case-5",
		Title:                    "State v. accused",
		Synopsis:                 "Charged with murder",
		CaseType:                 models.CaseTypeCivil,
		Priority:                 models.PriorityMedium,
		EstimatedDurationMinutes: 240,
	})

	assert.Equal(t, models.TrackComplex, result.Track)
	assert.InDelta(t, 3.0, result.Score, 0.001)
	assert.InDelta(t, 0.38, result.Confidence, 0.001)
}

func TestClassifyDeterministic(t *testing.T) {
	svc := NewClassificationService(testDCMConfig(), zap.NewNop())
	c := models.Case{
		ID:                       "case-6",
		Title:                    "Complex corporate restructuring",
		Synopsis:                 "Alleged money laundering through shell entities",
		CaseType:                 models.CaseTypeCommercial,
		Priority:                 models.PriorityHigh,
		EstimatedDurationMinutes: 300,
	}

	first := svc.Classify(c)
	second := svc.Classify(c)
	assert.Equal(t, first, second)
}

func TestSummaryAggregates(t *testing.T) {
	svc := NewClassificationService(testDCMConfig(), zap.NewNop())
	cases := []models.Case{
		{ID: "a", Title: "Minor dispute", Synopsis: "traffic violation", CaseType: models.CaseTypeCivil, Priority: models.PriorityLow, EstimatedDurationMinutes: 30},
		{ID: "b", Title: "Fence line", Synopsis: "boundary claim", CaseType: models.CaseTypeCivil, Priority: models.PriorityMedium, EstimatedDurationMinutes: 240},
		{ID: "c", Title: "Serious charge", Synopsis: "murder conspiracy", CaseType: models.CaseTypeConstitutional, Priority: models.PriorityUrgent, EstimatedDurationMinutes: 600},
		{ID: "d", Title: "Rent recovery", Synopsis: "cheque bounce", CaseType: models.CaseTypeCivil, Priority: models.PriorityLow, EstimatedDurationMinutes: 45},
	}

	summary := svc.Summary(cases)

	require.Equal(t, 4, summary.TotalCases)
	assert.Equal(t, 2, summary.TrackDistribution[models.TrackFast])
	assert.Equal(t, 1, summary.TrackDistribution[models.TrackRegular])
	assert.Equal(t, 1, summary.TrackDistribution[models.TrackComplex])
	assert.InDelta(t, 50.0, summary.TrackPercentages[models.TrackFast], 0.001)
	assert.InDelta(t, 25.0, summary.TrackPercentages[models.TrackRegular], 0.001)
	assert.Greater(t, summary.AverageConfidence, 0.0)
}

func TestSummaryEmpty(t *testing.T) {
	svc := NewClassificationService(testDCMConfig(), zap.NewNop())
	summary := svc.Summary(nil)
	assert.Equal(t, 0, summary.TotalCases)
	assert.Zero(t, summary.AverageScore)
	assert.Zero(t, summary.TrackPercentages[models.TrackFast])
}

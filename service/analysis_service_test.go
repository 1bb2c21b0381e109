package service

import (
	"context"
	"errors"
	"testing"

	"lexcase-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipelineFixtures() (*fakeExtractor, *fakeSummarizer, *fakeSuggester) {
	extractor := &fakeExtractor{result: &models.EvidenceResult{
		CombinedText: "combined",
		Facts:        []string{"a fact"},
		DataQuality:  models.DataQuality{CompletenessScore: 0.6},
	}}
	summarizer := &fakeSummarizer{result: &models.SummaryResult{
		Summary:         "a summary",
		ConfidenceScore: 0.8,
	}}
	suggester := &fakeSuggester{result: models.LegalSuggestionList{
		{SuggestedAction: "File suit", Priority: "High", Confidence: 85},
		{SuggestedAction: "Send notice", Priority: "Medium", Confidence: 60},
	}}
	return extractor, summarizer, suggester
}

func newTestAnalysisService(cases *fakeCaseStore, runs *fakeRunStore, e *fakeExtractor, s *fakeSummarizer, l *fakeSuggester) *AnalysisService {
	return NewAnalysisService(
		AnalysisWithCaseStore(cases),
		AnalysisWithRunStore(runs),
		AnalysisWithEvidenceService(e),
		AnalysisWithSummarizerService(s),
		AnalysisWithLegalActionService(l),
		AnalysisWithLogger(quietLogger()),
	)
}

func TestAnalyzeRunsFullPipeline(t *testing.T) {
	cases := newFakeCaseStore(&models.Case{CaseID: "CASE-1", Category: "civil", AnalysisStatus: models.AnalysisPending})
	runs := newFakeRunStore()
	extractor, summarizer, suggester := pipelineFixtures()
	svc := newTestAnalysisService(cases, runs, extractor, summarizer, suggester)

	result, err := svc.Analyze(context.Background(), AnalyzeRequest{CaseID: "CASE-1"})

	require.NoError(t, err)
	assert.Equal(t, models.AnalysisCompleted, result.Status)
	assert.False(t, result.Cached)
	assert.InDelta(t, 0.6, result.EvidenceConfidence, 1e-9)
	assert.InDelta(t, 0.8, result.SummaryConfidence, 1e-9)
	assert.InDelta(t, 85.0, result.LegalConfidence, 1e-9)
	assert.True(t, result.StagesCompleted.EvidenceChecking)
	assert.True(t, result.StagesCompleted.Summarization)
	assert.True(t, result.StagesCompleted.LegalActionAnalysis)
	require.NotNil(t, result.AnalysisTimestamp)

	// each stage persisted, then the case and run closed out
	assert.Equal(t, 1, cases.evidenceUpdates)
	assert.Equal(t, 1, cases.summaryUpdates)
	assert.Equal(t, 1, cases.legalUpdates)
	assert.Equal(t, []string{"CASE-1"}, cases.completed)
	assert.True(t, runs.completed)
	assert.Equal(t, []models.RunState{
		models.RunEvidenceChecking,
		models.RunSummarization,
		models.RunLegalAction,
	}, runs.progress)
}

func TestAnalyzeCompletedCaseReturnsCachedResult(t *testing.T) {
	summary := &models.SummaryResult{Summary: "stored"}
	cases := newFakeCaseStore(&models.Case{
		CaseID:            "CASE-1",
		AnalysisStatus:    models.AnalysisCompleted,
		EvidenceData:      &models.EvidenceResult{CombinedText: "stored"},
		SummaryData:       summary,
		SummaryConfidence: 0.9,
		LegalSuggestions:  models.LegalSuggestionList{{SuggestedAction: "File suit", Confidence: 80}},
		LegalConfidence:   80,
	})
	runs := newFakeRunStore()
	extractor, summarizer, suggester := pipelineFixtures()
	svc := newTestAnalysisService(cases, runs, extractor, summarizer, suggester)

	result, err := svc.Analyze(context.Background(), AnalyzeRequest{CaseID: "CASE-1"})

	require.NoError(t, err)
	assert.True(t, result.Cached)
	assert.Equal(t, summary, result.Summary)
	assert.Equal(t, 0, extractor.calls)
	assert.Equal(t, 0, summarizer.calls)
	assert.Equal(t, 0, suggester.calls)
	assert.Empty(t, runs.progress)
}

func TestAnalyzeForceReanalyzeClearsAndReruns(t *testing.T) {
	cases := newFakeCaseStore(&models.Case{
		CaseID:         "CASE-1",
		AnalysisStatus: models.AnalysisCompleted,
		EvidenceData:   &models.EvidenceResult{CombinedText: "stale"},
	})
	runs := newFakeRunStore()
	extractor, summarizer, suggester := pipelineFixtures()
	svc := newTestAnalysisService(cases, runs, extractor, summarizer, suggester)

	result, err := svc.Analyze(context.Background(), AnalyzeRequest{CaseID: "CASE-1", ForceReanalyze: true})

	require.NoError(t, err)
	assert.False(t, result.Cached)
	assert.Equal(t, []string{"CASE-1"}, cases.cleared)
	assert.Equal(t, 1, extractor.calls)
	assert.Equal(t, 1, summarizer.calls)
	assert.Equal(t, 1, suggester.calls)

	run, err := runs.GetLatestByCaseID(context.Background(), "CASE-1")
	require.NoError(t, err)
	assert.True(t, run.Forced)
}

func TestAnalyzeConcurrentRequestRejected(t *testing.T) {
	cases := newFakeCaseStore(&models.Case{CaseID: "CASE-1", AnalysisStatus: models.AnalysisProcessing})
	runs := newFakeRunStore()
	extractor, summarizer, suggester := pipelineFixtures()
	svc := newTestAnalysisService(cases, runs, extractor, summarizer, suggester)

	_, err := svc.Analyze(context.Background(), AnalyzeRequest{CaseID: "CASE-1"})

	assert.ErrorIs(t, err, ErrAnalysisInProgress)
	assert.Equal(t, 0, extractor.calls)
}

func TestAnalyzeUnknownCase(t *testing.T) {
	cases := newFakeCaseStore()
	runs := newFakeRunStore()
	extractor, summarizer, suggester := pipelineFixtures()
	svc := newTestAnalysisService(cases, runs, extractor, summarizer, suggester)

	_, err := svc.Analyze(context.Background(), AnalyzeRequest{CaseID: "CASE-404"})

	assert.ErrorIs(t, err, ErrCaseNotFound)
}

func TestAnalyzeStageFailureKeepsPartialProgress(t *testing.T) {
	cases := newFakeCaseStore(&models.Case{CaseID: "CASE-1", AnalysisStatus: models.AnalysisPending})
	runs := newFakeRunStore()
	extractor, summarizer, suggester := pipelineFixtures()
	summarizer.err = errors.New("model unavailable")
	svc := newTestAnalysisService(cases, runs, extractor, summarizer, suggester)

	_, err := svc.Analyze(context.Background(), AnalyzeRequest{CaseID: "CASE-1"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "summarization")

	// evidence persisted before the failure, legal stage never ran
	assert.Equal(t, 1, cases.evidenceUpdates)
	assert.Equal(t, 0, cases.legalUpdates)
	assert.Equal(t, 0, suggester.calls)
	assert.Contains(t, cases.failedMessages["CASE-1"], "model unavailable")
	assert.Contains(t, runs.failedWith, "model unavailable")

	c, getErr := cases.GetByID(context.Background(), "CASE-1")
	require.NoError(t, getErr)
	assert.Equal(t, models.AnalysisFailed, c.AnalysisStatus)
	assert.True(t, c.StagesCompleted().EvidenceChecking)
	assert.False(t, c.StagesCompleted().Summarization)
}

func TestAnalyzeCompletionWriteFailureMarksCaseFailed(t *testing.T) {
	cases := newFakeCaseStore(&models.Case{CaseID: "CASE-1", AnalysisStatus: models.AnalysisPending})
	cases.markCompleteErr = errors.New("connection reset")
	runs := newFakeRunStore()
	extractor, summarizer, suggester := pipelineFixtures()
	svc := newTestAnalysisService(cases, runs, extractor, summarizer, suggester)

	_, err := svc.Analyze(context.Background(), AnalyzeRequest{CaseID: "CASE-1"})
	require.Error(t, err)

	// the case must not be left in processing, or it could never be
	// claimed again
	c, getErr := cases.GetByID(context.Background(), "CASE-1")
	require.NoError(t, getErr)
	assert.Equal(t, models.AnalysisFailed, c.AnalysisStatus)
	require.NotNil(t, c.AnalysisError)
	assert.Contains(t, *c.AnalysisError, "connection reset")
	assert.Contains(t, runs.failedWith, "connection reset")

	// a forced retry can claim and complete once the store recovers
	cases.markCompleteErr = nil
	result, err := svc.Analyze(context.Background(), AnalyzeRequest{CaseID: "CASE-1", ForceReanalyze: true})
	require.NoError(t, err)
	assert.Equal(t, models.AnalysisCompleted, result.Status)
}

func TestGetStatusDerivesStagesFromStoredResults(t *testing.T) {
	cases := newFakeCaseStore(&models.Case{
		CaseID:         "CASE-1",
		AnalysisStatus: models.AnalysisFailed,
		EvidenceData:   &models.EvidenceResult{CombinedText: "partial"},
	})
	runs := newFakeRunStore()
	run := &models.AnalysisRun{CaseID: "CASE-1"}
	require.NoError(t, runs.Create(context.Background(), run))
	require.NoError(t, runs.Fail(context.Background(), run.ID, "boom"))

	extractor, summarizer, suggester := pipelineFixtures()
	svc := newTestAnalysisService(cases, runs, extractor, summarizer, suggester)

	status, err := svc.GetStatus(context.Background(), "CASE-1")

	require.NoError(t, err)
	assert.Equal(t, models.AnalysisFailed, status.AnalysisStatus)
	assert.True(t, status.StagesCompleted.EvidenceChecking)
	assert.False(t, status.StagesCompleted.Summarization)
	assert.Equal(t, models.RunFailed, status.RunState)
}

func TestGetResultsBeforeAnyAnalysis(t *testing.T) {
	cases := newFakeCaseStore(&models.Case{CaseID: "CASE-1", AnalysisStatus: models.AnalysisPending})
	runs := newFakeRunStore()
	extractor, summarizer, suggester := pipelineFixtures()
	svc := newTestAnalysisService(cases, runs, extractor, summarizer, suggester)

	_, err := svc.GetResults(context.Background(), "CASE-1")
	assert.ErrorIs(t, err, ErrNoAnalysis)

	_, _, err = svc.GetEvidenceResult(context.Background(), "CASE-1")
	assert.ErrorIs(t, err, ErrNoAnalysis)

	_, _, err = svc.GetSummaryResult(context.Background(), "CASE-1")
	assert.ErrorIs(t, err, ErrNoAnalysis)

	_, _, err = svc.GetLegalSuggestions(context.Background(), "CASE-1")
	assert.ErrorIs(t, err, ErrNoAnalysis)
}

func TestGetResultsAfterFailedRunServesStagesOnly(t *testing.T) {
	cases := newFakeCaseStore(&models.Case{
		CaseID:             "CASE-1",
		AnalysisStatus:     models.AnalysisFailed,
		EvidenceData:       &models.EvidenceResult{CombinedText: "partial"},
		EvidenceConfidence: 0.4,
	})
	runs := newFakeRunStore()
	extractor, summarizer, suggester := pipelineFixtures()
	svc := newTestAnalysisService(cases, runs, extractor, summarizer, suggester)

	// the aggregated view needs a completed analysis
	_, err := svc.GetResults(context.Background(), "CASE-1")
	assert.ErrorIs(t, err, ErrNoAnalysis)

	// but the persisted evidence stage is still readable
	evidence, confidence, err := svc.GetEvidenceResult(context.Background(), "CASE-1")
	require.NoError(t, err)
	assert.Equal(t, "partial", evidence.CombinedText)
	assert.InDelta(t, 0.4, confidence, 1e-9)
}

func TestGetResultsReturnsStoredBlobs(t *testing.T) {
	cases := newFakeCaseStore(&models.Case{
		CaseID:             "CASE-1",
		AnalysisStatus:     models.AnalysisCompleted,
		EvidenceData:       &models.EvidenceResult{CombinedText: "stored"},
		EvidenceConfidence: 0.5,
		SummaryData:        &models.SummaryResult{Summary: "stored"},
		SummaryConfidence:  0.7,
		LegalSuggestions:   models.LegalSuggestionList{{SuggestedAction: "File suit", Confidence: 75}},
		LegalConfidence:    75,
	})
	runs := newFakeRunStore()
	extractor, summarizer, suggester := pipelineFixtures()
	svc := newTestAnalysisService(cases, runs, extractor, summarizer, suggester)

	result, err := svc.GetResults(context.Background(), "CASE-1")
	require.NoError(t, err)
	assert.Equal(t, "stored", result.Evidence.CombinedText)

	evidence, confidence, err := svc.GetEvidenceResult(context.Background(), "CASE-1")
	require.NoError(t, err)
	assert.Equal(t, "stored", evidence.CombinedText)
	assert.InDelta(t, 0.5, confidence, 1e-9)

	suggestions, legalConfidence, err := svc.GetLegalSuggestions(context.Background(), "CASE-1")
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.InDelta(t, 75.0, legalConfidence, 1e-9)
}

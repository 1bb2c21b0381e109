package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lexcase-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CaseStore is the persistence surface the pipeline needs from the case
// repository.
type CaseStore interface {
	GetByID(ctx context.Context, caseID string) (*models.Case, error)
	TryStartAnalysis(ctx context.Context, caseID string) (bool, error)
	ClearAnalysis(ctx context.Context, caseID string) error
	UpdateEvidenceResult(ctx context.Context, caseID string, result *models.EvidenceResult, confidence float64) error
	UpdateSummaryResult(ctx context.Context, caseID string, result *models.SummaryResult, confidence float64) error
	UpdateLegalSuggestions(ctx context.Context, caseID string, suggestions models.LegalSuggestionList, confidence float64) error
	MarkAnalysisComplete(ctx context.Context, caseID string) error
	MarkAnalysisFailed(ctx context.Context, caseID string, errorMessage string) error
}

// RunStore is the persistence surface for pipeline run records
type RunStore interface {
	Create(ctx context.Context, run *models.AnalysisRun) error
	UpdateProgress(ctx context.Context, id uuid.UUID, state models.RunState, stages models.StageFlags) error
	Complete(ctx context.Context, id uuid.UUID, stages models.StageFlags) error
	Fail(ctx context.Context, id uuid.UUID, errorMessage string) error
	GetLatestByCaseID(ctx context.Context, caseID string) (*models.AnalysisRun, error)
	ListByCaseID(ctx context.Context, caseID string, limit int) ([]*models.AnalysisRun, error)
}

// evidenceExtractor runs the evidence extraction stage
type evidenceExtractor interface {
	Extract(ctx context.Context, caseID string, files models.EvidenceFileList) (*models.EvidenceResult, error)
}

// summarizer runs the summarization stage
type summarizer interface {
	Summarize(ctx context.Context, caseID string, evidence *models.EvidenceResult) (*models.SummaryResult, error)
}

// legalSuggester runs the legal action suggestion stage
type legalSuggester interface {
	Suggest(ctx context.Context, caseID, category string, summary *models.SummaryResult) (models.LegalSuggestionList, error)
}

// AnalysisService orchestrates the three-stage pipeline: evidence
// extraction, summarization, legal action suggestion. Each stage's output
// is persisted before the next stage starts, so a failed run keeps its
// partial progress.
type AnalysisService struct {
	cases       CaseStore
	runs        RunStore
	evidence    evidenceExtractor
	summarizer  summarizer
	legalAction legalSuggester
	logger      *slog.Logger
}

// AnalysisServiceOption is a functional option for AnalysisService
type AnalysisServiceOption func(*AnalysisService)

// AnalysisWithCaseStore sets the case persistence
func AnalysisWithCaseStore(cases CaseStore) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.cases = cases
	}
}

// AnalysisWithRunStore sets the run record persistence
func AnalysisWithRunStore(runs RunStore) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.runs = runs
	}
}

// AnalysisWithEvidenceService sets the evidence extraction stage
func AnalysisWithEvidenceService(evidence evidenceExtractor) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.evidence = evidence
	}
}

// AnalysisWithSummarizerService sets the summarization stage
func AnalysisWithSummarizerService(sum summarizer) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.summarizer = sum
	}
}

// AnalysisWithLegalActionService sets the legal action stage
func AnalysisWithLegalActionService(legal legalSuggester) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.legalAction = legal
	}
}

// AnalysisWithLogger sets the logger
func AnalysisWithLogger(logger *slog.Logger) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.logger = logger
	}
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(opts ...AnalysisServiceOption) *AnalysisService {
	s := &AnalysisService{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// AnalyzeRequest represents a request to run the analysis pipeline
type AnalyzeRequest struct {
	CaseID         string
	ForceReanalyze bool
}

// AnalyzeResult is the full pipeline output for a case
type AnalyzeResult struct {
	CaseID             string                     `json:"case_id"`
	Status             models.AnalysisStatus      `json:"status"`
	Evidence           *models.EvidenceResult     `json:"evidence,omitempty"`
	EvidenceConfidence float64                    `json:"evidence_confidence"`
	Summary            *models.SummaryResult      `json:"summary,omitempty"`
	SummaryConfidence  float64                    `json:"summary_confidence"`
	LegalSuggestions   models.LegalSuggestionList `json:"legal_suggestions"`
	LegalConfidence    float64                    `json:"legal_confidence"`
	StagesCompleted    models.StageFlags          `json:"stages_completed"`
	AnalysisTimestamp  *time.Time                 `json:"analysis_timestamp,omitempty"`
	Cached             bool                       `json:"cached"`
}

// Analyze runs the pipeline for a case. Completed cases return their
// stored results unless ForceReanalyze is set. Concurrent requests for
// the same case are serialized: the second caller gets
// ErrAnalysisInProgress.
func (s *AnalysisService) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResult, error) {
	c, err := s.getCase(ctx, req.CaseID)
	if err != nil {
		return nil, err
	}

	if c.AnalysisStatus == models.AnalysisCompleted && !req.ForceReanalyze {
		result := resultFromCase(c)
		result.Cached = true
		return result, nil
	}

	claimed, err := s.cases.TryStartAnalysis(ctx, req.CaseID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrAnalysisInProgress
	}

	if req.ForceReanalyze {
		if err := s.cases.ClearAnalysis(ctx, req.CaseID); err != nil {
			s.failCase(ctx, req.CaseID, nil, err)
			return nil, err
		}
	}

	run := &models.AnalysisRun{
		CaseID: req.CaseID,
		Forced: req.ForceReanalyze,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		s.failCase(ctx, req.CaseID, nil, err)
		return nil, err
	}

	s.logger.Info("analysis pipeline started",
		"case_id", req.CaseID,
		"run_id", run.ID,
		"forced", req.ForceReanalyze,
	)

	result, err := s.runPipeline(ctx, c, run)
	if err != nil {
		s.failCase(ctx, req.CaseID, &run.ID, err)
		return nil, err
	}

	if err := s.cases.MarkAnalysisComplete(ctx, req.CaseID); err != nil {
		// the case must not stay in processing, or no later request
		// could ever claim it again
		s.failCase(ctx, req.CaseID, &run.ID, err)
		return nil, err
	}
	if err := s.runs.Complete(ctx, run.ID, result.StagesCompleted); err != nil {
		s.logger.Warn("failed to close run record", "run_id", run.ID, "error", err)
	}

	now := time.Now().UTC()
	result.Status = models.AnalysisCompleted
	result.AnalysisTimestamp = &now

	s.logger.Info("analysis pipeline completed",
		"case_id", req.CaseID,
		"run_id", run.ID,
		"evidence_confidence", result.EvidenceConfidence,
		"summary_confidence", result.SummaryConfidence,
		"legal_confidence", result.LegalConfidence,
	)
	return result, nil
}

// runPipeline executes the three stages in order, persisting each
// stage's output before moving on.
func (s *AnalysisService) runPipeline(ctx context.Context, c *models.Case, run *models.AnalysisRun) (*AnalyzeResult, error) {
	result := &AnalyzeResult{CaseID: c.CaseID}
	var stages models.StageFlags

	// Stage 1: evidence extraction
	if err := s.runs.UpdateProgress(ctx, run.ID, models.RunEvidenceChecking, stages); err != nil {
		return nil, err
	}
	evidence, err := s.evidence.Extract(ctx, c.CaseID, c.EvidenceFiles)
	if err != nil {
		return nil, fmt.Errorf("evidence extraction: %w", err)
	}
	evidenceConfidence := evidence.DataQuality.CompletenessScore
	if err := s.cases.UpdateEvidenceResult(ctx, c.CaseID, evidence, evidenceConfidence); err != nil {
		return nil, err
	}
	stages.EvidenceChecking = true
	result.Evidence = evidence
	result.EvidenceConfidence = evidenceConfidence

	// Stage 2: summarization
	if err := s.runs.UpdateProgress(ctx, run.ID, models.RunSummarization, stages); err != nil {
		return nil, err
	}
	summary, err := s.summarizer.Summarize(ctx, c.CaseID, evidence)
	if err != nil {
		return nil, fmt.Errorf("summarization: %w", err)
	}
	if err := s.cases.UpdateSummaryResult(ctx, c.CaseID, summary, summary.ConfidenceScore); err != nil {
		return nil, err
	}
	stages.Summarization = true
	result.Summary = summary
	result.SummaryConfidence = summary.ConfidenceScore

	// Stage 3: legal action suggestion
	if err := s.runs.UpdateProgress(ctx, run.ID, models.RunLegalAction, stages); err != nil {
		return nil, err
	}
	suggestions, err := s.legalAction.Suggest(ctx, c.CaseID, c.Category, summary)
	if err != nil {
		return nil, fmt.Errorf("legal action suggestion: %w", err)
	}
	legalConfidence := TopConfidence(suggestions)
	if err := s.cases.UpdateLegalSuggestions(ctx, c.CaseID, suggestions, legalConfidence); err != nil {
		return nil, err
	}
	stages.LegalActionAnalysis = true
	result.LegalSuggestions = suggestions
	result.LegalConfidence = legalConfidence

	result.StagesCompleted = stages
	return result, nil
}

// failCase records a pipeline failure on both the case and its run
func (s *AnalysisService) failCase(ctx context.Context, caseID string, runID *uuid.UUID, cause error) {
	s.logger.Error("analysis pipeline failed", "case_id", caseID, "error", cause)

	if err := s.cases.MarkAnalysisFailed(ctx, caseID, cause.Error()); err != nil {
		s.logger.Error("failed to record case failure", "case_id", caseID, "error", err)
	}
	if runID != nil {
		if err := s.runs.Fail(ctx, *runID, cause.Error()); err != nil {
			s.logger.Error("failed to record run failure", "run_id", *runID, "error", err)
		}
	}
}

// StatusResult is the polling view of a case's analysis
type StatusResult struct {
	CaseID            string                `json:"case_id"`
	AnalysisStatus    models.AnalysisStatus `json:"analysis_status"`
	StagesCompleted   models.StageFlags     `json:"stages_completed"`
	RunState          models.RunState       `json:"run_state,omitempty"`
	AnalysisTimestamp *time.Time            `json:"analysis_timestamp,omitempty"`
	AnalysisError     *string               `json:"analysis_error,omitempty"`
}

// GetStatus reports analysis progress for a case. Stage completion is
// derived from which stage results are persisted, so it reflects partial
// progress of failed runs too.
func (s *AnalysisService) GetStatus(ctx context.Context, caseID string) (*StatusResult, error) {
	c, err := s.getCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	status := &StatusResult{
		CaseID:            c.CaseID,
		AnalysisStatus:    c.AnalysisStatus,
		StagesCompleted:   c.StagesCompleted(),
		AnalysisTimestamp: c.AnalysisTimestamp,
		AnalysisError:     c.AnalysisError,
	}

	run, err := s.runs.GetLatestByCaseID(ctx, caseID)
	if err == nil && run != nil {
		status.RunState = run.State
	}

	return status, nil
}

// GetResults returns the stored pipeline output for a case. The aggregated
// view only exists for completed analyses; partial results of a failed run
// stay reachable through the per-stage reads.
func (s *AnalysisService) GetResults(ctx context.Context, caseID string) (*AnalyzeResult, error) {
	c, err := s.getCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.AnalysisStatus != models.AnalysisCompleted {
		return nil, ErrNoAnalysis
	}
	return resultFromCase(c), nil
}

// GetEvidenceResult returns the stored evidence stage output
func (s *AnalysisService) GetEvidenceResult(ctx context.Context, caseID string) (*models.EvidenceResult, float64, error) {
	c, err := s.getCase(ctx, caseID)
	if err != nil {
		return nil, 0, err
	}
	if c.EvidenceData == nil {
		return nil, 0, ErrNoAnalysis
	}
	return c.EvidenceData, c.EvidenceConfidence, nil
}

// GetSummaryResult returns the stored summarization stage output
func (s *AnalysisService) GetSummaryResult(ctx context.Context, caseID string) (*models.SummaryResult, float64, error) {
	c, err := s.getCase(ctx, caseID)
	if err != nil {
		return nil, 0, err
	}
	if c.SummaryData == nil {
		return nil, 0, ErrNoAnalysis
	}
	return c.SummaryData, c.SummaryConfidence, nil
}

// GetLegalSuggestions returns the stored legal action stage output
func (s *AnalysisService) GetLegalSuggestions(ctx context.Context, caseID string) (models.LegalSuggestionList, float64, error) {
	c, err := s.getCase(ctx, caseID)
	if err != nil {
		return nil, 0, err
	}
	if c.LegalSuggestions == nil {
		return nil, 0, ErrNoAnalysis
	}
	return c.LegalSuggestions, c.LegalConfidence, nil
}

// ListRuns returns the pipeline run history for a case, newest first
func (s *AnalysisService) ListRuns(ctx context.Context, caseID string, limit int) ([]*models.AnalysisRun, error) {
	if _, err := s.getCase(ctx, caseID); err != nil {
		return nil, err
	}
	return s.runs.ListByCaseID(ctx, caseID, limit)
}

func (s *AnalysisService) getCase(ctx context.Context, caseID string) (*models.Case, error) {
	c, err := s.cases.GetByID(ctx, caseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCaseNotFound
		}
		return nil, err
	}
	return c, nil
}

func resultFromCase(c *models.Case) *AnalyzeResult {
	return &AnalyzeResult{
		CaseID:             c.CaseID,
		Status:             c.AnalysisStatus,
		Evidence:           c.EvidenceData,
		EvidenceConfidence: c.EvidenceConfidence,
		Summary:            c.SummaryData,
		SummaryConfidence:  c.SummaryConfidence,
		LegalSuggestions:   c.LegalSuggestions,
		LegalConfidence:    c.LegalConfidence,
		StagesCompleted:    c.StagesCompleted(),
		AnalysisTimestamp:  c.AnalysisTimestamp,
	}
}

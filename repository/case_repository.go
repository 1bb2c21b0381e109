package repository

import (
	"context"
	"fmt"

	"lexcase-backend/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CaseRepository handles database operations for cases
type CaseRepository struct {
	db *pgxpool.Pool
}

// NewCaseRepository creates a new case repository
func NewCaseRepository(db *pgxpool.Pool) *CaseRepository {
	return &CaseRepository{db: db}
}

const caseColumns = `case_id, title, category, priority, status, next_hearing,
	evidence_files, evidence_data, evidence_confidence,
	summary_data, summary_confidence,
	legal_suggestions, legal_confidence,
	analysis_status, analysis_timestamp, analysis_error,
	created_at, last_updated`

// Create inserts a new case
func (r *CaseRepository) Create(ctx context.Context, c *models.Case) error {
	query := `
		INSERT INTO cases (
			case_id, title, category, priority, status, next_hearing,
			evidence_files, analysis_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, last_updated`

	if c.EvidenceFiles == nil {
		c.EvidenceFiles = make(models.EvidenceFileList, 0)
	}
	if c.AnalysisStatus == "" {
		c.AnalysisStatus = models.AnalysisPending
	}

	return r.db.QueryRow(
		ctx, query,
		c.CaseID,
		c.Title,
		c.Category,
		c.Priority,
		c.Status,
		c.NextHearing,
		c.EvidenceFiles,
		c.AnalysisStatus,
	).Scan(&c.CreatedAt, &c.LastUpdated)
}

// GetByID retrieves a case by its external case id
func (r *CaseRepository) GetByID(ctx context.Context, caseID string) (*models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE case_id = $1`
	return r.scanCase(r.db.QueryRow(ctx, query, caseID))
}

// List retrieves cases, optionally filtered by case status
func (r *CaseRepository) List(ctx context.Context, status *string, limit, offset int) ([]*models.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases`
	args := []interface{}{}
	argIndex := 1

	if status != nil {
		query += fmt.Sprintf(" WHERE status = $%d", argIndex)
		args = append(args, *status)
		argIndex++
	}

	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, limit)
		argIndex++
		if offset > 0 {
			query += fmt.Sprintf(" OFFSET $%d", argIndex)
			args = append(args, offset)
		}
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cases []*models.Case
	for rows.Next() {
		c, err := r.scanCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

// Update updates case metadata fields. Analysis results go through the
// dedicated stage update methods.
func (r *CaseRepository) Update(ctx context.Context, c *models.Case) error {
	query := `
		UPDATE cases SET
			title = $2,
			category = $3,
			priority = $4,
			status = $5,
			next_hearing = $6,
			last_updated = NOW()
		WHERE case_id = $1
		RETURNING last_updated`

	return r.db.QueryRow(
		ctx, query,
		c.CaseID,
		c.Title,
		c.Category,
		c.Priority,
		c.Status,
		c.NextHearing,
	).Scan(&c.LastUpdated)
}

// Delete removes a case
func (r *CaseRepository) Delete(ctx context.Context, caseID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM cases WHERE case_id = $1`, caseID)
	return err
}

// UpdateEvidenceFiles replaces the case's evidence file list
func (r *CaseRepository) UpdateEvidenceFiles(ctx context.Context, caseID string, files models.EvidenceFileList) error {
	query := `
		UPDATE cases SET
			evidence_files = $2,
			last_updated = NOW()
		WHERE case_id = $1`

	_, err := r.db.Exec(ctx, query, caseID, files)
	return err
}

// TryStartAnalysis atomically claims a case for analysis by flipping its
// status to processing. Returns false when another pipeline already holds
// the claim, which serializes concurrent analyze requests per case.
func (r *CaseRepository) TryStartAnalysis(ctx context.Context, caseID string) (bool, error) {
	query := `
		UPDATE cases SET
			analysis_status = $2,
			analysis_error = NULL,
			last_updated = NOW()
		WHERE case_id = $1 AND analysis_status <> $2`

	tag, err := r.db.Exec(ctx, query, caseID, models.AnalysisProcessing)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ClearAnalysis discards all stored stage results before a forced re-run
func (r *CaseRepository) ClearAnalysis(ctx context.Context, caseID string) error {
	query := `
		UPDATE cases SET
			evidence_data = NULL,
			evidence_confidence = 0,
			summary_data = NULL,
			summary_confidence = 0,
			legal_suggestions = NULL,
			legal_confidence = 0,
			analysis_timestamp = NULL,
			analysis_error = NULL,
			last_updated = NOW()
		WHERE case_id = $1`

	_, err := r.db.Exec(ctx, query, caseID)
	return err
}

// UpdateEvidenceResult persists the evidence stage output
func (r *CaseRepository) UpdateEvidenceResult(ctx context.Context, caseID string, result *models.EvidenceResult, confidence float64) error {
	query := `
		UPDATE cases SET
			evidence_data = $2,
			evidence_confidence = $3,
			last_updated = NOW()
		WHERE case_id = $1`

	_, err := r.db.Exec(ctx, query, caseID, result, confidence)
	return err
}

// UpdateSummaryResult persists the summarization stage output
func (r *CaseRepository) UpdateSummaryResult(ctx context.Context, caseID string, result *models.SummaryResult, confidence float64) error {
	query := `
		UPDATE cases SET
			summary_data = $2,
			summary_confidence = $3,
			last_updated = NOW()
		WHERE case_id = $1`

	_, err := r.db.Exec(ctx, query, caseID, result, confidence)
	return err
}

// UpdateLegalSuggestions persists the legal action stage output
func (r *CaseRepository) UpdateLegalSuggestions(ctx context.Context, caseID string, suggestions models.LegalSuggestionList, confidence float64) error {
	query := `
		UPDATE cases SET
			legal_suggestions = $2,
			legal_confidence = $3,
			last_updated = NOW()
		WHERE case_id = $1`

	_, err := r.db.Exec(ctx, query, caseID, suggestions, confidence)
	return err
}

// MarkAnalysisComplete flips the case to completed and stamps the run
func (r *CaseRepository) MarkAnalysisComplete(ctx context.Context, caseID string) error {
	query := `
		UPDATE cases SET
			analysis_status = $2,
			analysis_timestamp = NOW(),
			analysis_error = NULL,
			last_updated = NOW()
		WHERE case_id = $1`

	_, err := r.db.Exec(ctx, query, caseID, models.AnalysisCompleted)
	return err
}

// MarkAnalysisFailed flips the case to failed and records the cause
func (r *CaseRepository) MarkAnalysisFailed(ctx context.Context, caseID string, errorMessage string) error {
	query := `
		UPDATE cases SET
			analysis_status = $2,
			analysis_error = $3,
			last_updated = NOW()
		WHERE case_id = $1`

	_, err := r.db.Exec(ctx, query, caseID, models.AnalysisFailed, errorMessage)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *CaseRepository) scanCase(row rowScanner) (*models.Case, error) {
	c := &models.Case{}
	err := row.Scan(
		&c.CaseID,
		&c.Title,
		&c.Category,
		&c.Priority,
		&c.Status,
		&c.NextHearing,
		&c.EvidenceFiles,
		&c.EvidenceData,
		&c.EvidenceConfidence,
		&c.SummaryData,
		&c.SummaryConfidence,
		&c.LegalSuggestions,
		&c.LegalConfidence,
		&c.AnalysisStatus,
		&c.AnalysisTimestamp,
		&c.AnalysisError,
		&c.CreatedAt,
		&c.LastUpdated,
	)
	if err != nil {
		return nil, err
	}

	if c.EvidenceFiles == nil {
		c.EvidenceFiles = make(models.EvidenceFileList, 0)
	}
	return c, nil
}

package repository

import (
	"context"

	"lexcase-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AnalysisRunRepository handles database operations for pipeline run records
type AnalysisRunRepository struct {
	db *pgxpool.Pool
}

// NewAnalysisRunRepository creates a new analysis run repository
func NewAnalysisRunRepository(db *pgxpool.Pool) *AnalysisRunRepository {
	return &AnalysisRunRepository{db: db}
}

const runColumns = `id, case_id, state, stages, forced, error_message,
	created_at, updated_at, completed_at`

// Create inserts a new run record in the pending state
func (r *AnalysisRunRepository) Create(ctx context.Context, run *models.AnalysisRun) error {
	query := `
		INSERT INTO analysis_runs (case_id, state, stages, forced)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	if run.State == "" {
		run.State = models.RunPending
	}

	return r.db.QueryRow(
		ctx, query,
		run.CaseID,
		run.State,
		run.Stages,
		run.Forced,
	).Scan(&run.ID, &run.CreatedAt, &run.UpdatedAt)
}

// GetByID retrieves a run by its id
func (r *AnalysisRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AnalysisRun, error) {
	query := `SELECT ` + runColumns + ` FROM analysis_runs WHERE id = $1`
	return r.scanRun(r.db.QueryRow(ctx, query, id))
}

// GetLatestByCaseID retrieves the most recent run for a case
func (r *AnalysisRunRepository) GetLatestByCaseID(ctx context.Context, caseID string) (*models.AnalysisRun, error) {
	query := `SELECT ` + runColumns + ` FROM analysis_runs
		WHERE case_id = $1
		ORDER BY created_at DESC
		LIMIT 1`
	return r.scanRun(r.db.QueryRow(ctx, query, caseID))
}

// ListByCaseID retrieves the run history for a case, newest first
func (r *AnalysisRunRepository) ListByCaseID(ctx context.Context, caseID string, limit int) ([]*models.AnalysisRun, error) {
	query := `SELECT ` + runColumns + ` FROM analysis_runs
		WHERE case_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(ctx, query, caseID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.AnalysisRun
	for rows.Next() {
		run, err := r.scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// UpdateProgress advances the run's state machine and stage flags
func (r *AnalysisRunRepository) UpdateProgress(ctx context.Context, id uuid.UUID, state models.RunState, stages models.StageFlags) error {
	query := `
		UPDATE analysis_runs SET
			state = $2,
			stages = $3,
			updated_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, state, stages)
	return err
}

// Complete marks the run as finished
func (r *AnalysisRunRepository) Complete(ctx context.Context, id uuid.UUID, stages models.StageFlags) error {
	query := `
		UPDATE analysis_runs SET
			state = $2,
			stages = $3,
			updated_at = NOW(),
			completed_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, models.RunCompleted, stages)
	return err
}

// Fail marks the run as failed and records the cause
func (r *AnalysisRunRepository) Fail(ctx context.Context, id uuid.UUID, errorMessage string) error {
	query := `
		UPDATE analysis_runs SET
			state = $2,
			error_message = $3,
			updated_at = NOW(),
			completed_at = NOW()
		WHERE id = $1`

	_, err := r.db.Exec(ctx, query, id, models.RunFailed, errorMessage)
	return err
}

func (r *AnalysisRunRepository) scanRun(row rowScanner) (*models.AnalysisRun, error) {
	run := &models.AnalysisRun{}
	err := row.Scan(
		&run.ID,
		&run.CaseID,
		&run.State,
		&run.Stages,
		&run.Forced,
		&run.ErrorMessage,
		&run.CreatedAt,
		&run.UpdatedAt,
		&run.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return run, nil
}

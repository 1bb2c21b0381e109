package repository

import (
	"context"

	"lexcase-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ScheduleRepository handles database operations for case calendar entries
type ScheduleRepository struct {
	db *pgxpool.Pool
}

// NewScheduleRepository creates a new schedule repository
func NewScheduleRepository(db *pgxpool.Pool) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

const scheduleColumns = `id, case_id, date, start_time, end_time, event_type, description, created_at`

// Create inserts a new schedule entry
func (r *ScheduleRepository) Create(ctx context.Context, s *models.Schedule) error {
	query := `
		INSERT INTO schedules (case_id, date, start_time, end_time, event_type, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	return r.db.QueryRow(
		ctx, query,
		s.CaseID,
		s.Date,
		s.StartTime,
		s.EndTime,
		s.EventType,
		s.Description,
	).Scan(&s.ID, &s.CreatedAt)
}

// ListByCaseID retrieves all schedule entries for a case ordered by date
func (r *ScheduleRepository) ListByCaseID(ctx context.Context, caseID string) ([]*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules
		WHERE case_id = $1
		ORDER BY date, start_time`
	return r.list(ctx, query, caseID)
}

// ListByDateRange retrieves schedule entries whose date falls in [from, to]
func (r *ScheduleRepository) ListByDateRange(ctx context.Context, from, to string) ([]*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules
		WHERE date >= $1 AND date <= $2
		ORDER BY date, start_time`
	return r.list(ctx, query, from, to)
}

// ExistsForCaseDate reports whether a case already has an entry of the given
// event type on a date. Used to avoid duplicate auto-created hearings.
func (r *ScheduleRepository) ExistsForCaseDate(ctx context.Context, caseID, date, eventType string) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM schedules
		WHERE case_id = $1 AND date = $2 AND event_type = $3
	)`

	var exists bool
	err := r.db.QueryRow(ctx, query, caseID, date, eventType).Scan(&exists)
	return exists, err
}

// Delete removes a schedule entry
func (r *ScheduleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	return err
}

// DeleteByCaseID removes all schedule entries for a case
func (r *ScheduleRepository) DeleteByCaseID(ctx context.Context, caseID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM schedules WHERE case_id = $1`, caseID)
	return err
}

func (r *ScheduleRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Schedule, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var schedules []*models.Schedule
	for rows.Next() {
		s := &models.Schedule{}
		err := rows.Scan(
			&s.ID,
			&s.CaseID,
			&s.Date,
			&s.StartTime,
			&s.EndTime,
			&s.EventType,
			&s.Description,
			&s.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

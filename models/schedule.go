package models

import (
	"time"

	"github.com/google/uuid"
)

// Schedule represents a calendar entry tied to a case, such as a hearing
type Schedule struct {
	ID          uuid.UUID `json:"id"`
	CaseID      string    `json:"case_id"`
	Date        string    `json:"date"` // YYYY-MM-DD
	StartTime   string    `json:"start_time"`
	EndTime     string    `json:"end_time"`
	EventType   string    `json:"event_type"` // "hearing", "filing", "meeting"
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

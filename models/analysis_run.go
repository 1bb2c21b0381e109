package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RunState represents the position of a pipeline run in its state machine
type RunState string

const (
	RunPending          RunState = "pending"
	RunEvidenceChecking RunState = "evidence_checking"
	RunSummarization    RunState = "summarization"
	RunLegalAction      RunState = "legal_action"
	RunCompleted        RunState = "completed"
	RunFailed           RunState = "failed"
)

// StageFlags records which pipeline stages have finished
type StageFlags struct {
	EvidenceChecking    bool `json:"evidence_checking"`
	Summarization       bool `json:"summarization"`
	LegalActionAnalysis bool `json:"legal_action_analysis"`
}

// Value implements driver.Valuer for JSONB
func (s StageFlags) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner for JSONB
func (s *StageFlags) Scan(value interface{}) error {
	return scanJSON(value, s)
}

// AnalysisRun is the audit record of one pipeline execution for a case.
// The Case row always holds the latest results; runs keep the history and
// the in-flight progress read by the status endpoint.
type AnalysisRun struct {
	ID           uuid.UUID  `json:"id"`
	CaseID       string     `json:"case_id"`
	State        RunState   `json:"state"`
	Stages       StageFlags `json:"stages"`
	Forced       bool       `json:"forced"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

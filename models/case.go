package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// AnalysisStatus represents the persisted status of a case's AI analysis
type AnalysisStatus string

const (
	AnalysisPending    AnalysisStatus = "pending"
	AnalysisProcessing AnalysisStatus = "processing"
	AnalysisCompleted  AnalysisStatus = "completed"
	AnalysisFailed     AnalysisStatus = "failed"
)

// TimelineEvent is a single dated entry in the reconstructed case chronology
type TimelineEvent struct {
	Date        string `json:"date"`
	Description string `json:"description"`
}

// KeyEntities holds the entity buckets surfaced to the frontend
type KeyEntities struct {
	Persons      []string `json:"persons"`
	MoneyAmounts []string `json:"money_amounts"`
	Dates        []string `json:"dates"`
	Locations    []string `json:"locations"`
}

// CompletenessAssessment reports what the evidence covers and what is missing
type CompletenessAssessment struct {
	CaseReadiness      float64  `json:"case_readiness"` // 0-1
	PresentInformation []string `json:"present_information"`
	MissingInformation []string `json:"missing_information"`
}

// SourceFileReport describes one evidence file that contributed to extraction
type SourceFileReport struct {
	FileName string `json:"file_name"`
	Category string `json:"category"`
	Size     int64  `json:"size"`
	SHA256   string `json:"sha256"`
	Skipped  bool   `json:"skipped,omitempty"`
	Note     string `json:"note,omitempty"`
}

// IntegrityCheck summarizes file-level validation for an extraction pass
type IntegrityCheck struct {
	AllFilesValid bool      `json:"all_files_valid"`
	TotalFiles    int       `json:"total_files"`
	ProcessedAt   time.Time `json:"processed_at"`
}

// DataQuality carries extraction quality signals used for confidence scoring
type DataQuality struct {
	TextLength        int     `json:"text_length"`
	EntitiesExtracted int     `json:"entities_extracted"`
	CompletenessScore float64 `json:"completeness_score"` // 0-1
}

// EvidenceResult is the persisted output of the evidence extraction stage
type EvidenceResult struct {
	CombinedText           string                 `json:"combined_text"`
	Facts                  []string               `json:"facts"`
	WitnessStatements      []string               `json:"witness_statements"`
	LegalReferences        []string               `json:"legal_references"`
	Timeline               []TimelineEvent        `json:"timeline"`
	KeyEntities            KeyEntities            `json:"key_entities"`
	SourceFiles            []SourceFileReport     `json:"source_files"`
	IntegrityCheck         IntegrityCheck         `json:"integrity_check"`
	DataQuality            DataQuality            `json:"data_quality"`
	CompletenessAssessment CompletenessAssessment `json:"completeness_assessment"`
	Limitations            []string               `json:"limitations,omitempty"`
}

// Value implements driver.Valuer for JSONB
func (e EvidenceResult) Value() (driver.Value, error) {
	return json.Marshal(e)
}

// Scan implements sql.Scanner for JSONB
func (e *EvidenceResult) Scan(value interface{}) error {
	return scanJSON(value, e)
}

// SummaryResult is the persisted output of the summarization stage
type SummaryResult struct {
	Summary         string   `json:"summary"`
	Facts           []string `json:"facts"`
	KeyPoints       []string `json:"key_points"`
	LegalIssues     []string `json:"legal_issues"`
	ConfidenceScore float64  `json:"confidence_score"` // 0-1
	Degraded        bool     `json:"degraded,omitempty"`
}

// Value implements driver.Valuer for JSONB
func (s SummaryResult) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner for JSONB
func (s *SummaryResult) Scan(value interface{}) error {
	return scanJSON(value, s)
}

// LegalActionSuggestion is one recommended action with its legal grounding
type LegalActionSuggestion struct {
	SuggestedAction string   `json:"suggested_action"`
	Priority        string   `json:"priority"` // "High", "Medium", "Low"
	Confidence      float64  `json:"confidence"` // 0-100
	ApplicableLaws  []string `json:"applicable_laws"`
	Reasoning       string   `json:"reasoning"`
	RiskFactors     []string `json:"risk_factors"`
	NextSteps       []string `json:"next_steps"`
}

// LegalSuggestionList is the ordered legal action stage output, stored as JSONB
type LegalSuggestionList []LegalActionSuggestion

// Value implements driver.Valuer for JSONB
func (l LegalSuggestionList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

// Scan implements sql.Scanner for JSONB
func (l *LegalSuggestionList) Scan(value interface{}) error {
	if value == nil {
		*l = make(LegalSuggestionList, 0)
		return nil
	}
	return scanJSON(value, l)
}

// Case represents a legal case and its latest analysis results
type Case struct {
	CaseID      string  `json:"case_id"` // externally assigned, unique
	Title       string  `json:"title"`
	Category    string  `json:"category"`
	Priority    string  `json:"priority"`
	Status      string  `json:"status"`
	NextHearing *string `json:"next_hearing,omitempty"` // YYYY-MM-DD

	EvidenceFiles EvidenceFileList `json:"evidence_files"`

	// Stage 1: Evidence extraction
	EvidenceData       *EvidenceResult `json:"evidence_data,omitempty"`
	EvidenceConfidence float64         `json:"evidence_confidence"` // 0-1

	// Stage 2: Summarization
	SummaryData       *SummaryResult `json:"summary_data,omitempty"`
	SummaryConfidence float64        `json:"summary_confidence"` // 0-1

	// Stage 3: Legal action analysis
	LegalSuggestions LegalSuggestionList `json:"legal_suggestions,omitempty"`
	LegalConfidence  float64             `json:"legal_confidence"` // 0-100

	AnalysisStatus    AnalysisStatus `json:"analysis_status"`
	AnalysisTimestamp *time.Time     `json:"analysis_timestamp,omitempty"`
	AnalysisError     *string        `json:"analysis_error,omitempty"`

	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
}

// StagesCompleted reports which pipeline stages have persisted results.
// A stage counts as finished once its result blob is stored, so partial
// progress survives a failed run.
func (c *Case) StagesCompleted() StageFlags {
	return StageFlags{
		EvidenceChecking:    c.EvidenceData != nil,
		Summarization:       c.SummaryData != nil,
		LegalActionAnalysis: c.LegalSuggestions != nil,
	}
}

// scanJSON decodes a JSONB column value that pgx may hand back as
// []byte or string.
func scanJSON(value interface{}, dest interface{}) error {
	if value == nil {
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	if len(bytes) == 0 {
		return nil
	}

	return json.Unmarshal(bytes, dest)
}

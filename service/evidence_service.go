package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"lexcase-backend/llm"
	"lexcase-backend/models"
	"lexcase-backend/storage"

	"github.com/ledongthuc/pdf"
)

// maxEvidenceFileBytes caps how much of a single evidence file is read
// during extraction.
const maxEvidenceFileBytes = 50 << 20

// EvidenceService runs the evidence extraction stage: it pulls every
// uploaded file out of storage, turns each into text, fuses the texts
// into one attributed document, and mines entities from it.
type EvidenceService struct {
	store     storage.Storage
	completer llm.Completer
	media     llm.MediaTranscriber
	logger    *slog.Logger
}

// EvidenceServiceOption is a functional option for EvidenceService
type EvidenceServiceOption func(*EvidenceService)

// EvidenceWithStorage sets the evidence file storage backend
func EvidenceWithStorage(store storage.Storage) EvidenceServiceOption {
	return func(s *EvidenceService) {
		s.store = store
	}
}

// EvidenceWithCompleter sets the text completion client
func EvidenceWithCompleter(completer llm.Completer) EvidenceServiceOption {
	return func(s *EvidenceService) {
		s.completer = completer
	}
}

// EvidenceWithMediaTranscriber sets the image/audio/video transcription client
func EvidenceWithMediaTranscriber(media llm.MediaTranscriber) EvidenceServiceOption {
	return func(s *EvidenceService) {
		s.media = media
	}
}

// EvidenceWithLogger sets the logger
func EvidenceWithLogger(logger *slog.Logger) EvidenceServiceOption {
	return func(s *EvidenceService) {
		s.logger = logger
	}
}

// NewEvidenceService creates a new evidence service
func NewEvidenceService(opts ...EvidenceServiceOption) *EvidenceService {
	s := &EvidenceService{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// extractedFile pairs one evidence file with the text pulled out of it
type extractedFile struct {
	file models.EvidenceFile
	text string
	err  error
	note string
}

// Extract runs evidence extraction over the case's files. Individual file
// failures never abort the stage; they become limitations in the result.
// A case with zero usable evidence still produces a result, at minimum
// readiness.
func (s *EvidenceService) Extract(ctx context.Context, caseID string, files models.EvidenceFileList) (*models.EvidenceResult, error) {
	extracted := make([]extractedFile, 0, len(files))
	for _, f := range files {
		ef := s.extractFile(ctx, f)
		if ef.err != nil {
			s.logger.Warn("evidence file extraction failed",
				"case_id", caseID,
				"file", f.Name,
				"category", string(f.Category),
				"error", ef.err,
			)
		}
		extracted = append(extracted, ef)
	}

	result := &models.EvidenceResult{
		CombinedText: fuseTexts(extracted),
	}

	allValid := true
	for _, ef := range extracted {
		report := models.SourceFileReport{
			FileName: ef.file.Name,
			Category: string(ef.file.Category),
			Size:     ef.file.Size,
			SHA256:   ef.file.SHA256,
		}
		if ef.err != nil {
			report.Skipped = true
			report.Note = ef.err.Error()
			allValid = false
			result.Limitations = append(result.Limitations, fmt.Sprintf("%s: %s", ef.file.Name, ef.err.Error()))
		} else if ef.note != "" {
			report.Note = ef.note
		}
		result.SourceFiles = append(result.SourceFiles, report)
	}
	result.IntegrityCheck = models.IntegrityCheck{
		AllFilesValid: allValid,
		TotalFiles:    len(files),
		ProcessedAt:   time.Now().UTC(),
	}

	s.mineEntities(ctx, caseID, result)

	entityCount := len(result.KeyEntities.Persons) +
		len(result.KeyEntities.Dates) +
		len(result.KeyEntities.MoneyAmounts) +
		len(result.KeyEntities.Locations) +
		len(result.LegalReferences) +
		len(result.WitnessStatements) +
		len(result.Timeline)

	result.DataQuality = models.DataQuality{
		TextLength:        len(result.CombinedText),
		EntitiesExtracted: entityCount,
		CompletenessScore: completenessScore(result),
	}

	s.assessCompleteness(ctx, caseID, result)

	return result, nil
}

// extractFile turns a single evidence file into text, dispatching on its
// media category.
func (s *EvidenceService) extractFile(ctx context.Context, f models.EvidenceFile) extractedFile {
	ef := extractedFile{file: f}

	reader, err := s.store.Download(ctx, f.StoragePath)
	if err != nil {
		ef.err = fmt.Errorf("download failed: %w", err)
		return ef
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, maxEvidenceFileBytes))
	if err != nil {
		ef.err = fmt.Errorf("read failed: %w", err)
		return ef
	}

	switch f.Category {
	case models.MediaDocument:
		text, err := extractPlainText(f.Name, data)
		ef.text, ef.err = text, err

	case models.MediaPDF:
		text, err := extractPDFText(data)
		ef.text, ef.err = text, err

	case models.MediaImage:
		if s.media == nil {
			ef.err = errors.New("image description unavailable without AI configuration")
			return ef
		}
		text, err := s.media.DescribeImage(ctx, data, f.ContentType)
		if err != nil {
			ef.err = fmt.Errorf("image description failed: %w", err)
			return ef
		}
		ef.text = text
		ef.note = "AI-generated image description"

	case models.MediaAudio:
		if s.media == nil {
			ef.err = errors.New("audio transcription unavailable without AI configuration")
			return ef
		}
		text, err := s.media.TranscribeAudio(ctx, data, f.ContentType)
		if err != nil {
			ef.err = fmt.Errorf("audio transcription failed: %w", err)
			return ef
		}
		ef.text = text
		ef.note = "AI-generated transcription"

	case models.MediaVideo:
		if s.media == nil {
			ef.err = errors.New("video transcription unavailable without AI configuration")
			return ef
		}
		text, err := s.media.TranscribeVideo(ctx, data, f.ContentType)
		if err != nil {
			ef.err = fmt.Errorf("video transcription failed: %w", err)
			return ef
		}
		ef.text = text
		ef.note = "AI-generated transcription"

	default:
		ef.err = fmt.Errorf("unsupported media category: %s", f.Category)
	}

	return ef
}

// extractPlainText reads document bytes as UTF-8 text. Binary word
// processor formats are reported rather than mis-decoded.
func extractPlainText(filename string, data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("binary document format not supported: %s", filename)
	}
	return strings.TrimSpace(string(data)), nil
}

// extractPDFText pulls plain text from every page of a PDF
func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf parse failed: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// a single broken page should not discard the rest
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", errors.New("pdf contains no extractable text")
	}
	return text, nil
}

// fuseTexts joins per-file texts into one document with source attribution
func fuseTexts(extracted []extractedFile) string {
	var sections []string
	for _, ef := range extracted {
		if ef.err != nil || ef.text == "" {
			continue
		}
		sections = append(sections, fmt.Sprintf("[%s]\n%s", ef.file.Name, ef.text))
	}
	return strings.Join(sections, "\n\n")
}

// mineEntities fills the entity buckets from the combined text, using the
// model when available and sentence heuristics otherwise.
func (s *EvidenceService) mineEntities(ctx context.Context, caseID string, result *models.EvidenceResult) {
	if result.CombinedText == "" {
		result.Facts = []string{}
		return
	}

	if s.completer != nil && s.completer.Configured() {
		if ok := s.mineEntitiesWithModel(ctx, caseID, result); ok {
			return
		}
	}

	// Degraded path: sentence-level facts, no structured entities
	result.Facts = fallbackFacts(result.CombinedText)
	result.Limitations = append(result.Limitations, "entity extraction ran without AI assistance")
}

func (s *EvidenceService) mineEntitiesWithModel(ctx context.Context, caseID string, result *models.EvidenceResult) bool {
	raw, err := s.completer.Complete(ctx, llm.BuildEntityExtractionPrompt(result.CombinedText))
	if err != nil {
		s.logger.Warn("entity extraction call failed", "case_id", caseID, "error", err)
		return false
	}

	parsed := llm.Parse(raw)
	if parsed.ParseError || parsed.Object == nil {
		s.logger.Warn("entity extraction returned unparseable output", "case_id", caseID)
		return false
	}

	obj := parsed.Object

	// Organizations fold into the persons bucket
	persons := append(llm.AsStringSlice(obj["persons"]), llm.AsStringSlice(obj["organizations"])...)
	result.KeyEntities = models.KeyEntities{
		Persons:      dedupeSorted(persons),
		MoneyAmounts: dedupeSorted(llm.AsStringSlice(obj["money_amounts"])),
		Dates:        dedupeSorted(llm.AsStringSlice(obj["dates"])),
		Locations:    dedupeSorted(llm.AsStringSlice(obj["locations"])),
	}
	result.LegalReferences = dedupeSorted(llm.AsStringSlice(obj["legal_references"]))
	result.WitnessStatements = llm.AsStringSlice(obj["witness_statements"])
	result.Timeline = parseTimeline(obj["timeline_events"])

	result.Facts = llm.AsStringSlice(obj["facts"])
	if len(result.Facts) == 0 {
		result.Facts = fallbackFacts(result.CombinedText)
	}
	return true
}

// assessCompleteness asks the model what the evidence covers and what is
// missing. Without a model the heuristic score stands on its own.
func (s *EvidenceService) assessCompleteness(ctx context.Context, caseID string, result *models.EvidenceResult) {
	assessment := models.CompletenessAssessment{
		CaseReadiness: result.DataQuality.CompletenessScore,
	}

	if s.completer != nil && s.completer.Configured() && result.CombinedText != "" {
		raw, err := s.completer.Complete(ctx, llm.BuildCompletenessPrompt(result.CombinedText))
		if err == nil {
			var out struct {
				PresentInfo    []string    `json:"present_info"`
				MissingInfo    []string    `json:"missing_info"`
				ReadinessScore interface{} `json:"readiness_score"`
			}
			if decodeErr := llm.Decode(raw, &out); decodeErr == nil {
				assessment.PresentInformation = out.PresentInfo
				assessment.MissingInformation = out.MissingInfo
				if score, ok := llm.AsConfidence(out.ReadinessScore); ok {
					if score > 1 {
						score /= 100
					}
					assessment.CaseReadiness = llm.ClampUnit(score)
				}
			}
		} else {
			s.logger.Warn("completeness assessment call failed", "case_id", caseID, "error", err)
		}
	}

	if result.CombinedText == "" {
		assessment.CaseReadiness = 0
		assessment.MissingInformation = append(assessment.MissingInformation, "no readable evidence was provided")
	}

	result.CompletenessAssessment = assessment
}

// completenessScore awards one fifth per populated core bucket
func completenessScore(result *models.EvidenceResult) float64 {
	score := 0.0
	if len(result.KeyEntities.Persons) > 0 {
		score += 0.2
	}
	if len(result.KeyEntities.Dates) > 0 {
		score += 0.2
	}
	if len(result.WitnessStatements) > 0 {
		score += 0.2
	}
	if len(result.Timeline) > 0 {
		score += 0.2
	}
	if len(result.LegalReferences) > 0 {
		score += 0.2
	}
	return score
}

// fallbackFacts splits text into sentences and keeps the substantial ones
func fallbackFacts(text string) []string {
	var facts []string
	for _, sentence := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '\n'
	}) {
		sentence = strings.TrimSpace(sentence)
		if len(sentence) > 20 {
			facts = append(facts, sentence)
		}
		if len(facts) >= 20 {
			break
		}
	}
	if facts == nil {
		facts = []string{}
	}
	return facts
}

// dedupeSorted removes duplicates and returns the values sorted
func dedupeSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// parseTimeline coerces the model's timeline_events into dated entries
func parseTimeline(v interface{}) []models.TimelineEvent {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}

	var events []models.TimelineEvent
	for _, item := range items {
		switch entry := item.(type) {
		case map[string]interface{}:
			event := models.TimelineEvent{
				Date:        llm.AsString(entry["date"]),
				Description: llm.AsString(entry["description"]),
			}
			if event.Date != "" || event.Description != "" {
				events = append(events, event)
			}
		case string:
			if strings.TrimSpace(entry) != "" {
				events = append(events, models.TimelineEvent{Description: entry})
			}
		}
	}
	return events
}

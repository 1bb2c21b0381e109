package service

import (
	"context"
	"log/slog"
	"strings"

	"lexcase-backend/llm"
	"lexcase-backend/models"
)

const (
	// chunkTokenThreshold is the approximate token count above which the
	// combined evidence text is summarized chunk by chunk.
	chunkTokenThreshold = 3000

	// chunkTokenSize is the approximate token budget of a single chunk
	chunkTokenSize = 1200

	// degradedConfidenceCap bounds summaries produced without the model
	degradedConfidenceCap = 0.35
)

// SummarizerService runs the summarization stage over the evidence
// extraction output.
type SummarizerService struct {
	completer llm.Completer
	logger    *slog.Logger
}

// SummarizerServiceOption is a functional option for SummarizerService
type SummarizerServiceOption func(*SummarizerService)

// SummarizerWithCompleter sets the text completion client
func SummarizerWithCompleter(completer llm.Completer) SummarizerServiceOption {
	return func(s *SummarizerService) {
		s.completer = completer
	}
}

// SummarizerWithLogger sets the logger
func SummarizerWithLogger(logger *slog.Logger) SummarizerServiceOption {
	return func(s *SummarizerService) {
		s.logger = logger
	}
}

// NewSummarizerService creates a new summarizer service
func NewSummarizerService(opts ...SummarizerServiceOption) *SummarizerService {
	s := &SummarizerService{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Summarize produces a case summary from the evidence result. Without a
// configured model it falls back to an extractive summary marked as
// degraded, with confidence capped below the review threshold.
func (s *SummarizerService) Summarize(ctx context.Context, caseID string, evidence *models.EvidenceResult) (*models.SummaryResult, error) {
	if s.completer == nil || !s.completer.Configured() {
		return s.degradedSummary(evidence), nil
	}

	if approxTokens(evidence.CombinedText) > chunkTokenThreshold {
		s.logger.Info("long evidence text, using chunked summarization",
			"case_id", caseID,
			"text_length", len(evidence.CombinedText),
		)
		return s.summarizeChunked(ctx, caseID, evidence)
	}

	raw, err := s.completer.Complete(ctx, llm.BuildSummaryPrompt(
		evidence.Facts,
		evidence.WitnessStatements,
		evidence.LegalReferences,
		evidence.CombinedText,
	))
	if err != nil {
		return nil, err
	}

	result := s.parseSummaryResponse(raw, evidence)
	result.ConfidenceScore = summaryConfidence(result)
	return result, nil
}

// summarizeChunked splits the text into token-bounded chunks, summarizes
// each, and merges the partial summaries. The merged confidence is the
// mean of the chunk confidences.
func (s *SummarizerService) summarizeChunked(ctx context.Context, caseID string, evidence *models.EvidenceResult) (*models.SummaryResult, error) {
	chunks := chunkByTokens(evidence.CombinedText, chunkTokenSize)

	var parts []string
	var confidenceSum float64
	for i, chunk := range chunks {
		raw, err := s.completer.Complete(ctx, llm.BuildChunkSummaryPrompt(chunk))
		if err != nil {
			return nil, err
		}

		var out struct {
			SummaryText     string      `json:"summary_text"`
			ConfidenceScore interface{} `json:"confidence_score"`
		}
		if decodeErr := llm.Decode(raw, &out); decodeErr != nil || out.SummaryText == "" {
			s.logger.Warn("chunk summary unparseable, keeping excerpt",
				"case_id", caseID,
				"chunk", i,
			)
			parts = append(parts, "Partial summary: "+llm.TruncateForPrompt(chunk, 200))
			confidenceSum += 0.3
			continue
		}

		parts = append(parts, out.SummaryText)
		if conf, ok := llm.AsConfidence(out.ConfidenceScore); ok {
			if conf > 1 {
				conf /= 100
			}
			confidenceSum += llm.ClampUnit(conf)
		}
	}

	result := &models.SummaryResult{
		Summary:     strings.Join(parts, "\n"),
		Facts:       headOf(evidence.Facts, 5),
		LegalIssues: headOf(evidence.LegalReferences, 3),
		KeyPoints:   []string{},
	}
	if len(chunks) > 0 {
		result.ConfidenceScore = llm.ClampUnit(confidenceSum / float64(len(chunks)))
	}
	return result, nil
}

// parseSummaryResponse runs the repair chain: strict JSON, then labeled
// sections, then the extractive fallback.
func (s *SummarizerService) parseSummaryResponse(raw string, evidence *models.EvidenceResult) *models.SummaryResult {
	if len(strings.TrimSpace(raw)) < 8 {
		return extractiveSummary(evidence)
	}

	parsed := llm.Parse(raw)
	if !parsed.ParseError && parsed.Object != nil {
		result := &models.SummaryResult{
			Summary:     llm.AsString(parsed.Object["summary"]),
			Facts:       llm.AsStringSlice(parsed.Object["facts"]),
			LegalIssues: llm.AsStringSlice(parsed.Object["legal_issues"]),
			KeyPoints:   llm.AsStringSlice(parsed.Object["key_points"]),
		}
		if result.Summary != "" || len(result.Facts) > 0 {
			return result
		}
	}

	sections := llm.ExtractSections(raw)
	if sections.Summary != "" || sections.Facts != "" {
		return &models.SummaryResult{
			Summary:     sections.Summary,
			Facts:       splitLines(sections.Facts),
			LegalIssues: sections.LegalIssues,
			KeyPoints:   []string{},
		}
	}

	return extractiveSummary(evidence)
}

// degradedSummary is the no-model path: extractive content flagged as
// degraded with confidence held under the cap.
func (s *SummarizerService) degradedSummary(evidence *models.EvidenceResult) *models.SummaryResult {
	result := extractiveSummary(evidence)
	result.Degraded = true
	result.ConfidenceScore = summaryConfidence(result)
	if result.ConfidenceScore > degradedConfidenceCap {
		result.ConfidenceScore = degradedConfidenceCap
	}
	return result
}

// extractiveSummary assembles a summary directly from extracted evidence
func extractiveSummary(evidence *models.EvidenceResult) *models.SummaryResult {
	return &models.SummaryResult{
		Summary:     "Case summary generated from available evidence.",
		Facts:       headOf(evidence.Facts, 5),
		LegalIssues: headOf(evidence.LegalReferences, 3),
		KeyPoints:   []string{},
	}
}

// summaryConfidence weighs summary length, issue coverage, and fact
// coverage into a 0-1 score.
func summaryConfidence(result *models.SummaryResult) float64 {
	textScore := minFloat(float64(len(strings.Fields(result.Summary)))/100, 1.0) * 0.4
	issuesScore := minFloat(float64(len(result.LegalIssues))/3, 1.0) * 0.3
	factsScore := minFloat(float64(len(result.Facts))/5, 1.0) * 0.3
	return llm.ClampUnit(textScore + issuesScore + factsScore)
}

// approxTokens estimates the token count of text. English text averages
// about three quarters of a word per token.
func approxTokens(text string) int {
	return len(strings.Fields(text)) * 4 / 3
}

// chunkByTokens splits text into word-boundary chunks of roughly
// maxTokens tokens each.
func chunkByTokens(text string, maxTokens int) []string {
	words := strings.Fields(text)
	wordsPerChunk := maxTokens * 3 / 4
	if wordsPerChunk < 1 {
		wordsPerChunk = 1
	}

	var chunks []string
	for start := 0; start < len(words); start += wordsPerChunk {
		end := start + wordsPerChunk
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}

// splitLines breaks a section body into list items, dropping bullets
func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimLeft(strings.TrimSpace(line), "-* ")
		if line != "" {
			out = append(out, line)
		}
	}
	if out == nil {
		out = []string{}
	}
	return out
}

func headOf(values []string, n int) []string {
	if values == nil {
		return []string{}
	}
	if len(values) <= n {
		return values
	}
	return values[:n]
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"lexcase-backend/llm"
	"lexcase-backend/models"
)

// LegalActionService runs the legal action suggestion stage. Suggestions
// are grounded on the built-in statute catalog and returned strongest
// first.
type LegalActionService struct {
	completer llm.Completer
	logger    *slog.Logger
}

// LegalActionServiceOption is a functional option for LegalActionService
type LegalActionServiceOption func(*LegalActionService)

// LegalActionWithCompleter sets the text completion client
func LegalActionWithCompleter(completer llm.Completer) LegalActionServiceOption {
	return func(s *LegalActionService) {
		s.completer = completer
	}
}

// LegalActionWithLogger sets the logger
func LegalActionWithLogger(logger *slog.Logger) LegalActionServiceOption {
	return func(s *LegalActionService) {
		s.logger = logger
	}
}

// NewLegalActionService creates a new legal action service
func NewLegalActionService(opts ...LegalActionServiceOption) *LegalActionService {
	s := &LegalActionService{}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Suggest produces ranked legal action suggestions for the case. Without
// a configured model it returns a single advisory entry at zero
// confidence rather than fabricating recommendations.
func (s *LegalActionService) Suggest(ctx context.Context, caseID, category string, summary *models.SummaryResult) (models.LegalSuggestionList, error) {
	if s.completer == nil || !s.completer.Configured() {
		return models.LegalSuggestionList{
			{
				SuggestedAction: "Consult a qualified legal practitioner",
				Priority:        "High",
				Confidence:      0,
				ApplicableLaws:  []string{},
				Reasoning:       "AI analysis is not configured; automated recommendations are unavailable for this case.",
				RiskFactors:     []string{},
				NextSteps:       []string{"Configure AI analysis or seek manual legal review"},
			},
		}, nil
	}

	caseText := summary.Summary + " " + strings.Join(summary.LegalIssues, " ")
	statutes := SearchStatutes(ExtractStatuteKeywords(caseText))

	raw, err := s.completer.Complete(ctx, llm.BuildLegalActionPrompt(
		category,
		summary.Summary,
		summary.LegalIssues,
		FormatStatuteContext(statutes),
	))
	if err != nil {
		return nil, fmt.Errorf("legal action analysis: %w", err)
	}

	suggestions := s.parseSuggestions(raw)
	backfillApplicableLaws(suggestions, statutes)
	if len(suggestions) == 0 {
		s.logger.Warn("legal action stage produced no usable suggestions", "case_id", caseID)
		return nil, fmt.Errorf("%w: legal action output unparseable", ErrStageFailed)
	}

	rankSuggestions(suggestions)
	return suggestions, nil
}

// parseSuggestions normalizes the model output: a bare object becomes a
// one-element list, percent strings become numbers, and confidence is
// clamped to 0-100.
func (s *LegalActionService) parseSuggestions(raw string) models.LegalSuggestionList {
	parsed := llm.Parse(raw)

	var items []interface{}
	switch {
	case parsed.List != nil:
		items = parsed.List
	case parsed.Object != nil:
		if nested, ok := parsed.Object["suggestions"].([]interface{}); ok {
			items = nested
		} else {
			items = []interface{}{parsed.Object}
		}
	default:
		return nil
	}

	var suggestions models.LegalSuggestionList
	for _, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			continue
		}

		suggestion := models.LegalActionSuggestion{
			SuggestedAction: llm.AsString(obj["suggested_action"]),
			Priority:        normalizePriority(llm.AsString(obj["priority"])),
			ApplicableLaws:  llm.AsStringSlice(obj["applicable_laws"]),
			Reasoning:       llm.AsString(obj["reasoning"]),
			RiskFactors:     llm.AsStringSlice(obj["risk_factors"]),
			NextSteps:       llm.AsStringSlice(obj["next_steps"]),
		}
		if suggestion.SuggestedAction == "" {
			continue
		}

		if conf, ok := llm.AsConfidence(obj["confidence"]); ok {
			if conf <= 1 {
				conf *= 100
			}
			suggestion.Confidence = llm.ClampPercent(conf)
		}
		if suggestion.ApplicableLaws == nil {
			suggestion.ApplicableLaws = []string{}
		}
		if suggestion.RiskFactors == nil {
			suggestion.RiskFactors = []string{}
		}
		if suggestion.NextSteps == nil {
			suggestion.NextSteps = []string{}
		}

		suggestions = append(suggestions, suggestion)
	}
	return suggestions
}

// backfillApplicableLaws fills empty citation lists from the statutes the
// keyword search matched, so a suggestion never ships without grounding
// when the catalog had something relevant.
func backfillApplicableLaws(suggestions models.LegalSuggestionList, statutes []StatuteEntry) {
	if len(statutes) == 0 {
		return
	}

	citations := make([]string, 0, 3)
	for _, statute := range statutes {
		citations = append(citations, fmt.Sprintf("%s Section %s", statute.LawName, statute.Section))
		if len(citations) == 3 {
			break
		}
	}

	for i := range suggestions {
		if len(suggestions[i].ApplicableLaws) == 0 {
			suggestions[i].ApplicableLaws = citations
		}
	}
}

var priorityRank = map[string]int{
	"High":   0,
	"Medium": 1,
	"Low":    2,
}

func normalizePriority(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "high", "urgent", "critical":
		return "High"
	case "low":
		return "Low"
	default:
		return "Medium"
	}
}

// rankSuggestions orders by confidence descending, breaking ties on
// priority. The sort is stable so equal entries keep model order.
func rankSuggestions(suggestions models.LegalSuggestionList) {
	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Confidence != suggestions[j].Confidence {
			return suggestions[i].Confidence > suggestions[j].Confidence
		}
		return priorityRank[suggestions[i].Priority] < priorityRank[suggestions[j].Priority]
	})
}

// TopConfidence is the case-level legal confidence: the strongest
// suggestion's score.
func TopConfidence(suggestions models.LegalSuggestionList) float64 {
	if len(suggestions) == 0 {
		return 0
	}
	return suggestions[0].Confidence
}

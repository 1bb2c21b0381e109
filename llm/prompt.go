package llm

import (
	"fmt"
	"strings"
)

// Input text budgets, in characters. The Gemini context window is far
// larger, but evidence text is noisy and trimming keeps completions focused.
const (
	entityTextBudget     = 6000
	validationTextBudget = 2000
	summaryTextBudget    = 12000
	maxPromptChars       = 30000
)

// TruncateForPrompt caps text destined for a prompt at n characters
func TruncateForPrompt(text string, n int) string {
	if len(text) <= n {
		return text
	}
	return text[:n] + "\n\n[Content truncated due to length...]"
}

// BuildEntityExtractionPrompt asks for structured entities from one
// evidence file's extracted text.
func BuildEntityExtractionPrompt(text string) string {
	return fmt.Sprintf(`You are an expert legal analyst. Extract structured data from the following legal text.
Return a valid JSON object with the following keys:
- persons: List of names of people involved.
- organizations: List of organizations, companies, or institutions.
- dates: List of specific dates mentioned.
- locations: List of addresses, cities, or locations.
- money_amounts: List of financial figures/amounts.
- legal_references: List of acts, sections, or case laws cited.
- witness_statements: List of key quotes, testimonies, or assertions made by witnesses/parties.
- timeline_events: List of objects, each with 'date' and 'description' fields, representing the chronological sequence of events.

TEXT:
%s

Provide ONLY valid JSON. No markdown fences, no comments, no trailing commas.`,
		TruncateForPrompt(text, entityTextBudget))
}

// BuildCompletenessPrompt asks for a present/missing information review of
// all extracted evidence.
func BuildCompletenessPrompt(combinedText string) string {
	return fmt.Sprintf(`Review this case evidence and identify:
1. What important information is present (3-5 items)
2. What critical information might be missing (3-5 items)
3. Overall case readiness (percentage 0-100)

EVIDENCE SUMMARY:
%s

Respond in JSON format: {"present_info": [...], "missing_info": [...], "readiness_score": <number>}`,
		TruncateForPrompt(combinedText, validationTextBudget))
}

// BuildSummaryPrompt asks for the full case summary from fused evidence
func BuildSummaryPrompt(facts, witnessStatements []string, legalReferences []string, combinedText string) string {
	factsBlock := strings.Join(facts, "\n")
	if factsBlock == "" {
		factsBlock = TruncateForPrompt(combinedText, summaryTextBudget)
	}

	return fmt.Sprintf(`You are an expert legal summarizer. Produce a JSON summary of this case.

FACTS:
%s

WITNESS STATEMENTS:
%s

LEGAL REFERENCES:
%s

Return a JSON object with:
- facts: the key established facts (list of strings)
- legal_issues: the legal questions this case raises (list of strings)
- summary: a coherent prose summary of the case (string)
- key_points: the points a lawyer should focus on (list of strings)
- confidence_score: your confidence in this summary as a number between 0 and 1

Provide ONLY valid JSON.`,
		TruncateForPrompt(factsBlock, summaryTextBudget),
		TruncateForPrompt(strings.Join(witnessStatements, "\n"), summaryTextBudget/4),
		strings.Join(legalReferences, ", "))
}

// BuildChunkSummaryPrompt asks for a partial summary of one evidence chunk
func BuildChunkSummaryPrompt(chunk string) string {
	return fmt.Sprintf(`Summarize the following legal evidence chunk:

%s

Return a JSON object with:
- summary_text: a concise summary of this chunk (string)
- confidence_score: a number between 0 and 1

Provide ONLY valid JSON.`, chunk)
}

// BuildLegalActionPrompt asks for ranked recommended actions with citations
func BuildLegalActionPrompt(category, summary string, legalIssues []string, statuteContext []string) string {
	statutes := "None retrieved."
	if len(statuteContext) > 0 {
		statutes = strings.Join(statuteContext, "\n")
	}

	return fmt.Sprintf(`You are an expert legal advisor analyzing a %s case.

CASE SUMMARY:
%s

LEGAL ISSUES:
%s

POTENTIALLY APPLICABLE STATUTES:
%s

Recommend the legal actions the client should pursue. Respond with a JSON array,
ordered from strongest to weakest recommendation. Each element must have:
- suggested_action: what to do (string)
- priority: "High", "Medium" or "Low"
- confidence: number between 0 and 100
- applicable_laws: list of act/section citations (list of strings)
- reasoning: why this action fits the facts (string)
- risk_factors: what could weaken this action (list of strings)
- next_steps: concrete first steps (list of strings)

Provide ONLY valid JSON. No markdown fences, no comments, no trailing commas.`,
		category,
		TruncateForPrompt(summary, summaryTextBudget),
		strings.Join(legalIssues, "\n"),
		statutes)
}

// BuildImageDescriptionPrompt is the instruction sent with image evidence
func BuildImageDescriptionPrompt() string {
	return "Describe this image in detail, transcribing any visible text verbatim. " +
		"It is evidence in a legal case, so note anything of evidentiary value."
}

// BuildAudioTranscriptionPrompt is the instruction sent with audio evidence
func BuildAudioTranscriptionPrompt() string {
	return "Transcribe this audio file verbatim."
}

// BuildVideoTranscriptionPrompt is the instruction sent with video evidence
func BuildVideoTranscriptionPrompt() string {
	return "Transcribe the audio and describe the visual events in this video."
}

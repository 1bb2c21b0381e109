package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFencedJSON(t *testing.T) {
	raw := "Here is the result:\n```json\n{\"facts\": [\"a\", \"b\"], \"summary\": \"short\"}\n```\nLet me know if you need more."

	parsed := Parse(raw)

	require.False(t, parsed.ParseError)
	require.NotNil(t, parsed.Object)
	assert.Equal(t, "short", parsed.Object["summary"])
	assert.Len(t, parsed.Object["facts"], 2)
}

func TestParseEmbeddedObjectWithChatter(t *testing.T) {
	raw := `Sure! Based on the evidence, {"persons": ["A. Kumar"], "dates": ["2024-01-05"]} is what I found.`

	parsed := Parse(raw)

	require.False(t, parsed.ParseError)
	require.NotNil(t, parsed.Object)
	assert.Equal(t, []interface{}{"A. Kumar"}, parsed.Object["persons"])
}

func TestParseRepairsCommentsAndTrailingCommas(t *testing.T) {
	raw := `{
		// the key facts
		"facts": ["fact one", "fact two",],
		/* issues follow */
		"legal_issues": ["breach of contract"],
	}`

	parsed := Parse(raw)

	require.False(t, parsed.ParseError)
	require.NotNil(t, parsed.Object)
	assert.Len(t, parsed.Object["facts"], 2)
}

func TestParseArray(t *testing.T) {
	raw := `[{"suggested_action": "File complaint", "confidence": 88}]`

	parsed := Parse(raw)

	require.False(t, parsed.ParseError)
	require.Len(t, parsed.List, 1)
}

func TestParseBracesInsideStrings(t *testing.T) {
	raw := `{"summary": "clause {3} applies", "facts": []} trailing prose`

	parsed := Parse(raw)

	require.False(t, parsed.ParseError)
	assert.Equal(t, "clause {3} applies", parsed.Object["summary"])
}

func TestParseTruncatedOutputFallsBack(t *testing.T) {
	raw := `{"facts": ["fact one", "fact tw`

	parsed := Parse(raw)

	assert.True(t, parsed.ParseError)
	assert.Equal(t, raw, parsed.RawText)
	assert.Nil(t, parsed.Object)
}

func TestParseNoJSONAtAllFallsBack(t *testing.T) {
	raw := "I am unable to analyze this case."

	parsed := Parse(raw)

	assert.True(t, parsed.ParseError)
	assert.Equal(t, raw, parsed.RawText)
}

func TestDecodeIntoStruct(t *testing.T) {
	var out struct {
		SummaryText     string  `json:"summary_text"`
		ConfidenceScore float64 `json:"confidence_score"`
	}

	err := Decode("```json\n{\"summary_text\": \"ok\", \"confidence_score\": 0.7}\n```", &out)

	require.NoError(t, err)
	assert.Equal(t, "ok", out.SummaryText)
	assert.InDelta(t, 0.7, out.ConfidenceScore, 1e-9)
}

func TestExtractSections(t *testing.T) {
	raw := `FACTS:
The tenant paid a deposit of 50,000.

LEGAL ISSUES:
- Breach of rental agreement
- Unjust enrichment

SUMMARY:
A deposit dispute between landlord and tenant.

Confidence: 75`

	sections := ExtractSections(raw)

	assert.Contains(t, sections.Facts, "deposit of 50,000")
	assert.Equal(t, []string{"Breach of rental agreement", "Unjust enrichment"}, sections.LegalIssues)
	assert.Contains(t, sections.Summary, "deposit dispute")
	assert.InDelta(t, 0.75, sections.Confidence, 1e-9)
}

func TestAsStringSliceFlattensObjects(t *testing.T) {
	input := []interface{}{
		"plain string",
		map[string]interface{}{"description": "from description"},
		float64(42),
	}

	out := AsStringSlice(input)

	assert.Equal(t, []string{"plain string", "from description", "42"}, out)
}

func TestAsConfidence(t *testing.T) {
	cases := []struct {
		in   interface{}
		want float64
		ok   bool
	}{
		{float64(85), 85, true},
		{"85", 85, true},
		{"85%", 85, true},
		{" 0.85 ", 0.85, true},
		{"high", 0, false},
		{nil, 0, false},
	}

	for _, tc := range cases {
		got, ok := AsConfidence(tc.in)
		assert.Equal(t, tc.ok, ok, "input %v", tc.in)
		if ok {
			assert.InDelta(t, tc.want, got, 1e-9, "input %v", tc.in)
		}
	}
}

func TestClamps(t *testing.T) {
	assert.Equal(t, 0.0, ClampUnit(-0.2))
	assert.Equal(t, 1.0, ClampUnit(1.7))
	assert.Equal(t, 0.5, ClampUnit(0.5))
	assert.Equal(t, 0.0, ClampPercent(-5))
	assert.Equal(t, 100.0, ClampPercent(140))
	assert.Equal(t, 85.0, ClampPercent(85))
}

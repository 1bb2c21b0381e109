package llm

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Parsed is the best-effort structured view of an LLM completion. Exactly
// one of Object or List is populated on success; on total parse failure
// RawText carries the original completion and ParseError is set. Parsing
// never returns an error: formatting problems degrade, they do not abort.
type Parsed struct {
	Object     map[string]interface{} `json:"object,omitempty"`
	List       []interface{}          `json:"list,omitempty"`
	RawText    string                 `json:"raw_text,omitempty"`
	ParseError bool                   `json:"parse_error,omitempty"`
}

var (
	fenceRE         = regexp.MustCompile("(?is)```(?:json)?\\s*([\\s\\S]*?)\\s*```")
	blockCommentRE  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineCommentRE   = regexp.MustCompile(`(?m)^\s*//.*$`)
	trailingCommaRE = regexp.MustCompile(`,\s*([\]\}])`)
)

// Parse normalizes a raw LLM completion into structured data. The chain:
// strip code fences, strict JSON parse, bracket-balanced substring
// extraction, cleanup of comments and trailing commas, and finally a
// fallback object carrying the raw text.
func Parse(raw string) Parsed {
	candidate := ExtractJSONCandidate(raw)
	if candidate == "" {
		return Parsed{RawText: raw, ParseError: true}
	}

	if parsed, ok := decodeJSON(candidate); ok {
		return parsed
	}

	cleaned := cleanJSON(candidate)
	if parsed, ok := decodeJSON(cleaned); ok {
		return parsed
	}

	return Parsed{RawText: raw, ParseError: true}
}

// Decode parses the completion and unmarshals the JSON candidate into dest.
// Used by stages that expect a known schema; callers fall back to Parse
// plus section extraction when it fails.
func Decode(raw string, dest interface{}) error {
	candidate := ExtractJSONCandidate(raw)
	if candidate == "" {
		candidate = raw
	}
	if err := json.Unmarshal([]byte(candidate), dest); err != nil {
		return json.Unmarshal([]byte(cleanJSON(candidate)), dest)
	}
	return nil
}

// ExtractJSONCandidate pulls the most plausible JSON payload out of a
// completion: the fenced block if present, otherwise the first
// bracket-balanced object or array.
func ExtractJSONCandidate(raw string) string {
	if raw == "" {
		return ""
	}

	if m := fenceRE.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}

	objStart := strings.IndexAny(raw, "{[")
	if objStart == -1 {
		return ""
	}
	return balancedSlice(raw[objStart:])
}

// balancedSlice returns the prefix of s up to the bracket that closes its
// first character. Quoted strings are honored so braces inside values do
// not confuse the scan. Truncated input returns everything that was there.
func balancedSlice(s string) string {
	open := s[0]
	var close byte
	switch open {
	case '{':
		close = '}'
	case '[':
		close = ']'
	default:
		return s
	}

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case ch == '\\' && inString:
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == open:
			depth++
		case ch == close:
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return s
}

func cleanJSON(s string) string {
	out := blockCommentRE.ReplaceAllString(s, "")
	out = lineCommentRE.ReplaceAllString(out, "")
	out = trailingCommaRE.ReplaceAllString(out, "$1")
	return out
}

func decodeJSON(candidate string) (Parsed, bool) {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return Parsed{}, false
	}

	switch trimmed[0] {
	case '{':
		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(trimmed), &obj); err == nil {
			return Parsed{Object: obj}, true
		}
	case '[':
		var list []interface{}
		if err := json.Unmarshal([]byte(trimmed), &list); err == nil {
			return Parsed{List: list}, true
		}
	}
	return Parsed{}, false
}

// Sections is the coarse field map recovered from a prose-style completion
type Sections struct {
	Facts       string
	LegalIssues []string
	Summary     string
	Confidence  float64
}

var (
	factsSectionRE   = regexp.MustCompile(`(?is)facts?:\s*(.*?)(?:legal|issues?|summary|$)`)
	issuesSectionRE  = regexp.MustCompile(`(?is)(?:legal\s+issues?|issues?):\s*(.*?)(?:summary|confidence|$)`)
	summarySectionRE = regexp.MustCompile(`(?is)summary:\s*(.*?)(?:confidence|applicable|$)`)
	confidenceRE     = regexp.MustCompile(`(?i)confidence[\s:]*([0-9.]+)`)
)

// ExtractSections splits a non-JSON completion on markdown-style headings.
// Last resort before giving up on a response entirely.
func ExtractSections(raw string) Sections {
	var out Sections

	if m := factsSectionRE.FindStringSubmatch(raw); m != nil {
		out.Facts = strings.TrimSpace(m[1])
	}
	if m := issuesSectionRE.FindStringSubmatch(raw); m != nil {
		for _, line := range strings.Split(m[1], "\n") {
			if s := strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-*0123456789. ")); s != "" {
				out.LegalIssues = append(out.LegalIssues, s)
			}
		}
	}
	if m := summarySectionRE.FindStringSubmatch(raw); m != nil {
		out.Summary = strings.TrimSpace(m[1])
	}
	if m := confidenceRE.FindStringSubmatch(raw); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			if v > 1 {
				v = v / 100
			}
			out.Confidence = ClampUnit(v)
		}
	}
	return out
}

// AsString coerces a loosely-typed JSON value to a string
func AsString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

// AsStringSlice coerces a JSON array with mixed element types to strings.
// Map elements are flattened to their "description" or first string value,
// since models frequently nest objects where a list of strings was asked for.
func AsStringSlice(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		if s := AsString(v); s != "" {
			return []string{s}
		}
		return nil
	}

	out := make([]string, 0, len(list))
	for _, item := range list {
		switch el := item.(type) {
		case string:
			if el != "" {
				out = append(out, el)
			}
		case map[string]interface{}:
			if desc := AsString(el["description"]); desc != "" {
				out = append(out, desc)
				continue
			}
			for _, val := range el {
				if s, ok := val.(string); ok && s != "" {
					out = append(out, s)
					break
				}
			}
		default:
			if s := AsString(item); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// AsConfidence coerces an LLM-reported confidence to a number. Handles
// bare numbers, "85", "85%", and fractional strings.
func AsConfidence(v interface{}) (float64, bool) {
	switch c := v.(type) {
	case float64:
		return c, true
	case string:
		s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(c), "%"))
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// ClampUnit clamps a confidence to [0,1]
func ClampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ClampPercent clamps a confidence to [0,100]
func ClampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

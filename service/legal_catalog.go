package service

import (
	"fmt"
	"sort"
	"strings"
)

// StatuteEntry is one section of a statute in the built-in catalog
type StatuteEntry struct {
	Code        string
	LawName     string
	Section     string
	Description string
}

// legalCatalog is a compact statute reference used to ground the legal
// action prompt. It is not a substitute for real legal research; it keeps
// the model anchored to the acts the platform covers.
var legalCatalog = []struct {
	code     string
	lawName  string
	sections map[string]string
}{
	{
		code:    "IPC",
		lawName: "Indian Penal Code",
		sections: map[string]string{
			"34":  "Acts done by several persons in furtherance of common intention",
			"73":  "When breach of contract - compensation for loss or damage",
			"420": "Cheating and dishonestly inducing delivery of property",
			"408": "Dishonest misappropriation of property",
			"506": "Criminal intimidation",
			"507": "Criminal intimidation by an anonymous communication",
		},
	},
	{
		code:    "ICA",
		lawName: "Indian Contract Act, 1872",
		sections: map[string]string{
			"10": "Agreement to sell may be absolute or conditional",
			"12": "Consideration must not be illegal",
			"14": "Acceptance must be absolute",
			"23": "Consideration and object must be lawful",
			"32": "Mode of communication by act",
			"40": "When acceptance is complete as against acceptor",
			"55": "Effect of condition in agreement to sell",
			"73": "Compensation for breach of contract",
			"74": "Penalty clause - not enforceable as penalty",
			"76": "Agreement for sale of goods",
		},
	},
	{
		code:    "IEA",
		lawName: "Indian Evidence Act, 1872",
		sections: map[string]string{
			"3":  "Relevancy defined",
			"5":  "Relevancy of facts forming part of same transaction",
			"11": "Admissions",
			"17": "Confessions caused by inducement",
			"60": "Primary evidence",
			"62": "Original documents",
		},
	},
	{
		code:    "CrPC",
		lawName: "Code of Criminal Procedure",
		sections: map[string]string{
			"41":  "Police to arrest without warrant in certain cases",
			"161": "Examination of witness by police",
			"251": "Examination of accused",
			"359": "Suspension of sentence by appellate court",
			"360": "Conditional discharge of first offender",
		},
	},
	{
		code:    "SA",
		lawName: "Specific Relief Act, 1963",
		sections: map[string]string{
			"10": "Specific performance of contract",
			"11": "Effect of breach of contract",
			"12": "Discretion to award damages",
			"15": "Rectification of instruments",
		},
	},
	{
		code:    "LA",
		lawName: "Limitation Act, 1963",
		sections: map[string]string{
			"3":  "Establishment of bar of limitation",
			"14": "Extension of period in certain cases",
			"29": "Effect of substitution",
		},
	},
	{
		code:    "FA",
		lawName: "Family Laws (Marriage, Divorce, Succession)",
		sections: map[string]string{
			"13": "Divorce - grounds and procedures",
			"24": "Maintenance during marriage proceedings",
			"25": "Maintenance after divorce",
		},
	},
	{
		code:    "MV",
		lawName: "Motor Vehicles Act, 1988",
		sections: map[string]string{
			"140": "Insurer's liability for judgment debts",
			"166": "Compensation for death or permanent disablement",
		},
	},
}

// statuteKeywords are the trigger words scanned for in case text before
// searching the catalog.
var statuteKeywords = []string{
	"breach", "contract", "compensation", "damages", "specific performance",
	"fraud", "cheating", "misrepresentation", "property", "title",
	"inheritance", "succession", "divorce", "maintenance", "custody",
	"accident", "injury", "death", "negligence", "criminal",
}

// ExtractStatuteKeywords returns the catalog trigger words present in text
func ExtractStatuteKeywords(text string) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, kw := range statuteKeywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	return found
}

// SearchStatutes returns catalog sections whose description or law name
// mentions any of the keywords.
func SearchStatutes(keywords []string) []StatuteEntry {
	var matches []StatuteEntry
	for _, law := range legalCatalog {
		for section, desc := range law.sections {
			for _, kw := range keywords {
				lkw := strings.ToLower(kw)
				if strings.Contains(strings.ToLower(desc), lkw) || strings.Contains(strings.ToLower(law.lawName), lkw) {
					matches = append(matches, StatuteEntry{
						Code:        law.code,
						LawName:     law.lawName,
						Section:     section,
						Description: desc,
					})
					break
				}
			}
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Code != matches[j].Code {
			return matches[i].Code < matches[j].Code
		}
		return matches[i].Section < matches[j].Section
	})
	return matches
}

// FormatStatuteContext renders matched sections as prompt context lines
func FormatStatuteContext(entries []StatuteEntry) []string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s Section %s (%s): %s", e.LawName, e.Section, e.Code, e.Description))
	}
	return lines
}

package service

import (
	"regexp"
	"sort"
	"strings"

	"github.com/AnTengye/tenderanalyzer/model"
)

// A heading line starts with the keyword, after an optional clause number
// such as "12.3" or "Clause 5 -", and adds at most headingExtraWords words.
const (
	headingMaxRunes   = 100
	headingExtraWords = 3
)

var headingNumber = regexp.MustCompile(`(?i)^(?:(?:clause|section|article|part)\s+)?(?:\d+(?:\.\d+)*\.?|\(?[a-z]\)|[ivx]+[.)])\s*(?:[-–:]\s*)?`)

// clauseKeywords lists the heading keywords per clause. Matching is
// case-insensitive on word boundaries.
var clauseKeywords = map[model.ClauseName][]string{
	model.ScopeOfWork:           {`scope\s+of\s+works?`, `SOW`},
	model.DefectLiabilityPeriod: {`defects?\s+liability(\s+period)?`, `DLP`, `warranty`, `warranties`},
	model.PaymentTerms:          {`payment\s+terms`, `terms\s+of\s+payment`, `payment\s+milestones?`, `payment\s+schedule`},
	model.LiquidatedDamages:     {`liquidated\s+damages`, `limitation\s+of\s+liability`},
	model.Termination:           {`termination`},
	model.IndemnityInsurance:    {`indemnity`, `indemnities`, `indemnification`, `insurances?`},
	model.GoverningLaw:          {`governing\s+law`, `applicable\s+law`, `dispute\s+resolution`, `jurisdiction`},
	model.IPRights:              {`intellectual\s+property`, `IP\s+rights`},
}

var clausePatterns = compileClausePatterns()

func compileClausePatterns() map[model.ClauseName]*regexp.Regexp {
	patterns := make(map[model.ClauseName]*regexp.Regexp, len(clauseKeywords))
	for name, words := range clauseKeywords {
		patterns[name] = regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`)
	}
	return patterns
}

// Segmenter splits tender text into the fixed clause vocabulary
type Segmenter struct {
	maxChars int
}

// NewSegmenter creates a segmenter that caps each clause at maxChars runes.
// A non-positive limit disables the cap.
func NewSegmenter(maxChars int) *Segmenter {
	return &Segmenter{maxChars: maxChars}
}

type clauseMatch struct {
	name   model.ClauseName
	offset int
}

// Segment returns at most one Clause per vocabulary entry, in canonical
// order. Clauses without a matching heading are omitted.
func (s *Segmenter) Segment(text string) []model.Clause {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	lines := lineOffsets(text)

	var matches []clauseMatch
	for _, name := range model.CanonicalOrder {
		if offset, ok := findHeading(text, lines, clausePatterns[name]); ok {
			matches = append(matches, clauseMatch{name: name, offset: offset})
		}
	}
	if len(matches) == 0 {
		return nil
	}

	// Section boundaries follow document order
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].offset < matches[j].offset
	})

	byName := make(map[model.ClauseName]string, len(matches))
	for i, m := range matches {
		end := len(text)
		for _, next := range matches[i+1:] {
			if next.offset > m.offset {
				end = next.offset
				break
			}
		}
		byName[m.name] = s.truncate(strings.TrimSpace(text[m.offset:end]))
	}

	clauses := make([]model.Clause, 0, len(byName))
	for _, name := range model.CanonicalOrder {
		if body, ok := byName[name]; ok {
			clauses = append(clauses, model.Clause{Name: name, Text: body})
		}
	}
	return clauses
}

func (s *Segmenter) truncate(text string) string {
	if s.maxChars <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= s.maxChars {
		return text
	}
	return string(runes[:s.maxChars])
}

type lineSpan struct {
	start, end int
}

func lineOffsets(text string) []lineSpan {
	var spans []lineSpan
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			spans = append(spans, lineSpan{start, i})
			start = i + 1
		}
	}
	spans = append(spans, lineSpan{start, len(text)})
	return spans
}

// findHeading returns the start of the first heading line matching the
// pattern. Mentions in body text never count.
func findHeading(text string, lines []lineSpan, re *regexp.Regexp) (int, bool) {
	for _, l := range lines {
		if isHeading(text[l.start:l.end], re) {
			return l.start, true
		}
	}
	return 0, false
}

func isHeading(line string, re *regexp.Regexp) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || len([]rune(trimmed)) > headingMaxRunes {
		return false
	}

	rest := strings.TrimSpace(trimmed[len(headingNumber.FindString(trimmed)):])
	loc := re.FindStringIndex(rest)
	if loc == nil || loc[0] != 0 {
		return false
	}

	extra := len(strings.Fields(rest)) - len(strings.Fields(rest[:loc[1]]))
	if extra == 0 {
		return true
	}
	if extra > headingExtraWords {
		return false
	}
	// "Insurance is required." reads as a sentence, not a title
	switch rest[len(rest)-1] {
	case '.', ';', ',', '!', '?':
		return false
	}
	return true
}

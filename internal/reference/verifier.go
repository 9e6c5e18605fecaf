package reference

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/ppiankov/veritas/internal/model"
)

const (
	// AccurateConfidence is reported when no reference check fires. Absence
	// of a known problem is weaker than positive confirmation.
	AccurateConfidence = 0.7
	// ConflictConfidence is reported when at least one check fires
	ConflictConfidence = 0.95
)

var yearPattern = regexp.MustCompile(`\b\d{4}\b`)

// nonNames are capitalized words that never count as a person's name
var nonNames = map[string]bool{
	"the": true, "a": true, "an": true, "in": true, "on": true, "it": true, "he": true,
	"she": true, "they": true, "this": true, "that": true, "was": true, "is": true,
	"and": true, "but": true, "of": true, "first": true, "man": true, "person": true,
	"i": true, "we": true, "who": true, "according": true, "mr": true, "mrs": true,
	"dr": true, "sir": true, "neil": true, "alexander": true, "albert": true, "george": true,
	"january": true, "february": true, "march": true, "april": true, "may": true, "june": true,
	"july": true, "august": true, "september": true, "october": true, "november": true, "december": true,
}

// Finding is one reference check that fired for a claim
type Finding struct {
	Category   model.ConflictCategory `json:"category"`
	Note       string                 `json:"note"`
	Correction string                 `json:"correction,omitempty"`
}

// Verdict is the outcome of all reference checks for one claim
type Verdict struct {
	Accurate      bool      `json:"accurate"`
	Confidence    float64   `json:"confidence"`
	Findings      []Finding `json:"findings,omitempty"`
	TablesVersion string    `json:"tables_version"`
}

// Categories returns the categories of all findings
func (v Verdict) Categories() []model.ConflictCategory {
	var cats []model.ConflictCategory
	for _, f := range v.Findings {
		cats = append(cats, f.Category)
	}
	return cats
}

// Verifier checks claims against the reference tables. It is immutable after
// construction and safe for concurrent use.
type Verifier struct {
	tables      *Tables
	casePattern *regexp.Regexp
	misquotes   []Misquote // Squashed copies of the table entries
	fabricated  []string
	aiKeywords  []string // Space padded for whole-word matching

	misconceptions []misconceptionRule
	framing        [][][]string
}

// misconceptionRule is a misconception with its terms split into word alternatives
type misconceptionRule struct {
	entry    Misconception
	key      [][]string
	requires [][][]string
}

// NewVerifier creates a verifier over the given tables. Nil tables use the
// built-in tables.
func NewVerifier(tables *Tables) (*Verifier, error) {
	if tables == nil {
		t, err := DefaultTables()
		if err != nil {
			return nil, err
		}
		tables = t
	}

	v := &Verifier{tables: tables}
	if tables.Citations.CasePattern != "" {
		re, err := regexp.Compile(tables.Citations.CasePattern)
		if err != nil {
			return nil, fmt.Errorf("%w: case pattern: %v", ErrInvalidTables, err)
		}
		v.casePattern = re
	}
	for _, m := range tables.Misquotes {
		sq := m
		sq.Pattern = squash(m.Pattern)
		sq.Context = squash(m.Context)
		v.misquotes = append(v.misquotes, sq)
	}
	for _, kw := range tables.Citations.AIKeywords {
		if sq := squash(kw); sq != "" {
			v.aiKeywords = append(v.aiKeywords, " "+sq+" ")
		}
	}
	for _, m := range tables.Misconceptions {
		rule := misconceptionRule{entry: m, key: wordAlts(m.Key)}
		for _, req := range m.Requires {
			rule.requires = append(rule.requires, wordAlts(req))
		}
		v.misconceptions = append(v.misconceptions, rule)
	}
	for _, marker := range tables.NegationMarkers {
		if alts := wordAlts(marker); len(alts) > 0 {
			v.framing = append(v.framing, alts)
		}
	}
	for _, c := range tables.Citations.FabricatedCases {
		v.fabricated = append(v.fabricated, squash(c))
	}
	return v, nil
}

// Version returns the tables version
func (v *Verifier) Version() string {
	return v.tables.Version
}

// Verify runs every reference check against the claim. Each category is
// checked independently and all findings are merged.
func (v *Verifier) Verify(claim string) Verdict {
	verdict := Verdict{TablesVersion: v.Version()}

	for _, cat := range model.AllCategories() {
		var (
			f  Finding
			ok bool
		)
		switch cat {
		case model.CategoryFictionalCitation:
			f, ok = v.CheckCitation(claim)
		case model.CategoryMisquote:
			f, ok = v.CheckMisquote(claim)
		case model.CategoryMisconception:
			f, ok = v.CheckMisconception(claim)
		case model.CategoryHistoricalFact:
			f, ok = v.CheckHistoricalFact(claim)
		}
		if ok {
			verdict.Findings = append(verdict.Findings, f)
		}
	}

	if len(verdict.Findings) == 0 {
		verdict.Accurate = true
		verdict.Confidence = AccurateConfidence
	} else {
		verdict.Confidence = ConflictConfidence
	}
	return verdict
}

// Evidence converts the verdict findings into contradicting evidence
func (v *Verifier) Evidence(verdict Verdict) []model.Evidence {
	var out []model.Evidence
	for _, f := range verdict.Findings {
		out = append(out, v.FindingEvidence(f))
	}
	return out
}

// FindingEvidence builds the synthetic high-reliability evidence for a finding
func (v *Verifier) FindingEvidence(f Finding) model.Evidence {
	text := f.Note
	if f.Correction != "" {
		text = fmt.Sprintf("%s Correction: %s", f.Note, f.Correction)
	}
	return model.Evidence{
		Text: text,
		Source: model.EvidenceSource{
			ID:          "reference:" + string(f.Category),
			Name:        fmt.Sprintf("Reference tables v%s (%s)", v.Version(), f.Category),
			Reliability: v.tables.Reliability,
		},
		Relevance: 1.0,
		Sentiment: model.SentimentContradicting,
	}
}

// CheckCitation flags known fabricated cases, and "X v. Y" citations with a
// 2021/2023 ruling on an AI subject
func (v *Verifier) CheckCitation(claim string) (Finding, bool) {
	sq := squash(claim)
	for _, name := range v.fabricated {
		if name != "" && strings.Contains(sq, name) {
			return Finding{
				Category: model.CategoryFictionalCitation,
				Note:     fmt.Sprintf("%q is a known fabricated case citation with no record in any case reporter.", titleCase(name)),
			}, true
		}
	}

	if v.casePattern == nil {
		return Finding{}, false
	}
	match := v.casePattern.FindString(claim)
	if match == "" {
		return Finding{}, false
	}

	padded := " " + sq + " "
	year := ""
	for _, y := range v.tables.Citations.Years {
		if strings.Contains(padded, " "+y+" ") {
			year = y
			break
		}
	}
	if year == "" || !containsAny(padded, v.aiKeywords) {
		return Finding{}, false
	}

	return Finding{
		Category: model.CategoryFictionalCitation,
		Note:     fmt.Sprintf("%q with a %s ruling on AI matches the pattern of fabricated AI case law; no such decision is on record.", match, year),
	}, true
}

// CheckMisquote flags claims containing a misquote together with its context keyword
func (v *Verifier) CheckMisquote(claim string) (Finding, bool) {
	sq := squash(claim)
	for _, m := range v.misquotes {
		if strings.Contains(sq, m.Pattern) && strings.Contains(sq, m.Context) {
			return Finding{
				Category:   model.CategoryMisquote,
				Note:       m.Note,
				Correction: m.Correction,
			}, true
		}
	}
	return Finding{}, false
}

// CheckMisconception flags claims that state a popular false belief. Key and
// requires terms match whole words. A claim framed as a myth is never flagged;
// a local negation only suppresses the belief it sits in or right before.
func (v *Verifier) CheckMisconception(claim string) (Finding, bool) {
	cw := splitClauses(claim)
	for _, marker := range v.framing {
		if _, _, ok := cw.find(marker); ok {
			return Finding{}, false
		}
	}

	for _, rule := range v.misconceptions {
		start, end, ok := cw.find(rule.key)
		if !ok {
			continue
		}
		matched := true
		for _, req := range rule.requires {
			s, e, ok := cw.find(req)
			if !ok {
				matched = false
				break
			}
			start, end = min(start, s), max(end, e)
		}
		if !matched || cw.negatedNear(start, end, v.tables.LocalNegations) {
			continue
		}
		return Finding{
			Category:   model.CategoryMisconception,
			Note:       rule.entry.Confusion,
			Correction: rule.entry.Reality,
		}, true
	}
	return Finding{}, false
}

// CheckHistoricalFact flags claims that mention a recorded topic, omit the
// accepted answer and carry a competing year or name
func (v *Verifier) CheckHistoricalFact(claim string) (Finding, bool) {
	sq := squash(claim)
	padded := " " + sq + " "

	for _, f := range v.tables.HistoricalFacts {
		if !mentionsTopic(sq, f) {
			continue
		}
		if strings.Contains(padded, " "+squash(f.Answer)+" ") {
			continue
		}

		var competing string
		switch f.Kind {
		case FactYear:
			for _, y := range yearPattern.FindAllString(claim, -1) {
				if y != f.Answer {
					competing = y
					break
				}
			}
		case FactPerson:
			competing = competingName(claim, f)
		}
		if competing == "" {
			continue
		}

		return Finding{
			Category:   model.CategoryHistoricalFact,
			Note:       fmt.Sprintf("The claim gives %q where the historical record says otherwise.", competing),
			Correction: f.Fact,
		}, true
	}
	return Finding{}, false
}

func mentionsTopic(sq string, f HistoricalFact) bool {
	if strings.Contains(sq, squash(f.Topic)) {
		return true
	}
	for _, a := range f.Aliases {
		if a != "" && strings.Contains(sq, squash(a)) {
			return true
		}
	}
	return false
}

// competingName returns a capitalized token that looks like a person's name
// other than the accepted answer. A sentence-initial word only counts when it
// starts a run of capitalized words.
func competingName(claim string, f HistoricalFact) string {
	topicWords := make(map[string]bool)
	for _, phrase := range append([]string{f.Topic}, f.Aliases...) {
		for _, w := range strings.Fields(squash(phrase)) {
			topicWords[w] = true
		}
	}
	ignore := make(map[string]bool)
	for _, w := range f.Ignore {
		ignore[w] = true
	}

	tokens := strings.FieldsFunc(claim, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\'' && r != '’'
	})
	for i, tok := range tokens {
		tok = strings.TrimSuffix(strings.TrimSuffix(tok, "'s"), "’s")
		r := []rune(tok)
		if len(r) < 2 || !unicode.IsUpper(r[0]) {
			continue
		}
		lower := strings.ToLower(tok)
		if nonNames[lower] || topicWords[lower] || ignore[lower] || lower == f.Answer {
			continue
		}
		if i == 0 {
			next := ""
			if len(tokens) > 1 {
				next = tokens[1]
			}
			nr := []rune(next)
			if len(nr) == 0 || !unicode.IsUpper(nr[0]) {
				continue
			}
		}
		return tok
	}
	return ""
}

// squash lowercases, unifies apostrophes and replaces other punctuation with spaces
func squash(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, "’", "'"))
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if w == "v" {
			words[i] = "v."
			continue
		}
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// wordAlts splits "a b|c" into the word sequences of its alternatives
func wordAlts(term string) [][]string {
	var alts [][]string
	for _, alt := range strings.Split(term, "|") {
		if words := strings.Fields(squash(alt)); len(words) > 0 {
			alts = append(alts, words)
		}
	}
	return alts
}

// clauseOpeners start a new clause when they appear mid-sentence
var clauseOpeners = map[string]bool{
	"but": true, "although": true, "though": true, "whereas": true, "however": true, "yet": true,
}

// clauseWords is a claim's squashed words with the clause index of each
type clauseWords struct {
	words   []string
	clauses []int
}

func splitClauses(claim string) clauseWords {
	var (
		cw     clauseWords
		b      strings.Builder
		clause int
	)
	flush := func() {
		if b.Len() == 0 {
			return
		}
		w := b.String()
		b.Reset()
		if clauseOpeners[w] && len(cw.words) > 0 {
			clause++
		}
		cw.words = append(cw.words, w)
		cw.clauses = append(cw.clauses, clause)
	}

	for _, r := range strings.ToLower(strings.ReplaceAll(claim, "’", "'")) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'':
			b.WriteRune(r)
		case strings.ContainsRune(",;:()[]", r):
			flush()
			clause++
		default:
			flush()
		}
	}
	flush()
	return cw
}

// find returns the earliest word span matching any alternative
func (cw clauseWords) find(alts [][]string) (start, end int, ok bool) {
	start = -1
	for _, alt := range alts {
		for i := 0; i+len(alt) <= len(cw.words); i++ {
			if slices.Equal(cw.words[i:i+len(alt)], alt) {
				if start < 0 || i < start {
					start, end = i, i+len(alt)-1
				}
				break
			}
		}
	}
	return start, end, start >= 0
}

// negatedNear reports a negation inside the span or up to two words before
// it in the same clause
func (cw clauseWords) negatedNear(start, end int, markers []string) bool {
	for i := max(start-2, 0); i <= end; i++ {
		if cw.clauses[i] != cw.clauses[start] && i < start {
			continue
		}
		if isNegation(cw.words[i], markers) {
			return true
		}
	}
	return false
}

// isNegation matches whole words; a marker starting with "n'" also matches
// contractions ending in it
func isNegation(word string, markers []string) bool {
	for _, m := range markers {
		if word == m || (strings.HasPrefix(m, "n'") && strings.HasSuffix(word, m)) {
			return true
		}
	}
	return false
}

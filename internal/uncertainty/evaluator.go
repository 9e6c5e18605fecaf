// Package uncertainty scores whether a claim hedges as much as its evidence
// warrants and derives the resulting trust bonus.
package uncertainty

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/veritas/internal/model"
)

// Strength is the tier of a hedge phrase
type Strength string

const (
	StrengthStrong   Strength = "strong"
	StrengthModerate Strength = "moderate"
	StrengthWeak     Strength = "weak"
)

// Evidence strength tier boundaries
const (
	StrongEvidence   = 0.8
	ModerateEvidence = 0.5
	IdealModerate    = 0.6 // Ideal hedge strength for moderate evidence
)

// Hedge is one hedge-phrase pattern. Modifier is how much uncertainty the
// phrase expresses, in [0.3, 0.8].
type Hedge struct {
	Pattern  *regexp.Regexp
	Strength Strength
	Modifier float64
}

// Match is a hedge found in a claim
type Match struct {
	Phrase   string
	Position int
	Strength Strength
	Modifier float64
}

func hedge(pattern string, s Strength, modifier float64) Hedge {
	return Hedge{Pattern: regexp.MustCompile(`(?i)\b` + pattern + `\b`), Strength: s, Modifier: modifier}
}

// DefaultHedges returns the built-in hedge patterns in check order. Longer
// phrases come first so they claim their span before shorter ones.
func DefaultHedges() []Hedge {
	return []Hedge{
		hedge(`it is (?:unclear|uncertain|unknown) (?:whether|if)`, StrengthStrong, 0.8),
		hedge(`(?:it is|it's) (?:speculated|rumou?red) that`, StrengthStrong, 0.8),
		hedge(`(?:allegedly|reportedly|supposedly|unverified)`, StrengthStrong, 0.7),
		hedge(`(?:might|could) (?:be|have)`, StrengthStrong, 0.7),
		hedge(`(?:it is|it's) possible that`, StrengthModerate, 0.5),
		hedge(`(?:it is|it's) likely that`, StrengthModerate, 0.5),
		hedge(`(?:evidence|research|studies) suggests?`, StrengthModerate, 0.5),
		hedge(`(?:appears|seems) to`, StrengthModerate, 0.5),
		hedge(`(?:possibly|perhaps|probably|likely)`, StrengthModerate, 0.6),
		hedge(`(?-i:may)`, StrengthModerate, 0.5), // Lowercase only; "May" is usually the month
		hedge(`according to`, StrengthWeak, 0.3),
		hedge(`(?:evidence|research|studies) (?:shows?|indicates?)`, StrengthWeak, 0.3),
		hedge(`(?:it is|it's) (?:believed|thought) that`, StrengthWeak, 0.4),
		hedge(`in most cases`, StrengthWeak, 0.4),
		hedge(`(?:generally|typically|usually|approximately|roughly)`, StrengthWeak, 0.3),
	}
}

// qualifierBank holds the three suggestions per evidence tier
var qualifierBank = map[Strength][]string{
	StrengthStrong:   {"Evidence indicates that", "According to available sources,", "Research shows that"},
	StrengthModerate: {"It is likely that", "Evidence suggests that", "It appears that"},
	StrengthWeak:     {"It is possible that", "Some sources suggest that", "It is unclear whether"},
}

// Evaluator detects hedging in claims. It is immutable and safe for concurrent use.
type Evaluator struct {
	hedges []Hedge
}

// NewEvaluator creates an evaluator. Nil hedges use DefaultHedges.
func NewEvaluator(hedges []Hedge) *Evaluator {
	if hedges == nil {
		hedges = DefaultHedges()
	}
	return &Evaluator{hedges: hedges}
}

// Matches returns the non-overlapping hedge matches in the claim, sorted by position
func (e *Evaluator) Matches(claim string) []Match {
	claim = strings.ReplaceAll(claim, "’", "'")
	var matches []Match
	var taken [][2]int

	for _, h := range e.hedges {
		for _, loc := range h.Pattern.FindAllStringIndex(claim, -1) {
			if overlaps(taken, loc) {
				continue
			}
			taken = append(taken, [2]int{loc[0], loc[1]})
			matches = append(matches, Match{
				Phrase:   strings.ToLower(claim[loc[0]:loc[1]]),
				Position: loc[0],
				Strength: h.Strength,
				Modifier: h.Modifier,
			})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Position < matches[j].Position
	})
	return matches
}

func overlaps(taken [][2]int, loc []int) bool {
	for _, t := range taken {
		if loc[0] < t[1] && t[0] < loc[1] {
			return true
		}
	}
	return false
}

// Evaluate scores the claim's hedging against the given evidence strength
func (e *Evaluator) Evaluate(claim string, evidenceStrength float64) model.UncertaintyEvaluation {
	evidenceStrength = math.Max(0, math.Min(1, evidenceStrength))
	eval := model.UncertaintyEvaluation{
		Claim:            claim,
		EvidenceStrength: evidenceStrength,
	}

	matches := e.Matches(claim)
	if len(matches) > 0 {
		eval.HasQualifier = true
		var sum float64
		for _, m := range matches {
			sum += m.Modifier
			eval.MatchedQualifiers = append(eval.MatchedQualifiers, m.Phrase)
		}
		eval.QualifierStrength = sum / float64(len(matches))
	}

	eval.AppropriatenessScore = Appropriateness(eval.HasQualifier, eval.QualifierStrength, evidenceStrength)
	if !eval.HasQualifier {
		eval.SuggestedQualifiers = SuggestQualifiers(evidenceStrength)
	}
	return eval
}

// Appropriateness rates how well a hedge of the given strength fits the evidence.
// Strong evidence penalizes hedging, weak evidence rewards it.
func Appropriateness(hedged bool, qualifierStrength, evidenceStrength float64) float64 {
	switch Tier(evidenceStrength) {
	case StrengthStrong:
		if hedged {
			return 1 - qualifierStrength
		}
		return 0.9
	case StrengthModerate:
		if hedged {
			return 1 - math.Abs(qualifierStrength-IdealModerate)
		}
		return 0.5
	default:
		if hedged {
			return qualifierStrength
		}
		return 0.2
	}
}

// Tier maps an evidence strength to its tier
func Tier(evidenceStrength float64) Strength {
	switch {
	case evidenceStrength >= StrongEvidence:
		return StrengthStrong
	case evidenceStrength >= ModerateEvidence:
		return StrengthModerate
	default:
		return StrengthWeak
	}
}

// SuggestQualifiers returns the three qualifier templates for the evidence tier
func SuggestQualifiers(evidenceStrength float64) []string {
	return append([]string(nil), qualifierBank[Tier(evidenceStrength)]...)
}

// sentenceStarters are lowered when a qualifier is prepended; anything else
// may be a proper noun and keeps its case
var sentenceStarters = map[string]bool{
	"the": true, "a": true, "an": true, "this": true, "that": true, "these": true,
	"those": true, "it": true, "there": true, "in": true, "on": true, "most": true,
	"many": true, "some": true, "all": true, "humans": true, "people": true,
}

// ApplyQualifier prepends a qualifier to a sentence
func ApplyQualifier(qualifier, sentence string) string {
	sentence = strings.TrimSpace(sentence)
	if qualifier == "" || sentence == "" {
		return sentence
	}
	first := strings.FieldsFunc(sentence, func(r rune) bool { return !unicode.IsLetter(r) })
	if len(first) > 0 && sentenceStarters[strings.ToLower(first[0])] && strings.HasPrefix(sentence, first[0]) {
		r, size := utf8.DecodeRuneInString(sentence)
		sentence = string(unicode.ToLower(r)) + sentence[size:]
	}
	return qualifier + " " + sentence
}

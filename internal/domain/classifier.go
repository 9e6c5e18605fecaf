package domain

import (
	"sort"
	"strings"
	"unicode"

	"github.com/ppiankov/veritas/internal/model"
)

// FallbackID is the domain used when nothing matches
const FallbackID = "general"

// Classifier assigns a risk domain to text by keyword matching
type Classifier struct {
	domains  []model.Domain
	byID     map[string]model.Domain
	fallback model.Domain
}

// NewClassifier creates a classifier over the given domain catalogue.
// An empty catalogue uses model.DefaultDomains().
func NewClassifier(domains []model.Domain) *Classifier {
	if len(domains) == 0 {
		domains = model.DefaultDomains()
	}

	c := &Classifier{
		domains: domains,
		byID:    make(map[string]model.Domain, len(domains)),
	}
	for _, d := range domains {
		c.byID[strings.ToLower(d.ID)] = d
	}

	if d, ok := c.byID[FallbackID]; ok {
		c.fallback = d
	} else {
		c.fallback = domains[0]
	}
	return c
}

// Lookup returns the domain with the given id
func (c *Classifier) Lookup(id string) (model.Domain, bool) {
	d, ok := c.byID[strings.ToLower(strings.TrimSpace(id))]
	return d, ok
}

// ClassifyWithOverride uses the override domain at confidence 1.0 when it
// exists and falls back to keyword classification otherwise
func (c *Classifier) ClassifyWithOverride(text, override string) model.DomainClassification {
	if override != "" {
		if d, ok := c.Lookup(override); ok {
			return model.DomainClassification{Domain: d, Confidence: 1.0}
		}
	}
	return c.Classify(text)
}

type domainHits struct {
	domain model.Domain
	order  int
	hits   int
}

// Classify maps text to the domain with the most keyword hits
func (c *Classifier) Classify(text string) model.DomainClassification {
	lower := strings.ToLower(text)
	padded := " " + strings.Join(strings.Fields(lower), " ") + " "
	tokens := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		tokens[tok] = true
	}

	var matched []domainHits
	total := 0
	for i, d := range c.domains {
		hits := 0
		for _, kw := range d.Keywords {
			if keywordMatches(strings.ToLower(kw), tokens, padded) {
				hits++
			}
		}
		if hits > 0 {
			matched = append(matched, domainHits{domain: d, order: i, hits: hits})
			total += hits
		}
	}

	if len(matched) == 0 {
		return model.DomainClassification{Domain: c.fallback, Confidence: 0.5}
	}

	// Most hits first; ties go to the riskier domain, then catalogue order
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].hits != matched[j].hits {
			return matched[i].hits > matched[j].hits
		}
		ri, rj := riskRank(matched[i].domain.RiskLevel), riskRank(matched[j].domain.RiskLevel)
		if ri != rj {
			return ri > rj
		}
		return matched[i].order < matched[j].order
	})

	best := matched[0]
	share := float64(best.hits) / float64(total)
	strength := float64(best.hits) / 3.0
	if strength > 1 {
		strength = 1
	}

	var secondary []model.Domain
	for _, m := range matched[1:] {
		secondary = append(secondary, m.domain)
	}

	return model.DomainClassification{
		Domain:           best.domain,
		Confidence:       0.5 + 0.5*share*strength,
		SecondaryDomains: secondary,
	}
}

// keywordMatches matches single words against tokens and phrases by substring
func keywordMatches(kw string, tokens map[string]bool, padded string) bool {
	if kw == "" {
		return false
	}
	for _, r := range kw {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return strings.Contains(padded, " "+kw)
		}
	}
	return tokens[kw]
}

func riskRank(level model.RiskLevel) int {
	switch level {
	case model.RiskHigh:
		return 2
	case model.RiskMedium:
		return 1
	default:
		return 0
	}
}

// EffectiveThreshold adjusts a requested confidence threshold for domain risk:
// high risk raises it to at least the domain threshold, low risk lowers it to
// at most the domain threshold, medium leaves it unchanged.
func EffectiveThreshold(requested float64, d model.Domain) float64 {
	switch d.RiskLevel {
	case model.RiskHigh:
		if d.ConfidenceThreshold > requested {
			return d.ConfidenceThreshold
		}
	case model.RiskLow:
		if d.ConfidenceThreshold < requested {
			return d.ConfidenceThreshold
		}
	}
	return requested
}

package evidence

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ppiankov/veritas/internal/model"
)

// AuthorityClassifier classifies source URLs into authority tiers
type AuthorityClassifier struct {
	config       *model.AuthorityConfig
	primaryMap   map[string]bool
	secondaryMap map[string]bool
	pathPatterns []compiledPattern
}

type compiledPattern struct {
	pattern *regexp.Regexp
	tier    model.AuthorityTier
}

// NewAuthorityClassifier creates a classifier; nil config uses the defaults
func NewAuthorityClassifier(config *model.AuthorityConfig) *AuthorityClassifier {
	if config == nil {
		config = &model.DefaultConfig().Authority
	}

	classifier := &AuthorityClassifier{
		config:       config,
		primaryMap:   make(map[string]bool),
		secondaryMap: make(map[string]bool),
	}

	for _, domain := range config.PrimaryDomains {
		classifier.primaryMap[strings.ToLower(domain)] = true
	}
	for _, domain := range config.SecondaryDomains {
		classifier.secondaryMap[strings.ToLower(domain)] = true
	}

	for _, pp := range config.PathPatterns {
		re, err := regexp.Compile(pp.Pattern)
		if err != nil {
			continue
		}
		classifier.pathPatterns = append(classifier.pathPatterns, compiledPattern{
			pattern: re,
			tier:    parseTierString(pp.Tier),
		})
	}

	return classifier
}

// Classify returns the authority tier of a URL. Unparseable or empty URLs are unknown.
func (a *AuthorityClassifier) Classify(rawURL string) model.AuthorityTier {
	if rawURL == "" {
		return model.TierUnknown
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return model.TierUnknown
	}

	host := strings.ToLower(parsed.Hostname())

	if tierStr, ok := a.config.DomainMap[host]; ok {
		return parseTierString(tierStr)
	}

	if matchesDomain(host, a.primaryMap) {
		return model.TierPrimary
	}
	if matchesDomain(host, a.secondaryMap) {
		return model.TierSecondary
	}

	for _, cp := range a.pathPatterns {
		if cp.pattern.MatchString(parsed.Path) {
			return cp.tier
		}
	}

	if strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".edu") || strings.HasSuffix(host, ".ac.uk") {
		return model.TierPrimary
	}

	return model.TierTertiary
}

// Annotate sets the authority tier of a URL-backed source and, when the source
// did not report one, derives its reliability from the tier
func (a *AuthorityClassifier) Annotate(src model.EvidenceSource) model.EvidenceSource {
	if src.URL == "" {
		return src
	}
	src.Authority = a.Classify(src.URL)
	if src.Reliability == 0 {
		src.Reliability = src.Authority.Reliability()
	}
	return src
}

// matchesDomain matches host exactly or as a subdomain ("en.wikipedia.org" matches "wikipedia.org")
func matchesDomain(host string, domains map[string]bool) bool {
	if domains[host] {
		return true
	}
	for d := range domains {
		if strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func parseTierString(tier string) model.AuthorityTier {
	switch strings.ToLower(tier) {
	case "primary", "1":
		return model.TierPrimary
	case "secondary", "2":
		return model.TierSecondary
	default:
		return model.TierTertiary
	}
}

package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/ppiankov/veritas/internal/extract"
	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/util"
)

// SupportThreshold is the minimum term overlap for a search hit to count as supporting
const SupportThreshold = 0.6

const maxResponseBytes = 2 << 20

// WikipediaSource searches the MediaWiki API and turns hits into evidence.
// Search hits can support a claim but never contradict it; contradiction
// comes from the reference tables and the LLM judge.
type WikipediaSource struct {
	apiBase    string
	httpClient *http.Client
	userAgent  string
	robots     *util.RobotsChecker
	authority  *AuthorityClassifier
}

// NewWikipediaSource creates a source for the wiki at apiBase ("https://en.wikipedia.org").
// A nil robots checker skips robots.txt checks.
func NewWikipediaSource(apiBase string, client *http.Client, userAgent string, robots *util.RobotsChecker, authority *AuthorityClassifier) *WikipediaSource {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if authority == nil {
		authority = NewAuthorityClassifier(nil)
	}
	return &WikipediaSource{
		apiBase:    strings.TrimSuffix(apiBase, "/"),
		httpClient: client,
		userAgent:  userAgent,
		robots:     robots,
		authority:  authority,
	}
}

// Name returns the source name
func (w *WikipediaSource) Name() string { return "wikipedia" }

type searchResponse struct {
	Query struct {
		Search []searchHit `json:"search"`
	} `json:"query"`
}

type searchHit struct {
	Title     string `json:"title"`
	PageID    int    `json:"pageid"`
	Snippet   string `json:"snippet"`
	Timestamp string `json:"timestamp"`
}

// Retrieve searches for the claim, then each supplementary query, until depth hits are collected
func (w *WikipediaSource) Retrieve(ctx context.Context, claim string, opts Options) ([]model.Evidence, error) {
	depth := opts.Depth
	if depth <= 0 {
		depth = 3
	}

	terms := contentTerms(claim)
	seen := make(map[int]bool)
	var out []model.Evidence

	queries := append([]string{claim}, opts.Queries...)
	for i, q := range queries {
		if len(out) >= depth {
			break
		}
		hits, err := w.search(ctx, q, depth)
		if err != nil {
			if i == 0 {
				return nil, err
			}
			break
		}
		for _, hit := range hits {
			if seen[hit.PageID] || len(out) >= depth {
				continue
			}
			seen[hit.PageID] = true
			out = append(out, w.toEvidence(hit, terms))
		}
	}
	return out, nil
}

func (w *WikipediaSource) search(ctx context.Context, query string, limit int) ([]searchHit, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", strconv.Itoa(limit))
	params.Set("srprop", "snippet|timestamp")
	params.Set("format", "json")
	apiURL := w.apiBase + "/w/api.php?" + params.Encode()

	if w.robots != nil && !w.robots.IsAllowed(ctx, apiURL) {
		return nil, fmt.Errorf("%w: disallowed by robots.txt", ErrUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", w.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: wikipedia API returned status %d", ErrUnavailable, resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode wikipedia response: %w", err)
	}
	return parsed.Query.Search, nil
}

func (w *WikipediaSource) toEvidence(hit searchHit, terms []string) model.Evidence {
	snippet, err := extract.TextFromHTML(hit.Snippet)
	if err != nil {
		snippet = hit.Snippet
	}
	snippet = strings.Join(strings.Fields(snippet), " ")

	pageURL := w.apiBase + "/wiki/" + url.PathEscape(strings.ReplaceAll(hit.Title, " ", "_"))
	src := w.authority.Annotate(model.EvidenceSource{
		ID:   fmt.Sprintf("wikipedia:%d", hit.PageID),
		Name: "Wikipedia: " + hit.Title,
		URL:  pageURL,
	})
	if ts, err := time.Parse(time.RFC3339, hit.Timestamp); err == nil {
		src.Timestamp = &ts
	}

	relevance := termOverlap(terms, hit.Title+" "+snippet)
	sentiment := model.SentimentNeutral
	if relevance >= SupportThreshold {
		sentiment = model.SentimentSupporting
	}

	return model.Evidence{
		Text:      snippet,
		Source:    src,
		Relevance: relevance,
		Sentiment: sentiment,
	}
}

// contentTerms returns the distinct lowercase words of at least three letters
func contentTerms(text string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, tok := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(tok)) < 3 || commonWords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		terms = append(terms, tok)
	}
	return terms
}

// termOverlap is the share of terms that occur in text
func termOverlap(terms []string, text string) float64 {
	if len(terms) == 0 {
		return 0
	}
	present := make(map[string]bool)
	for _, t := range contentTerms(text) {
		present[t] = true
	}
	hits := 0
	for _, t := range terms {
		if present[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

var commonWords = map[string]bool{
	"the": true, "and": true, "was": true, "were": true, "are": true, "for": true,
	"that": true, "this": true, "with": true, "from": true, "has": true, "have": true,
	"had": true, "its": true, "his": true, "her": true, "their": true, "which": true,
	"who": true, "not": true, "but": true, "been": true, "into": true, "around": true,
}

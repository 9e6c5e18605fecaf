package extract

import (
	"strings"
	"unicode"

	"github.com/ppiankov/veritas/internal/model"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// trimChars are stripped from both ends of every claim
const trimChars = ".,;:!?\"'`“”‘’«»…*•-–—()[]{} \t\r\n"

// closingQuotes may follow a sentence terminator and still belong to the sentence
const closingQuotes = "\"'”’»)]}"

// ClaimExtractor splits generated text into normalized claims
type ClaimExtractor struct {
	abbreviations map[string]bool
}

// NewClaimExtractor creates a new claim extractor
func NewClaimExtractor() *ClaimExtractor {
	abbrevs := []string{
		"v", "vs", "mr", "mrs", "ms", "dr", "prof", "st", "jr", "sr",
		"inc", "ltd", "co", "corp", "no", "vol", "fig", "e.g", "i.e", "etc",
		"u.s", "u.k", "a.m", "p.m", "approx", "est", "gen", "sen", "rep",
	}
	m := make(map[string]bool, len(abbrevs))
	for _, a := range abbrevs {
		m[a] = true
	}
	return &ClaimExtractor{abbreviations: m}
}

// Segment is one raw sentence from the source and its normalized claim text.
// Claim is empty for fragments that normalize to nothing.
type Segment struct {
	Raw   string
	Claim string
}

// Extract returns the claims of text in original order. Duplicates are kept.
func (e *ClaimExtractor) Extract(text string) []model.Claim {
	claims := []model.Claim{}
	for i, seg := range e.Segments(text) {
		if seg.Claim == "" {
			continue
		}
		claims = append(claims, model.Claim{
			Text:     seg.Claim,
			Sentence: i,
		})
	}
	return claims
}

// Segments splits text into raw sentences paired with their normalized claims
func (e *ClaimExtractor) Segments(text string) []Segment {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	text = norm.NFC.String(text)
	var segments []Segment
	for _, raw := range e.splitSentences(text) {
		segments = append(segments, Segment{Raw: raw, Claim: Normalize(raw)})
	}
	return segments
}

// ExtractClaims is a convenience wrapper around a default extractor
func ExtractClaims(text string) []model.Claim {
	return NewClaimExtractor().Extract(text)
}

// Normalize trims quote and punctuation runs and collapses whitespace
func Normalize(sentence string) string {
	s := strings.Join(strings.Fields(sentence), " ")
	return strings.Trim(s, trimChars)
}

// splitSentences splits on . ! ? followed by whitespace or end of text,
// skipping decimals and known abbreviations
func (e *ClaimExtractor) splitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	var current strings.Builder

	flush := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		current.WriteRune(r)

		if r != '.' && r != '!' && r != '?' {
			continue
		}

		// Absorb runs of terminators and closing quotes
		for i+1 < len(runes) && (strings.ContainsRune(".!?", runes[i+1]) || strings.ContainsRune(closingQuotes, runes[i+1])) {
			i++
			current.WriteRune(runes[i])
		}

		atEnd := i+1 >= len(runes)
		if !atEnd && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if r == '.' && e.isAbbreviation(current.String()) {
			continue
		}
		flush()
	}
	flush()

	return sentences
}

// isAbbreviation reports whether the text ends in a known abbreviation or initial
func (e *ClaimExtractor) isAbbreviation(sentence string) bool {
	fields := strings.Fields(sentence)
	if len(fields) == 0 {
		return false
	}
	last := strings.TrimRight(fields[len(fields)-1], closingQuotes)
	if !strings.HasSuffix(last, ".") {
		return false
	}
	word := strings.TrimSuffix(strings.TrimLeft(last, "(\"'“‘"), ".")
	if e.abbreviations[strings.ToLower(word)] {
		return true
	}
	// Single-letter initials such as "J. R. R. Tolkien"
	runes := []rune(word)
	return len(runes) == 1 && unicode.IsUpper(runes[0])
}

// LooksLikeHTML reports whether text appears to contain markup
func LooksLikeHTML(text string) bool {
	lower := strings.ToLower(text)
	for _, tag := range []string{"<p", "<div", "<br", "<li", "<span", "<html", "<body", "<h1", "<h2", "<h3", "<td"} {
		if strings.Contains(lower, tag) {
			return true
		}
	}
	return false
}

// TextFromHTML extracts visible text from HTML, skipping scripts and styles
func TextFromHTML(htmlContent string) (string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", err
	}
	return extractVisibleText(doc), nil
}

// extractVisibleText extracts text nodes from HTML, skipping scripts/styles
func extractVisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return strings.TrimSpace(buf.String())
}

package extract

import (
	"sort"
	"strings"
	"unicode"
)

const maxKeyPhrases = 5

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true, "of": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "from": true, "by": true,
	"with": true, "as": true, "is": true, "are": true, "was": true, "were": true, "be": true,
	"been": true, "being": true, "that": true, "this": true, "these": true, "those": true,
	"it": true, "its": true, "it's": true, "he": true, "she": true, "they": true, "we": true,
	"you": true, "i": true, "his": true, "her": true, "their": true, "our": true, "my": true,
	"has": true, "have": true, "had": true, "do": true, "does": true, "did": true, "not": true,
	"no": true, "so": true, "than": true, "then": true, "there": true, "which": true,
	"who": true, "whom": true, "what": true, "when": true, "where": true, "why": true,
	"how": true, "all": true, "any": true, "some": true, "can": true, "could": true,
	"may": true, "might": true, "will": true, "would": true, "should": true, "must": true,
	"into": true, "upon": true, "about": true, "also": true, "very": true, "just": true,
}

// ExtractKeyPhrases returns supplementary search phrases for a claim.
// It tries content-word bigrams, then capitalized name runs, then the
// longest words, then the trimmed text itself. It never panics.
func ExtractKeyPhrases(text string) (phrases []string) {
	trimmed := strings.TrimSpace(text)
	defer func() {
		if r := recover(); r != nil {
			phrases = fallbackPhrases(trimmed)
		}
	}()

	if trimmed == "" {
		return []string{}
	}

	tokens := tokenize(trimmed)

	if bigrams := contentBigrams(tokens); len(bigrams) > 0 {
		return bigrams
	}
	if names := namedPhrases(tokens); len(names) > 0 {
		return names
	}
	if longest := longestWords(tokens); len(longest) > 0 {
		return longest
	}
	return fallbackPhrases(trimmed)
}

func fallbackPhrases(trimmed string) []string {
	if trimmed == "" {
		return []string{}
	}
	return []string{trimmed}
}

// tokenize splits on anything that is not a letter, digit or apostrophe
func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '’'
	})
}

func isContentWord(tok string) bool {
	lower := strings.ToLower(tok)
	if stopwords[lower] || len([]rune(lower)) < 3 {
		return false
	}
	for _, r := range lower {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// contentBigrams returns adjacent content-word pairs, deduplicated, in order
func contentBigrams(tokens []string) []string {
	seen := make(map[string]bool)
	var out []string
	for i := 0; i+1 < len(tokens) && len(out) < maxKeyPhrases; i++ {
		if !isContentWord(tokens[i]) || !isContentWord(tokens[i+1]) {
			continue
		}
		phrase := strings.ToLower(tokens[i] + " " + tokens[i+1])
		if !seen[phrase] {
			seen[phrase] = true
			out = append(out, phrase)
		}
	}
	return out
}

// namedPhrases returns runs of capitalized tokens, skipping a lone sentence-initial word
func namedPhrases(tokens []string) []string {
	var out []string
	var run []string
	start := 0

	emit := func() {
		if len(run) > 1 || (len(run) == 1 && start > 0) {
			out = append(out, strings.Join(run, " "))
		}
		run = nil
	}

	for i, tok := range tokens {
		r := []rune(tok)
		if len(r) > 0 && unicode.IsUpper(r[0]) && !stopwords[strings.ToLower(tok)] {
			if len(run) == 0 {
				start = i
			}
			run = append(run, tok)
			continue
		}
		emit()
	}
	emit()

	if len(out) > maxKeyPhrases {
		out = out[:maxKeyPhrases]
	}
	return out
}

// longestWords returns up to three of the longest non-stopword tokens
func longestWords(tokens []string) []string {
	var candidates []string
	seen := make(map[string]bool)
	for _, tok := range tokens {
		lower := strings.ToLower(tok)
		if stopwords[lower] || len([]rune(lower)) < 4 || seen[lower] {
			continue
		}
		seen[lower] = true
		candidates = append(candidates, lower)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return len([]rune(candidates[i])) > len([]rune(candidates[j]))
	})
	if len(candidates) > 3 {
		candidates = candidates[:3]
	}
	return candidates
}

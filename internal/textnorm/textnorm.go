// Package textnorm holds best-effort lexical language checks. These are
// gating heuristics for the translation flow, not exact language detection:
// short or unusual text can be misclassified.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"
)

// Ratio of stop words among countable tokens required for a lexical match.
const stopWordRatioThreshold = 0.15

var portugueseStopWords = map[string]struct{}{
	"de": {}, "da": {}, "do": {}, "das": {}, "dos": {}, "que": {},
	"não": {}, "uma": {}, "um": {}, "para": {}, "com": {}, "por": {},
	"mais": {}, "como": {}, "mas": {}, "foi": {}, "ele": {}, "ela": {},
	"seu": {}, "sua": {}, "ou": {}, "ser": {}, "quando": {}, "muito": {},
	"já": {}, "está": {}, "também": {}, "os": {}, "as": {}, "em": {},
	"no": {}, "na": {},
}

var englishStopWords = map[string]struct{}{
	"the": {}, "of": {}, "and": {}, "to": {}, "in": {}, "is": {},
	"you": {}, "that": {}, "it": {}, "he": {}, "was": {}, "for": {},
	"on": {}, "are": {}, "as": {}, "with": {}, "his": {}, "they": {},
	"at": {}, "be": {}, "this": {}, "have": {}, "from": {}, "or": {},
	"one": {}, "had": {}, "by": {}, "but": {}, "not": {}, "what": {},
	"all": {}, "were": {}, "we": {}, "when": {}, "your": {}, "can": {},
	"there": {},
}

var portugueseDiacritics = []rune("ãõçáéíóúâêôàÃÕÇÁÉÍÓÚÂÊÔÀ")

// Letters (accented included), whitespace and common punctuation only.
var sentenceCharsRe = regexp.MustCompile(`(?i)^[a-zà-ÿ0-9\s,.;:!?'"()\-]+$`)

// LooksLikePortuguese reports whether the text is plausibly Portuguese.
// Accepts on stop-word ratio, Portuguese diacritics, or a capitalized
// sentence made of plain (possibly accented) words. Fails closed on
// empty or near-empty input.
func LooksLikePortuguese(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) < 3 {
		return false
	}

	tokens := countableTokens(trimmed)
	if len(tokens) == 0 {
		return false
	}

	if stopWordRatio(tokens, portugueseStopWords) >= stopWordRatioThreshold {
		return true
	}
	if hasPortugueseDiacritics(trimmed) {
		return true
	}
	return looksLikeCapitalizedSentence(trimmed)
}

// LooksLikeEnglish reports whether the text is plausibly English. Requires a
// stop-word match and the absence of Portuguese-specific diacritics. Fails
// closed on empty or near-empty input.
func LooksLikeEnglish(text string) bool {
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) < 3 {
		return false
	}
	if hasPortugueseDiacritics(trimmed) {
		return false
	}

	tokens := countableTokens(trimmed)
	if len(tokens) == 0 {
		return false
	}
	return stopWordRatio(tokens, englishStopWords) >= stopWordRatioThreshold
}

func countableTokens(text string) []string {
	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		token := strings.ToLower(strings.Trim(f, `.,;:!?"'()`))
		if len([]rune(token)) > 1 {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

func stopWordRatio(tokens []string, stopWords map[string]struct{}) float64 {
	matches := 0
	for _, token := range tokens {
		if _, ok := stopWords[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(tokens))
}

func hasPortugueseDiacritics(text string) bool {
	return strings.ContainsAny(text, string(portugueseDiacritics))
}

func looksLikeCapitalizedSentence(text string) bool {
	words := strings.Fields(text)
	if len(words) < 2 {
		return false
	}
	first := []rune(words[0])
	if len(first) == 0 || !unicode.IsUpper(first[0]) {
		return false
	}
	return sentenceCharsRe.MatchString(text)
}

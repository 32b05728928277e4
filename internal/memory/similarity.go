package memory

import (
	"math"
	"strings"
	"unicode"
)

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// the vectors are empty, of different length, or zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// tokenize splits text into lowercase word tokens.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '\'')
	})
	result := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.Trim(strings.ToLower(f), "-'")
		if len(w) > 1 { // skip single chars
			result = append(result, w)
		}
	}
	return result
}

// phraseIndex answers "does the text contain this word or phrase" on word
// boundaries.
type phraseIndex struct {
	words  map[string]bool
	joined string
}

func newPhraseIndex(text string) phraseIndex {
	tokens := tokenize(text)
	words := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		words[t] = true
	}
	return phraseIndex{words: words, joined: " " + strings.Join(tokens, " ") + " "}
}

func (p phraseIndex) has(phrase string) bool {
	if !strings.Contains(phrase, " ") {
		return p.words[phrase]
	}
	return strings.Contains(p.joined, " "+phrase+" ")
}

// count returns how many distinct entries of phrases appear.
func (p phraseIndex) count(phrases []string) int {
	n := 0
	for _, ph := range phrases {
		if p.has(ph) {
			n++
		}
	}
	return n
}

func (p phraseIndex) any(phrases []string) bool {
	for _, ph := range phrases {
		if p.has(ph) {
			return true
		}
	}
	return false
}

var stopwords = toSet(
	"the", "and", "for", "are", "but", "not", "you", "all", "any", "can", "had",
	"her", "was", "one", "our", "out", "has", "him", "his", "how", "its", "may",
	"new", "now", "old", "see", "two", "way", "who", "did", "get", "got", "let",
	"she", "too", "use", "that", "this", "with", "have", "from", "they", "will",
	"would", "there", "their", "what", "about", "which", "when", "make", "like",
	"time", "just", "know", "take", "into", "your", "some", "could", "them",
	"than", "then", "look", "only", "come", "over", "also", "back", "after",
	"work", "first", "well", "even", "want", "because", "these", "give", "most",
	"very", "were", "been", "being", "does", "doing", "should", "please", "it's",
	"i'm", "don't", "here", "where", "while", "each", "such", "those", "much",
	"many", "more", "other", "user's", "user", "i've", "we're", "you're",
)

func toSet(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}

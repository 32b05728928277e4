package memory

import (
	"sort"
	"strings"
	"unicode"

	"github.com/samber/lo"
)

// SemanticEngine extracts concepts and hashtags from content.
type SemanticEngine struct {
	MaxConcepts int
	MaxTags     int
}

// NewSemanticEngine returns an engine with default bounds.
func NewSemanticEngine() *SemanticEngine {
	return &SemanticEngine{MaxConcepts: 10, MaxTags: 20}
}

// Enrich fills n.Concepts and merges hashtags into n.Tags. It never fails.
func (e *SemanticEngine) Enrich(n *Node) *Node {
	if n == nil {
		return n
	}
	n.Concepts = e.Concepts(n.Content)

	tags := append(append([]string(nil), n.Tags...), hashtags(n.Content)...)
	tags = lo.Uniq(lo.FilterMap(tags, func(t string, _ int) (string, bool) {
		t = strings.ToLower(strings.TrimSpace(t))
		return t, t != ""
	}))
	if len(tags) > e.MaxTags {
		tags = tags[:e.MaxTags]
	}
	n.Tags = tags
	return n
}

// Concepts returns up to MaxConcepts terms: capitalized words that do not
// start a sentence come first, then the most frequent content words.
func (e *SemanticEngine) Concepts(content string) []string {
	type term struct {
		word   string
		count  int
		proper bool
		first  int
	}
	terms := make(map[string]*term)
	pos := 0
	sentenceStart := true
	for _, raw := range strings.Fields(content) {
		word := strings.TrimFunc(raw, func(r rune) bool {
			return !(unicode.IsLetter(r) || unicode.IsDigit(r))
		})
		endsSentence := strings.ContainsAny(raw[max(len(raw)-1, 0):], ".!?")
		if word == "" {
			sentenceStart = sentenceStart || endsSentence
			continue
		}
		lower := strings.ToLower(strings.TrimSuffix(strings.TrimSuffix(word, "'s"), "’s"))
		if len([]rune(lower)) < 3 || stopwords[lower] || isNumber(lower) {
			sentenceStart = endsSentence
			pos++
			continue
		}
		t, ok := terms[lower]
		if !ok {
			t = &term{word: lower, first: pos}
			terms[lower] = t
		}
		t.count++
		if !sentenceStart && unicode.IsUpper([]rune(word)[0]) {
			t.proper = true
		}
		sentenceStart = endsSentence
		pos++
	}

	list := lo.Values(terms)
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.proper != b.proper {
			return a.proper
		}
		if a.count != b.count {
			return a.count > b.count
		}
		return a.first < b.first
	})
	if len(list) > e.MaxConcepts {
		list = list[:e.MaxConcepts]
	}
	return lo.Map(list, func(t *term, _ int) string { return t.word })
}

func hashtags(content string) []string {
	var out []string
	for _, f := range strings.Fields(content) {
		if len(f) > 1 && f[0] == '#' {
			tag := strings.TrimFunc(f[1:], func(r rune) bool {
				return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-')
			})
			if tag != "" {
				out = append(out, tag)
			}
		}
	}
	return out
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

var (
	positiveWords = toSet(
		"happy", "glad", "love", "loved", "great", "excellent", "wonderful",
		"excited", "grateful", "thanks", "thank", "proud", "awesome", "enjoy",
		"enjoyed", "success", "successful", "good", "fantastic", "delighted",
		"amazing", "beautiful", "fun", "relieved", "hope", "hopeful",
	)
	negativeWords = toSet(
		"sad", "angry", "hate", "hated", "terrible", "awful", "frustrated",
		"afraid", "scared", "worried", "anxious", "upset", "disappointed",
		"lonely", "fail", "failed", "failure", "bad", "broken", "pain", "hurt",
		"annoyed", "stressed", "furious", "miserable", "sorry", "lost",
	)
	intensifiers = toSet(
		"very", "extremely", "really", "so", "incredibly", "absolutely",
		"totally", "deeply", "super", "utterly",
	)
)

// AffectEngine assigns valence and arousal from a small lexicon.
type AffectEngine struct{}

func NewAffectEngine() *AffectEngine { return &AffectEngine{} }

// ApplyEmotion sets n.Valence and n.Arousal. It never fails.
func (e *AffectEngine) ApplyEmotion(n *Node) *Node {
	if n == nil {
		return n
	}
	n.Valence, n.Arousal = e.Assess(n.Content)
	return n
}

// Assess returns the valence category and arousal in [0,1] for content.
func (e *AffectEngine) Assess(content string) (Valence, float64) {
	var pos, neg, intense int
	for _, w := range tokenize(content) {
		switch {
		case positiveWords[w]:
			pos++
		case negativeWords[w]:
			neg++
		case intensifiers[w]:
			intense++
		}
	}

	var v Valence
	switch {
	case pos > 0 && neg > 0:
		v = ValenceMixed
	case pos > 0:
		v = ValencePositive
	case neg > 0:
		v = ValenceNegative
	default:
		v = ValenceNeutral
	}

	arousal := 0.2 +
		0.1*float64(pos+neg) +
		0.1*float64(intense) +
		0.05*float64(min(strings.Count(content, "!"), 3)) +
		0.05*float64(min(shoutedWords(content), 3))
	return v, clamp(arousal, 0, 1)
}

func shoutedWords(content string) int {
	n := 0
	for _, f := range strings.Fields(content) {
		letters := 0
		upper := true
		for _, r := range f {
			if unicode.IsLetter(r) {
				letters++
				if !unicode.IsUpper(r) {
					upper = false
				}
			}
		}
		if letters >= 3 && upper {
			n++
		}
	}
	return n
}

package index

import (
	"regexp"
	"strings"
)

// Tokenizer lowercases text, extracts letter/number runs and drops stop
// words. A LexicalIndex owns exactly one Tokenizer and runs it at both
// insert and query time.
type Tokenizer struct {
	pattern   *regexp.Regexp
	stopwords map[string]struct{}
}

// NewTokenizer returns a tokenizer with the default English stop-word set.
func NewTokenizer() *Tokenizer {
	return NewTokenizerWithStopwords(defaultStopwords)
}

// NewTokenizerWithStopwords returns a tokenizer dropping the given words.
// Pass nil to keep every token.
func NewTokenizerWithStopwords(words []string) *Tokenizer {
	stop := make(map[string]struct{}, len(words))
	for _, w := range words {
		stop[strings.ToLower(w)] = struct{}{}
	}
	return &Tokenizer{
		pattern:   regexp.MustCompile(`[\p{L}\p{N}]+(?:['’]\p{L}+)*`),
		stopwords: stop,
	}
}

// Tokens splits text into normalized terms in order of appearance.
func (t *Tokenizer) Tokens(text string) []string {
	raw := t.pattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, tok := range raw {
		if _, stop := t.stopwords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

var defaultStopwords = []string{
	"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at",
	"by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "its", "this", "that",
	"these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such",
	"into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off",
	"own", "same", "too", "very", "can", "will", "just", "don", "should", "now", "do", "does", "did",
	"what", "when", "where", "which", "who", "whom", "why", "how", "i", "me", "my", "we", "our", "you",
	"your", "he", "she", "they", "them", "their", "there", "here", "has", "have", "had", "not", "no",
}

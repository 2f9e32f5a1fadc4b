package bpe

import (
	"strings"

	"github.com/example/go-textbpe/internal/vocab"
)

// Decode rebuilds readable text from ids. Subwords accumulate into a word
// until one carries the end-of-word marker; completed words are joined by
// single spaces. joiner is inserted after every word-internal subword, e.g.
// "@@" to make continuation boundaries visible. Ids outside the vocabulary
// decode as vocab.Placeholder, which always ends a word.
//
// Subwords after the last end-of-word marker are dropped, and original
// spacing is not recovered, so this is for inspection, not round-tripping.
func (e *Engine) Decode(ids []int, joiner string) string {
	words := make([]string, 0, len(ids))
	var w strings.Builder
	for _, id := range ids {
		s := e.vocab.StringOf(id)
		if stem, ok := strings.CutSuffix(s, vocab.EndOfWord); ok {
			w.WriteString(stem)
			words = append(words, w.String())
			w.Reset()
			continue
		}
		w.WriteString(s)
		w.WriteString(joiner)
	}
	return strings.Join(words, " ")
}

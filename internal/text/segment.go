package text

import (
	"log/slog"
	"strings"

	"github.com/dlclark/regexp2"
)

// wordPattern matches a newline, a run of letters/marks/digits (with inner
// apostrophes, so "don't" stays whole), or a run of other non-space symbols.
var wordPattern = regexp2.MustCompile(
	`\n|[\p{L}\p{M}\p{N}]+(?:['’][\p{L}\p{M}\p{N}]+)*|[^\s\p{L}\p{M}\p{N}]+`,
	regexp2.None,
)

// Segmenter is a rule-based word segmenter. It standardizes text and then
// splits it into words and punctuation tokens; newlines are kept as their own
// token.
type Segmenter struct {
	log *slog.Logger
}

// NewSegmenter returns a Segmenter that reports problems to logger (slog.Default when nil).
func NewSegmenter(logger *slog.Logger) *Segmenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Segmenter{log: logger}
}

// Segment splits text into word tokens. It never fails: if a pattern cannot be
// applied the standardization step is skipped and text is split on whitespace.
func (s *Segmenter) Segment(text string) []string {
	std, err := Standardize(text)
	if err != nil {
		s.log.Warn("standardize failed; falling back to whitespace split",
			slog.Int("text_len", len(text)),
			slog.String("error", err.Error()),
		)
		return strings.Fields(text)
	}

	words := make([]string, 0, len(std)/4+1)
	m, err := wordPattern.FindStringMatch(std)
	for err == nil && m != nil {
		words = append(words, m.String())
		m, err = wordPattern.FindNextMatch(m)
	}
	if err != nil {
		s.log.Warn("segmentation failed; falling back to whitespace split",
			slog.Int("text_len", len(text)),
			slog.String("error", err.Error()),
		)
		return strings.Fields(std)
	}
	return words
}

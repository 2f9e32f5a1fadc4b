// Package text prepares raw input for the BPE engine: it standardizes
// punctuation and whitespace and segments text into word tokens.
package text

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
	"golang.org/x/text/unicode/norm"
)

// ErrEmptyText is returned when text segments to no words.
var ErrEmptyText = errors.New("text is empty")

var punctReplacer = strings.NewReplacer(
	"—", "-",
	"–", "-",
	"―", "-",
	"…", "...",
	"´", "'",
)

var (
	// Runs of these symbols become standalone tokens.
	punctRun = regexp2.MustCompile(`(-+|~+|!+|"+|;+|\?+|\++|,+|\)+|\(+|\\+|/+|\*+|\[+|\]+|}+|{+|\|+|_+)`, regexp2.None)
	// \s is Unicode-aware in regexp2, so non-breaking and ideographic spaces
	// collapse too.
	newlineRun = regexp2.MustCompile(`\s*\n\s*`, regexp2.None)
	spaceRun   = regexp2.MustCompile(`[^\S\n]+`, regexp2.None)
)

// Standardize composes text to NFC, folds typographic dashes, ellipses and
// acute accents to ASCII, pads punctuation runs with spaces, isolates newlines
// as " \n " and collapses all other whitespace to single spaces.
func Standardize(s string) (string, error) {
	s = norm.NFC.String(s)
	s = punctReplacer.Replace(s)

	s, err := punctRun.Replace(s, " $1 ", -1, -1)
	if err != nil {
		return "", fmt.Errorf("pad punctuation: %w", err)
	}
	s, err = newlineRun.Replace(s, " \n ", -1, -1)
	if err != nil {
		return "", fmt.Errorf("isolate newlines: %w", err)
	}
	s, err = spaceRun.Replace(s, " ", -1, -1)
	if err != nil {
		return "", fmt.Errorf("collapse whitespace: %w", err)
	}
	return strings.TrimSpace(s), nil
}

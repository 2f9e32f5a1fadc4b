// Package vocab holds the immutable lookup tables behind the BPE engine:
// subword string <-> id and ordered fragment pair -> merge rank.
package vocab

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"
)

const (
	// EndOfWord is fused onto the final fragment of every word.
	EndOfWord = "</w>"

	// FallbackID is returned by IDOf for subwords missing from the vocabulary.
	// Callers that need to detect unknown subwords must check for it explicitly.
	FallbackID = 0

	// Placeholder is returned by StringOf for ids outside the vocabulary.
	// It carries the end-of-word marker so decode always closes a word on it.
	Placeholder = "|" + EndOfWord

	// NoRank is the rank of any pair without a merge rule. It terminates the
	// merge loop.
	NoRank = math.MaxInt
)

var (
	// ErrNotBijective is returned when two tokens share an id.
	ErrNotBijective = errors.New("token to id mapping is not a bijection")
	// ErrMalformedMerge is returned when a merge rule has unusable fragments.
	ErrMalformedMerge = errors.New("malformed merge rule")
	// ErrInvalidToken is returned for empty token strings or negative ids.
	ErrInvalidToken = errors.New("invalid vocabulary entry")
)

// Pair is an ordered pair of adjacent fragments.
type Pair struct {
	Left  string
	Right string
}

func (p Pair) String() string { return p.Left + " " + p.Right }

// Vocabulary is safe for concurrent use once built; nothing mutates it after New.
type Vocabulary struct {
	tokenToID map[string]int
	// idToToken is keyed by id so sparse or very large ids cost nothing extra.
	idToToken map[int]string
	ranks     map[Pair]int
}

// New builds a Vocabulary from a token->id table and an ordered merge list.
// The rank of a merge rule is its position in merges. A rule listed twice keeps
// its first rank.
func New(tokenToID map[string]int, merges []Pair) (*Vocabulary, error) {
	idToToken := make(map[int]string, len(tokenToID))
	for tok, id := range tokenToID {
		if tok == "" {
			return nil, fmt.Errorf("%w: empty token string for id %d", ErrInvalidToken, id)
		}
		if id < 0 {
			return nil, fmt.Errorf("%w: negative id %d for token %q", ErrInvalidToken, id, tok)
		}
		if prev, dup := idToToken[id]; dup {
			return nil, fmt.Errorf("%w: id %d used by %q and %q", ErrNotBijective, id, prev, tok)
		}
		idToToken[id] = tok
	}

	ranks := make(map[Pair]int, len(merges))
	for i, m := range merges {
		if !validFragment(m.Left) || !validFragment(m.Right) {
			return nil, fmt.Errorf("%w: rule %d %q", ErrMalformedMerge, i, m.String())
		}
		if _, dup := ranks[m]; dup {
			continue
		}
		ranks[m] = i
	}

	t2i := make(map[string]int, len(tokenToID))
	for tok, id := range tokenToID {
		t2i[tok] = id
	}

	return &Vocabulary{
		tokenToID: t2i,
		idToToken: idToToken,
		ranks:     ranks,
	}, nil
}

func validFragment(s string) bool {
	return s != "" && !strings.ContainsFunc(s, unicode.IsSpace)
}

// IDOf returns the id of token, or FallbackID when it is not in the vocabulary.
func (v *Vocabulary) IDOf(token string) int {
	if id, ok := v.tokenToID[token]; ok {
		return id
	}
	return FallbackID
}

// StringOf returns the subword for id, or Placeholder when id is out of range.
func (v *Vocabulary) StringOf(id int) string {
	if tok, ok := v.idToToken[id]; ok {
		return tok
	}
	return Placeholder
}

// MergeRank returns the rank of merging left followed by right, or NoRank.
func (v *Vocabulary) MergeRank(left, right string) int {
	if r, ok := v.ranks[Pair{Left: left, Right: right}]; ok {
		return r
	}
	return NoRank
}

// Len returns the number of tokens.
func (v *Vocabulary) Len() int { return len(v.tokenToID) }

// NumMerges returns the number of distinct merge rules.
func (v *Vocabulary) NumMerges() int { return len(v.ranks) }

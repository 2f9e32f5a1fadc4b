// Package bpe applies byte-pair-encoding merge rules to words and maps the
// resulting subwords to ids, with the inverse decode path for inspection.
//
// An Engine is safe for concurrent use: the Vocabulary is read-only and the
// encode cache is internally synchronized.
package bpe

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/example/go-textbpe/internal/vocab"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Engine encodes words into subword ids against a fixed Vocabulary.
type Engine struct {
	vocab     *vocab.Vocabulary
	cache     encodeCache
	lowercase bool
	log       *slog.Logger
}

type options struct {
	cacheSize int
	lowercase bool
	logger    *slog.Logger
}

func defaultOptions() options {
	return options{
		cacheSize: 0,
		lowercase: true,
		logger:    slog.Default(),
	}
}

// Option configures an Engine.
type Option func(*options)

// WithCacheSize bounds the encode cache to n entries with LRU eviction.
// n <= 0 keeps an unbounded cache.
func WithCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// WithLowercase controls whether Encode lowercases words before merging.
func WithLowercase(on bool) Option {
	return func(o *options) { o.lowercase = on }
}

// WithLogger sets the logger used for engine diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New returns an Engine over v.
func New(v *vocab.Vocabulary, optFns ...Option) (*Engine, error) {
	if v == nil {
		return nil, fmt.Errorf("bpe: nil vocabulary")
	}

	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.logger == nil {
		opts.logger = slog.Default()
	}

	var c encodeCache = newMapCache()
	if opts.cacheSize > 0 {
		lc, err := newLRUCache(opts.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("bpe: create cache: %w", err)
		}
		c = lc
	}

	opts.logger.Debug("bpe engine ready",
		slog.Int("tokens", v.Len()),
		slog.Int("merges", v.NumMerges()),
		slog.Int("cache_size", opts.cacheSize),
		slog.Bool("lowercase", opts.lowercase),
	)

	return &Engine{
		vocab:     v,
		cache:     c,
		lowercase: opts.lowercase,
		log:       opts.logger,
	}, nil
}

// CacheLen returns the number of cached words.
func (e *Engine) CacheLen() int { return e.cache.Len() }

// ClearCache drops every cached merge result.
func (e *Engine) ClearCache() { e.cache.Purge() }

// newlineArtifact is what a newline followed by a space merges to when no rule
// joins them; it is collapsed to a clean newline token.
const newlineArtifact = "\n  " + vocab.EndOfWord

// BPE merges word into its final subwords and returns them joined by single
// spaces. The last subword carries the end-of-word marker. The empty word
// yields "".
func (e *Engine) BPE(word string) string {
	if word == "" {
		return ""
	}
	if merged, ok := e.cache.Get(word); ok {
		return merged
	}

	frags := splitWord(word)
	if len(frags) > 1 {
		frags = e.merge(frags)
	}

	merged := strings.Join(frags, " ")
	if merged == newlineArtifact {
		merged = "\n" + vocab.EndOfWord
	}

	e.cache.Add(word, merged)
	return merged
}

// splitWord returns one fragment per rune with the end-of-word marker fused
// onto the last. Bytes that are not valid UTF-8 become single-byte fragments
// so the merged result keeps the input bytes.
func splitWord(word string) []string {
	frags := make([]string, 0, len(word))
	for i := 0; i < len(word); {
		_, size := utf8.DecodeRuneInString(word[i:])
		frags = append(frags, word[i:i+size])
		i += size
	}
	frags[len(frags)-1] += vocab.EndOfWord
	return frags
}

// merge repeatedly fuses the lowest-ranked adjacent pair until no rule applies
// or a single fragment remains.
func (e *Engine) merge(frags []string) []string {
	next := make([]string, 0, len(frags))
	for len(frags) > 1 {
		left, right, ok := e.bestPair(frags)
		if !ok {
			break
		}
		frags, next = fuse(frags, left, right, next[:0]), frags
	}
	return frags
}

// fuse appends frags to dst with every non-overlapping left+right occurrence,
// scanned left to right, joined into one fragment. When the pair occurs at
// least once the result is strictly shorter than frags.
func fuse(frags []string, left, right string, dst []string) []string {
	for i := 0; i < len(frags); {
		if i < len(frags)-1 && frags[i] == left && frags[i+1] == right {
			dst = append(dst, left+right)
			i += 2
			continue
		}
		dst = append(dst, frags[i])
		i++
	}
	return dst
}

// bestPair returns the adjacent pair with the lowest merge rank. Ties go to the
// leftmost pair.
func (e *Engine) bestPair(frags []string) (left, right string, ok bool) {
	best := vocab.NoRank
	for i := 0; i < len(frags)-1; i++ {
		if r := e.vocab.MergeRank(frags[i], frags[i+1]); r < best {
			best = r
			left, right = frags[i], frags[i+1]
		}
	}
	return left, right, best != vocab.NoRank
}

// Encode lowercases word (unless disabled), merges it and maps every subword
// to its id. Unknown subwords map to vocab.FallbackID. The empty word yields an
// empty slice.
func (e *Engine) Encode(word string) []int {
	if e.lowercase {
		word = cases.Lower(language.Und).String(word)
	}

	merged := e.BPE(word)
	if merged == "" {
		return []int{}
	}

	frags := strings.Split(merged, " ")
	ids := make([]int, len(frags))
	for i, f := range frags {
		ids[i] = e.vocab.IDOf(f)
	}
	return ids
}

package bpe

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Segmenter splits raw text into word tokens. Word segmentation is not the
// engine's job; callers with raw text supply one.
type Segmenter interface {
	Segment(text string) []string
}

// Encoded is the result of encoding one pre-tokenized document.
type Encoded struct {
	// IDs holds every word's subword ids, concatenated in order.
	IDs []int `json:"ids"`
	// Text is the consumed words joined by single spaces.
	Text string `json:"text"`
	// WordLens[i] is the number of ids contributed by word i.
	WordLens []int `json:"word_lens"`
}

// Offsets returns the flat start offset of every word plus the total length,
// the same layout as CumulativeOffsets.
func (enc Encoded) Offsets() []int {
	offsets := make([]int, 1, len(enc.WordLens)+1)
	total := 0
	for _, n := range enc.WordLens {
		total += n
		offsets = append(offsets, total)
	}
	return offsets
}

// EncodeWords encodes each word separately and returns one id list per word.
func (e *Engine) EncodeWords(words []string) [][]int {
	out := make([][]int, len(words))
	for i, w := range words {
		out[i] = e.Encode(w)
	}
	return out
}

// EncodeDoc encodes a single pre-tokenized document.
func (e *Engine) EncodeDoc(words []string) Encoded {
	enc := Encoded{
		IDs:      make([]int, 0, len(words)),
		WordLens: make([]int, len(words)),
	}
	for i, w := range words {
		ids := e.Encode(w)
		enc.IDs = append(enc.IDs, ids...)
		enc.WordLens[i] = len(ids)
	}
	enc.Text = strings.Join(words, " ")
	return enc
}

// EncodeMany encodes each document in docs.
func (e *Engine) EncodeMany(docs [][]string) []Encoded {
	out := make([]Encoded, len(docs))
	for i, d := range docs {
		out[i] = e.EncodeDoc(d)
	}
	return out
}

// EncodeManyParallel is EncodeMany spread over up to workers goroutines.
// Results keep the input order. Documents not yet started when ctx is done are
// skipped and ctx.Err() is returned.
func (e *Engine) EncodeManyParallel(ctx context.Context, docs [][]string, workers int) ([]Encoded, error) {
	out := make([]Encoded, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for i, d := range docs {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = e.EncodeDoc(d)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}

	e.log.Debug("encoded batch",
		slog.Int("docs", len(docs)),
		slog.Int("workers", workers),
		slog.Int("cached_words", e.cache.Len()),
	)
	return out, nil
}

// SegmentTexts splits each raw text into words with seg, one document per text.
func SegmentTexts(texts []string, seg Segmenter) [][]string {
	docs := make([][]string, len(texts))
	for i, t := range texts {
		docs[i] = seg.Segment(t)
	}
	return docs
}

// EncodeTexts segments each raw text with seg and encodes the resulting words.
func (e *Engine) EncodeTexts(texts []string, seg Segmenter) []Encoded {
	return e.EncodeMany(SegmentTexts(texts, seg))
}

// Flatten concatenates nested id lists in order.
func Flatten(nested [][]int) []int {
	n := 0
	for _, ids := range nested {
		n += len(ids)
	}
	flat := make([]int, 0, n)
	for _, ids := range nested {
		flat = append(flat, ids...)
	}
	return flat
}

// CumulativeOffsets returns the running total of ids per word, starting at 0.
// Entry i is the flat offset where word i starts; the last entry is the total
// length, so word i spans [offsets[i], offsets[i+1]).
func CumulativeOffsets(nested [][]int) []int {
	offsets := make([]int, 1, len(nested)+1)
	total := 0
	for _, ids := range nested {
		total += len(ids)
		offsets = append(offsets, total)
	}
	return offsets
}

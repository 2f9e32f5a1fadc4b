package bench

import (
	"errors"
	"time"

	"github.com/example/go-textbpe/internal/bpe"
)

// ErrNoRuns is returned when Run is asked for fewer than one run.
var ErrNoRuns = errors.New("bench: runs must be >= 1")

// Encoder is the part of bpe.Engine that Run measures.
type Encoder interface {
	EncodeMany(docs [][]string) []bpe.Encoded
	ClearCache()
}

// Run encodes docs runs times and records each pass. The cache is cleared
// before the first pass so run 0 is always cold.
func Run(enc Encoder, docs [][]string, runs int) ([]RunResult, error) {
	if runs < 1 {
		return nil, ErrNoRuns
	}

	words := 0
	for _, d := range docs {
		words += len(d)
	}

	enc.ClearCache()

	results := make([]RunResult, 0, runs)
	for i := range runs {
		start := time.Now()
		out := enc.EncodeMany(docs)
		elapsed := time.Since(start)

		tokens := 0
		for _, o := range out {
			tokens += len(o.IDs)
		}

		results = append(results, NewRunResult(i, i == 0, elapsed, words, tokens))
	}
	return results, nil
}

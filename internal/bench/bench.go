// Package bench provides encode-throughput primitives for the textbpe bench command.
package bench

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Run result and stats
// ---------------------------------------------------------------------------

// RunResult holds the timing and size of a single encode pass over the corpus.
type RunResult struct {
	Index       int
	Cold        bool // true for the first run (empty encode cache)
	Duration    time.Duration
	Words       int
	Tokens      int
	WordsPerSec float64
}

// NewRunResult fills WordsPerSec from the other fields.
func NewRunResult(index int, cold bool, d time.Duration, words, tokens int) RunResult {
	return RunResult{
		Index:       index,
		Cold:        cold,
		Duration:    d,
		Words:       words,
		Tokens:      tokens,
		WordsPerSec: CalcThroughput(words, d),
	}
}

// Stats holds aggregate timing statistics across all runs.
type Stats struct {
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration
}

// ComputeStats calculates min, max and mean over a slice of durations.
// An empty slice yields zero Stats.
func ComputeStats(durations []time.Duration) Stats {
	if len(durations) == 0 {
		return Stats{}
	}
	mn, mx := durations[0], durations[0]
	var sum time.Duration
	for _, d := range durations {
		if d < mn {
			mn = d
		}
		if d > mx {
			mx = d
		}
		sum += d
	}
	return Stats{
		Min:  mn,
		Max:  mx,
		Mean: sum / time.Duration(len(durations)),
	}
}

// Durations extracts the Duration of every run.
func Durations(runs []RunResult) []time.Duration {
	out := make([]time.Duration, len(runs))
	for i, r := range runs {
		out[i] = r.Duration
	}
	return out
}

// ---------------------------------------------------------------------------
// Throughput helpers
// ---------------------------------------------------------------------------

// CalcThroughput returns words per second. Returns 0 if d is zero.
func CalcThroughput(words int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(words) / d.Seconds()
}

// MeanThroughput averages WordsPerSec over the warm runs, falling back to all
// runs when every run is cold.
func MeanThroughput(runs []RunResult) float64 {
	var sum float64
	n := 0
	for _, r := range runs {
		if !r.Cold {
			sum += r.WordsPerSec
			n++
		}
	}
	if n == 0 {
		for _, r := range runs {
			sum += r.WordsPerSec
		}
		n = len(runs)
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// ---------------------------------------------------------------------------
// Throughput threshold gate
// ---------------------------------------------------------------------------

// CheckThroughputThreshold returns an error if wordsPerSec < minimum.
// A minimum of 0 disables the gate.
func CheckThroughputThreshold(wordsPerSec, minimum float64) error {
	if minimum <= 0 {
		return nil
	}
	if wordsPerSec < minimum {
		return fmt.Errorf("throughput %.1f words/s below minimum %.1f", wordsPerSec, minimum)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Output formatters
// ---------------------------------------------------------------------------

// FormatTable writes a human-readable ASCII table of bench results to w.
func FormatTable(runs []RunResult, stats Stats, w io.Writer) {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "%-5s  %-5s  %10s  %8s  %8s  %12s\n", "Run", "Cold", "MS", "Words", "Tokens", "Words/s")
	fmt.Fprintln(sb, strings.Repeat("-", 56))

	for _, r := range runs {
		cold := ""
		if r.Cold {
			cold = "yes"
		}
		fmt.Fprintf(sb, "%-5d  %-5s  %10.1f  %8d  %8d  %12.1f\n",
			r.Index+1,
			cold,
			msOf(r.Duration),
			r.Words,
			r.Tokens,
			r.WordsPerSec,
		)
	}

	fmt.Fprintln(sb, strings.Repeat("-", 56))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.1f  (min)\n", "", "", msOf(stats.Min))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.1f  (mean)\n", "", "", msOf(stats.Mean))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.1f  (max)\n", "", "", msOf(stats.Max))

	fmt.Fprint(w, sb.String())
}

func msOf(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// jsonReport is the top-level JSON structure emitted by FormatJSON.
type jsonReport struct {
	Runs  []jsonRun `json:"runs"`
	Stats jsonStats `json:"stats"`
}

type jsonRun struct {
	Index       int     `json:"index"`
	Cold        bool    `json:"cold"`
	DurationMS  float64 `json:"duration_ms"`
	Words       int     `json:"words"`
	Tokens      int     `json:"tokens"`
	WordsPerSec float64 `json:"words_per_sec"`
}

type jsonStats struct {
	MinMS       float64 `json:"min_ms"`
	MeanMS      float64 `json:"mean_ms"`
	MaxMS       float64 `json:"max_ms"`
	WordsPerSec float64 `json:"words_per_sec"`
}

// FormatJSON writes a JSON report of bench results to w.
func FormatJSON(runs []RunResult, stats Stats, w io.Writer) {
	jr := jsonReport{
		Runs: make([]jsonRun, len(runs)),
		Stats: jsonStats{
			MinMS:       msOf(stats.Min),
			MeanMS:      msOf(stats.Mean),
			MaxMS:       msOf(stats.Max),
			WordsPerSec: MeanThroughput(runs),
		},
	}
	for i, r := range runs {
		jr.Runs[i] = jsonRun{
			Index:       r.Index,
			Cold:        r.Cold,
			DurationMS:  msOf(r.Duration),
			Words:       r.Words,
			Tokens:      r.Tokens,
			WordsPerSec: r.WordsPerSec,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(jr)
}

// Package doctor provides environment preflight checks for textbpe.
package doctor

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/example/go-textbpe/internal/vocab"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// LoadFunc loads a vocabulary from an encoder table and a merges file.
type LoadFunc func(encoderPath, mergesPath string) (*vocab.Vocabulary, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	EncoderPath string
	MergesPath  string
	// LoadVocab defaults to vocab.LoadFiles.
	LoadVocab LoadFunc
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark. The vocabulary load
// check only runs when both files are present.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	encOK := checkFile(&res, w, "encoder table", cfg.EncoderPath)
	mergesOK := checkFile(&res, w, "merges file", cfg.MergesPath)

	if !encOK || !mergesOK {
		fmt.Fprintf(w, "%s vocabulary: skipped (missing files)\n", FailMark)
		return res
	}

	load := cfg.LoadVocab
	if load == nil {
		load = vocab.LoadFiles
	}

	v, err := load(cfg.EncoderPath, cfg.MergesPath)
	if err != nil {
		res.fail(fmt.Sprintf("vocabulary: %v", err))
		fmt.Fprintf(w, "%s vocabulary: %v\n", FailMark, err)
		return res
	}

	if err := checkVocab(v); err != nil {
		res.fail(fmt.Sprintf("vocabulary: %v", err))
		fmt.Fprintf(w, "%s vocabulary: %v\n", FailMark, err)
		return res
	}

	fmt.Fprintf(w, "%s vocabulary: %d tokens, %d merges\n", PassMark, v.Len(), v.NumMerges())

	return res
}

func checkFile(res *Result, w io.Writer, label, path string) bool {
	if path == "" {
		res.fail(label + ": path not configured")
		fmt.Fprintf(w, "%s %s: path not configured\n", FailMark, label)
		return false
	}

	info, err := os.Stat(path)
	if err != nil {
		res.fail(fmt.Sprintf("%s %q: %v", label, path, err))
		fmt.Fprintf(w, "%s %s %s: not found\n", FailMark, label, path)
		return false
	}

	if info.IsDir() {
		res.fail(fmt.Sprintf("%s %q: is a directory", label, path))
		fmt.Fprintf(w, "%s %s %s: is a directory\n", FailMark, label, path)
		return false
	}

	fmt.Fprintf(w, "%s %s: %s\n", PassMark, label, path)
	return true
}

// checkVocab rejects vocabularies that cannot encode anything useful.
func checkVocab(v *vocab.Vocabulary) error {
	if v == nil {
		return errors.New("loader returned no vocabulary")
	}
	if v.Len() == 0 {
		return errors.New("encoder table is empty")
	}
	return nil
}

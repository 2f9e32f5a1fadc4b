package vocab

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrEmptyPath is returned when LoadFiles is called without a path.
var ErrEmptyPath = errors.New("vocabulary path must not be empty")

// ParseEncoder decodes a JSON object mapping subword strings to ids.
func ParseEncoder(r io.Reader) (map[string]int, error) {
	var enc map[string]int
	if err := json.NewDecoder(r).Decode(&enc); err != nil {
		return nil, fmt.Errorf("decode encoder json: %w", err)
	}
	return enc, nil
}

// ParseMerges reads a merge-rule list, one "left right" rule per line.
// The input is split on newlines and the first and last entries are discarded:
// the first is a version header and the last is whatever follows the final
// newline, normally empty.
func ParseMerges(r io.Reader) ([]Pair, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read merges: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	if len(lines) < 3 {
		return nil, nil
	}
	body := lines[1 : len(lines)-1]

	merges := make([]Pair, 0, len(body))
	for i, line := range body {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: line %d: %q", ErrMalformedMerge, i+2, line)
		}
		merges = append(merges, Pair{Left: fields[0], Right: fields[1]})
	}
	return merges, nil
}

// LoadFiles reads an encoder JSON file and a merges file and builds the Vocabulary.
func LoadFiles(encoderPath, mergesPath string) (*Vocabulary, error) {
	if encoderPath == "" || mergesPath == "" {
		return nil, ErrEmptyPath
	}

	ef, err := os.Open(encoderPath)
	if err != nil {
		return nil, fmt.Errorf("open encoder %q: %w", encoderPath, err)
	}
	defer func() { _ = ef.Close() }()

	enc, err := ParseEncoder(ef)
	if err != nil {
		return nil, fmt.Errorf("load encoder %q: %w", encoderPath, err)
	}

	mf, err := os.Open(mergesPath)
	if err != nil {
		return nil, fmt.Errorf("open merges %q: %w", mergesPath, err)
	}
	defer func() { _ = mf.Close() }()

	merges, err := ParseMerges(mf)
	if err != nil {
		return nil, fmt.Errorf("load merges %q: %w", mergesPath, err)
	}

	v, err := New(enc, merges)
	if err != nil {
		return nil, fmt.Errorf("build vocabulary: %w", err)
	}
	return v, nil
}

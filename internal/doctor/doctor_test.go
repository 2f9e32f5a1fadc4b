package doctor_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/go-textbpe/internal/doctor"
	"github.com/example/go-textbpe/internal/vocab"
)

// ---------------------------------------------------------------------------
// fixtures
// ---------------------------------------------------------------------------

func writeVocabFiles(t *testing.T) (encoderPath, mergesPath string) {
	t.Helper()

	dir := t.TempDir()
	encoderPath = filepath.Join(dir, "encoder.json")
	mergesPath = filepath.Join(dir, "vocab.bpe")

	if err := os.WriteFile(encoderPath, []byte(`{"e":1,"r":2,"er</w>":3}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(mergesPath, []byte("#version: 0.2\ne r\ner </w>\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	return encoderPath, mergesPath
}

// ---------------------------------------------------------------------------
// all-pass scenario
// ---------------------------------------------------------------------------

func TestRun_AllChecksPass(t *testing.T) {
	enc, merges := writeVocabFiles(t)

	var out strings.Builder
	result := doctor.Run(doctor.Config{EncoderPath: enc, MergesPath: merges}, &out)

	if result.Failed() {
		t.Errorf("expected all checks to pass; failures: %v", result.Failures())
	}

	if !strings.Contains(out.String(), "vocabulary: 3 tokens, 2 merges") {
		t.Errorf("output should report vocabulary size; got:\n%s", out.String())
	}
}

// ---------------------------------------------------------------------------
// missing files
// ---------------------------------------------------------------------------

func TestRun_MissingFiles(t *testing.T) {
	enc, merges := writeVocabFiles(t)

	tests := []struct {
		name   string
		cfg    doctor.Config
		wantIn string
	}{
		{"encoder missing", doctor.Config{EncoderPath: "/nonexistent/encoder.json", MergesPath: merges}, "encoder"},
		{"merges missing", doctor.Config{EncoderPath: enc, MergesPath: "/nonexistent/vocab.bpe"}, "merges"},
		{"encoder not configured", doctor.Config{MergesPath: merges}, "not configured"},
		{"merges is a directory", doctor.Config{EncoderPath: enc, MergesPath: t.TempDir()}, "directory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			tt.cfg.LoadVocab = func(string, string) (*vocab.Vocabulary, error) {
				called = true
				return nil, nil
			}

			var out strings.Builder
			result := doctor.Run(tt.cfg, &out)

			if !result.Failed() {
				t.Fatal("expected failure")
			}

			if !hasFailureContaining(result.Failures(), tt.wantIn) {
				t.Errorf("expected failure mentioning %q, got: %v", tt.wantIn, result.Failures())
			}

			if called {
				t.Error("vocabulary loader should not run when files are missing")
			}

			if !strings.Contains(out.String(), "vocabulary: skipped") {
				t.Errorf("expected skipped vocabulary line; got:\n%s", out.String())
			}
		})
	}
}

// ---------------------------------------------------------------------------
// vocabulary load
// ---------------------------------------------------------------------------

func TestRun_LoaderErrorFails(t *testing.T) {
	enc, merges := writeVocabFiles(t)

	cfg := doctor.Config{
		EncoderPath: enc,
		MergesPath:  merges,
		LoadVocab: func(string, string) (*vocab.Vocabulary, error) {
			return nil, sentinelError("bad merges")
		},
	}

	var out strings.Builder

	result := doctor.Run(cfg, &out)
	if !result.Failed() {
		t.Fatal("expected failure from loader")
	}

	if !hasFailureContaining(result.Failures(), "bad merges") {
		t.Errorf("expected loader error in failures, got: %v", result.Failures())
	}
}

func TestRun_EmptyVocabularyFails(t *testing.T) {
	enc, merges := writeVocabFiles(t)

	cfg := doctor.Config{
		EncoderPath: enc,
		MergesPath:  merges,
		LoadVocab: func(string, string) (*vocab.Vocabulary, error) {
			return vocab.New(map[string]int{}, nil)
		},
	}

	var out strings.Builder

	result := doctor.Run(cfg, &out)
	if !hasFailureContaining(result.Failures(), "empty") {
		t.Errorf("expected empty-table failure, got: %v", result.Failures())
	}
}

func TestRun_MalformedMergesFile(t *testing.T) {
	enc, _ := writeVocabFiles(t)

	merges := filepath.Join(t.TempDir(), "bad.bpe")
	if err := os.WriteFile(merges, []byte("#version\ne r x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var out strings.Builder

	result := doctor.Run(doctor.Config{EncoderPath: enc, MergesPath: merges}, &out)
	if !hasFailureContaining(result.Failures(), "vocabulary") {
		t.Errorf("expected vocabulary failure, got: %v", result.Failures())
	}
}

// ---------------------------------------------------------------------------
// output markers
// ---------------------------------------------------------------------------

func TestRun_OutputContainsPassAndFailMarkers(t *testing.T) {
	enc, _ := writeVocabFiles(t)

	var out strings.Builder
	doctor.Run(doctor.Config{EncoderPath: enc, MergesPath: "/nonexistent"}, &out)

	body := out.String()
	if !strings.Contains(body, doctor.PassMark) {
		t.Errorf("output missing pass marker %q:\n%s", doctor.PassMark, body)
	}

	if !strings.Contains(body, doctor.FailMark) {
		t.Errorf("output missing fail marker %q:\n%s", doctor.FailMark, body)
	}
}

func TestResult_AddFailure(t *testing.T) {
	var r doctor.Result
	r.AddFailure("external")

	if !r.Failed() || r.Failures()[0] != "external" {
		t.Errorf("AddFailure not recorded: %v", r.Failures())
	}
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

type sentinelError string

func (e sentinelError) Error() string { return string(e) }

func hasFailureContaining(failures []string, substr string) bool {
	substr = strings.ToLower(substr)
	for _, f := range failures {
		if strings.Contains(strings.ToLower(f), substr) {
			return true
		}
	}

	return false
}

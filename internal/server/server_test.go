package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/go-textbpe/internal/bpe"
	"github.com/example/go-textbpe/internal/vocab"
	"github.com/google/go-cmp/cmp"
)

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func newToyTokenizer(t *testing.T) *bpe.Engine {
	t.Helper()

	v, err := vocab.New(
		map[string]int{"e": 1, "r": 2, "l": 3, "o": 4, "er</w>": 5, "lo": 6, "w": 7},
		[]vocab.Pair{{Left: "e", Right: "r"}, {Left: "er", Right: "</w>"}, {Left: "l", Right: "o"}, {Left: "e", Right: "r</w>"}},
	)
	if err != nil {
		t.Fatalf("vocab.New: %v", err)
	}

	e, err := bpe.New(v)
	if err != nil {
		t.Fatalf("bpe.New: %v", err)
	}

	return e
}

type fieldsSegmenter struct{}

func (fieldsSegmenter) Segment(text string) []string { return strings.Fields(text) }

// stubTokenizer returns a fixed error or blocks until the context ends.
type stubTokenizer struct {
	err   error
	block bool
	calls atomic.Int32
}

func (s *stubTokenizer) EncodeManyParallel(ctx context.Context, docs [][]string, _ int) ([]bpe.Encoded, error) {
	s.calls.Add(1)

	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	if s.err != nil {
		return nil, s.err
	}

	return make([]bpe.Encoded, len(docs)), nil
}

func (s *stubTokenizer) Decode([]int, string) string { return "" }

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	return v
}

// ---------------------------------------------------------------------------
// /health
// ---------------------------------------------------------------------------

func TestHealth(t *testing.T) {
	h := NewHandler(newToyTokenizer(t), nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", rr.Code)
	}

	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q; want application/json", ct)
	}

	body := decodeBody[map[string]string](t, rr)
	if body["status"] != "ok" {
		t.Errorf("status = %q; want ok", body["status"])
	}

	if body["version"] == "" {
		t.Error("version is empty")
	}
}

// ---------------------------------------------------------------------------
// POST /encode
// ---------------------------------------------------------------------------

func TestEncode_Forms(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []encodeResult
	}{
		{
			name: "words",
			body: `{"words":["er","a"]}`,
			want: []encodeResult{{
				Encoded: bpe.Encoded{IDs: []int{5, 0}, Text: "er a", WordLens: []int{1, 1}},
				Offsets: []int{0, 1, 2},
			}},
		},
		{
			name: "docs",
			body: `{"docs":[["lower"],["er"]]}`,
			want: []encodeResult{
				{Encoded: bpe.Encoded{IDs: []int{6, 7, 5}, Text: "lower", WordLens: []int{3}}, Offsets: []int{0, 3}},
				{Encoded: bpe.Encoded{IDs: []int{5}, Text: "er", WordLens: []int{1}}, Offsets: []int{0, 1}},
			},
		},
		{
			name: "texts",
			body: `{"texts":["Lower  ER"]}`,
			want: []encodeResult{{
				Encoded: bpe.Encoded{IDs: []int{6, 7, 5, 5}, Text: "Lower ER", WordLens: []int{3, 1}},
				Offsets: []int{0, 3, 4},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(newToyTokenizer(t), fieldsSegmenter{})

			rr := postJSON(t, h, "/encode", tt.body)
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d; want 200, body: %s", rr.Code, rr.Body.String())
			}

			got := decodeBody[encodeResponse](t, rr)
			if diff := cmp.Diff(tt.want, got.Results); diff != "" {
				t.Errorf("results mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncode_BadRequests(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		seg    bpe.Segmenter
		wantIn string
	}{
		{"invalid JSON", `{not json`, fieldsSegmenter{}, "invalid JSON"},
		{"no form", `{}`, fieldsSegmenter{}, "exactly one"},
		{"two forms", `{"words":["a"],"texts":["a"]}`, fieldsSegmenter{}, "exactly one"},
		{"texts without segmenter", `{"texts":["a"]}`, nil, "segmenter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(newToyTokenizer(t), tt.seg)

			rr := postJSON(t, h, "/encode", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d; want 400", rr.Code)
			}

			body := decodeBody[map[string]string](t, rr)
			if !strings.Contains(body["error"], tt.wantIn) {
				t.Errorf("error = %q; want it to contain %q", body["error"], tt.wantIn)
			}
		})
	}
}

func TestEncode_MethodNotAllowed(t *testing.T) {
	h := NewHandler(newToyTokenizer(t), nil)

	for _, path := range []string{"/encode", "/decode"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))

		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("GET %s status = %d; want 405", path, rr.Code)
		}
	}
}

func TestEncode_TokenizerError(t *testing.T) {
	h := NewHandler(&stubTokenizer{err: errors.New("boom")}, nil)

	rr := postJSON(t, h, "/encode", `{"words":["a"]}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d; want 500", rr.Code)
	}

	body := decodeBody[map[string]string](t, rr)
	if body["error"] != "boom" {
		t.Errorf("error = %q; want boom", body["error"])
	}
}

func TestEncode_Timeout(t *testing.T) {
	h := NewHandler(&stubTokenizer{block: true}, nil, WithRequestTimeout(10*time.Millisecond))

	rr := postJSON(t, h, "/encode", `{"words":["a"]}`)
	if rr.Code != http.StatusGatewayTimeout {
		t.Fatalf("status = %d; want 504", rr.Code)
	}
}

// ---------------------------------------------------------------------------
// POST /decode
// ---------------------------------------------------------------------------

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		optFns []Option
		want   string
	}{
		{"plain", `{"ids":[6,7,5,5]}`, nil, "lower er"},
		{"unknown id", `{"ids":[5,0]}`, nil, "er |"},
		{"request joiner", `{"ids":[6,7,5],"joiner":"@@"}`, nil, "lo@@w@@er"},
		{"default joiner", `{"ids":[6,7,5]}`, []Option{WithJoiner("+")}, "lo+w+er"},
		{"empty joiner overrides default", `{"ids":[6,7,5],"joiner":""}`, []Option{WithJoiner("+")}, "lower"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(newToyTokenizer(t), nil, tt.optFns...)

			rr := postJSON(t, h, "/decode", tt.body)
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d; want 200", rr.Code)
			}

			body := decodeBody[map[string]string](t, rr)
			if body["text"] != tt.want {
				t.Errorf("text = %q; want %q", body["text"], tt.want)
			}
		})
	}
}

func TestDecode_InvalidJSON(t *testing.T) {
	h := NewHandler(newToyTokenizer(t), nil)

	rr := postJSON(t, h, "/decode", `{"ids":"nope"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", rr.Code)
	}
}

// ---------------------------------------------------------------------------
// ParseLogLevel
// ---------------------------------------------------------------------------

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"", false},
		{"info", false},
		{"DEBUG", false},
		{"warning", false},
		{"error", false},
		{"verbose", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := ParseLogLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseLogLevel(%q) error = %v; wantErr %v", tt.in, err, tt.wantErr)
			}
		})
	}
}

func TestWriteError_Shape(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, http.StatusTeapot, "short and stout")

	if rr.Code != http.StatusTeapot {
		t.Fatalf("status = %d; want 418", rr.Code)
	}

	want := `{"error":"short and stout"}` + "\n"
	if got := rr.Body.String(); got != want {
		t.Errorf("body = %q; want %q", got, want)
	}

	if !bytes.HasPrefix([]byte(rr.Header().Get("Content-Type")), []byte("application/json")) {
		t.Errorf("Content-Type = %q", rr.Header().Get("Content-Type"))
	}
}

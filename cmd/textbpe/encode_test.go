package main

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/example/go-textbpe/internal/text"
	"github.com/google/go-cmp/cmp"
)

func TestEncodeCmd_Words(t *testing.T) {
	out, err := runRoot(t, "", "encode", "lower", "er")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if got := strings.TrimSpace(out); got != "6 7 5 5" {
		t.Errorf("output = %q; want %q", got, "6 7 5 5")
	}
}

func TestEncodeCmd_TextFlag(t *testing.T) {
	out, err := runRoot(t, "", "encode", "--text", "Lower  ER")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if got := strings.TrimSpace(out); got != "6 7 5 5" {
		t.Errorf("output = %q; want %q", got, "6 7 5 5")
	}
}

func TestEncodeCmd_Stdin(t *testing.T) {
	out, err := runRoot(t, "er\n", "encode")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if got := strings.TrimSpace(out); got != "5" {
		t.Errorf("output = %q; want %q", got, "5")
	}
}

func TestEncodeCmd_EmptyInput(t *testing.T) {
	for _, stdin := range []string{"", "   \n", "\t\u00a0\n\n"} {
		if _, err := runRoot(t, stdin, "encode"); !errors.Is(err, text.ErrEmptyText) {
			t.Errorf("encode with stdin %q: want ErrEmptyText, got %v", stdin, err)
		}
	}
}

func TestEncodeInput_SegmentsOnce(t *testing.T) {
	words, err := encodeInput(NewRootCmd(), nil, "Hi, there...")
	if err != nil {
		t.Fatalf("encodeInput: %v", err)
	}

	if diff := cmp.Diff([]string{"Hi", ",", "there", "..."}, words); diff != "" {
		t.Errorf("encodeInput mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeCmd_JSON(t *testing.T) {
	out, err := runRoot(t, "", "encode", "--format", "JSON", "er", "a")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var got struct {
		IDs      []int  `json:"ids"`
		Text     string `json:"text"`
		WordLens []int  `json:"word_lens"`
		Offsets  []int  `json:"offsets"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("unmarshal %q: %v", out, err)
	}

	if diff := cmp.Diff([]int{5, 0}, got.IDs); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]int{0, 1, 2}, got.Offsets); diff != "" {
		t.Errorf("offsets mismatch (-want +got):\n%s", diff)
	}

	if got.Text != "er a" {
		t.Errorf("text = %q; want %q", got.Text, "er a")
	}
}

func TestEncodeCmd_BadFormat(t *testing.T) {
	if _, err := runRoot(t, "", "encode", "--format", "xml", "er"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/example/go-textbpe/internal/bpe"
	"github.com/example/go-textbpe/internal/config"
	"github.com/example/go-textbpe/internal/text"
	"github.com/spf13/cobra"
)

func newEncodeCmd() *cobra.Command {
	var (
		input  string
		format string
	)

	cmd := &cobra.Command{
		Use:   "encode [word...]",
		Short: "Encode words or text into subword ids",
		Long: "Encode the given words as one pre-tokenized document. Without word arguments the\n" +
			"text from --text (or stdin) is standardized and segmented into words first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			format, err = config.NormalizeFormat(format, config.FormatIDs, config.FormatIDs, config.FormatJSON)
			if err != nil {
				return err
			}

			words, err := encodeInput(cmd, args, input)
			if err != nil {
				return err
			}

			engine, err := newEngine(cfg)
			if err != nil {
				return err
			}

			return writeEncoded(cmd.OutOrStdout(), engine.EncodeDoc(words), format)
		},
	}

	cmd.Flags().StringVar(&input, "text", "", "Text to segment and encode (reads stdin when empty and no words are given)")
	cmd.Flags().StringVar(&format, "format", config.FormatIDs, "Output format: ids|json")

	return cmd
}

// encodeInput returns the words to encode: args verbatim, or the segmented
// --text/stdin input.
func encodeInput(cmd *cobra.Command, args []string, input string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}

	if input == "" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		input = string(data)
	}

	words := text.NewSegmenter(slog.Default()).Segment(input)
	slog.Debug("segmented input", slog.Int("text_len", len(input)), slog.Int("words", len(words)))

	if len(words) == 0 {
		return nil, text.ErrEmptyText
	}
	return words, nil
}

func writeEncoded(w io.Writer, enc bpe.Encoded, format string) error {
	if format == config.FormatJSON {
		out := struct {
			bpe.Encoded
			Offsets []int `json:"offsets"`
		}{enc, enc.Offsets()}

		e := json.NewEncoder(w)
		e.SetIndent("", "  ")
		return e.Encode(out)
	}

	parts := make([]string, len(enc.IDs))
	for i, id := range enc.IDs {
		parts[i] = strconv.Itoa(id)
	}
	_, err := fmt.Fprintln(w, strings.Join(parts, " "))
	return err
}

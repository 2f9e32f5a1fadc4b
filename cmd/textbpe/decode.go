package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newDecodeCmd() *cobra.Command {
	var joiner string

	cmd := &cobra.Command{
		Use:   "decode [id...]",
		Short: "Decode subword ids back into text",
		Long:  "Decode the given ids (or whitespace-separated ids on stdin) into text.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("joiner") {
				joiner = cfg.Encoder.Joiner
			}

			if len(args) == 0 {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				args = strings.Fields(string(data))
			}

			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			engine, err := newEngine(cfg)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), engine.Decode(ids, joiner))
			return err
		},
	}

	cmd.Flags().StringVar(&joiner, "joiner", "", "Marker inserted between subwords of one word (default from config)")

	return cmd
}

func parseIDs(fields []string) ([]int, error) {
	ids := make([]int, len(fields))
	for i, f := range fields {
		id, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q: %w", f, err)
		}
		ids[i] = id
	}
	return ids, nil
}

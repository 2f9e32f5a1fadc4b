package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/pprof"
	"strings"

	"github.com/example/go-textbpe/internal/bench"
	"github.com/example/go-textbpe/internal/config"
	"github.com/example/go-textbpe/internal/text"
	"github.com/spf13/cobra"
)

func newBenchCmd() *cobra.Command {
	var (
		input         string
		file          string
		runs          int
		format        string
		minThroughput float64
		cpuprofile    string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark encode throughput",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if runs < 1 {
				return fmt.Errorf("--runs must be at least 1")
			}
			format, err = config.NormalizeFormat(format, config.FormatTable, config.FormatTable, config.FormatJSON)
			if err != nil {
				return err
			}

			corpus, err := benchCorpus(input, file)
			if err != nil {
				return err
			}

			engine, err := newEngine(cfg)
			if err != nil {
				return err
			}

			docs := segmentLines(corpus)

			if cpuprofile != "" {
				f, err := os.Create(cpuprofile)
				if err != nil {
					return fmt.Errorf("create cpu profile: %w", err)
				}
				defer f.Close()
				if err := pprof.StartCPUProfile(f); err != nil {
					return fmt.Errorf("start cpu profile: %w", err)
				}
				defer pprof.StopCPUProfile()
			}

			results, err := bench.Run(engine, docs, runs)
			if err != nil {
				return err
			}

			stats := bench.ComputeStats(bench.Durations(results))

			out := cmd.OutOrStdout()
			switch format {
			case config.FormatJSON:
				bench.FormatJSON(results, stats, out)
			default:
				bench.FormatTable(results, stats, out)
			}

			return bench.CheckThroughputThreshold(bench.MeanThroughput(results), minThroughput)
		},
	}

	cmd.Flags().StringVar(&input, "text", "", "Text to encode for each run")
	cmd.Flags().StringVar(&file, "file", "", "File whose lines are encoded as documents for each run")
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of encode runs")
	cmd.Flags().StringVar(&format, "format", config.FormatTable, "Output format: table|json")
	cmd.Flags().Float64Var(&minThroughput, "min-throughput", 0, "Exit non-zero if mean words/s falls below this value (0 = disabled)")
	cmd.Flags().StringVar(&cpuprofile, "cpuprofile", "", "Write a CPU profile of the encode runs to this file")

	return cmd
}

func benchCorpus(input, file string) (string, error) {
	switch {
	case input != "" && file != "":
		return "", fmt.Errorf("--text and --file are mutually exclusive")
	case file != "":
		f, err := os.Open(file)
		if err != nil {
			return "", fmt.Errorf("open corpus: %w", err)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return "", fmt.Errorf("read corpus: %w", err)
		}
		input = string(data)
	}

	if strings.TrimSpace(input) == "" {
		return "", fmt.Errorf("--text or --file is required for bench")
	}
	return input, nil
}

// segmentLines turns every non-blank line of corpus into one document.
func segmentLines(corpus string) [][]string {
	seg := text.NewSegmenter(slog.Default())

	var docs [][]string
	for _, line := range strings.Split(corpus, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		docs = append(docs, seg.Segment(line))
	}
	return docs
}

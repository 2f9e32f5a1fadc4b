package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/example/go-textbpe/internal/bpe"
	"github.com/example/go-textbpe/internal/config"
	"github.com/example/go-textbpe/internal/server"
	"github.com/example/go-textbpe/internal/vocab"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	activeCfg config.Config
)

func NewRootCmd() *cobra.Command {
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:           "textbpe",
		Short:         "BPE subword tokenizer command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(config.LoadOptions{
				Cmd:        cmd,
				ConfigFile: cfgFile,
				Defaults:   defaults,
			})
			if err != nil {
				return err
			}
			activeCfg = loaded
			setupLogger(loaded.LogLevel)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Optional config file (yaml|toml|json)")
	config.RegisterFlags(cmd.PersistentFlags(), defaults)

	cmd.AddCommand(newEncodeCmd())
	cmd.AddCommand(newDecodeCmd())
	cmd.AddCommand(newBenchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newHealthCmd())
	cmd.AddCommand(newDoctorCmd())

	return cmd
}

// setupLogger configures the process-wide slog default logger.
func setupLogger(levelStr string) {
	lvl, err := server.ParseLogLevel(levelStr)
	if err != nil {
		lvl = slog.LevelInfo
	}
	h := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(h))
}

func requireConfig() (config.Config, error) {
	if activeCfg.Paths.EncoderPath == "" || activeCfg.Paths.MergesPath == "" {
		return config.Config{}, fmt.Errorf("configuration not loaded")
	}
	return activeCfg, nil
}

// newEngine loads the vocabulary files named by cfg and builds an engine over them.
func newEngine(cfg config.Config) (*bpe.Engine, error) {
	v, err := vocab.LoadFiles(cfg.Paths.EncoderPath, cfg.Paths.MergesPath)
	if err != nil {
		return nil, err
	}

	slog.Debug("vocabulary loaded",
		slog.String("encoder", cfg.Paths.EncoderPath),
		slog.String("merges", cfg.Paths.MergesPath),
		slog.Int("tokens", v.Len()),
		slog.Int("merges", v.NumMerges()),
	)

	return bpe.New(v,
		bpe.WithCacheSize(cfg.Encoder.CacheSize),
		bpe.WithLowercase(cfg.Encoder.Lowercase),
		bpe.WithLogger(slog.Default()),
	)
}

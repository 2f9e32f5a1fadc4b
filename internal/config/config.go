package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Paths    PathsConfig   `mapstructure:"paths"`
	Encoder  EncoderConfig `mapstructure:"encoder"`
	Server   ServerConfig  `mapstructure:"server"`
	LogLevel string        `mapstructure:"log_level"`
}

type PathsConfig struct {
	EncoderPath string `mapstructure:"encoder_path"`
	MergesPath  string `mapstructure:"merges_path"`
}

type EncoderConfig struct {
	// CacheSize bounds the word cache; 0 means unbounded.
	CacheSize int    `mapstructure:"cache_size"`
	Lowercase bool   `mapstructure:"lowercase"`
	Workers   int    `mapstructure:"workers"`
	Joiner    string `mapstructure:"joiner"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	Workers         int    `mapstructure:"workers"`
	MaxTextBytes    int    `mapstructure:"max_text_bytes"`
	RequestTimeout  int    `mapstructure:"request_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			EncoderPath: "models/encoder_bpe_40000.json",
			MergesPath:  "models/vocab_40000.bpe",
		},
		Encoder: EncoderConfig{
			CacheSize: 0,
			Lowercase: true,
			Workers:   4,
			Joiner:    "",
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			Workers:         2,
			MaxTextBytes:    64 * 1024,
			RequestTimeout:  30,
			ShutdownTimeout: 30,
		},
		LogLevel: "info",
	}
}

// flagKeys maps every flag to its config key.
var flagKeys = []struct{ flag, key string }{
	{"paths-encoder-path", "paths.encoder_path"},
	{"paths-merges-path", "paths.merges_path"},
	{"encoder-cache-size", "encoder.cache_size"},
	{"encoder-lowercase", "encoder.lowercase"},
	{"encoder-workers", "encoder.workers"},
	{"encoder-joiner", "encoder.joiner"},
	{"server-listen-addr", "server.listen_addr"},
	{"server-workers", "server.workers"},
	{"server-max-text-bytes", "server.max_text_bytes"},
	{"server-request-timeout", "server.request_timeout"},
	{"server-shutdown-timeout", "server.shutdown_timeout"},
	{"log-level", "log_level"},
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("paths-encoder-path", defaults.Paths.EncoderPath, "Path to the token->id JSON table")
	fs.String("paths-merges-path", defaults.Paths.MergesPath, "Path to the ordered merge-rule list")
	fs.Int("encoder-cache-size", defaults.Encoder.CacheSize, "Max cached words (0 = unbounded)")
	fs.Bool("encoder-lowercase", defaults.Encoder.Lowercase, "Lowercase words before merging")
	fs.Int("encoder-workers", defaults.Encoder.Workers, "Goroutines used for batch encoding")
	fs.String("encoder-joiner", defaults.Encoder.Joiner, "String inserted between word-internal subwords on decode")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("server-workers", defaults.Server.Workers, "Max concurrent encode/decode requests (0 = unlimited)")
	fs.Int("server-max-text-bytes", defaults.Server.MaxTextBytes, "Max request body size in bytes")
	fs.Int("server-request-timeout", defaults.Server.RequestTimeout, "Per-request deadline in seconds")
	fs.Int("server-shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown drain period in seconds")
	fs.String("log-level", defaults.LogLevel, "Log level: debug|info|warn|error")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("TEXTBPE")
	replacer := strings.NewReplacer("-", "_", ".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("textbpe")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

// bindFlags binds each known flag to its nested key so that explicitly set
// flags win over env and file values while unset flags fall through to them.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, fk := range flagKeys {
		f := fs.Lookup(fk.flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(fk.key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", fk.flag, err)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.encoder_path", c.Paths.EncoderPath)
	v.SetDefault("paths.merges_path", c.Paths.MergesPath)
	v.SetDefault("encoder.cache_size", c.Encoder.CacheSize)
	v.SetDefault("encoder.lowercase", c.Encoder.Lowercase)
	v.SetDefault("encoder.workers", c.Encoder.Workers)
	v.SetDefault("encoder.joiner", c.Encoder.Joiner)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("log_level", c.LogLevel)
}

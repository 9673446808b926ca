package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/theimaginaryfoundation/hangouts-import/migration"
	"github.com/theimaginaryfoundation/hangouts-import/migration/logging"
)

const (
	envPrefix         = "HANGOUTS_"
	maxConfigFileSize = 1024 * 1024
)

type Config struct {
	InputPath   string          `koanf:"in"`
	OutputDir   string          `koanf:"out"`
	UnitKey     string          `koanf:"unit_key"`
	Concurrency int             `koanf:"concurrency"`
	Locale      string          `koanf:"locale"`
	SelfName    string          `koanf:"self_name"`
	Pretty      bool            `koanf:"pretty"`
	Overwrite   bool            `koanf:"overwrite"`
	MetricsOut  string          `koanf:"metrics_out"`
	Logging     *logging.Config `koanf:"logging"`
}

func (c Config) Validate() error {
	if c.InputPath == "" {
		return fmt.Errorf("missing --in")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("missing --out")
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must be >= 0, got %d", c.Concurrency)
	}
	if c.Logging == nil {
		return fmt.Errorf("missing logging config")
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	return nil
}

func defaultConfig() Config {
	return Config{
		InputPath: filepath.FromSlash("Takeout/Hangouts/Hangouts.json"),
		OutputDir: filepath.FromSlash("hangouts"),
		UnitKey:   migration.DefaultUnitKey,
		Logging:   logging.NewDefaultConfig(),
	}
}

// loadConfig layers the optional YAML file at path over the defaults, then HANGOUTS_* environment variables over
// both. Flags are applied by the caller.
func loadConfig(path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return Config{}, fmt.Errorf("stat config file: %w", err)
		}
		if info.Size() > maxConfigFileSize {
			return Config{}, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	cfg := defaultConfig()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// envKey maps HANGOUTS_SELF_NAME to self_name and HANGOUTS_LOGGING_LEVEL to logging.level.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	if rest, ok := strings.CutPrefix(key, "logging_"); ok {
		return "logging." + rest
	}
	return key
}

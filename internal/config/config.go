package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DefaultManifestPath is where Apple Books keeps its library manifest.
const DefaultManifestPath = "~/Library/Containers/com.apple.BKAgentService/Data/Documents/iBooks/Books/Books.plist"

// Config holds environment-derived defaults. CLI flags override these values.
type Config struct {
	Manifest  string `env:"MANIFEST"`
	Reader    string `env:"READER" envDefault:"plist"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	Verify    bool   `env:"VERIFY" envDefault:"false"`
}

// Load reads IBEX_* variables from the environment. When envFile is non-empty
// and exists, its variables are loaded first without overriding ones already
// set in the process environment.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			if err := godotenv.Load(envFile); err != nil {
				return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
			}
		}
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "IBEX_"}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if cfg.Manifest == "" {
		cfg.Manifest = DefaultManifestPath
	}
	return cfg, nil
}

// ExpandHome expands a leading "~" to the current user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	if path == "~" {
		return home, nil
	}
	return filepath.Join(home, path[2:]), nil
}

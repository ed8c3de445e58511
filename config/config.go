package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the node configuration read by stakectl.
type Config struct {
	DataDir     string `toml:"DataDir"`
	Admin       string `toml:"Admin"`
	HTTPAddress string `toml:"HTTPAddress"`
	ArchiveDSN  string `toml:"ArchiveDSN"`
	ParamsFile  string `toml:"ParamsFile"`
	Environment string `toml:"Environment"`

	Logging   Logging   `toml:"logging"`
	Telemetry Telemetry `toml:"telemetry"`
	RateLimit RateLimit `toml:"rate_limit"`
	Auth      Auth      `toml:"auth"`
	Webhook   Webhook   `toml:"webhook"`
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	return &Config{
		DataDir:     "./stake-data",
		HTTPAddress: ":8080",
		Environment: "local",
		Logging:     Logging{Level: "info"},
		Telemetry:   Telemetry{Endpoint: "localhost:4318", Insecure: true},
		RateLimit:   RateLimit{RequestsPerMinute: 120, Burst: 20},
		Auth:        Auth{ClockSkewSeconds: 120},
	}
}

// Load loads the configuration from the given path, writing the defaults when
// the file does not exist yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := persist(path, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	} else if err != nil {
		return nil, err
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, key := range undecoded {
			keys[i] = key.String()
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// Package config persists the chat client's state between runs. The core
// only ever consumes a read-only snapshot at join time; load and save
// failures are recovered locally and never reach it.
package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Netflix/go-env"
)

const stateRelPath = ".ttvchat/state.json"

// Config is the persisted snapshot: last joined channel plus optional
// identity. Empty fields fall back to anonymous defaults at join time.
type Config struct {
	Channel string `json:"channel,omitempty" env:"TTV_CHANNEL"`
	OAuth   string `json:"oauth,omitempty" env:"TTV_OAUTH"`
	Nick    string `json:"nick,omitempty" env:"TTV_NICK"`
}

// StatePath resolves the state file, honoring the TTV_STATE_FILE
// override.
func StatePath() (string, error) {
	if path := os.Getenv("TTV_STATE_FILE"); path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, stateRelPath), nil
}

// Load reads the persisted snapshot, then overlays environment
// variables. A missing or corrupt state file yields an empty config.
func Load(log *slog.Logger) *Config {
	cfg := &Config{}

	path, err := StatePath()
	if err == nil {
		if data, err := os.ReadFile(path); err == nil {
			if err := json.Unmarshal(data, cfg); err != nil {
				log.Warn("Ignoring corrupt state file", "path", path, "error", err)
				*cfg = Config{}
			}
		}
	}

	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		log.Warn("Ignoring environment overrides", "error", err)
	}
	return cfg
}

// Save writes the snapshot back, best-effort.
func (c *Config) Save(log *slog.Logger) {
	path, err := StatePath()
	if err != nil {
		log.Warn("Cannot resolve state file", "error", err)
		return
	}

	data, err := json.Marshal(c)
	if err != nil {
		log.Warn("Cannot encode config", "error", err)
		return
	}

	_ = os.MkdirAll(filepath.Dir(path), 0o755)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		log.Warn("Failed to save config", "path", path, "error", err)
		return
	}
	log.Info("Saved config", "path", path)
}

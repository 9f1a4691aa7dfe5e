package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// ConfigPath returns the default configuration file path: ~/.helixbot/config.json.
func ConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".helixbot/config.json"
	}
	return filepath.Join(home, ".helixbot", "config.json")
}

// DataDir returns the helixbot data directory: ~/.helixbot.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".helixbot"
	}
	return filepath.Join(home, ".helixbot")
}

// Load reads and parses the config file at path.
// If path is empty, ConfigPath() is used.
// A missing or unparseable file yields DefaultConfig(), never a fatal error.
// A .env file in the working directory is loaded first, and environment
// variables override file-based credentials.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	// Best effort; a missing .env is the normal case.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			applyEnvOverrides(&cfg)
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		slog.Warn("config unparseable, using defaults", "path", path, "err", err)
		cfg = DefaultConfig()
	}
	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// envKeyOverrides maps environment variables onto provider API-key fields.
var envKeyOverrides = map[string]string{
	"OPENAI_API_KEY":      "openai",
	"ANTHROPIC_API_KEY":   "anthropic",
	"OPENROUTER_API_KEY":  "openrouter",
	"DEEPSEEK_API_KEY":    "deepseek",
	"GROQ_API_KEY":        "groq",
	"GEMINI_API_KEY":      "gemini",
	"MOONSHOT_API_KEY":    "moonshot",
	"AIHUBMIX_API_KEY":    "aihubmix",
	"SILICONFLOW_API_KEY": "siliconflow",
	"ARK_API_KEY":         "volcengine",
}

// applyEnvOverrides lets environment variables fill in credentials that the
// config file leaves empty. Explicit file values win.
func applyEnvOverrides(cfg *Config) {
	for env, name := range envKeyOverrides {
		val := os.Getenv(env)
		if val == "" {
			continue
		}
		if p := cfg.ProviderByName(name); p != nil && p.APIKey == "" {
			p.APIKey = val
		}
	}
	if model := os.Getenv("HELIXBOT_MODEL"); model != "" {
		cfg.Agents.Defaults.Model = model
	}
}

// Save writes cfg to path as indented JSON.
// If path is empty, ConfigPath() is used.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = ConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	// Trailing newline for POSIX tools.
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Package config loads scribe configuration: compiled defaults, then an
// optional JSON config file, then environment overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

type Config struct {
	Model     ModelConfig     `json:"model"`
	Authoring AuthoringConfig `json:"authoring"`
	Storage   StorageConfig   `json:"storage"`
	Server    ServerConfig    `json:"server"`
}

// ModelConfig points at an OpenAI-compatible provider.
type ModelConfig struct {
	BaseURL    string `json:"base_url"`
	APIKey     string `json:"api_key"`
	ChatModel  string `json:"chat_model"`
	EmbedModel string `json:"embed_model"`
}

// AuthoringConfig carries the curriculum defaults and content roots.
type AuthoringConfig struct {
	SourceLang    string `json:"source_lang"`
	TargetLang    string `json:"target_lang"`
	CurriculumID  string `json:"curriculum_id"`
	GeneratedRoot string `json:"generated_root"`
	MemoryDir     string `json:"memory_dir"`
}

type StorageConfig struct {
	DataDir string `json:"data_dir"`
}

type ServerConfig struct {
	Port int `json:"port"`
}

func defaults() Config {
	return Config{
		Model: ModelConfig{
			BaseURL:    "https://api.openai.com/v1",
			ChatModel:  "gpt-4o-mini",
			EmbedModel: "text-embedding-3-small",
		},
		Authoring: AuthoringConfig{
			SourceLang:    "English",
			TargetLang:    "Arabic",
			GeneratedRoot: "generated",
			MemoryDir:     "memory",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Server: ServerConfig{
			Port: 4800,
		},
	}
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "scribe")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".scribe"
	}
	return filepath.Join(home, ".local", "share", "scribe")
}

// Path returns the config file location:
// $XDG_CONFIG_HOME/scribe/config.json (or ~/.config/scribe/config.json).
func Path() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "scribe", "config.json")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".config", "scribe", "config.json")
	}
	return filepath.Join(home, ".config", "scribe", "config.json")
}

// Load reads configuration from the config file and environment. A missing
// config file is fine; a malformed one is an error.
func Load() (Config, error) {
	return loadWith(Path(), os.Getenv)
}

func loadWith(path string, getenv func(string) string) (Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
		}
	}

	applyEnv(&cfg, getenv)
	return cfg, nil
}

// applyEnv applies environment overrides. The model variables keep the names
// the original toolchain used; scribe-specific knobs use SCRIBE_*.
func applyEnv(cfg *Config, getenv func(string) string) {
	setString(&cfg.Model.APIKey, getenv("OPENAI_API_KEY"))
	setString(&cfg.Model.BaseURL, getenv("OPENAI_BASE_URL"))
	setString(&cfg.Model.ChatModel, getenv("OPENAI_MODEL"))
	setString(&cfg.Model.EmbedModel, getenv("OPENAI_EMBED_MODEL"))

	setString(&cfg.Authoring.SourceLang, getenv("CURRICULUM_SOURCE_LANG"))
	setString(&cfg.Authoring.TargetLang, getenv("CURRICULUM_TARGET_LANG"))
	setString(&cfg.Authoring.CurriculumID, getenv("CURRICULUM_ID"))
	setString(&cfg.Authoring.GeneratedRoot, getenv("SCRIBE_GENERATED_ROOT"))
	setString(&cfg.Authoring.MemoryDir, getenv("SCRIBE_MEMORY_DIR"))

	setString(&cfg.Storage.DataDir, getenv("SCRIBE_DATA_DIR"))

	if port := getenv("SCRIBE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			cfg.Server.Port = p
		}
	}
}

func setString(dst *string, val string) {
	if val != "" {
		*dst = val
	}
}

// RequireAPIKey errors when no model API key is configured. Only commands
// that call the model enforce this; everything else runs offline.
func (c Config) RequireAPIKey() error {
	if c.Model.APIKey == "" {
		return fmt.Errorf("missing model API key: set OPENAI_API_KEY or model.api_key in %s", Path())
	}
	return nil
}

// IndexPath returns the retrieval index location.
func (c Config) IndexPath() string {
	return filepath.Join(c.Authoring.MemoryDir, "index.json")
}

// StylePath returns the style guide location.
func (c Config) StylePath() string {
	return filepath.Join(c.Authoring.MemoryDir, "style.md")
}

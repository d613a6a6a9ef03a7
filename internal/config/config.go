package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// RetryConfig controls how the completion call is retried.
type RetryConfig struct {
	// Mode is "all" (retry every failure) or "transient" (retry network,
	// 5xx, 408, 429 and undecodable bodies only).
	Mode        string `yaml:"mode" koanf:"mode" validate:"oneof=transient all"`
	MaxRetries  int    `yaml:"max_retries" koanf:"max_retries" validate:"min=0,max=10"`
	DelayMillis int    `yaml:"delay_millis" koanf:"delay_millis" validate:"min=0"`
}

// LLMConfig holds connection details for the completion server.
type LLMConfig struct {
	URL                string      `yaml:"url" koanf:"url" validate:"required,url"`
	Port               int         `yaml:"port" koanf:"port" validate:"min=1,max=65535"`
	CompletionPath     string      `yaml:"completion_path" koanf:"completion_path" validate:"required"`
	HealthPath         string      `yaml:"health_path" koanf:"health_path" validate:"required"`
	HealthTimeoutSecs  int         `yaml:"health_timeout_secs" koanf:"health_timeout_secs" validate:"min=1"`
	RequestTimeoutSecs int         `yaml:"request_timeout_secs" koanf:"request_timeout_secs" validate:"min=0"`
	Retry              RetryConfig `yaml:"retry" koanf:"retry"`
}

// RetrievalConfig locates the retrieval collaborator and its secret.
type RetrievalConfig struct {
	ProjectPath string `yaml:"project_path" koanf:"project_path" validate:"required"`
	Interpreter string `yaml:"interpreter" koanf:"interpreter"`
	Script      string `yaml:"script" koanf:"script"`
	// Command overrides Interpreter/Script, e.g. "uv run rag_handler.py".
	Command     string `yaml:"command,omitempty" koanf:"command"`
	APIKeyEnv   string `yaml:"api_key_env" koanf:"api_key_env" validate:"required"`
	APIKey      string `yaml:"api_key,omitempty" koanf:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs" koanf:"timeout_secs" validate:"min=0"`
}

// PromptConfig configures the context truncation policy.
type PromptConfig struct {
	MaxSections int `yaml:"max_sections" koanf:"max_sections" validate:"min=1"`
	MaxChars    int `yaml:"max_chars" koanf:"max_chars" validate:"min=1"`
}

// SanitizerConfig holds the safety and quality gate data.
type SanitizerConfig struct {
	MaxPoints        int      `yaml:"max_points" koanf:"max_points" validate:"min=1"`
	MinBullets       int      `yaml:"min_bullets" koanf:"min_bullets" validate:"min=0"`
	BlockedPhrases   []string `yaml:"blocked_phrases" koanf:"blocked_phrases"`
	EmptyMessage     string   `yaml:"empty_message" koanf:"empty_message" validate:"required"`
	BlockedMessage   string   `yaml:"blocked_message" koanf:"blocked_message" validate:"required"`
	FallbackPreamble string   `yaml:"fallback_preamble" koanf:"fallback_preamble" validate:"required"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port          int      `yaml:"port" koanf:"port" validate:"min=1,max=65535"`
	CORSOrigin    string   `yaml:"cors_origin" koanf:"cors_origin"`
	TopicKeywords []string `yaml:"topic_keywords" koanf:"topic_keywords"`
	OffTopicReply string   `yaml:"off_topic_reply" koanf:"off_topic_reply" validate:"required"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level string `yaml:"level" koanf:"level"`
	JSON  bool   `yaml:"json" koanf:"json"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	LLM       LLMConfig       `yaml:"llm" koanf:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval" koanf:"retrieval"`
	Prompt    PromptConfig    `yaml:"prompt" koanf:"prompt"`
	Sanitizer SanitizerConfig `yaml:"sanitizer" koanf:"sanitizer"`
	Server    ServerConfig    `yaml:"server" koanf:"server"`
	Log       LogConfig       `yaml:"log" koanf:"log"`
}

// Load reads a config from a specified path, then applies environment overrides.
// If the file does not exist, defaults are used.
func Load(path string) (*AppConfig, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return finalize(cfg)
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragchat/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragchat/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	cfg, err = finalize(cfg)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	return &AppConfig{
		LLM: LLMConfig{
			URL:               "http://localhost",
			Port:              8080,
			CompletionPath:    "/completion",
			HealthPath:        "/health",
			HealthTimeoutSecs: 5,
			Retry:             RetryConfig{Mode: "all", MaxRetries: 2, DelayMillis: 1000},
		},
		Retrieval: RetrievalConfig{
			ProjectPath: ".",
			Interpreter: "new_venv/bin/python",
			Script:      "rag_handler.py",
			APIKeyEnv:   "PINECONE_API_KEY",
		},
		Prompt: PromptConfig{MaxSections: 3, MaxChars: 3000},
		Sanitizer: SanitizerConfig{
			MaxPoints:  5,
			MinBullets: 2,
			BlockedPhrases: []string{
				"fire you", "no-tolerance",
				"immediately", "strict policy",
				"must comply or",
			},
			EmptyMessage:     "I couldn't generate a response.",
			BlockedMessage:   "For detailed policy questions, please contact HR directly.",
			FallbackPreamble: "I'm having trouble retrieving the full policy details. The key point is: ",
		},
		Server: ServerConfig{
			Port:          3000,
			CORSOrigin:    "http://localhost:3001",
			TopicKeywords: []string{"leave", "policy", "attendance", "staff"},
			OffTopicReply: "I specialize in school staff policies. Please ask HR-related questions.",
		},
		Log: LogConfig{Level: "info"},
	}
}

func readFile(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	// Start from defaults so partial files only override what they name.
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

func finalize(cfg *AppConfig) (*AppConfig, error) {
	cfg, err := applyEnv(cfg)
	if err != nil {
		return nil, err
	}
	applyConfigDefaults(cfg)
	abs, err := filepath.Abs(cfg.Retrieval.ProjectPath)
	if err != nil {
		return nil, fmt.Errorf("resolve retrieval project path: %w", err)
	}
	cfg.Retrieval.ProjectPath = abs
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints.
func Validate(cfg *AppConfig) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragchat", "config.yaml"), nil
}

func applyConfigDefaults(cfg *AppConfig) {
	def := Default()
	if cfg.LLM.HealthTimeoutSecs == 0 {
		cfg.LLM.HealthTimeoutSecs = def.LLM.HealthTimeoutSecs
	}
	if cfg.LLM.Retry.Mode == "" {
		cfg.LLM.Retry.Mode = def.LLM.Retry.Mode
	}
	if cfg.Retrieval.ProjectPath == "" {
		cfg.Retrieval.ProjectPath = def.Retrieval.ProjectPath
	}
	if cfg.Retrieval.Command == "" {
		if cfg.Retrieval.Interpreter == "" {
			cfg.Retrieval.Interpreter = def.Retrieval.Interpreter
		}
		if cfg.Retrieval.Script == "" {
			cfg.Retrieval.Script = def.Retrieval.Script
		}
	}
	if cfg.Retrieval.APIKeyEnv == "" {
		cfg.Retrieval.APIKeyEnv = def.Retrieval.APIKeyEnv
	}
	if cfg.Prompt.MaxSections == 0 {
		cfg.Prompt.MaxSections = def.Prompt.MaxSections
	}
	if cfg.Prompt.MaxChars == 0 {
		cfg.Prompt.MaxChars = def.Prompt.MaxChars
	}
	if cfg.Sanitizer.MaxPoints == 0 {
		cfg.Sanitizer.MaxPoints = def.Sanitizer.MaxPoints
	}
	if cfg.Sanitizer.EmptyMessage == "" {
		cfg.Sanitizer.EmptyMessage = def.Sanitizer.EmptyMessage
	}
	if cfg.Sanitizer.BlockedMessage == "" {
		cfg.Sanitizer.BlockedMessage = def.Sanitizer.BlockedMessage
	}
	if cfg.Sanitizer.FallbackPreamble == "" {
		cfg.Sanitizer.FallbackPreamble = def.Sanitizer.FallbackPreamble
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.OffTopicReply == "" {
		cfg.Server.OffTopicReply = def.Server.OffTopicReply
	}
}

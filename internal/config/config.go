package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"docqa/internal/vocab"
)

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible
// embeddings client.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string                `yaml:"type"`
	OpenAI *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
}

// ChromaConfig contains connection details for a Chroma-style vector index.
type ChromaConfig struct {
	URL         string `yaml:"url"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// IndexConfig selects and configures the vector index implementation.
type IndexConfig struct {
	Type   string        `yaml:"type"`
	Chroma *ChromaConfig `yaml:"chroma,omitempty"`
}

// OllamaGeneratorConfig configures the Ollama text generator.
type OllamaGeneratorConfig struct {
	BaseURL            string  `yaml:"base_url"`
	Model              string  `yaml:"model"`
	Temperature        float64 `yaml:"temperature"`
	NumPredict         int     `yaml:"num_predict"`
	TopP               float64 `yaml:"top_p"`
	ConnectTimeoutSecs int     `yaml:"connect_timeout_secs"`
	ReadTimeoutSecs    int     `yaml:"read_timeout_secs"`
}

// OpenAIGeneratorConfig configures the OpenAI-compatible chat generator.
type OpenAIGeneratorConfig struct {
	BaseURL            string  `yaml:"base_url"`
	APIKeyEnv          string  `yaml:"api_key_env"`
	Model              string  `yaml:"model"`
	Temperature        float64 `yaml:"temperature"`
	MaxTokens          int     `yaml:"max_tokens"`
	ConnectTimeoutSecs int     `yaml:"connect_timeout_secs"`
	ReadTimeoutSecs    int     `yaml:"read_timeout_secs"`
}

// GeneratorConfig selects and configures the generative-text backend.
type GeneratorConfig struct {
	Type   string                 `yaml:"type"`
	Ollama *OllamaGeneratorConfig `yaml:"ollama,omitempty"`
	OpenAI *OpenAIGeneratorConfig `yaml:"openai,omitempty"`
}

// RedisSessionConfig contains connection details for the redis session
// store.
type RedisSessionConfig struct {
	Addr        string `yaml:"addr"`
	PasswordEnv string `yaml:"password_env"`
	DB          int    `yaml:"db"`
	TTLSecs     int    `yaml:"ttl_secs"`
}

// SessionConfig selects and configures the session object store.
type SessionConfig struct {
	Type  string              `yaml:"type"`
	Redis *RedisSessionConfig `yaml:"redis,omitempty"`
}

// PipelineConfig tunes the answer pipeline and the retriever.
type PipelineConfig struct {
	TopK                 int      `yaml:"top_k"`
	MaxRetries           int      `yaml:"max_retries"`
	KeepRetrievalForObjQ bool     `yaml:"keep_retrieval_for_object_questions"`
	DisableKeywordRerank bool     `yaml:"disable_keyword_rerank"`
	DisableLexicalBonus  bool     `yaml:"disable_lexical_bonus"`
	SectionLabels        []string `yaml:"section_labels"`
}

// ServerConfig configures the HTTP front door.
type ServerConfig struct {
	Addr             string `yaml:"addr"`
	ReadTimeoutSecs  int    `yaml:"read_timeout_secs"`
	WriteTimeoutSecs int    `yaml:"write_timeout_secs"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Index     IndexConfig     `yaml:"index"`
	Generator GeneratorConfig `yaml:"generator"`
	Session   SessionConfig   `yaml:"session"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Server    ServerConfig    `yaml:"server"`
	Vocab     vocab.Config    `yaml:"vocab"`
}

// Load reads a config from a specified path. If the file does not exist,
// returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/docqa/config.yaml and
// returns them.
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
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
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
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docqa", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Embedder:  EmbedderConfig{Type: "tfidf"},
		Index:     IndexConfig{Type: "memory"},
		Generator: GeneratorConfig{Type: "ollama"},
		Session:   SessionConfig{Type: "memory"},
		Pipeline:  PipelineConfig{TopK: 2, MaxRetries: 1},
		Server:    ServerConfig{Addr: ":8001"},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Pipeline.TopK == 0 {
		cfg.Pipeline.TopK = 2
	}
	if cfg.Pipeline.MaxRetries == 0 {
		cfg.Pipeline.MaxRetries = 1
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8001"
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}
	if cfg.Index.Type == "chroma" && cfg.Index.Chroma != nil {
		if cfg.Index.Chroma.Collection == "" {
			cfg.Index.Chroma.Collection = "docs"
		}
		if cfg.Index.Chroma.TimeoutSecs == 0 {
			cfg.Index.Chroma.TimeoutSecs = 15
		}
	}
	if cfg.Session.Type == "redis" && cfg.Session.Redis != nil {
		if cfg.Session.Redis.Addr == "" {
			cfg.Session.Redis.Addr = "127.0.0.1:6379"
		}
		if cfg.Session.Redis.TTLSecs == 0 {
			cfg.Session.Redis.TTLSecs = 1800
		}
	}
}

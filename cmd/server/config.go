package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MegaGrindStone/voice-web-ui/internal/handlers"
	"github.com/MegaGrindStone/voice-web-ui/internal/services"
	"gopkg.in/yaml.v3"
)

type completionConfig interface {
	responder(systemPrompt string, logger *slog.Logger) (handlers.Responder, error)
}

// BaseCompletionConfig contains the common fields for all completion provider configurations.
type BaseCompletionConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type config struct {
	Port         string           `yaml:"port"`
	LogLevel     string           `yaml:"logLevel"`
	SystemPrompt string           `yaml:"systemPrompt"`
	Completion   completionConfig `yaml:"completion"`
	Store        storeConfig      `yaml:"store"`
	ConvAI       convaiConfig     `yaml:"convai"`
}

type echoConfig struct{}

type ollamaConfig struct {
	BaseCompletionConfig `yaml:",inline"`
	Host                 string `yaml:"host"`
}

type openaiConfig struct {
	BaseCompletionConfig `yaml:",inline"`
	APIKey               string `yaml:"apiKey"`
	BaseURL              string `yaml:"baseURL"`
}

type anthropicConfig struct {
	BaseCompletionConfig `yaml:",inline"`
	Endpoint             string `yaml:"endpoint"`
	APIKey               string `yaml:"apiKey"`
	MaxTokens            int    `yaml:"maxTokens"`
}

type storeConfig struct {
	Type        string `yaml:"type"`
	Path        string `yaml:"path"`
	RedisAddr   string `yaml:"redisAddr"`
	RedisPrefix string `yaml:"redisPrefix"`
}

type convaiConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type store interface {
	handlers.Store
	Close() error
}

const (
	defaultPort      = "8080"
	defaultLogLevel  = "info"
	defaultStoreType = "memory"

	appConfigDir = "voicewebui"
)

var errUnknownProvider = errors.New("unknown completion provider")

func defaultConfig() config {
	return config{
		Port:       defaultPort,
		LogLevel:   defaultLogLevel,
		Completion: echoConfig{},
		Store:      storeConfig{Type: defaultStoreType},
	}
}

// loadConfig reads the YAML config at path over the defaults. An empty path falls back to config.yaml in the
// user config directory, which may be absent.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	explicit := path != ""
	if !explicit {
		dir, err := os.UserConfigDir()
		if err != nil {
			return cfg, nil
		}
		path = filepath.Join(dir, appConfigDir, "config.yaml")
	}

	f, err := os.Open(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return config{}, fmt.Errorf("error opening config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return config{}, fmt.Errorf("error decoding config file: %w", err)
	}
	return cfg, nil
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port         string         `yaml:"port"`
		LogLevel     string         `yaml:"logLevel"`
		SystemPrompt string         `yaml:"systemPrompt"`
		Completion   map[string]any `yaml:"completion"`
		Store        storeConfig    `yaml:"store"`
		ConvAI       convaiConfig   `yaml:"convai"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	if rawConfig.Port != "" {
		c.Port = rawConfig.Port
	}
	if rawConfig.LogLevel != "" {
		c.LogLevel = rawConfig.LogLevel
	}
	if rawConfig.Store.Type != "" {
		c.Store = rawConfig.Store
	}
	c.SystemPrompt = rawConfig.SystemPrompt
	c.ConvAI = rawConfig.ConvAI

	if len(rawConfig.Completion) == 0 {
		c.Completion = echoConfig{}
		return nil
	}

	provider, ok := rawConfig.Completion["provider"].(string)
	if !ok {
		return fmt.Errorf("completion provider is required")
	}

	completionRawYAML, err := yaml.Marshal(rawConfig.Completion)
	if err != nil {
		return err
	}

	var completion completionConfig
	switch provider {
	case "echo":
		c.Completion = echoConfig{}
		return nil
	case "ollama":
		completion = &ollamaConfig{}
	case "openai":
		completion = &openaiConfig{}
	case "anthropic":
		completion = &anthropicConfig{}
	default:
		return fmt.Errorf("%w: %s", errUnknownProvider, provider)
	}

	if err := yaml.Unmarshal(completionRawYAML, completion); err != nil {
		return err
	}

	c.Completion = completion

	return nil
}

func (echoConfig) responder(string, *slog.Logger) (handlers.Responder, error) {
	return services.Echo{}, nil
}

func (o ollamaConfig) responder(systemPrompt string, _ *slog.Logger) (handlers.Responder, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = "http://localhost:11434"
	}
	ollama, err := services.NewOllama(host, o.Model, systemPrompt)
	if err != nil {
		return nil, err
	}
	return ollama, nil
}

func (o openaiConfig) responder(systemPrompt string, logger *slog.Logger) (handlers.Responder, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	return services.NewOpenAI(apiKey, o.BaseURL, o.Model, systemPrompt, logger), nil
}

func (a anthropicConfig) responder(systemPrompt string, _ *slog.Logger) (handlers.Responder, error) {
	if a.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if a.MaxTokens == 0 {
		return nil, fmt.Errorf("maxTokens is required")
	}

	apiKey := a.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	return services.NewAnthropic(a.Endpoint, apiKey, a.Model, systemPrompt, a.MaxTokens), nil
}

// open creates the configured transcript store. File backed stores default to the user config directory.
func (s storeConfig) open(ctx context.Context) (store, error) {
	switch s.Type {
	case "", "memory":
		return services.NewMemory(), nil
	case "bolt":
		path, err := s.filePath("store.db")
		if err != nil {
			return nil, err
		}
		db, err := services.NewBoltDB(path)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "sqlite":
		path, err := s.filePath("store.sqlite")
		if err != nil {
			return nil, err
		}
		db, err := services.NewSQLite(path)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "redis":
		addr := s.RedisAddr
		if addr == "" {
			addr = os.Getenv("REDIS_ADDR")
		}
		if addr == "" {
			addr = "localhost:6379"
		}
		rdb, err := services.NewRedis(ctx, addr, s.RedisPrefix)
		if err != nil {
			return nil, err
		}
		return rdb, nil
	default:
		return nil, fmt.Errorf("unknown store type: %s", s.Type)
	}
}

func (s storeConfig) filePath(name string) (string, error) {
	if s.Path != "" {
		return s.Path, nil
	}

	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("error getting user config dir: %w", err)
	}
	dir = filepath.Join(dir, appConfigDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating config directory: %w", err)
	}
	return filepath.Join(dir, name), nil
}

// credentialsFromEnv returns the vendor agent id and API key. Both names of each variable are accepted.
func credentialsFromEnv() (agentID, apiKey string) {
	agentID = os.Getenv("ELEVENLABS_AGENT_ID")
	if agentID == "" {
		agentID = os.Getenv("AGENT_ID")
	}
	apiKey = os.Getenv("ELEVENLABS_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("XI_API_KEY")
	}
	return agentID, apiKey
}

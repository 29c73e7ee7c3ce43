package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/MegaGrindStone/voice-web-ui/internal/services"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := loadConfig("")
	require.NoError(t, err)
	require.Equal(t, defaultPort, cfg.Port)
	require.Equal(t, defaultLogLevel, cfg.LogLevel)
	require.Equal(t, "memory", cfg.Store.Type)
	require.IsType(t, echoConfig{}, cfg.Completion)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadConfigProviders(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		check   func(t *testing.T, cfg config)
		wantErr error
	}{
		{
			name: "partial file keeps defaults",
			yaml: "systemPrompt: be brief\n",
			check: func(t *testing.T, cfg config) {
				require.Equal(t, defaultPort, cfg.Port)
				require.Equal(t, "be brief", cfg.SystemPrompt)
				require.IsType(t, echoConfig{}, cfg.Completion)
			},
		},
		{
			name: "ollama",
			yaml: `
port: "9090"
logLevel: debug
completion:
  provider: ollama
  model: llama3
  host: http://ollama:11434
store:
  type: bolt
  path: /tmp/voice.db
`,
			check: func(t *testing.T, cfg config) {
				require.Equal(t, "9090", cfg.Port)
				require.Equal(t, "debug", cfg.LogLevel)
				require.Equal(t, storeConfig{Type: "bolt", Path: "/tmp/voice.db"}, cfg.Store)
				oc, ok := cfg.Completion.(*ollamaConfig)
				require.True(t, ok)
				require.Equal(t, "llama3", oc.Model)
				require.Equal(t, "http://ollama:11434", oc.Host)
			},
		},
		{
			name: "openai",
			yaml: `
completion:
  provider: openai
  model: gpt-4o-mini
  baseURL: https://openrouter.ai/api/v1
`,
			check: func(t *testing.T, cfg config) {
				oc, ok := cfg.Completion.(*openaiConfig)
				require.True(t, ok)
				require.Equal(t, "https://openrouter.ai/api/v1", oc.BaseURL)
			},
		},
		{
			name: "anthropic",
			yaml: `
completion:
  provider: anthropic
  model: claude-3-5-haiku-latest
  maxTokens: 512
convai:
  endpoint: http://vendor.local
`,
			check: func(t *testing.T, cfg config) {
				ac, ok := cfg.Completion.(*anthropicConfig)
				require.True(t, ok)
				require.Equal(t, 512, ac.MaxTokens)
				require.Equal(t, "http://vendor.local", cfg.ConvAI.Endpoint)
			},
		},
		{
			name:    "unknown provider",
			yaml:    "completion:\n  provider: nope\n",
			wantErr: errUnknownProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadConfig(writeConfig(t, tt.yaml))
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestCompletionResponders(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	r, err := echoConfig{}.responder("", logger)
	require.NoError(t, err)
	require.IsType(t, services.Echo{}, r)

	_, err = ollamaConfig{}.responder("", logger)
	require.Error(t, err)

	_, err = anthropicConfig{BaseCompletionConfig: BaseCompletionConfig{Model: "m"}}.responder("", logger)
	require.Error(t, err)

	r, err = openaiConfig{BaseCompletionConfig: BaseCompletionConfig{Model: "m"}, APIKey: "k"}.responder("", logger)
	require.NoError(t, err)
	require.NotNil(t, r)
}

func TestStoreOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name string
		cfg  storeConfig
	}{
		{name: "memory", cfg: storeConfig{Type: "memory"}},
		{name: "bolt", cfg: storeConfig{Type: "bolt", Path: filepath.Join(dir, "store.db")}},
		{name: "sqlite", cfg: storeConfig{Type: "sqlite", Path: filepath.Join(dir, "store.sqlite")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := tt.cfg.open(ctx)
			require.NoError(t, err)
			t.Cleanup(func() { require.NoError(t, st.Close()) })

			records, err := st.Records(ctx, "unknown")
			require.NoError(t, err)
			require.Empty(t, records)
		})
	}

	_, err := storeConfig{Type: "nope"}.open(ctx)
	require.Error(t, err)
}

func TestCredentialsFromEnv(t *testing.T) {
	t.Setenv("ELEVENLABS_AGENT_ID", "")
	t.Setenv("ELEVENLABS_API_KEY", "")
	t.Setenv("AGENT_ID", "legacy-agent")
	t.Setenv("XI_API_KEY", "legacy-key")

	agentID, apiKey := credentialsFromEnv()
	require.Equal(t, "legacy-agent", agentID)
	require.Equal(t, "legacy-key", apiKey)

	t.Setenv("ELEVENLABS_AGENT_ID", "agent")
	t.Setenv("ELEVENLABS_API_KEY", "key")

	agentID, apiKey = credentialsFromEnv()
	require.Equal(t, "agent", agentID)
	require.Equal(t, "key", apiKey)
}

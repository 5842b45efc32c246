package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[llm]
provider = "claude"
model = "claude-3-5-sonnet-latest"
timeout = "30s"

[tasks]
workers = 2

[prompts.questions]
user = "custom %s"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "claude", cfg.LLM.Provider)
	assert.Equal(t, 30*time.Second, cfg.LLM.CallTimeout())
	assert.Equal(t, 2, cfg.Tasks.Workers)
	assert.Equal(t, 64, cfg.Tasks.Buffer)
	assert.Equal(t, 1000, cfg.Tasks.Retain)
	assert.Equal(t, "custom %s", cfg.Prompts.Questions.User)
	assert.Equal(t, defaultQuestionsSystem, cfg.Prompts.Questions.System)
	assert.Equal(t, 15000, cfg.Limits.AnalysisChars)
	assert.Equal(t, 10000, cfg.Limits.ComparisonChars)
	assert.Equal(t, int64(50*1024*1024), cfg.Upload.MaxBytes)
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, found, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, []string{".txt", ".pdf", ".docx"}, cfg.Upload.AllowedExtensions)
	assert.Zero(t, cfg.LLM.CallTimeout())
}

func TestLoadOrDefaultBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[llm\nprovider="), 0o644))

	_, _, err := LoadOrDefault(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":           "9090",
		"OPENAI_API_KEY": "sk-fallback",
		"LLM_PROVIDER":   "Gemini",
		"STORAGE_DRIVER": "POSTGRES",
		"MINIO_USE_SSL":  "true",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "sk-fallback", cfg.LLM.APIKey)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.True(t, cfg.Archive.UseSSL)

	env["LLM_API_KEY"] = "sk-primary"
	cfg.ApplyEnv(func(k string) string { return env[k] })
	assert.Equal(t, "sk-primary", cfg.LLM.APIKey)
}

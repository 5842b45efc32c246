package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Prompt is a system instruction plus a user template. The template receives the
// transcript excerpt(s) through fmt.Sprintf.
type Prompt struct {
	System string `toml:"system"`
	User   string `toml:"user"`
}

type Prompts struct {
	Questions      Prompt `toml:"questions"`
	Insights       Prompt `toml:"insights"`
	Contradictions Prompt `toml:"contradictions"`
}

type ServerConfig struct {
	Port string `toml:"port"`
}

type LLMConfig struct {
	Provider          string `toml:"provider"`
	Model             string `toml:"model"`
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	MaxTokens         int    `toml:"max_tokens"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
	Timeout           string `toml:"timeout"`
}

// CallTimeout parses Timeout. An empty or invalid value means no timeout.
func (c LLMConfig) CallTimeout() time.Duration {
	if c.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

type StorageConfig struct {
	Driver      string `toml:"driver"`
	DatabaseURL string `toml:"database_url"`
	SeedSample  bool   `toml:"seed_sample"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

type ArchiveConfig struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	UseSSL    bool   `toml:"use_ssl"`
}

type UploadConfig struct {
	Dir               string   `toml:"dir"`
	MaxBytes          int64    `toml:"max_bytes"`
	AllowedExtensions []string `toml:"allowed_extensions"`
}

type TasksConfig struct {
	Workers int `toml:"workers"`
	Buffer  int `toml:"buffer"`
	Retain  int `toml:"retain"`
}

type LimitsConfig struct {
	AnalysisChars   int `toml:"analysis_chars"`
	ComparisonChars int `toml:"comparison_chars"`
	LinesPerPage    int `toml:"lines_per_page"`
}

type Config struct {
	Server   ServerConfig   `toml:"server"`
	LLM      LLMConfig      `toml:"llm"`
	Storage  StorageConfig  `toml:"storage"`
	Memgraph MemgraphConfig `toml:"memgraph"`
	Archive  ArchiveConfig  `toml:"archive"`
	Upload   UploadConfig   `toml:"upload"`
	Tasks    TasksConfig    `toml:"tasks"`
	Limits   LimitsConfig   `toml:"limits"`
	Prompts  Prompts        `toml:"prompts"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// LoadOrDefault loads path and falls back to defaults when the file does not exist.
// Any other read or parse error is returned.
func LoadOrDefault(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), false, nil
	}
	return nil, false, err
}

func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

func (c *Config) ApplyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 4096
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Archive.Bucket == "" {
		c.Archive.Bucket = "deposition-uploads"
	}
	if c.Upload.Dir == "" {
		c.Upload.Dir = "uploads"
	}
	if c.Upload.MaxBytes == 0 {
		c.Upload.MaxBytes = 50 * 1024 * 1024
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		c.Upload.AllowedExtensions = []string{".txt", ".pdf", ".docx"}
	}
	if c.Tasks.Workers == 0 {
		c.Tasks.Workers = 4
	}
	if c.Tasks.Buffer == 0 {
		c.Tasks.Buffer = 64
	}
	if c.Tasks.Retain == 0 {
		c.Tasks.Retain = 1000
	}
	if c.Limits.AnalysisChars == 0 {
		c.Limits.AnalysisChars = 15000
	}
	if c.Limits.ComparisonChars == 0 {
		c.Limits.ComparisonChars = 10000
	}
	if c.Limits.LinesPerPage == 0 {
		c.Limits.LinesPerPage = 25
	}
	c.Prompts.applyDefaults()
}

// ApplyEnv overrides config values with environment variables when they are set.
func (c *Config) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}

	set(&c.Server.Port, "PORT")
	set(&c.LLM.Provider, "LLM_PROVIDER")
	set(&c.LLM.Model, "LLM_MODEL")
	set(&c.LLM.APIKey, "LLM_API_KEY", "OPENAI_API_KEY")
	set(&c.LLM.BaseURL, "LLM_BASE_URL")
	set(&c.Storage.Driver, "STORAGE_DRIVER")
	set(&c.Storage.DatabaseURL, "DATABASE_URL")
	set(&c.Memgraph.URI, "MEMGRAPH_URI")
	set(&c.Memgraph.User, "MEMGRAPH_USER")
	set(&c.Memgraph.Password, "MEMGRAPH_PASSWORD")
	set(&c.Archive.Endpoint, "MINIO_ENDPOINT")
	set(&c.Archive.AccessKey, "MINIO_ACCESS_KEY")
	set(&c.Archive.SecretKey, "MINIO_SECRET_KEY")
	set(&c.Archive.Bucket, "MINIO_BUCKET")
	set(&c.Upload.Dir, "UPLOAD_DIR")

	if v := getenv("MINIO_USE_SSL"); v != "" {
		c.Archive.UseSSL = v == "true"
	}
	if v := getenv("LLM_REQUESTS_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.LLM.RequestsPerMinute = n
		}
	}

	c.Storage.Driver = strings.ToLower(c.Storage.Driver)
	c.LLM.Provider = strings.ToLower(c.LLM.Provider)
}

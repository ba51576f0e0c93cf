package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/themobileprof/textclass/pkg/models"
)

// Config represents the application configuration
type Config struct {
	Model        ModelConfig    `yaml:"model"`
	Thresholds   Thresholds     `yaml:"thresholds"`
	Fallback     FallbackConfig `yaml:"fallback"`
	Server       ServerConfig   `yaml:"server"`
	Log          LogConfig      `yaml:"log"`
	DBPath       string         `yaml:"db_path"`
	LogDecisions bool           `yaml:"log_decisions"`
	TracePath    string         `yaml:"trace_path,omitempty"`
	ColorOutput  bool           `yaml:"color_output"`
}

// ModelConfig locates the model artifacts and sizes the inference pool
type ModelConfig struct {
	Dir            string `yaml:"dir"`
	ModelFile      string `yaml:"model_file"`
	VocabFile      string `yaml:"vocab_file"`
	LabelFile      string `yaml:"label_file"`
	SharedLibrary  string `yaml:"shared_library,omitempty"`
	MaxLength      int    `yaml:"max_length"`
	SessionPool    int    `yaml:"session_pool"`
	IntraOpThreads int    `yaml:"intra_op_threads"`
	BatchWorkers   int    `yaml:"batch_workers"`
	VerifyLabels   bool   `yaml:"verify_labels"`
}

// Thresholds holds the confidence cut-offs used by the decision engine
type Thresholds struct {
	Fallback float64 `yaml:"fallback"`
}

// FallbackConfig points at the remote backend used for low-confidence input
type FallbackConfig struct {
	Endpoint     string        `yaml:"endpoint,omitempty"`
	TokenURL     string        `yaml:"token_url,omitempty"`
	ClientID     string        `yaml:"client_id,omitempty"`
	ClientSecret string        `yaml:"client_secret,omitempty"`
	Scopes       []string      `yaml:"scopes,omitempty"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
}

// Enabled reports whether a remote backend is configured
func (f FallbackConfig) Enabled() bool {
	return f.Endpoint != ""
}

// ServerConfig configures the HTTP daemon
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Mode         string        `yaml:"mode"`
	RateLimit    int           `yaml:"rate_limit"`
	RateInterval time.Duration `yaml:"rate_interval"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig selects the log level and encoder
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	base := filepath.Join(homeDir, ".textclass")
	return &Config{
		Model: ModelConfig{
			Dir:            filepath.Join(base, "model"),
			ModelFile:      "model.onnx",
			VocabFile:      "vocab.txt",
			LabelFile:      "config.json",
			MaxLength:      128,
			SessionPool:    0,
			IntraOpThreads: 2,
			BatchWorkers:   4,
			VerifyLabels:   true,
		},
		Thresholds: Thresholds{
			Fallback: models.DefaultFallbackThreshold,
		},
		Fallback: FallbackConfig{
			Timeout:    10 * time.Second,
			MaxRetries: 2,
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			Mode:         "release",
			RateLimit:    60,
			RateInterval: time.Minute,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		DBPath:       filepath.Join(base, "textclass.db"),
		LogDecisions: false,
		ColorOutput:  true,
	}
}

// Load reads configuration from file, creating with defaults if it doesn't exist
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := Default()
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default() // unset keys keep their defaults
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// Save writes the configuration to file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file may carry the fallback client secret
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks value ranges. It does not touch the filesystem.
func (c *Config) Validate() error {
	if c.Thresholds.Fallback <= 0 || c.Thresholds.Fallback > 1 {
		return fmt.Errorf("thresholds.fallback must be in (0, 1], got %v", c.Thresholds.Fallback)
	}
	if c.Model.MaxLength < 2 {
		return fmt.Errorf("model.max_length must be at least 2, got %d", c.Model.MaxLength)
	}
	if c.Model.SessionPool < 0 {
		return fmt.Errorf("model.session_pool must not be negative")
	}
	if c.Model.BatchWorkers < 1 {
		return fmt.Errorf("model.batch_workers must be at least 1, got %d", c.Model.BatchWorkers)
	}
	if c.Model.ModelFile == "" || c.Model.VocabFile == "" {
		return fmt.Errorf("model.model_file and model.vocab_file are required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative")
	}
	if c.Server.RateLimit > 0 && c.Server.RateInterval <= 0 {
		return fmt.Errorf("server.rate_interval must be positive when rate_limit is set")
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode must be debug, release or test, got %q", c.Server.Mode)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	if c.Fallback.Enabled() {
		if err := checkURL("fallback.endpoint", c.Fallback.Endpoint); err != nil {
			return err
		}
		if c.Fallback.Timeout <= 0 {
			return fmt.Errorf("fallback.timeout must be positive")
		}
		if c.Fallback.TokenURL != "" {
			if err := checkURL("fallback.token_url", c.Fallback.TokenURL); err != nil {
				return err
			}
			if c.Fallback.ClientID == "" {
				return fmt.Errorf("fallback.client_id is required with fallback.token_url")
			}
		}
	}
	return nil
}

func checkURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL, got %q", key, raw)
	}
	return nil
}

// ModelPath returns the ONNX model file
func (m ModelConfig) ModelPath() string {
	return m.resolve(m.ModelFile)
}

// VocabPath returns the tokenizer vocabulary file
func (m ModelConfig) VocabPath() string {
	return m.resolve(m.VocabFile)
}

// LabelPath returns the model's config.json
func (m ModelConfig) LabelPath() string {
	if m.LabelFile == "" {
		return ""
	}
	return m.resolve(m.LabelFile)
}

// LabelConfigPath returns LabelPath, or "" when the label check is
// disabled.
func (m ModelConfig) LabelConfigPath() string {
	if !m.VerifyLabels {
		return ""
	}
	return m.LabelPath()
}

func (m ModelConfig) resolve(name string) string {
	if filepath.IsAbs(name) || m.Dir == "" {
		return name
	}
	return filepath.Join(m.Dir, name)
}

// GetConfigPath returns the default config file path
func GetConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".textclass", "config.yaml")
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the server looks for its config file.
const DefaultPath = "config/prompt-mcp.yaml"

// Backend names.
const (
	BackendSQL = "sql"
	BackendAPI = "api"
)

// Config contains runtime configuration for prompt-mcp.
type Config struct {
	ServerName string `yaml:"server_name"`
	LogLevel   string `yaml:"log_level"`
	LogFile    string `yaml:"log_file"`
	// Rotation applies when LogFile is set.
	LogMaxSizeMB  int  `yaml:"log_max_size_mb"`
	LogMaxBackups int  `yaml:"log_max_backups"`
	LogMaxAgeDays int  `yaml:"log_max_age_days"`
	LogCompress   bool `yaml:"log_compress"`

	Backend      string `yaml:"backend"`
	DatabaseURL  string `yaml:"database_url"`
	APIURL       string `yaml:"api_url"`
	APISecretKey string `yaml:"api_secret_key"`
	APIToken     string `yaml:"api_token"`

	FetchTimeoutSeconds   int    `yaml:"fetch_timeout_seconds"`
	MaxPromptTools        int    `yaml:"max_prompt_tools"`
	ToolSoftLimit         int    `yaml:"tool_soft_limit"`
	ToolCeiling           int    `yaml:"tool_ceiling"`
	FallbackDir           string `yaml:"fallback_dir"`
	WatchFallbackDir      bool   `yaml:"watch_fallback_dir"`
	ReloadIntervalSeconds int    `yaml:"reload_interval_seconds"`

	OwnerToken string `yaml:"owner_token"`
	JWTSecret  string `yaml:"jwt_secret"`

	HTTPAddr                  string `yaml:"http_addr"`
	UsageReportConcurrency    int    `yaml:"usage_report_concurrency"`
	UsageReportTimeoutSeconds int    `yaml:"usage_report_timeout_seconds"`
}

// Default returns a Config populated with safe defaults.
func Default() Config {
	return Config{
		ServerName:                "prompt-server",
		LogLevel:                  "info",
		LogMaxSizeMB:              50,
		LogMaxBackups:             5,
		LogMaxAgeDays:             28,
		Backend:                   BackendSQL,
		DatabaseURL:               filepath.Join(userHomeDir(), ".prompt-mcp", "prompts.db"),
		FetchTimeoutSeconds:       3,
		MaxPromptTools:            25,
		ToolSoftLimit:             40,
		ToolCeiling:               50,
		FallbackDir:               "prompts",
		HTTPAddr:                  ":8080",
		UsageReportConcurrency:    8,
		UsageReportTimeoutSeconds: 3,
	}
}

// Load loads config from disk, then applies .env and environment overrides.
// If path does not exist, defaults are used.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config yaml: %w", err)
			}
		}
	}

	// A missing .env is fine.
	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.APIURL = getEnv("PROMPT_MANAGER_API_URL", c.APIURL)
	c.APISecretKey = getEnv("SECRET_KEY", c.APISecretKey)
	c.APIToken = getEnv("USER_TOKEN", c.APIToken)
	c.Backend = strings.ToLower(getEnv("PROMPT_MCP_BACKEND", c.Backend))
	c.FallbackDir = getEnv("PROMPT_MCP_FALLBACK_DIR", c.FallbackDir)
	c.JWTSecret = getEnv("PROMPT_MCP_JWT_SECRET", c.JWTSecret)
	c.LogLevel = getEnv("PROMPT_MCP_LOG_LEVEL", c.LogLevel)
	c.OwnerToken = getEnv("PROMPT_MCP_OWNER_TOKEN", c.OwnerToken)

	if v := os.Getenv("MAX_PROMPT_TOOLS"); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("MAX_PROMPT_TOOLS: %w", err)
		}
		c.MaxPromptTools = n
	}
	return nil
}

// Validate checks configuration sanity.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ServerName) == "" {
		return errors.New("server_name must not be empty")
	}
	if c.MaxPromptTools < 0 {
		return errors.New("max_prompt_tools must be >= 0")
	}
	if c.ToolSoftLimit <= 0 {
		return errors.New("tool_soft_limit must be > 0")
	}
	if c.ToolCeiling < c.ToolSoftLimit {
		return errors.New("tool_ceiling must be >= tool_soft_limit")
	}
	if c.FetchTimeoutSeconds <= 0 {
		return errors.New("fetch_timeout_seconds must be > 0")
	}
	if c.ReloadIntervalSeconds < 0 {
		return errors.New("reload_interval_seconds must be >= 0")
	}
	if c.UsageReportConcurrency <= 0 {
		return errors.New("usage_report_concurrency must be > 0")
	}
	switch c.Backend {
	case BackendSQL:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("database_url must not be empty for the sql backend")
		}
	case BackendAPI:
		if strings.TrimSpace(c.APIURL) == "" {
			return errors.New("api_url must not be empty for the api backend")
		}
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendSQL, BackendAPI)
	}
	return nil
}

// EnsurePaths expands "~" in config-managed paths and creates parent
// directories for local files.
func (c *Config) EnsurePaths() error {
	c.FallbackDir = ExpandPath(c.FallbackDir)
	c.LogFile = ExpandPath(c.LogFile)
	if c.Backend != BackendSQL || isURL(c.DatabaseURL) {
		return nil
	}
	c.DatabaseURL = ExpandPath(strings.TrimPrefix(c.DatabaseURL, "sqlite:"))
	parent := filepath.Dir(c.DatabaseURL)
	if parent == "." {
		return nil
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create db parent dir: %w", err)
	}
	return nil
}

// FetchTimeout bounds one backing store fetch.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// ReloadInterval is zero when periodic reloads are disabled.
func (c Config) ReloadInterval() time.Duration {
	return time.Duration(c.ReloadIntervalSeconds) * time.Second
}

// UsageReportTimeout bounds one usage report.
func (c Config) UsageReportTimeout() time.Duration {
	return time.Duration(c.UsageReportTimeoutSeconds) * time.Second
}

// ExpandPath expands "~/" to the current user's home directory.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p == "~" {
		return userHomeDir()
	}
	if strings.HasPrefix(p, "~/") {
		return filepath.Join(userHomeDir(), p[2:])
	}
	return p
}

func isURL(s string) bool {
	return strings.Contains(s, "://")
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func userHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

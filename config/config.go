package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Supported AI providers
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
	AI      AIConfig      `yaml:"ai"`
	Report  ReportConfig  `yaml:"report"`
	Upload  UploadConfig  `yaml:"upload"`
	Store   StoreConfig   `yaml:"store"`
	Archive ArchiveConfig `yaml:"archive"`
	Auth    AuthConfig    `yaml:"auth"`
	Users   []User        `yaml:"users"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
	// RateLimit is the number of requests allowed per client IP per minute
	RateLimit int `yaml:"rate_limit"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type AIConfig struct {
	Provider       string  `yaml:"provider"` // openai, gemini
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	Temperature    float32 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	Concurrency    int     `yaml:"concurrency"`
	MaxClauseChars int     `yaml:"max_clause_chars"`
}

// Timeout returns the per-call deadline for AI requests
func (c AIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type ReportConfig struct {
	Title      string `yaml:"title"`
	LogoPath   string `yaml:"logo_path"`
	FontPath   string `yaml:"font_path"`
	Disclaimer string `yaml:"disclaimer"`
}

type UploadConfig struct {
	MaxFileSizeMB int `yaml:"max_file_size_mb"`
}

// MaxBytes returns the upload limit in bytes
func (c UploadConfig) MaxBytes() int64 {
	return int64(c.MaxFileSizeMB) << 20
}

type StoreConfig struct {
	MaxAnalyses int `yaml:"max_analyses"`
	TTLMinutes  int `yaml:"ttl_minutes"`
}

// TTL returns how long an analysis stays available for export
func (c StoreConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

type ArchiveConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	Region     string `yaml:"region"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"`
}

type AuthConfig struct {
	Enabled          bool   `yaml:"enabled"`
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type User struct {
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	DisplayName string `yaml:"display_name"`
}

// Name returns the name printed on reports
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// LoadDotenv loads KEY=VALUE pairs from the given files into the process
// environment. Missing files are ignored.
func LoadDotenv(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.RateLimit == 0 {
		c.Server.RateLimit = 100
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.AI.Provider == "" {
		c.AI.Provider = ProviderOpenAI
	}
	c.AI.Provider = strings.ToLower(c.AI.Provider)
	if c.AI.Model == "" {
		switch c.AI.Provider {
		case ProviderGemini:
			c.AI.Model = "gemini-1.5-flash"
		default:
			c.AI.Model = "gpt-4.1-mini"
		}
	}
	if c.AI.Temperature == 0 {
		c.AI.Temperature = 0.3
	}
	if c.AI.MaxTokens == 0 {
		c.AI.MaxTokens = 600
	}
	if c.AI.TimeoutSeconds == 0 {
		c.AI.TimeoutSeconds = 60
	}
	if c.AI.Concurrency == 0 {
		c.AI.Concurrency = 4
	}
	if c.AI.MaxClauseChars == 0 {
		c.AI.MaxClauseChars = 6000
	}

	if c.Report.Title == "" {
		c.Report.Title = "TENDER LEGAL REVIEW REPORT"
	}
	if c.Report.Disclaimer == "" {
		c.Report.Disclaimer = "Disclaimer: This AI-generated report is for internal use only. " +
			"Verify all details before making legal or financial decisions."
	}

	if c.Upload.MaxFileSizeMB == 0 {
		c.Upload.MaxFileSizeMB = 25
	}
	if c.Store.MaxAnalyses == 0 {
		c.Store.MaxAnalyses = 100
	}
	if c.Store.TTLMinutes == 0 {
		c.Store.TTLMinutes = 60
	}
	if c.Archive.Region == "" {
		c.Archive.Region = "us-east-1"
	}
	if c.Archive.ExpireDays == 0 {
		c.Archive.ExpireDays = 7
	}
	if c.Auth.TokenExpireHours == 0 {
		c.Auth.TokenExpireHours = 24
	}
}

// applyEnv overlays credentials from the environment. Environment values win
// over the file so that keys never need to be committed.
func (c *Config) applyEnv() {
	if v := os.Getenv("TENDER_AI_API_KEY"); v != "" {
		c.AI.APIKey = v
	} else if c.AI.APIKey == "" {
		switch c.AI.Provider {
		case ProviderOpenAI:
			c.AI.APIKey = os.Getenv("OPENAI_API_KEY")
		case ProviderGemini:
			c.AI.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
	if v := os.Getenv("TENDER_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("TENDER_ARCHIVE_ACCESS_KEY"); v != "" {
		c.Archive.AccessKey = v
	}
	if v := os.Getenv("TENDER_ARCHIVE_SECRET_KEY"); v != "" {
		c.Archive.SecretKey = v
	}
}

// Validate checks the settings the service cannot start without
func (c *Config) Validate() error {
	switch c.AI.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unknown ai provider %q", c.AI.Provider)
	}
	if c.AI.APIKey == "" {
		return fmt.Errorf("ai api key is not set for provider %s", c.AI.Provider)
	}
	if c.AI.Concurrency < 1 {
		return fmt.Errorf("ai concurrency must be at least 1, got %d", c.AI.Concurrency)
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return errors.New("auth is enabled but jwt_secret is empty")
	}
	if c.Archive.Enabled && (c.Archive.Endpoint == "" || c.Archive.Bucket == "") {
		return errors.New("archive is enabled but endpoint or bucket is empty")
	}
	return nil
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}

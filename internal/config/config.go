// Package config loads application settings from viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Veraticus/civic-flow/internal/common"
	"github.com/Veraticus/civic-flow/internal/download"
	"github.com/Veraticus/civic-flow/internal/llm"
	"github.com/Veraticus/civic-flow/internal/pipeline"
	"github.com/Veraticus/civic-flow/internal/service"
	"github.com/spf13/viper"
)

// Settings is the resolved application configuration.
type Settings struct {
	Database DatabaseSettings
	Download DownloadSettings
	Notify   NotifySettings
	LLM      LLMSettings
	Logging  LoggingSettings
	Latin1   []string // Datasets decoded as ISO-8859-1
	Years    []int
	Workers  int
}

// DatabaseSettings locates the SQLite database and its snapshots.
type DatabaseSettings struct {
	Path         string
	SnapshotDir  string
	SnapshotKeep int
}

// DownloadSettings configures open-data downloads.
type DownloadSettings struct {
	Dir               string
	BaseURL           string
	QuotaURL          string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxRetries        int
}

// LLMSettings configures the optional enrichment pass.
type LLMSettings struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	RetryDelay  time.Duration
	CacheTTL    time.Duration
	Timeout     time.Duration
	Temperature float64
	Enabled     bool
	MaxRetries  int
	RateLimit   int
	MaxTokens   int
	Limit       int
	Workers     int
}

// NotifySettings configures the run webhook.
type NotifySettings struct {
	WebhookURL string
	Timeout    time.Duration
}

// LoggingSettings configures slog.
type LoggingSettings struct {
	Level  string
	Format string
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "$HOME/.local/share/civic/civic.db")
	v.SetDefault("database.snapshot_dir", "")
	v.SetDefault("database.snapshot_keep", 5)

	v.SetDefault("download.dir", "$HOME/.cache/civic")
	v.SetDefault("download.base_url", download.DefaultBaseURL)
	v.SetDefault("download.quota_url", download.DefaultQuotaURL)
	v.SetDefault("download.user_agent", "civic-flow/1.0")
	v.SetDefault("download.timeout", 5*time.Minute)
	v.SetDefault("download.requests_per_second", 2.0)
	v.SetDefault("download.max_retries", 3)

	v.SetDefault("classify.workers", 4)
	v.SetDefault("extract.latin1", []string{})

	v.SetDefault("llm.enabled", false)
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 300)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", time.Second)
	v.SetDefault("llm.cache_ttl", 24*time.Hour)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.rate_limit", 50)
	v.SetDefault("llm.limit", 200)
	v.SetDefault("llm.workers", 4)

	v.SetDefault("notify.timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Load reads Settings from v. Missing keys fall back to SetDefaults; paths
// have ~ and $VAR expanded. When no years are configured the current year
// is used.
func Load(v *viper.Viper) (*Settings, error) {
	SetDefaults(v)

	s := &Settings{
		Database: DatabaseSettings{
			Path:         ExpandPath(v.GetString("database.path")),
			SnapshotDir:  ExpandPath(v.GetString("database.snapshot_dir")),
			SnapshotKeep: v.GetInt("database.snapshot_keep"),
		},
		Download: DownloadSettings{
			Dir:               ExpandPath(v.GetString("download.dir")),
			BaseURL:           v.GetString("download.base_url"),
			QuotaURL:          v.GetString("download.quota_url"),
			UserAgent:         v.GetString("download.user_agent"),
			Timeout:           v.GetDuration("download.timeout"),
			RequestsPerSecond: v.GetFloat64("download.requests_per_second"),
			MaxRetries:        v.GetInt("download.max_retries"),
		},
		LLM: LLMSettings{
			Enabled:     v.GetBool("llm.enabled"),
			Provider:    strings.ToLower(v.GetString("llm.provider")),
			APIKey:      v.GetString("llm.api_key"),
			Model:       v.GetString("llm.model"),
			BaseURL:     v.GetString("llm.base_url"),
			Temperature: v.GetFloat64("llm.temperature"),
			MaxTokens:   v.GetInt("llm.max_tokens"),
			MaxRetries:  v.GetInt("llm.max_retries"),
			RetryDelay:  v.GetDuration("llm.retry_delay"),
			CacheTTL:    v.GetDuration("llm.cache_ttl"),
			Timeout:     v.GetDuration("llm.timeout"),
			RateLimit:   v.GetInt("llm.rate_limit"),
			Limit:       v.GetInt("llm.limit"),
			Workers:     v.GetInt("llm.workers"),
		},
		Notify: NotifySettings{
			WebhookURL: v.GetString("notify.webhook_url"),
			Timeout:    v.GetDuration("notify.timeout"),
		},
		Logging: LoggingSettings{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Latin1:  v.GetStringSlice("extract.latin1"),
		Years:   v.GetIntSlice("years"),
		Workers: v.GetInt("classify.workers"),
	}

	if len(s.Years) == 0 {
		s.Years = []int{time.Now().Year()}
	}

	// Fall back to the provider's conventional environment variable.
	if s.LLM.APIKey == "" {
		switch s.LLM.Provider {
		case "anthropic":
			s.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			s.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate reports the first invalid setting.
func (s *Settings) Validate() error {
	if s.Database.Path == "" {
		return fmt.Errorf("%w: database.path", common.ErrMissingConfig)
	}
	if s.Download.Dir == "" {
		return fmt.Errorf("%w: download.dir", common.ErrMissingConfig)
	}
	if s.Workers <= 0 {
		return fmt.Errorf("%w: classify.workers must be positive", common.ErrInvalidConfig)
	}
	for _, y := range s.Years {
		if y < 1934 || y > time.Now().Year()+1 {
			return fmt.Errorf("%w: year %d out of range", common.ErrInvalidConfig, y)
		}
	}
	for _, d := range s.Latin1 {
		switch d {
		case download.DatasetDeputies, download.DatasetPropositions, download.DatasetVotes, download.DatasetExpenses:
		default:
			return fmt.Errorf("%w: extract.latin1: unknown dataset %q", common.ErrInvalidConfig, d)
		}
	}
	if s.LLM.Enabled {
		if s.LLM.Provider != "anthropic" && s.LLM.Provider != "openai" {
			return fmt.Errorf("%w: unsupported llm provider %q", common.ErrInvalidConfig, s.LLM.Provider)
		}
		if s.LLM.APIKey == "" {
			return fmt.Errorf("%w: llm api key for %s", common.ErrMissingConfig, s.LLM.Provider)
		}
	}
	return nil
}

// DownloaderConfig returns the download.Config for these settings.
func (s *Settings) DownloaderConfig() download.Config {
	return download.Config{
		Dir:               s.Download.Dir,
		UserAgent:         s.Download.UserAgent,
		Timeout:           s.Download.Timeout,
		RequestsPerSecond: s.Download.RequestsPerSecond,
		Retry: service.RetryOptions{
			MaxAttempts:  s.Download.MaxRetries,
			InitialDelay: 2 * time.Second,
			MaxDelay:     time.Minute,
			Multiplier:   2.0,
		},
	}
}

// LLMConfig returns the llm.Config for these settings.
func (s *Settings) LLMConfig() llm.Config {
	return llm.Config{
		Provider:    s.LLM.Provider,
		APIKey:      s.LLM.APIKey,
		Model:       s.LLM.Model,
		BaseURL:     s.LLM.BaseURL,
		MaxRetries:  s.LLM.MaxRetries,
		RetryDelay:  s.LLM.RetryDelay,
		CacheTTL:    s.LLM.CacheTTL,
		Timeout:     s.LLM.Timeout,
		RateLimit:   s.LLM.RateLimit,
		Temperature: s.LLM.Temperature,
		MaxTokens:   s.LLM.MaxTokens,
	}
}

// PipelineSettings returns the pipeline.Settings for these settings.
func (s *Settings) PipelineSettings() pipeline.Settings {
	ps := pipeline.DefaultSettings()
	ps.Catalog = download.Catalog{BaseURL: s.Download.BaseURL, QuotaURL: s.Download.QuotaURL}
	ps.SnapshotDir = s.Database.SnapshotDir
	ps.SnapshotKeep = s.Database.SnapshotKeep
	ps.Latin1Datasets = s.Latin1
	ps.Workers = s.Workers
	ps.EnrichWorkers = s.LLM.Workers
	ps.EnrichLimit = s.LLM.Limit
	return ps
}

// NotifyRetry is the retry policy for webhook deliveries.
func (s *Settings) NotifyRetry() service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// ExpandPath expands a leading ~ and $VAR references in path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}

	return os.ExpandEnv(path)
}

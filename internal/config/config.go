package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"snapline/internal/domain"
)

// Config models snapline.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	LLM struct {
		Model          string `yaml:"model"`
		Endpoint       string `yaml:"endpoint"`
		MaxTokens      int    `yaml:"max_tokens"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		MaxRetries     int    `yaml:"max_retries"`
		// APIKey is only ever populated from the environment.
		APIKey string `yaml:"-"`
	} `yaml:"llm"`
	Generation struct {
		RequestsPerMinute int `yaml:"requests_per_minute"`
		Burst             int `yaml:"burst"`
	} `yaml:"generation"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Reminders ReminderConfig  `yaml:"reminders"`
	Webhooks  []WebhookConfig `yaml:"webhooks"`
}

type ScheduleConfig struct {
	BlackoutDates []string          `yaml:"blackout_dates"`
	Timezone      string            `yaml:"timezone"`
	PostingTimes  map[string]string `yaml:"posting_times"`
	ShootStart    string            `yaml:"shoot_start"`
	Workers       int               `yaml:"workers"`
}

type ReminderConfig struct {
	DaysBefore []int  `yaml:"days_before"`
	Time       string `yaml:"time"`
	Posts      bool   `yaml:"posts"`
	Shoots     bool   `yaml:"shoots"`
	Release    bool   `yaml:"release"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Secret         string   `yaml:"secret"`
	Events         []string `yaml:"events"`
	Enabled        *bool    `yaml:"enabled"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Settings converts the reminder section to the domain settings record.
func (r ReminderConfig) Settings() domain.ReminderSettings {
	return domain.ReminderSettings{
		DaysBefore: append([]int(nil), r.DaysBefore...),
		Time:       r.Time,
		Posts:      r.Posts,
		Shoots:     r.Shoots,
		Release:    r.Release,
	}
}

// Location returns the configured schedule timezone, UTC when unset.
func (s ScheduleConfig) Location() (*time.Location, error) {
	if strings.TrimSpace(s.Timezone) == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Timezone)
}

// PostingTime returns the configured HH:MM for a platform, if any.
func (s ScheduleConfig) PostingTime(p domain.Platform) (string, bool) {
	t, ok := s.PostingTimes[string(p)]
	return t, ok && t != ""
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with snap config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("config.llm.model is required")
	}
	if c.LLM.MaxTokens < 0 || c.LLM.TimeoutSeconds < 0 || c.LLM.MaxRetries < 0 {
		return fmt.Errorf("config.llm limits must not be negative")
	}
	if c.Generation.RequestsPerMinute < 0 || c.Generation.Burst < 0 {
		return fmt.Errorf("config.generation limits must not be negative")
	}
	for _, d := range c.Schedule.BlackoutDates {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return fmt.Errorf("config.schedule.blackout_dates has invalid date %q", d)
		}
	}
	if _, err := c.Schedule.Location(); err != nil {
		return fmt.Errorf("config.schedule.timezone: %w", err)
	}
	for platform, hhmm := range c.Schedule.PostingTimes {
		if !validClock(hhmm) {
			return fmt.Errorf("posting time for %s must be HH:MM, got %q", platform, hhmm)
		}
	}
	if c.Schedule.ShootStart != "" && !validClock(c.Schedule.ShootStart) {
		return fmt.Errorf("config.schedule.shoot_start must be HH:MM")
	}
	if c.Schedule.Workers < 0 {
		return fmt.Errorf("config.schedule.workers must not be negative")
	}
	for _, n := range c.Reminders.DaysBefore {
		if n < 0 {
			return fmt.Errorf("config.reminders.days_before must not contain negative values")
		}
	}
	if c.Reminders.Time != "" && !validClock(c.Reminders.Time) {
		return fmt.Errorf("config.reminders.time must be HH:MM")
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("webhook %d has empty url", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("webhook %d has negative timeout", i)
		}
	}
	return nil
}

func validClock(s string) bool {
	_, err := time.Parse("15:04", s)
	return err == nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "snapline.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Unset sections
// keep their defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /v0

llm:
  model: claude-sonnet-4-20250514
  endpoint: https://api.anthropic.com
  max_tokens: 4000
  timeout_seconds: 60
  max_retries: 1

generation:
  requests_per_minute: 5
  burst: 2

schedule:
  blackout_dates: []
  timezone: UTC
  posting_times:
    instagram: "14:00"
    tiktok: "18:00"
    twitter: "12:00"
  shoot_start: "10:00"
  workers: 4

reminders:
  days_before: [7, 3, 1]
  time: "09:00"
  posts: true
  shoots: true
  release: true

webhooks: []
`

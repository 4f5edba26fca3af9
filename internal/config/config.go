package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Engine   EngineConfig
	Ollama   OllamaConfig
	Proxy    ProxyConfig
	Telegram TelegramConfig
	Events   EventsConfig
	Admin    AdminConfig
	Schedule ScheduleConfig
	Routing  RoutingConfig
	Outbox   OutboxConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host string
	Port int
	// PulseSecret is the shared secret expected in the X-Pulse-Secret header.
	PulseSecret string
	// APIToken protects the tenant management routes. Empty disables them.
	APIToken string
}

type StorageConfig struct {
	Driver      string
	DataDir     string
	DatabaseURL string
}

type EngineConfig struct {
	Backend string
	Timeout time.Duration
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type ProxyConfig struct {
	OpenRouterAPIKey string
	Model            string
}

type TelegramConfig struct {
	BotToken string
	BaseURL  string
}

type EventsConfig struct {
	NATSURL string
}

type AdminConfig struct {
	ChatID string
}

type ScheduleConfig struct {
	TrialDays  int
	BatchSize  int
	BatchPause time.Duration
	RunTimeout time.Duration
	Interval   time.Duration

	Tier1Weekday string
	Tier1Weekend string
	Tier2Weekday string
	Tier2Weekend string
	Tier3Weekday string
	Tier3Weekend string
}

type RoutingConfig struct {
	WorkTags        string
	PersonalTags    string
	BusinessStart   int
	BusinessEnd     int
	SummaryMaxChars int
}

type OutboxConfig struct {
	Poll time.Duration
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Storage: StorageConfig{
			Driver:  "sqlite",
			DataDir: defaultDataDir(),
		},
		Engine: EngineConfig{
			Backend: "ollama",
			Timeout: 30 * time.Second,
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "llama3.1",
		},
		Proxy: ProxyConfig{
			Model: "google/gemini-2.5-flash",
		},
		Telegram: TelegramConfig{
			BaseURL: "https://api.telegram.org",
		},
		Schedule: ScheduleConfig{
			TrialDays:    14,
			BatchSize:    10,
			BatchPause:   time.Second,
			RunTimeout:   5 * time.Minute,
			Tier1Weekday: "6,10,14,18",
			Tier1Weekend: "8,20",
			Tier2Weekday: "8,12,16,20",
			Tier2Weekend: "10,22",
			Tier3Weekday: "10,14,18,22",
			Tier3Weekend: "12,0",
		},
		Routing: RoutingConfig{
			WorkTags:        "WORK,INBOX",
			PersonalTags:    "HOME,IDEAS,INBOX",
			BusinessStart:   9,
			BusinessEnd:     18,
			SummaryMaxChars: 3000,
		},
		Outbox: OutboxConfig{
			Poll: 2 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the TOML file at
// $XDG_CONFIG_HOME/pulse/config.toml and applies PULSE_* environment
// overrides on top. Secrets are only ever read from the environment.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadFromPath(path string) (Config, error) {
	return loadWith(newFileBackend(path))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Schedule.BatchSize < 1 {
		return fmt.Errorf("invalid config: schedule.batch_size must be at least 1, got %d", c.Schedule.BatchSize)
	}
	if c.Schedule.TrialDays < 0 {
		return fmt.Errorf("invalid config: schedule.trial_days must not be negative, got %d", c.Schedule.TrialDays)
	}
	for tier := 1; tier <= 3; tier++ {
		if _, _, err := c.Schedule.Hours(tier); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	if c.Routing.BusinessStart < 0 || c.Routing.BusinessEnd > 24 || c.Routing.BusinessStart >= c.Routing.BusinessEnd {
		return fmt.Errorf("invalid config: business hours %d-%d", c.Routing.BusinessStart, c.Routing.BusinessEnd)
	}
	switch c.Storage.Driver {
	case "sqlite":
	case "postgres":
		if c.Storage.DatabaseURL == "" {
			return fmt.Errorf("missing required config: storage.driver is postgres but PULSE_DATABASE_URL is not set")
		}
	default:
		return fmt.Errorf("invalid config: unknown storage.driver %q", c.Storage.Driver)
	}
	switch c.Engine.Backend {
	case "ollama", "openrouter":
	default:
		return fmt.Errorf("invalid config: unknown engine.backend %q", c.Engine.Backend)
	}
	return nil
}

// Hours returns the weekday and weekend delivery hours configured for a
// tier (1 = early, 2 = standard, 3 = late).
func (s ScheduleConfig) Hours(tier int) (weekday, weekend []int, err error) {
	var wd, we string
	switch tier {
	case 1:
		wd, we = s.Tier1Weekday, s.Tier1Weekend
	case 2:
		wd, we = s.Tier2Weekday, s.Tier2Weekend
	case 3:
		wd, we = s.Tier3Weekday, s.Tier3Weekend
	default:
		return nil, nil, fmt.Errorf("unknown tier %d", tier)
	}
	if weekday, err = ParseHourList(wd); err != nil {
		return nil, nil, fmt.Errorf("schedule.tier%d_weekday: %w", tier, err)
	}
	if weekend, err = ParseHourList(we); err != nil {
		return nil, nil, fmt.Errorf("schedule.tier%d_weekend: %w", tier, err)
	}
	return weekday, weekend, nil
}

// ParseHourList parses a comma-separated list of hours in [0, 23].
func ParseHourList(s string) ([]int, error) {
	var hours []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		h, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("hour %q is not an integer", part)
		}
		if h < 0 || h > 23 {
			return nil, fmt.Errorf("hour %d out of range 0-23", h)
		}
		hours = append(hours, h)
	}
	return hours, nil
}

// SplitTags parses a comma-separated tag list, upper-casing each entry.
func SplitTags(s string) []string {
	var tags []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			tags = append(tags, part)
		}
	}
	return tags
}

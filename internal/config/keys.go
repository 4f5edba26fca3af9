package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "PULSE_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "PULSE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.pulse_secret", typ: kString, env: "PULSE_SECRET",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Server.PulseSecret = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.PulseSecret },
	},
	{
		key: "server.api_token", typ: kString, env: "PULSE_API_TOKEN",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "storage.driver", typ: kString, env: "PULSE_STORAGE_DRIVER",
		apply:   func(cfg *Config, v any) { cfg.Storage.Driver = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Driver },
	},
	{
		key: "storage.data_dir", typ: kString, env: "PULSE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.database_url", typ: kString, env: "PULSE_DATABASE_URL",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Storage.DatabaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DatabaseURL },
	},
	{
		key: "engine.backend", typ: kString, env: "PULSE_ENGINE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Engine.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Engine.Backend },
	},
	{
		key: "engine.timeout", typ: kDuration, env: "PULSE_ENGINE_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Engine.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Engine.Timeout },
	},
	{
		key: "ollama.base_url", typ: kString, env: "PULSE_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.model", typ: kString, env: "PULSE_OLLAMA_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.Model },
	},
	{
		key: "proxy.openrouter_api_key", typ: kString, env: "PULSE_OPENROUTER_API_KEY",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Proxy.OpenRouterAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Proxy.OpenRouterAPIKey },
	},
	{
		key: "proxy.model", typ: kString, env: "PULSE_PROXY_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Proxy.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Proxy.Model },
	},
	{
		key: "telegram.bot_token", typ: kString, env: "PULSE_TELEGRAM_BOT_TOKEN",
		secret: true,
		apply:   func(cfg *Config, v any) { cfg.Telegram.BotToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Telegram.BotToken },
	},
	{
		key: "telegram.base_url", typ: kString, env: "PULSE_TELEGRAM_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Telegram.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Telegram.BaseURL },
	},
	{
		key: "events.nats_url", typ: kString, env: "PULSE_NATS_URL",
		apply:   func(cfg *Config, v any) { cfg.Events.NATSURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Events.NATSURL },
	},
	{
		key: "admin.chat_id", typ: kString, env: "PULSE_ADMIN_CHAT_ID",
		apply:   func(cfg *Config, v any) { cfg.Admin.ChatID = v.(string) },
		extract: func(cfg Config) any { return cfg.Admin.ChatID },
	},
	{
		key: "schedule.trial_days", typ: kInt, env: "PULSE_SCHEDULE_TRIAL_DAYS",
		apply:   func(cfg *Config, v any) { cfg.Schedule.TrialDays = v.(int) },
		extract: func(cfg Config) any { return cfg.Schedule.TrialDays },
	},
	{
		key: "schedule.batch_size", typ: kInt, env: "PULSE_SCHEDULE_BATCH_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Schedule.BatchSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Schedule.BatchSize },
	},
	{
		key: "schedule.batch_pause", typ: kDuration, env: "PULSE_SCHEDULE_BATCH_PAUSE",
		apply:   func(cfg *Config, v any) { cfg.Schedule.BatchPause = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Schedule.BatchPause },
	},
	{
		key: "schedule.run_timeout", typ: kDuration, env: "PULSE_SCHEDULE_RUN_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Schedule.RunTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Schedule.RunTimeout },
	},
	{
		key: "schedule.interval", typ: kDuration, env: "PULSE_SCHEDULE_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Schedule.Interval = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Schedule.Interval },
	},
	{
		key: "schedule.tier1_weekday", typ: kString, env: "PULSE_SCHEDULE_TIER1_WEEKDAY",
		apply:   func(cfg *Config, v any) { cfg.Schedule.Tier1Weekday = v.(string) },
		extract: func(cfg Config) any { return cfg.Schedule.Tier1Weekday },
	},
	{
		key: "schedule.tier1_weekend", typ: kString, env: "PULSE_SCHEDULE_TIER1_WEEKEND",
		apply:   func(cfg *Config, v any) { cfg.Schedule.Tier1Weekend = v.(string) },
		extract: func(cfg Config) any { return cfg.Schedule.Tier1Weekend },
	},
	{
		key: "schedule.tier2_weekday", typ: kString, env: "PULSE_SCHEDULE_TIER2_WEEKDAY",
		apply:   func(cfg *Config, v any) { cfg.Schedule.Tier2Weekday = v.(string) },
		extract: func(cfg Config) any { return cfg.Schedule.Tier2Weekday },
	},
	{
		key: "schedule.tier2_weekend", typ: kString, env: "PULSE_SCHEDULE_TIER2_WEEKEND",
		apply:   func(cfg *Config, v any) { cfg.Schedule.Tier2Weekend = v.(string) },
		extract: func(cfg Config) any { return cfg.Schedule.Tier2Weekend },
	},
	{
		key: "schedule.tier3_weekday", typ: kString, env: "PULSE_SCHEDULE_TIER3_WEEKDAY",
		apply:   func(cfg *Config, v any) { cfg.Schedule.Tier3Weekday = v.(string) },
		extract: func(cfg Config) any { return cfg.Schedule.Tier3Weekday },
	},
	{
		key: "schedule.tier3_weekend", typ: kString, env: "PULSE_SCHEDULE_TIER3_WEEKEND",
		apply:   func(cfg *Config, v any) { cfg.Schedule.Tier3Weekend = v.(string) },
		extract: func(cfg Config) any { return cfg.Schedule.Tier3Weekend },
	},
	{
		key: "routing.work_tags", typ: kString, env: "PULSE_ROUTING_WORK_TAGS",
		apply:   func(cfg *Config, v any) { cfg.Routing.WorkTags = v.(string) },
		extract: func(cfg Config) any { return cfg.Routing.WorkTags },
	},
	{
		key: "routing.personal_tags", typ: kString, env: "PULSE_ROUTING_PERSONAL_TAGS",
		apply:   func(cfg *Config, v any) { cfg.Routing.PersonalTags = v.(string) },
		extract: func(cfg Config) any { return cfg.Routing.PersonalTags },
	},
	{
		key: "routing.business_start", typ: kInt, env: "PULSE_ROUTING_BUSINESS_START",
		apply:   func(cfg *Config, v any) { cfg.Routing.BusinessStart = v.(int) },
		extract: func(cfg Config) any { return cfg.Routing.BusinessStart },
	},
	{
		key: "routing.business_end", typ: kInt, env: "PULSE_ROUTING_BUSINESS_END",
		apply:   func(cfg *Config, v any) { cfg.Routing.BusinessEnd = v.(int) },
		extract: func(cfg Config) any { return cfg.Routing.BusinessEnd },
	},
	{
		key: "routing.summary_max_chars", typ: kInt, env: "PULSE_ROUTING_SUMMARY_MAX_CHARS",
		apply:   func(cfg *Config, v any) { cfg.Routing.SummaryMaxChars = v.(int) },
		extract: func(cfg Config) any { return cfg.Routing.SummaryMaxChars },
	},
	{
		key: "outbox.poll", typ: kDuration, env: "PULSE_OUTBOX_POLL",
		apply:   func(cfg *Config, v any) { cfg.Outbox.Poll = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Outbox.Poll },
	},
	{
		key: "log.level", typ: kString, env: "PULSE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

// parseValue converts a raw string into the Go type expected by typ.
func parseValue(typ keyType, raw string) (any, error) {
	switch typ {
	case kString:
		return raw, nil
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	case kDuration:
		return time.ParseDuration(raw)
	}
	return nil, fmt.Errorf("unsupported key type %d", typ)
}

func (t keyType) String() string {
	switch t {
	case kInt:
		return "integer"
	case kBool:
		return "bool"
	case kFloat:
		return "float"
	case kDuration:
		return "duration"
	}
	return "string"
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		if s.typ == kInt {
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
			continue
		}
		raw, ok, err := b.GetString(s.key)
		if err != nil {
			return fmt.Errorf("reading %s: %w", s.key, err)
		}
		if !ok || (raw == "" && s.typ != kString) {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse %s from config key %s=%q: %v. Using default value.\n", s.typ, s.key, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		v, err := parseValue(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse %s from env var %s=%q: %v. Using default value.\n", s.typ, s.env, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}

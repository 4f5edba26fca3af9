package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestDefaults verifies all default values are applied when loading an empty config file.
func TestDefaults(t *testing.T) {
	path := writeTempConfig(t, `# empty config`)

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("Storage.Driver = %q, want sqlite", cfg.Storage.Driver)
	}
	if cfg.Engine.Timeout != 30*time.Second {
		t.Errorf("Engine.Timeout = %v, want 30s", cfg.Engine.Timeout)
	}
	if cfg.Schedule.TrialDays != 14 {
		t.Errorf("Schedule.TrialDays = %d, want 14", cfg.Schedule.TrialDays)
	}
	if cfg.Schedule.BatchSize != 10 {
		t.Errorf("Schedule.BatchSize = %d, want 10", cfg.Schedule.BatchSize)
	}
	if cfg.Schedule.BatchPause != time.Second {
		t.Errorf("Schedule.BatchPause = %v, want 1s", cfg.Schedule.BatchPause)
	}
	if cfg.Routing.SummaryMaxChars != 3000 {
		t.Errorf("Routing.SummaryMaxChars = %d, want 3000", cfg.Routing.SummaryMaxChars)
	}
	if cfg.Telegram.BaseURL != "https://api.telegram.org" {
		t.Errorf("Telegram.BaseURL = %q", cfg.Telegram.BaseURL)
	}
}

// TestEnvOverride verifies that environment variables override config file values.
func TestEnvOverride(t *testing.T) {
	path := writeTempConfig(t, `[ollama]
model = "file-model"
`)

	t.Setenv("PULSE_OLLAMA_MODEL", "env-model")
	t.Setenv("PULSE_SECRET", "s3cret")
	t.Setenv("PULSE_SCHEDULE_BATCH_PAUSE", "250ms")

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Ollama.Model != "env-model" {
		t.Errorf("Ollama.Model = %q, want %q", cfg.Ollama.Model, "env-model")
	}
	if cfg.Server.PulseSecret != "s3cret" {
		t.Errorf("Server.PulseSecret = %q, want %q", cfg.Server.PulseSecret, "s3cret")
	}
	if cfg.Schedule.BatchPause != 250*time.Millisecond {
		t.Errorf("Schedule.BatchPause = %v, want 250ms", cfg.Schedule.BatchPause)
	}
}

func TestEnvOverride_InvalidKeepsDefault(t *testing.T) {
	path := writeTempConfig(t, ``)
	t.Setenv("PULSE_SCHEDULE_BATCH_SIZE", "many")

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Schedule.BatchSize != 10 {
		t.Errorf("Schedule.BatchSize = %d, want default 10", cfg.Schedule.BatchSize)
	}
}

// TestTOMLParsing verifies that fields are correctly read from a TOML file.
func TestTOMLParsing(t *testing.T) {
	content := `
[server]
host = "0.0.0.0"
port = 5000

[engine]
backend = "openrouter"
timeout = "45s"

[schedule]
batch_size = 4
tier2_weekday = "7, 13"

[routing]
work_tags = "WORK,CLIENT"
`
	path := writeTempConfig(t, content)

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q", cfg.Server.Host)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Engine.Backend != "openrouter" {
		t.Errorf("Engine.Backend = %q", cfg.Engine.Backend)
	}
	if cfg.Engine.Timeout != 45*time.Second {
		t.Errorf("Engine.Timeout = %v", cfg.Engine.Timeout)
	}
	if cfg.Schedule.BatchSize != 4 {
		t.Errorf("Schedule.BatchSize = %d, want 4", cfg.Schedule.BatchSize)
	}
	wd, we, err := cfg.Schedule.Hours(2)
	if err != nil {
		t.Fatalf("Hours: %v", err)
	}
	if len(wd) != 2 || wd[0] != 7 || wd[1] != 13 {
		t.Errorf("tier 2 weekday = %v, want [7 13]", wd)
	}
	if len(we) != 2 || we[0] != 10 || we[1] != 22 {
		t.Errorf("tier 2 weekend = %v, want default [10 22]", we)
	}
	if got := SplitTags(cfg.Routing.WorkTags); len(got) != 2 || got[1] != "CLIENT" {
		t.Errorf("work tags = %v", got)
	}
}

func TestSecretsIgnoredInFile(t *testing.T) {
	path := writeTempConfig(t, `[server]
pulse_secret = "from-file"
`)
	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.PulseSecret != "" {
		t.Errorf("PulseSecret = %q, want empty (secrets come from env only)", cfg.Server.PulseSecret)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		env     map[string]string
		want    string
	}{
		{"zero batch", "[schedule]\nbatch_size = 0\n", nil, "batch_size"},
		{"bad hour", "[schedule]\ntier1_weekday = \"6,25\"\n", nil, "tier1_weekday"},
		{"postgres without url", "[storage]\ndriver = \"postgres\"\n", nil, "PULSE_DATABASE_URL"},
		{"unknown driver", "[storage]\ndriver = \"mysql\"\n", nil, "storage.driver"},
		{"unknown engine", "[engine]\nbackend = \"mlx\"\n", nil, "engine.backend"},
		{"inverted business hours", "[routing]\nbusiness_start = 18\nbusiness_end = 9\n", nil, "business hours"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := loadFromPath(writeTempConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestPostgresWithURL(t *testing.T) {
	t.Setenv("PULSE_DATABASE_URL", "postgres://localhost/pulse")
	cfg, err := loadFromPath(writeTempConfig(t, "[storage]\ndriver = \"postgres\"\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Storage.DatabaseURL != "postgres://localhost/pulse" {
		t.Errorf("DatabaseURL = %q", cfg.Storage.DatabaseURL)
	}
}

func TestSetKey_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulse", "config.toml")
	b := newFileBackend(path)

	if err := setKeyWith(b, "schedule.batch_size", "3"); err != nil {
		t.Fatalf("set batch_size: %v", err)
	}
	if err := setKeyWith(b, "engine.timeout", "10s"); err != nil {
		t.Fatalf("set timeout: %v", err)
	}

	cfg, err := loadFromPath(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if cfg.Schedule.BatchSize != 3 {
		t.Errorf("BatchSize = %d, want 3", cfg.Schedule.BatchSize)
	}
	if cfg.Engine.Timeout != 10*time.Second {
		t.Errorf("Engine.Timeout = %v, want 10s", cfg.Engine.Timeout)
	}
}

func TestSetKey_Rejects(t *testing.T) {
	b := newFileBackend(filepath.Join(t.TempDir(), "config.toml"))

	if err := setKeyWith(b, "server.pulse_secret", "x"); err == nil || !strings.Contains(err.Error(), "PULSE_SECRET") {
		t.Errorf("secret key: err = %v, want hint about PULSE_SECRET", err)
	}
	if err := setKeyWith(b, "nope.key", "x"); err == nil {
		t.Error("unknown key: expected error")
	}
	if err := setKeyWith(b, "server.port", "eighty"); err == nil {
		t.Error("bad integer: expected error")
	}
	if err := setKeyWith(b, "engine.timeout", "soon"); err == nil {
		t.Error("bad duration: expected error")
	}
}

func TestValidKeysExcludeSecrets(t *testing.T) {
	for _, k := range ValidKeys() {
		for _, secret := range []string{"server.pulse_secret", "server.api_token", "telegram.bot_token", "proxy.openrouter_api_key", "storage.database_url"} {
			if k == secret {
				t.Errorf("ValidKeys contains secret %q", k)
			}
		}
	}
	for _, info := range ShowAll(defaults()) {
		if strings.Contains(info.Key, "token") || strings.Contains(info.Key, "secret") {
			t.Errorf("ShowAll exposes %q", info.Key)
		}
	}
}

func TestParseHourList(t *testing.T) {
	got, err := ParseHourList(" 12, 0 ,")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != 12 || got[1] != 0 {
		t.Errorf("got %v, want [12 0]", got)
	}
	if _, err := ParseHourList("noon"); err == nil {
		t.Error("expected error for non-integer hour")
	}
}

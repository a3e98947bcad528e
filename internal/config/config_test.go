package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Endpoint != DefaultEndpoint {
		t.Errorf("expected default endpoint %s, got %s", DefaultEndpoint, cfg.Endpoint)
	}
	if !cfg.AdminMode {
		t.Error("expected admin mode on by default")
	}
	if cfg.BatchSize != 10 {
		t.Errorf("expected default batch size 10, got %d", cfg.BatchSize)
	}
	if cfg.LaunchDelay != time.Second {
		t.Errorf("expected default launch delay 1s, got %v", cfg.LaunchDelay)
	}
	if cfg.PaceDelay != 500*time.Millisecond {
		t.Errorf("expected default pace delay 500ms, got %v", cfg.PaceDelay)
	}
	if cfg.MaxDepth != 64 {
		t.Errorf("expected default max depth 64, got %d", cfg.MaxDepth)
	}
	if len(cfg.ObjectKinds) != 7 {
		t.Errorf("expected 7 default object kinds, got %v", cfg.ObjectKinds)
	}
	if cfg.Retry.Attempts != 3 {
		t.Errorf("expected default retry attempts 3, got %d", cfg.Retry.Attempts)
	}
}

func TestDefaultOutputDir(t *testing.T) {
	now := time.Date(2021, 5, 21, 9, 4, 7, 0, time.UTC)
	if got := DefaultOutputDir(now); got != "backupContent_2021_05_21_090407" {
		t.Errorf("DefaultOutputDir = %q", got)
	}
}

func TestLoadFromYAML(t *testing.T) {
	yamlContent := `
endpoint: https://api.eu.sumologic.com/api
access_id: abc
admin_mode: false
bucket: s3://backups?region=eu-west-1
batch_size: 4
launch_delay: 2s
pace_delay: 250ms
max_depth: 12
exhaustive: true
object_kinds: [roles, users]
name_filter: J
progress: true
retry:
  attempts: 10
  delay: 3s
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}

	if cfg.Endpoint != "https://api.eu.sumologic.com/api" {
		t.Errorf("unexpected endpoint %s", cfg.Endpoint)
	}
	if cfg.AccessID != "abc" {
		t.Errorf("expected access id abc, got %s", cfg.AccessID)
	}
	if cfg.AdminMode {
		t.Error("expected admin mode off")
	}
	if cfg.Bucket != "s3://backups?region=eu-west-1" {
		t.Errorf("unexpected bucket %s", cfg.Bucket)
	}
	if cfg.BatchSize != 4 {
		t.Errorf("expected batch size 4, got %d", cfg.BatchSize)
	}
	if cfg.LaunchDelay != 2*time.Second {
		t.Errorf("expected launch delay 2s, got %v", cfg.LaunchDelay)
	}
	if cfg.PaceDelay != 250*time.Millisecond {
		t.Errorf("expected pace delay 250ms, got %v", cfg.PaceDelay)
	}
	if cfg.PollInterval != time.Second {
		t.Errorf("expected poll interval to keep its default, got %v", cfg.PollInterval)
	}
	if cfg.MaxDepth != 12 {
		t.Errorf("expected max depth 12, got %d", cfg.MaxDepth)
	}
	if !cfg.Exhaustive || !cfg.Progress {
		t.Error("expected exhaustive and progress true")
	}
	if !reflect.DeepEqual(cfg.ObjectKinds, []string{"roles", "users"}) {
		t.Errorf("unexpected object kinds %v", cfg.ObjectKinds)
	}
	if cfg.NameFilter != "J" {
		t.Errorf("expected name filter J, got %q", cfg.NameFilter)
	}
	if cfg.Retry.Attempts != 10 {
		t.Errorf("expected retry attempts 10, got %d", cfg.Retry.Attempts)
	}
	if cfg.Retry.Delay != 3*time.Second {
		t.Errorf("expected retry delay 3s, got %v", cfg.Retry.Delay)
	}
}

func TestLoadFromYAMLBadDuration(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("pace_delay: soon\n"), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	_, err := LoadFromFile(configPath)
	if err == nil || !strings.Contains(err.Error(), "pace_delay") {
		t.Errorf("expected pace_delay error, got %v", err)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("SUMO_ACCESS_ID", "id")
	t.Setenv("SUMO_ACCESS_KEY", "key")
	t.Setenv("SUMO_ENDPOINT", "https://api.au.sumologic.com/api/v1")
	t.Setenv("CONTENTBACKUP_BATCH_SIZE", "5")
	t.Setenv("CONTENTBACKUP_LAUNCH_DELAY", "100ms")
	t.Setenv("CONTENTBACKUP_OBJECT_KINDS", "roles, users,")
	t.Setenv("CONTENTBACKUP_ADMIN_MODE", "false")
	t.Setenv("CONTENTBACKUP_RETRY_ATTEMPTS", "0")
	t.Setenv("CONTENTBACKUP_PROGRESS", "1")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}

	if cfg.AccessID != "id" || cfg.AccessKey != "key" {
		t.Errorf("credentials not loaded: %q %q", cfg.AccessID, cfg.AccessKey)
	}
	if cfg.Endpoint != "https://api.au.sumologic.com/api/v1" {
		t.Errorf("unexpected endpoint %s", cfg.Endpoint)
	}
	if cfg.BatchSize != 5 {
		t.Errorf("expected batch size 5, got %d", cfg.BatchSize)
	}
	if cfg.LaunchDelay != 100*time.Millisecond {
		t.Errorf("expected launch delay 100ms, got %v", cfg.LaunchDelay)
	}
	if !reflect.DeepEqual(cfg.ObjectKinds, []string{"roles", "users"}) {
		t.Errorf("unexpected object kinds %v", cfg.ObjectKinds)
	}
	if cfg.AdminMode {
		t.Error("expected admin mode off")
	}
	if cfg.Retry.Attempts != 0 {
		t.Errorf("expected retry attempts 0, got %d", cfg.Retry.Attempts)
	}
	if !cfg.Progress {
		t.Error("expected progress true")
	}
}

func TestLoadFromEnvInvalid(t *testing.T) {
	t.Setenv("CONTENTBACKUP_BATCH_SIZE", "many")

	cfg := Default()
	if err := cfg.LoadFromEnv(); err == nil {
		t.Error("expected error for invalid batch size")
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "SUMO_ACCESS_ID=from-file\nSUMO_ACCESS_KEY=secret\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("SUMO_ACCESS_ID", "from-env")
	t.Setenv("SUMO_ACCESS_KEY", "")
	os.Unsetenv("SUMO_ACCESS_KEY")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}

	if got := os.Getenv("SUMO_ACCESS_ID"); got != "from-env" {
		t.Errorf("existing variable overridden: %q", got)
	}
	if got := os.Getenv("SUMO_ACCESS_KEY"); got != "secret" {
		t.Errorf("expected key from file, got %q", got)
	}

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Error("expected error for missing explicit file")
	}
}

func validConfig() Config {
	cfg := Default()
	cfg.AccessID = "id"
	cfg.AccessKey = "key"
	cfg.Output = "backup"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{name: "valid config", modify: func(*Config) {}},
		{name: "bucket instead of output", modify: func(c *Config) { c.Output = ""; c.Bucket = "mem://" }},
		{name: "missing access id", modify: func(c *Config) { c.AccessID = "" }, wantErr: "AccessID"},
		{name: "missing access key", modify: func(c *Config) { c.AccessKey = "" }, wantErr: "AccessKey"},
		{name: "missing target", modify: func(c *Config) { c.Output = "" }, wantErr: "Output"},
		{name: "bad endpoint", modify: func(c *Config) { c.Endpoint = "api.sumologic.com" }, wantErr: "Endpoint"},
		{name: "invalid batch size", modify: func(c *Config) { c.BatchSize = -1 }, wantErr: "BatchSize"},
		{name: "zero batch size", modify: func(c *Config) { c.BatchSize = 0 }, wantErr: "BatchSize"},
		{name: "negative pace", modify: func(c *Config) { c.PaceDelay = -time.Second }, wantErr: "PaceDelay"},
		{name: "invalid max depth", modify: func(c *Config) { c.MaxDepth = 0 }, wantErr: "MaxDepth"},
		{name: "bad object kind", modify: func(c *Config) { c.ObjectKinds = []string{"roles", "../etc"} }, wantErr: "ObjectKinds"},
		{name: "negative retries", modify: func(c *Config) { c.Retry.Attempts = -2 }, wantErr: "Retry"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := Default()
	base.AccessID = "id"
	base.Output = "backup"

	override := Config{
		BatchSize: 3,
		Bucket:    "mem://",
	}

	merged := base.Merge(override)

	if merged.AccessID != "id" {
		t.Errorf("expected AccessID preserved, got %s", merged.AccessID)
	}
	if merged.Output != "backup" {
		t.Errorf("expected Output preserved, got %s", merged.Output)
	}
	if merged.PaceDelay != 500*time.Millisecond {
		t.Errorf("expected PaceDelay preserved, got %v", merged.PaceDelay)
	}
	if merged.BatchSize != 3 {
		t.Errorf("expected BatchSize overridden to 3, got %d", merged.BatchSize)
	}
	if merged.Bucket != "mem://" {
		t.Errorf("expected Bucket overridden, got %s", merged.Bucket)
	}
}

func TestLoadYAMLFileNotFound(t *testing.T) {
	_, err := LoadFromFile("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadYAMLInvalid(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	_, err := LoadFromFile(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

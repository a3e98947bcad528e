package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultEndpoint is the API of the US1 deployment.
const DefaultEndpoint = "https://api.sumologic.com/api"

// Config defines configuration for the contentbackup CLI.
type Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessID  string `yaml:"access_id"`
	AccessKey string `yaml:"access_key"`
	AdminMode bool   `yaml:"admin_mode"`

	// Output is a local directory. Bucket, when set, is a bucket URL
	// (s3://, gs://, file://, mem://) and takes precedence.
	Output string `yaml:"output"`
	Bucket string `yaml:"bucket"`

	BatchSize    int           `yaml:"batch_size"`
	LaunchDelay  time.Duration `yaml:"launch_delay"`
	PaceDelay    time.Duration `yaml:"pace_delay"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxDepth     int           `yaml:"max_depth"`
	Exhaustive   bool          `yaml:"exhaustive"`

	ObjectKinds []string `yaml:"object_kinds"`
	NameFilter  string   `yaml:"name_filter"`
	Progress    bool     `yaml:"progress"`

	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig defines retry behavior for rate-limited requests.
type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Endpoint:     DefaultEndpoint,
		AdminMode:    true,
		BatchSize:    10,
		LaunchDelay:  time.Second,
		PaceDelay:    500 * time.Millisecond,
		PollInterval: time.Second,
		Timeout:      60 * time.Second,
		MaxDepth:     64,
		ObjectKinds: []string{
			"connections",
			"extractionRules",
			"partitions",
			"scheduledViews",
			"users",
			"roles",
			"ingestBudgets",
		},
		Retry: RetryConfig{
			Attempts: 3,
			Delay:    5 * time.Second,
		},
	}
}

// DefaultOutputDir returns the timestamped directory used when no output is
// configured.
func DefaultOutputDir(now time.Time) string {
	return "backupContent_" + now.Format("2006_01_02_150405")
}

// yamlConfig is used for YAML unmarshaling with string durations.
type yamlConfig struct {
	Endpoint     string          `yaml:"endpoint"`
	AccessID     string          `yaml:"access_id"`
	AccessKey    string          `yaml:"access_key"`
	AdminMode    *bool           `yaml:"admin_mode"`
	Output       string          `yaml:"output"`
	Bucket       string          `yaml:"bucket"`
	BatchSize    int             `yaml:"batch_size"`
	LaunchDelay  string          `yaml:"launch_delay"`
	PaceDelay    string          `yaml:"pace_delay"`
	PollInterval string          `yaml:"poll_interval"`
	Timeout      string          `yaml:"timeout"`
	MaxDepth     int             `yaml:"max_depth"`
	Exhaustive   bool            `yaml:"exhaustive"`
	ObjectKinds  []string        `yaml:"object_kinds"`
	NameFilter   string          `yaml:"name_filter"`
	Progress     bool            `yaml:"progress"`
	Retry        yamlRetryConfig `yaml:"retry"`
}

type yamlRetryConfig struct {
	Attempts int    `yaml:"attempts"`
	Delay    string `yaml:"delay"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.Endpoint != "" {
		cfg.Endpoint = yc.Endpoint
	}
	if yc.AccessID != "" {
		cfg.AccessID = yc.AccessID
	}
	if yc.AccessKey != "" {
		cfg.AccessKey = yc.AccessKey
	}
	if yc.AdminMode != nil {
		cfg.AdminMode = *yc.AdminMode
	}
	if yc.Output != "" {
		cfg.Output = yc.Output
	}
	if yc.Bucket != "" {
		cfg.Bucket = yc.Bucket
	}
	if yc.BatchSize != 0 {
		cfg.BatchSize = yc.BatchSize
	}
	if yc.MaxDepth != 0 {
		cfg.MaxDepth = yc.MaxDepth
	}
	if len(yc.ObjectKinds) > 0 {
		cfg.ObjectKinds = yc.ObjectKinds
	}
	cfg.NameFilter = yc.NameFilter
	cfg.Exhaustive = yc.Exhaustive
	cfg.Progress = yc.Progress
	if yc.Retry.Attempts != 0 {
		cfg.Retry.Attempts = yc.Retry.Attempts
	}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"launch_delay", yc.LaunchDelay, &cfg.LaunchDelay},
		{"pace_delay", yc.PaceDelay, &cfg.PaceDelay},
		{"poll_interval", yc.PollInterval, &cfg.PollInterval},
		{"timeout", yc.Timeout, &cfg.Timeout},
		{"retry.delay", yc.Retry.Delay, &cfg.Retry.Delay},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", d.name, err)
		}
		*d.dst = v
	}

	return cfg, nil
}

// LoadDotEnv loads variables from a .env file into the environment without
// overriding variables that are already set. With an empty path it reads
// ./.env if present.
func LoadDotEnv(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Credentials and endpoint use the SUMO_ variables; everything else uses the
// CONTENTBACKUP_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("SUMO_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv("SUMO_ACCESS_ID"); v != "" {
		c.AccessID = v
	}
	if v := os.Getenv("SUMO_ACCESS_KEY"); v != "" {
		c.AccessKey = v
	}
	if v := os.Getenv("CONTENTBACKUP_ADMIN_MODE"); v != "" {
		c.AdminMode = v == "true" || v == "1"
	}
	if v := os.Getenv("CONTENTBACKUP_OUTPUT"); v != "" {
		c.Output = v
	}
	if v := os.Getenv("CONTENTBACKUP_BUCKET"); v != "" {
		c.Bucket = v
	}
	if v := os.Getenv("CONTENTBACKUP_NAME_FILTER"); v != "" {
		c.NameFilter = v
	}
	if v := os.Getenv("CONTENTBACKUP_OBJECT_KINDS"); v != "" {
		c.ObjectKinds = splitList(v)
	}
	if v := os.Getenv("CONTENTBACKUP_EXHAUSTIVE"); v != "" {
		c.Exhaustive = v == "true" || v == "1"
	}
	if v := os.Getenv("CONTENTBACKUP_PROGRESS"); v != "" {
		c.Progress = v == "true" || v == "1"
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"CONTENTBACKUP_BATCH_SIZE", &c.BatchSize},
		{"CONTENTBACKUP_MAX_DEPTH", &c.MaxDepth},
		{"CONTENTBACKUP_RETRY_ATTEMPTS", &c.Retry.Attempts},
	}
	for _, e := range ints {
		v := os.Getenv(e.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", e.name, err)
		}
		*e.dst = n
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"CONTENTBACKUP_LAUNCH_DELAY", &c.LaunchDelay},
		{"CONTENTBACKUP_PACE_DELAY", &c.PaceDelay},
		{"CONTENTBACKUP_POLL_INTERVAL", &c.PollInterval},
		{"CONTENTBACKUP_TIMEOUT", &c.Timeout},
		{"CONTENTBACKUP_RETRY_DELAY", &c.Retry.Delay},
	}
	for _, e := range durations {
		v := os.Getenv(e.name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", e.name, err)
		}
		*e.dst = d
	}

	return nil
}

var objectKind = regexp.MustCompile(`^[A-Za-z]+$`)

// Validate validates the configuration.
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.Endpoint, validation.Required, validation.By(httpURL)),
		validation.Field(&c.AccessID, validation.Required),
		validation.Field(&c.AccessKey, validation.Required),
		validation.Field(&c.Output, validation.When(c.Bucket == "", validation.Required)),
		validation.Field(&c.BatchSize, validation.Required, validation.Min(1)),
		validation.Field(&c.LaunchDelay, validation.Min(0)),
		validation.Field(&c.PaceDelay, validation.Min(0)),
		validation.Field(&c.PollInterval, validation.Required, validation.Min(0)),
		validation.Field(&c.Timeout, validation.Required, validation.Min(0)),
		validation.Field(&c.MaxDepth, validation.Required, validation.Min(1)),
		validation.Field(&c.ObjectKinds, validation.Each(validation.Required, validation.Match(objectKind))),
		validation.Field(&c.Retry),
	)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Validate validates the retry settings.
func (r RetryConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Attempts, validation.Min(0)),
		validation.Field(&r.Delay, validation.Min(0)),
	)
}

func httpURL(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an http(s) URL")
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.Endpoint != "" {
		c.Endpoint = override.Endpoint
	}
	if override.AccessID != "" {
		c.AccessID = override.AccessID
	}
	if override.AccessKey != "" {
		c.AccessKey = override.AccessKey
	}
	if override.AdminMode {
		c.AdminMode = override.AdminMode
	}
	if override.Output != "" {
		c.Output = override.Output
	}
	if override.Bucket != "" {
		c.Bucket = override.Bucket
	}
	if override.BatchSize != 0 {
		c.BatchSize = override.BatchSize
	}
	if override.LaunchDelay != 0 {
		c.LaunchDelay = override.LaunchDelay
	}
	if override.PaceDelay != 0 {
		c.PaceDelay = override.PaceDelay
	}
	if override.PollInterval != 0 {
		c.PollInterval = override.PollInterval
	}
	if override.Timeout != 0 {
		c.Timeout = override.Timeout
	}
	if override.MaxDepth != 0 {
		c.MaxDepth = override.MaxDepth
	}
	if override.Exhaustive {
		c.Exhaustive = override.Exhaustive
	}
	if len(override.ObjectKinds) > 0 {
		c.ObjectKinds = override.ObjectKinds
	}
	if override.NameFilter != "" {
		c.NameFilter = override.NameFilter
	}
	if override.Progress {
		c.Progress = override.Progress
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Delay != 0 {
		c.Retry.Delay = override.Retry.Delay
	}
	return c
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

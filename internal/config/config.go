package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is built once in main and passed by reference into every
// component. Components never read the environment themselves.
type Config struct {
	LogMode string
	Port    string

	// Bounded prefix read per SOP instance. Pixel data on a CT/MR
	// instance dwarfs the header, so we never pull the whole object.
	MaxReadBytes int64

	TemplateBucket string
	TemplateKey    string
	TemplateMapKey string

	FHIRBaseURL  string
	FHIRIssuer   string
	FHIRAudience string
	FHIRSecret   string
	FHIRTokenTTL time.Duration

	RedisAddr     string
	QueueKey      string
	RejectKey     string
	DeadLetterKey string

	WorkerCount  int
	BatchTimeout time.Duration
	HTTPTimeout  time.Duration
}

// Load assembles the configuration: defaults, then the optional YAML
// file named by STUDYFLOW_CONFIG, then environment overrides.
func Load() (*Config, error) {
	cfg := &Config{
		LogMode:        "development",
		Port:           "8080",
		MaxReadBytes:   500_000,
		TemplateKey:    "imagingstudy-template.json",
		TemplateMapKey: "imagingstudy-template-map.json",
		FHIRIssuer:     "studyflow",
		FHIRAudience:   "fhir-store",
		FHIRTokenTTL:   5 * time.Minute,
		QueueKey:       "studyflow:batches",
		RejectKey:      "studyflow:rejects",
		DeadLetterKey:  "studyflow:dead-letter",
		WorkerCount:    2,
		BatchTimeout:   5 * time.Minute,
		HTTPTimeout:    30 * time.Second,
	}

	if path := strings.TrimSpace(os.Getenv("STUDYFLOW_CONFIG")); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	cfg.LogMode = getEnv("LOG_MODE", cfg.LogMode)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.MaxReadBytes = getEnvAsInt64("SOP_BYTES_READ", cfg.MaxReadBytes)
	cfg.TemplateBucket = getEnv("TEMPLATE_BUCKET", cfg.TemplateBucket)
	cfg.TemplateKey = getEnv("TEMPLATE_KEY", cfg.TemplateKey)
	cfg.TemplateMapKey = getEnv("TEMPLATE_MAP_KEY", cfg.TemplateMapKey)
	cfg.FHIRBaseURL = getEnv("FHIR_BASE_URL", cfg.FHIRBaseURL)
	cfg.FHIRIssuer = getEnv("FHIR_ISSUER", cfg.FHIRIssuer)
	cfg.FHIRAudience = getEnv("FHIR_AUDIENCE", cfg.FHIRAudience)
	cfg.FHIRSecret = getEnv("FHIR_SECRET", cfg.FHIRSecret)
	cfg.FHIRTokenTTL = getEnvAsDuration("FHIR_TOKEN_TTL", cfg.FHIRTokenTTL)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.QueueKey = getEnv("QUEUE_KEY", cfg.QueueKey)
	cfg.RejectKey = getEnv("REJECT_KEY", cfg.RejectKey)
	cfg.DeadLetterKey = getEnv("DEAD_LETTER_KEY", cfg.DeadLetterKey)
	cfg.WorkerCount = getEnvAsInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.BatchTimeout = getEnvAsDuration("BATCH_TIMEOUT", cfg.BatchTimeout)
	cfg.HTTPTimeout = getEnvAsDuration("HTTP_TIMEOUT", cfg.HTTPTimeout)

	return cfg, cfg.validate()
}

// fileConfig mirrors Config for YAML decoding; durations are strings
// ("2m", "30s") because yaml.v3 has no native time.Duration support.
type fileConfig struct {
	LogMode        *string `yaml:"log_mode"`
	Port           *string `yaml:"port"`
	MaxReadBytes   *int64  `yaml:"max_read_bytes"`
	TemplateBucket *string `yaml:"template_bucket"`
	TemplateKey    *string `yaml:"template_key"`
	TemplateMapKey *string `yaml:"template_map_key"`
	FHIRBaseURL    *string `yaml:"fhir_base_url"`
	FHIRIssuer     *string `yaml:"fhir_issuer"`
	FHIRAudience   *string `yaml:"fhir_audience"`
	FHIRSecret     *string `yaml:"fhir_secret"`
	FHIRTokenTTL   *string `yaml:"fhir_token_ttl"`
	RedisAddr      *string `yaml:"redis_addr"`
	QueueKey       *string `yaml:"queue_key"`
	RejectKey      *string `yaml:"reject_key"`
	DeadLetterKey  *string `yaml:"dead_letter_key"`
	WorkerCount    *int    `yaml:"worker_count"`
	BatchTimeout   *string `yaml:"batch_timeout"`
	HTTPTimeout    *string `yaml:"http_timeout"`
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var f fileConfig
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&c.LogMode, f.LogMode)
	setString(&c.Port, f.Port)
	setString(&c.TemplateBucket, f.TemplateBucket)
	setString(&c.TemplateKey, f.TemplateKey)
	setString(&c.TemplateMapKey, f.TemplateMapKey)
	setString(&c.FHIRBaseURL, f.FHIRBaseURL)
	setString(&c.FHIRIssuer, f.FHIRIssuer)
	setString(&c.FHIRAudience, f.FHIRAudience)
	setString(&c.FHIRSecret, f.FHIRSecret)
	setString(&c.RedisAddr, f.RedisAddr)
	setString(&c.QueueKey, f.QueueKey)
	setString(&c.RejectKey, f.RejectKey)
	setString(&c.DeadLetterKey, f.DeadLetterKey)
	if f.MaxReadBytes != nil {
		c.MaxReadBytes = *f.MaxReadBytes
	}
	if f.WorkerCount != nil {
		c.WorkerCount = *f.WorkerCount
	}

	setDuration := func(dst *time.Duration, src *string, name string) error {
		if src == nil {
			return nil
		}
		d, err := time.ParseDuration(*src)
		if err != nil {
			return fmt.Errorf("config file %s: bad %s %q: %w", path, name, *src, err)
		}
		*dst = d
		return nil
	}
	if err := setDuration(&c.FHIRTokenTTL, f.FHIRTokenTTL, "fhir_token_ttl"); err != nil {
		return err
	}
	if err := setDuration(&c.BatchTimeout, f.BatchTimeout, "batch_timeout"); err != nil {
		return err
	}
	return setDuration(&c.HTTPTimeout, f.HTTPTimeout, "http_timeout")
}

func (c *Config) validate() error {
	if c.MaxReadBytes <= 0 {
		return fmt.Errorf("max_read_bytes must be positive, got %d", c.MaxReadBytes)
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("worker_count must be positive, got %d", c.WorkerCount)
	}
	if c.TemplateBucket == "" {
		return fmt.Errorf("missing template_bucket (env TEMPLATE_BUCKET)")
	}
	if c.FHIRBaseURL == "" {
		return fmt.Errorf("missing fhir_base_url (env FHIR_BASE_URL)")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("missing redis_addr (env REDIS_ADDR)")
	}
	return nil
}

func getEnv(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

func getEnvAsInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvAsInt64(name string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return i
}

func getEnvAsDuration(name string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

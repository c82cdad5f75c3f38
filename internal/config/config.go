// Package config holds all houseScanner configuration: server binding,
// OpenAI models, image processing parameters, pipeline tuning, rate
// limits, fetching, caching, and data directories. Values come from
// defaults, an optional YAML file, and environment overrides, in that
// order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all houseScanner configuration.
type Config struct {
	// HTTP server binding and lifecycle
	Server ServerConfig `yaml:"server"`

	// OpenAI client and model selection
	OpenAI OpenAIConfig `yaml:"openai"`

	// Image normalization parameters per stage
	Images ImageConfig `yaml:"images"`

	// Pipeline sampling and batching
	Pipeline PipelineConfig `yaml:"pipeline"`

	// TPM/RPM buckets and concurrency cap for inference calls
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	// Remote image fetching
	Fetch FetchConfig `yaml:"fetch"`

	// Checklist definition cache
	Cache CacheConfig `yaml:"cache"`

	// Data directories
	Data DataConfig `yaml:"data"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// Addr returns the host:port address to bind.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// OpenAIConfig configures the inference client.
type OpenAIConfig struct {
	APIKey       string `yaml:"api_key"`
	BaseURL      string `yaml:"base_url"` // empty uses the default endpoint
	VisionModel  string `yaml:"vision_model"`
	TextModel    string `yaml:"text_model"`
	MaxRetries   int    `yaml:"max_retries"`
	EmptyRetries int    `yaml:"empty_retries"` // extra attempts when the model returns empty content
}

// ImageConfig configures JPEG re-encoding per processing stage.
type ImageConfig struct {
	MaxEdge          int `yaml:"max_edge"` // general ingest
	Quality          int `yaml:"quality"`
	ClassifyMaxEdge  int `yaml:"classify_max_edge"`
	ClassifyQuality  int `yaml:"classify_quality"`
	ChecklistMaxEdge int `yaml:"checklist_max_edge"`
	ChecklistQuality int `yaml:"checklist_quality"`
}

// PipelineConfig configures sampling sizes and batching.
type PipelineConfig struct {
	MaxClassifyImages   int `yaml:"max_classify_images"`  // house classification sample
	MaxChecklistImages  int `yaml:"max_checklist_images"` // house checklist sample
	ChecklistBatchSize  int `yaml:"checklist_batch_size"`
	MaxImagesPerRequest int `yaml:"max_images_per_request"`
}

// RateLimitConfig configures the inference governor.
type RateLimitConfig struct {
	TPM           int `yaml:"tpm"`
	RPM           int `yaml:"rpm"`
	MaxConcurrent int `yaml:"max_concurrent"`
}

// FetchConfig configures remote image acquisition.
type FetchConfig struct {
	Timeout            string `yaml:"timeout"`
	MaxConcurrent      int    `yaml:"max_concurrent"`
	AllowLocalhostURLs bool   `yaml:"allow_localhost_urls"`
}

// CacheConfig configures the Redis checklist cache.
type CacheConfig struct {
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	ExpireSeconds int    `yaml:"expire_seconds"`
}

// DataConfig configures on-disk data locations.
type DataConfig struct {
	Dir     string `yaml:"dir"`      // checklist definition files
	DemoDir string `yaml:"demo_dir"` // simulation image trees
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// DefaultConfig returns the configuration used when no file or
// environment overrides are present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ShutdownTimeout: "5s",
		},
		OpenAI: OpenAIConfig{
			VisionModel:  "gpt-4o-mini",
			TextModel:    "gpt-4o-mini",
			MaxRetries:   6,
			EmptyRetries: 1,
		},
		Images: ImageConfig{
			MaxEdge:          2048,
			Quality:          85,
			ClassifyMaxEdge:  512,
			ClassifyQuality:  70,
			ChecklistMaxEdge: 768,
			ChecklistQuality: 80,
		},
		Pipeline: PipelineConfig{
			MaxClassifyImages:   4,
			MaxChecklistImages:  6,
			ChecklistBatchSize:  6,
			MaxImagesPerRequest: 50,
		},
		RateLimit: RateLimitConfig{
			TPM:           90000,
			RPM:           500,
			MaxConcurrent: 3,
		},
		Fetch: FetchConfig{
			Timeout:            "30s",
			MaxConcurrent:      5,
			AllowLocalhostURLs: true,
		},
		Cache: CacheConfig{
			RedisAddr:     "localhost:6379",
			ExpireSeconds: 3600,
		},
		Data: DataConfig{
			Dir:     "./data",
			DemoDir: "./data/demo",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from a YAML file, falling back to defaults
// when the file does not exist, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.OpenAI.APIKey = key
	}
	if url := os.Getenv("OPENAI_BASE_URL"); url != "" {
		c.OpenAI.BaseURL = url
	}
	if model := os.Getenv("VISION_MODEL"); model != "" {
		c.OpenAI.VisionModel = model
	}
	if model := os.Getenv("TEXT_MODEL"); model != "" {
		c.OpenAI.TextModel = model
	}

	if host := os.Getenv("HOST"); host != "" {
		c.Server.Host = host
	}
	if port, ok := envInt("PORT"); ok {
		c.Server.Port = port
	}

	if tpm, ok := envInt("RATE_LIMIT_TPM"); ok {
		c.RateLimit.TPM = tpm
	}
	if rpm, ok := envInt("RATE_LIMIT_RPM"); ok {
		c.RateLimit.RPM = rpm
	}
	if n, ok := envInt("MAX_CONCURRENT_CALLS"); ok {
		c.RateLimit.MaxConcurrent = n
	}

	if n, ok := envInt("CHECKLIST_BATCH_SIZE"); ok {
		c.Pipeline.ChecklistBatchSize = n
	}
	if n, ok := envInt("MAX_IMAGES_PER_REQUEST"); ok {
		c.Pipeline.MaxImagesPerRequest = n
	}

	if v, ok := envBool("ALLOW_LOCALHOST_URLS"); ok {
		c.Fetch.AllowLocalhostURLs = v
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Cache.RedisAddr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		c.Cache.RedisPassword = pw
	}
	if n, ok := envInt("CACHE_EXPIRE_SECONDS"); ok {
		c.Cache.ExpireSeconds = n
	}

	if dir := os.Getenv("DATA_DIR"); dir != "" {
		c.Data.Dir = dir
	}
	if dir := os.Getenv("DEMO_DIR"); dir != "" {
		c.Data.DemoDir = dir
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

func envInt(name string) (int, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(name string) (bool, bool) {
	raw := os.Getenv(name)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// Validate checks the configuration for structural problems.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	for name, q := range map[string]int{
		"quality":           c.Images.Quality,
		"classify_quality":  c.Images.ClassifyQuality,
		"checklist_quality": c.Images.ChecklistQuality,
	} {
		if q < 1 || q > 100 {
			return fmt.Errorf("invalid %s: %d (must be 1-100)", name, q)
		}
	}
	if c.Images.MaxEdge <= 0 || c.Images.ClassifyMaxEdge <= 0 || c.Images.ChecklistMaxEdge <= 0 {
		return fmt.Errorf("image max edges must be positive")
	}
	if c.Pipeline.ChecklistBatchSize <= 0 {
		return fmt.Errorf("invalid checklist_batch_size: %d", c.Pipeline.ChecklistBatchSize)
	}
	if c.Pipeline.MaxImagesPerRequest <= 0 {
		return fmt.Errorf("invalid max_images_per_request: %d", c.Pipeline.MaxImagesPerRequest)
	}
	if c.RateLimit.TPM <= 0 || c.RateLimit.RPM <= 0 || c.RateLimit.MaxConcurrent <= 0 {
		return fmt.Errorf("rate limit settings must be positive")
	}
	if c.Data.Dir == "" || c.Data.DemoDir == "" {
		return fmt.Errorf("data directories must be set")
	}
	return nil
}

// GetShutdownTimeout returns the graceful shutdown window as a duration.
func (c *Config) GetShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// FetchTimeout returns the per-fetch HTTP timeout as a duration.
func (f FetchConfig) FetchTimeout() time.Duration {
	d, err := time.ParseDuration(f.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// CacheTTL returns the checklist cache expiry as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.ExpireSeconds) * time.Second
}

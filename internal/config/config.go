// Package config loads the newsroom configuration. Values resolve in three
// layers: built-in defaults, then an optional YAML file, then NEWSROOM_*
// environment variables on top.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Default configuration values
const (
	DefaultPort             = 8080
	DefaultEventBusPort     = 8081
	DefaultCallTimeout      = 60  // seconds
	DefaultLLMTimeout       = 120 // seconds; model calls run much longer
	DefaultRetryDelay       = 2   // seconds
	DefaultMaxAttempts      = 3
	DefaultHistorySize      = 1000
	DefaultSubscriberBuffer = 64
	DefaultHeartbeat        = 30 // seconds
)

// Config holds all newsroom configuration
type Config struct {
	// Server
	Port               int      `yaml:"port" envconfig:"PORT"`
	APIKey             string   `yaml:"api_key" envconfig:"API_KEY"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" envconfig:"CORS_ALLOWED_ORIGINS"`

	// Storage
	StoreBackend string `yaml:"store_backend" envconfig:"STORE_BACKEND"`
	SQLitePath   string `yaml:"sqlite_path" envconfig:"SQLITE_PATH"`

	// Sibling agents
	ResearcherURL string `yaml:"researcher_url" envconfig:"RESEARCHER_URL"`
	ArchivistURL  string `yaml:"archivist_url" envconfig:"ARCHIVIST_URL"`
	EditorURL     string `yaml:"editor_url" envconfig:"EDITOR_URL"`
	PublisherURL  string `yaml:"publisher_url" envconfig:"PUBLISHER_URL"`

	// Archivist call path
	ArchivistAPIKey      string `yaml:"archivist_api_key" envconfig:"ARCHIVIST_API_KEY"`
	ArchivistMaxAttempts int    `yaml:"archivist_max_attempts" envconfig:"ARCHIVIST_MAX_ATTEMPTS"`
	ArchivistRetryDelay  int    `yaml:"archivist_retry_delay" envconfig:"ARCHIVIST_RETRY_DELAY"` // seconds
	ArchivistBackoff     bool   `yaml:"archivist_backoff" envconfig:"ARCHIVIST_BACKOFF"`

	// Per-call timeouts, in seconds
	CallTimeout int `yaml:"call_timeout" envconfig:"CALL_TIMEOUT"`
	LLMTimeout  int `yaml:"llm_timeout" envconfig:"LLM_TIMEOUT"`

	// Text generation
	OpenAIAPIKey  string `yaml:"openai_api_key" envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL string `yaml:"openai_base_url" envconfig:"OPENAI_BASE_URL"`
	OpenAIModel   string `yaml:"openai_model" envconfig:"OPENAI_MODEL"`
	UseMockLLM    bool   `yaml:"use_mock_llm" envconfig:"USE_MOCK_LLM"`

	// Event bus
	EventBusURL      string `yaml:"eventbus_url" envconfig:"EVENTBUS_URL"`
	EventBusEnabled  bool   `yaml:"eventbus_enabled" envconfig:"EVENTBUS_ENABLED"`
	HistorySize      int    `yaml:"history_size" envconfig:"HISTORY_SIZE"`
	SubscriberBuffer int    `yaml:"subscriber_buffer" envconfig:"SUBSCRIBER_BUFFER"`
	Heartbeat        int    `yaml:"heartbeat" envconfig:"HEARTBEAT"` // seconds
}

// New creates a Config with default values
func New() *Config {
	return &Config{
		Port:                 DefaultPort,
		StoreBackend:         "memory",
		ResearcherURL:        "http://localhost:8082/agent",
		ArchivistURL:         "http://localhost:8083/agent",
		EditorURL:            "http://localhost:8084/agent",
		PublisherURL:         "http://localhost:8085/agent",
		ArchivistMaxAttempts: DefaultMaxAttempts,
		ArchivistRetryDelay:  DefaultRetryDelay,
		CallTimeout:          DefaultCallTimeout,
		LLMTimeout:           DefaultLLMTimeout,
		OpenAIModel:          "gpt-4o-mini",
		EventBusURL:          fmt.Sprintf("http://localhost:%d", DefaultEventBusPort),
		EventBusEnabled:      true,
		HistorySize:          DefaultHistorySize,
		SubscriberBuffer:     DefaultSubscriberBuffer,
		Heartbeat:            DefaultHeartbeat,
	}
}

// Load resolves the configuration: defaults, then the YAML file at path when
// one is given, then NEWSROOM_* environment variables.
func Load(path string) (*Config, error) {
	cfg := New()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := envconfig.Process("newsroom", cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the resolved configuration for values no component can
// work with
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch c.StoreBackend {
	case "memory":
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("store_backend sqlite requires sqlite_path")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	if c.ArchivistMaxAttempts < 1 {
		return fmt.Errorf("archivist_max_attempts must be at least 1")
	}
	if c.CallTimeout < 1 || c.LLMTimeout < 1 {
		return fmt.Errorf("timeouts must be at least 1 second")
	}
	if c.HistorySize < 1 {
		return fmt.Errorf("history_size must be at least 1")
	}
	if c.SubscriberBuffer < 1 {
		return fmt.Errorf("subscriber_buffer must be at least 1")
	}
	return nil
}

// CallTimeoutDuration returns the standard per-call timeout
func (c *Config) CallTimeoutDuration() time.Duration {
	return time.Duration(c.CallTimeout) * time.Second
}

// LLMTimeoutDuration returns the longer timeout used for model calls
func (c *Config) LLMTimeoutDuration() time.Duration {
	return time.Duration(c.LLMTimeout) * time.Second
}

// RetryDelayDuration returns the delay between archivist attempts
func (c *Config) RetryDelayDuration() time.Duration {
	return time.Duration(c.ArchivistRetryDelay) * time.Second
}

// HeartbeatDuration returns the stream heartbeat interval
func (c *Config) HeartbeatDuration() time.Duration {
	return time.Duration(c.Heartbeat) * time.Second
}

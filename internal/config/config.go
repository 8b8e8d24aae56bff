package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// AttributionPolicy decides when a local observer is credited with a sighting.
type AttributionPolicy string

const (
	// AttributionEither credits accepted creations and conflicts that report first perception.
	AttributionEither AttributionPolicy = "either"
	// AttributionPerceived credits only being first to perceive the event.
	AttributionPerceived AttributionPolicy = "perceived"
	// AttributionAccepted credits only creations the backend accepted from us.
	AttributionAccepted AttributionPolicy = "accepted"
)

// Config holds the configuration for the event watcher.
// Environment variables are parsed with the EVENTWATCH_ prefix.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"production"`
	LogLevel    string      `envconfig:"LOG_LEVEL" default:"info"`
	PlayerName  string      `envconfig:"PLAYER_NAME" default:""`

	// Backend / relay
	BackendURL   string `envconfig:"BACKEND_URL" default:"http://localhost:8080"`
	BackendToken string `envconfig:"BACKEND_TOKEN" default:""`
	RelayURL     string `envconfig:"RELAY_URL" default:""`

	// Persistence
	KVDriver      string `envconfig:"KV_DRIVER" default:"auto"`
	SQLitePath    string `envconfig:"SQLITE_PATH" default:""`
	PostgresDSN   string `envconfig:"POSTGRES_DSN" default:""`
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Capture inputs written by the OCR and game-client integrations
	ChatFile        string `envconfig:"CHAT_FILE" default:""`
	DialogFile      string `envconfig:"DIALOG_FILE" default:""`
	WorldFile       string `envconfig:"WORLD_FILE" default:""`
	FriendsListFile string `envconfig:"FRIENDS_LIST_FILE" default:""`

	// Poll cadence
	ChatInterval   time.Duration `envconfig:"CHAT_INTERVAL" default:"600ms"`
	DialogInterval time.Duration `envconfig:"DIALOG_INTERVAL" default:"1s"`
	SweepInterval  time.Duration `envconfig:"SWEEP_INTERVAL" default:"1s"`
	OracleInterval time.Duration `envconfig:"ORACLE_INTERVAL" default:"1m"`
	QuietWindow    time.Duration `envconfig:"QUIET_WINDOW" default:"6s"`

	// Recognition
	MatchThreshold    float64 `envconfig:"MATCH_THRESHOLD" default:"0.3"`
	MinMatchLength    int     `envconfig:"MIN_MATCH_LENGTH" default:"10"`
	PositionTolerance int     `envconfig:"POSITION_TOLERANCE" default:"100"`
	VocabularyFile    string  `envconfig:"VOCABULARY_FILE" default:""`

	// Reconciliation
	AttributionPolicy AttributionPolicy `envconfig:"ATTRIBUTION_POLICY" default:"either"`
	DriftTolerance    time.Duration     `envconfig:"DRIFT_TOLERANCE" default:"30s"`
	HistoryRetention  time.Duration     `envconfig:"HISTORY_RETENTION" default:"24h"`

	// Status API (0 disables it)
	HTTPPort int `envconfig:"HTTP_PORT" default:"0"`

	// Tracing
	TracingEnabled bool   `envconfig:"TRACING_ENABLED" default:"false"`
	OTLPEndpoint   string `envconfig:"OTLP_ENDPOINT" default:"http://localhost:4318"`
}

// ResolveDefaults validates enumerations and derives KVDriver when set to "auto" or empty.
func (c *Config) ResolveDefaults() error {
	switch c.Environment {
	case EnvDevelopment, EnvTesting, EnvProduction:
	default:
		return fmt.Errorf("unsupported ENVIRONMENT: %s", c.Environment)
	}

	if c.KVDriver == "" || c.KVDriver == "auto" {
		c.KVDriver = "sqlite"
	}
	allowedKV := map[string]bool{"memory": true, "sqlite": true, "postgres": true, "redis": true}
	if !allowedKV[c.KVDriver] {
		return fmt.Errorf("unsupported KV_DRIVER: %s", c.KVDriver)
	}
	if c.KVDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("EVENTWATCH_POSTGRES_DSN is required when KV_DRIVER=postgres")
	}

	switch c.AttributionPolicy {
	case "":
		c.AttributionPolicy = AttributionEither
	case AttributionEither, AttributionPerceived, AttributionAccepted:
	default:
		return fmt.Errorf("unsupported ATTRIBUTION_POLICY: %s", c.AttributionPolicy)
	}

	if c.MatchThreshold <= 0 || c.MatchThreshold > 1 {
		return fmt.Errorf("MATCH_THRESHOLD must be in (0,1], got %v", c.MatchThreshold)
	}
	if c.MinMatchLength < 1 {
		return fmt.Errorf("MIN_MATCH_LENGTH must be >= 1, got %d", c.MinMatchLength)
	}
	for name, d := range map[string]time.Duration{
		"CHAT_INTERVAL":   c.ChatInterval,
		"DIALOG_INTERVAL": c.DialogInterval,
		"SWEEP_INTERVAL":  c.SweepInterval,
		"ORACLE_INTERVAL": c.OracleInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
	}
	if c.QuietWindow < 0 {
		return fmt.Errorf("QUIET_WINDOW must be >= 0")
	}
	return nil
}

// New creates a new Config by parsing environment variables.
// Example: EVENTWATCH_PLAYER_NAME, EVENTWATCH_KV_DRIVER
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("EVENTWATCH", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// NewForTesting creates a config specifically for testing
func NewForTesting() *Config {
	return &Config{
		Environment:       EnvTesting,
		LogLevel:          "debug",
		PlayerName:        "tester",
		BackendURL:        "http://localhost:0",
		KVDriver:          "memory",
		ChatInterval:      600 * time.Millisecond,
		DialogInterval:    time.Second,
		SweepInterval:     time.Second,
		OracleInterval:    time.Minute,
		QuietWindow:       6 * time.Second,
		MatchThreshold:    0.3,
		MinMatchLength:    10,
		PositionTolerance: 100,
		AttributionPolicy: AttributionEither,
		DriftTolerance:    30 * time.Second,
		HistoryRetention:  24 * time.Hour,
	}
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// IsDevelopment returns true if the environment is set to development
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// GetHTTPAddr returns the status API listen address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// Package config loads and validates service configuration. Configuration
// is environment-first: every tunable has a default, and production
// deployments must pass the fail-fast gates in Validate.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DevJWTSecret is the development-only signing secret. Production startup
// fails if JWT_SECRET is unset, shorter than 32 bytes, or equals this value.
const DevJWTSecret = "nosh-dev-secret-do-not-use-in-prod"

// Config is the fully resolved service configuration.
type Config struct {
	Env      string // "development" | "production"
	HTTPPort string

	JWTSecret       string
	SessionTTL      time.Duration
	TicketTTL       time.Duration
	FrontendOrigins []string // exact origins or "*.domain" wildcards

	RedisURL string

	LLM       LLMConfig
	Places    PlacesConfig
	Pipeline  PipelineConfig
	Jobs      JobsConfig
	Push      PushConfig
	Enrich    EnrichConfig
	RateLimit RateLimitConfig

	EnableDebugRedis bool
}

// LLMConfig holds LLM vendor settings.
type LLMConfig struct {
	APIKey  string
	BaseURL string // empty = vendor default
	Model   string
}

// PlacesConfig holds Places provider settings.
type PlacesConfig struct {
	APIKey   string
	BaseURL  string
	Timeout  time.Duration // hard per-call ceiling
	CacheTTL time.Duration
}

// PipelineConfig holds the per-stage LLM budgets.
type PipelineConfig struct {
	GateTimeout       time.Duration // + one retry
	IntentTimeout     time.Duration // + one retry
	FiltersTimeout    time.Duration // no retry
	TextSearchTimeout time.Duration // no retry
	NearbyTimeout     time.Duration // + one retry
	LandmarkTimeout   time.Duration // no retry
	DefaultRegion     string
}

// JobsConfig holds job store settings.
type JobsConfig struct {
	TTL time.Duration
}

// PushConfig holds push channel settings.
type PushConfig struct {
	IdleTimeout  time.Duration
	WriteTimeout time.Duration
}

// EnrichConfig holds enrichment worker settings.
type EnrichConfig struct {
	WorkersPerProvider int
	QueueCapacity      int
	CacheTTL           time.Duration
	LockTTL            time.Duration
	ProvidersFile      string // optional YAML overlay of provider host rules

	SearchEndpoint string
	SearchAPIKey   string
	SearchTimeout  time.Duration
}

// RateLimitConfig holds per-IP+session request budgets.
type RateLimitConfig struct {
	SearchPerMinute int
	PhotosPerMinute int
}

// Load resolves configuration from the environment with defaults applied.
func Load() *Config {
	return &Config{
		Env:      getEnv("NOSH_ENV", "development"),
		HTTPPort: getEnv("HTTP_PORT", "8080"),

		JWTSecret:       getEnv("JWT_SECRET", DevJWTSecret),
		SessionTTL:      getDuration("SESSION_TTL", 24*time.Hour),
		TicketTTL:       getDuration("WS_TICKET_TTL", 60*time.Second),
		FrontendOrigins: splitOrigins(getEnv("FRONTEND_ORIGINS", "http://localhost:5173")),

		RedisURL: os.Getenv("REDIS_URL"),

		LLM: LLMConfig{
			APIKey:  os.Getenv("LLM_API_KEY"),
			BaseURL: os.Getenv("LLM_BASE_URL"),
			Model:   getEnv("LLM_MODEL", "gpt-4o-mini"),
		},
		Places: PlacesConfig{
			APIKey:   os.Getenv("PLACES_API_KEY"),
			BaseURL:  getEnv("PLACES_BASE_URL", "https://places.googleapis.com"),
			Timeout:  getDuration("PLACES_TIMEOUT", 8*time.Second),
			CacheTTL: getDuration("PLACES_CACHE_TTL", 5*time.Minute),
		},
		Pipeline: PipelineConfig{
			GateTimeout:       getDuration("GATE_TIMEOUT", 2500*time.Millisecond),
			IntentTimeout:     getDuration("INTENT_TIMEOUT", 3500*time.Millisecond),
			FiltersTimeout:    getDuration("FILTERS_TIMEOUT", 900*time.Millisecond),
			TextSearchTimeout: getDuration("TEXTSEARCH_TIMEOUT", 3500*time.Millisecond),
			NearbyTimeout:     getDuration("NEARBY_TIMEOUT", 4500*time.Millisecond),
			LandmarkTimeout:   getDuration("LANDMARK_TIMEOUT", 4000*time.Millisecond),
			DefaultRegion:     getEnv("DEFAULT_REGION", "IL"),
		},
		Jobs: JobsConfig{
			TTL: getDuration("JOB_TTL", time.Hour),
		},
		Push: PushConfig{
			IdleTimeout:  getDuration("PUSH_IDLE_TIMEOUT", 15*time.Minute),
			WriteTimeout: getDuration("PUSH_WRITE_TIMEOUT", 10*time.Second),
		},
		Enrich: EnrichConfig{
			WorkersPerProvider: getInt("ENRICH_WORKERS_PER_PROVIDER", 1),
			QueueCapacity:      getInt("ENRICH_QUEUE_CAPACITY", 256),
			CacheTTL:           getDuration("ENRICH_CACHE_TTL", 24*time.Hour),
			LockTTL:            getDuration("ENRICH_LOCK_TTL", 30*time.Second),
			ProvidersFile:      os.Getenv("ENRICH_PROVIDERS_FILE"),
			SearchEndpoint:     os.Getenv("ENRICH_SEARCH_ENDPOINT"),
			SearchAPIKey:       os.Getenv("ENRICH_SEARCH_API_KEY"),
			SearchTimeout:      getDuration("ENRICH_SEARCH_TIMEOUT", 6*time.Second),
		},
		RateLimit: RateLimitConfig{
			SearchPerMinute: getInt("RATE_LIMIT_SEARCH", 100),
			PhotosPerMinute: getInt("RATE_LIMIT_PHOTOS", 60),
		},

		EnableDebugRedis: getEnv("ENABLE_DEBUG_REDIS", "false") == "true",
	}
}

// Production reports whether the service runs with production gates.
func (c *Config) Production() bool {
	return c.Env == "production"
}

// Validate enforces the production fail-fast gates. In development it only
// checks internal consistency.
func (c *Config) Validate() error {
	for _, origin := range c.FrontendOrigins {
		if origin == "*" && c.Production() {
			return fmt.Errorf("FRONTEND_ORIGINS: bare %q is forbidden in production", "*")
		}
	}
	if c.TicketTTL > 60*time.Second {
		return fmt.Errorf("WS_TICKET_TTL must be at most 60s, got %v", c.TicketTTL)
	}

	if !c.Production() {
		return nil
	}

	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}
	if c.JWTSecret == DevJWTSecret {
		return fmt.Errorf("JWT_SECRET must not be the development default in production")
	}
	if c.Places.APIKey == "" {
		return fmt.Errorf("PLACES_API_KEY is required in production")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required in production")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func splitOrigins(raw string) []string {
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

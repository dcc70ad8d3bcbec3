// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the HTTP
// server, logging, storage, the archival message bus, ingestion policy, track
// export, rate limiting, and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Ingestion response styles.
const (
	ResponseEmpty  = "empty"  // always {}
	ResponseStatus = "status" // {"status":"ok"} / {"status":"error","msg":...}
)

// Dedup policies for a second report at an already stored instant.
const (
	DedupDrop  = "drop"
	DedupMerge = "merge"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// DBConfig selects the storage backend.
type DBConfig struct {
	Driver       string        // sqlite|postgres
	Path         string        // SQLite path
	DSN          string        // Postgres DSN
	ConnAttempts int           // connect retries for postgres
	ConnDelay    time.Duration // delay between retries
}

// BusConfig configures raw-request archival.
type BusConfig struct {
	Driver          string        // nats|memory
	URL             string        // NATS URL
	Exchange        string        // RAW_HTTP_EXCHANGE, first subject token
	JetStream       bool          // publish through JetStream instead of core NATS
	MaxReconnects   int           // -1 for unlimited
	ReconnectWait   time.Duration //
	BreakerFailures uint32        // consecutive failures that open the breaker; 0 disables it
	BreakerTimeout  time.Duration // open -> half-open
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodyBytes      int64
	GinMode           string // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string

	// Storage and bus
	DB  DBConfig
	Bus BusConfig

	// Ingestion
	EnabledDecoders []string // decoder profile identifiers exposed over HTTP
	ResponseStyle   string   // empty|status
	DedupPolicy     string   // drop|merge

	// Export
	TrackGap      time.Duration // max gap inside one track segment
	DefaultLength string        // default export window length, e.g. "1d"

	// Rate limiting
	RateRPS   float64
	RateBurst int

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables (after merging a
// .env file from the working directory, if present; real environment
// variables win), applies defaults, normalizes values, and validates the
// result.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		MaxBodyBytes:      int64(getint("MAX_BODY_BYTES", 1<<20)),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		DB: DBConfig{
			Driver:       strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			Path:         getenv("DB_PATH", "broker.db"),
			DSN:          getenv("DB_DSN", ""),
			ConnAttempts: getint("DB_CONNECT_ATTEMPTS", 10),
			ConnDelay:    getdur("DB_CONNECT_DELAY", 2*time.Second),
		},
		Bus: BusConfig{
			Driver:          strings.ToLower(getenv("BUS_DRIVER", "memory")),
			URL:             getenv("NATS_URL", "nats://127.0.0.1:4222"),
			Exchange:        getenv("RAW_HTTP_EXCHANGE", "raw_http"),
			JetStream:       getbool("NATS_JETSTREAM", false),
			MaxReconnects:   getint("NATS_MAX_RECONNECTS", -1),
			ReconnectWait:   getdur("NATS_RECONNECT_WAIT", 2*time.Second),
			BreakerFailures: uint32(getint("BUS_BREAKER_FAILURES", 5)),
			BreakerTimeout:  getdur("BUS_BREAKER_TIMEOUT", 30*time.Second),
		},

		EnabledDecoders: splitCSV(getenv("ENABLED_DECODERS", "gpslocation.owntracks,owntracks.owntracks")),
		ResponseStyle:   strings.ToLower(getenv("RESPONSE_STYLE", ResponseEmpty)),
		DedupPolicy:     strings.ToLower(getenv("DEDUP_POLICY", DedupDrop)),

		TrackGap:      getdur("TRACK_GAP", 5*time.Minute),
		DefaultLength: getenv("TRACK_DEFAULT_LENGTH", "1d"),

		RateRPS:   getfloat("RATE_RPS", 20.0),
		RateBurst: getint("RATE_BURST", 40),

		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "location-broker"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if cfg.DB.Driver == "postgresql" {
		cfg.DB.Driver = "postgres"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if cfg.MaxBodyBytes <= 0 {
		return cfg, errors.New("MAX_BODY_BYTES must be > 0")
	}
	switch cfg.DB.Driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DB.Path) == "" {
			return cfg, errors.New("DB_PATH must not be empty")
		}
	case "postgres":
		if strings.TrimSpace(cfg.DB.DSN) == "" {
			return cfg, errors.New("DB_DSN is required when DB_DRIVER=postgres")
		}
	default:
		return cfg, errors.New("DB_DRIVER must be one of: sqlite, postgres")
	}
	if cfg.DB.ConnAttempts < 1 {
		return cfg, errors.New("DB_CONNECT_ATTEMPTS must be >= 1")
	}
	switch cfg.Bus.Driver {
	case "memory":
	case "nats":
		if strings.TrimSpace(cfg.Bus.URL) == "" {
			return cfg, errors.New("NATS_URL is required when BUS_DRIVER=nats")
		}
	default:
		return cfg, errors.New("BUS_DRIVER must be one of: memory, nats")
	}
	if strings.TrimSpace(cfg.Bus.Exchange) == "" {
		return cfg, errors.New("RAW_HTTP_EXCHANGE must not be empty")
	}
	if len(cfg.EnabledDecoders) == 0 {
		return cfg, errors.New("ENABLED_DECODERS must list at least one decoder")
	}
	switch cfg.ResponseStyle {
	case ResponseEmpty, ResponseStatus:
	default:
		return cfg, fmt.Errorf("RESPONSE_STYLE must be one of: %s, %s", ResponseEmpty, ResponseStatus)
	}
	switch cfg.DedupPolicy {
	case DedupDrop, DedupMerge:
	default:
		return cfg, fmt.Errorf("DEDUP_POLICY must be one of: %s, %s", DedupDrop, DedupMerge)
	}
	if cfg.TrackGap <= 0 {
		return cfg, errors.New("TRACK_GAP must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}

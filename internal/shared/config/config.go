package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var plaidEnvironments = map[string]struct{}{
	"sandbox":     {},
	"development": {},
	"production":  {},
}

type Config struct {
	Env        string
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Encryption EncryptionConfig
	Plaid      PlaidConfig
	Redis      RedisConfig
	Scheduler  SchedulerConfig
	TLS        TLSConfig
	Firebase   FirebaseConfig
	Telemetry  TelemetryConfig
}

type ServerConfig struct {
	Port           string
	Host           string
	AllowedHosts   []string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MaxOpenConns   int
	ConnectTimeout time.Duration
}

type JWTConfig struct {
	Secret string
}

type EncryptionConfig struct {
	Key string
}

type PlaidConfig struct {
	ClientID          string
	Secret            string
	Environment       string
	ClientName        string
	RequestsPerSecond float64
	Timeout           time.Duration
	// LogoFile is an optional JSON object mapping institution ids to logo URLs
	LogoFile string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis server is configured
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type SchedulerConfig struct {
	Enabled      bool
	Spec         string
	WorkerCount  int
	JobDelay     time.Duration
	QueueSize    int
	RunOnStartup bool
}

type TLSConfig struct {
	Enabled      bool
	CertPath     string
	KeyPath      string
	RedirectHTTP bool
}

type FirebaseConfig struct {
	CredentialsFile string
}

type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
	MetricsPort  string
}

var defaults = map[string]string{
	"APP_ENV":                "development",
	"PORT":                   "8080",
	"HOST":                   "0.0.0.0",
	"DB_HOST":                "localhost",
	"DB_PORT":                "5432",
	"DB_USER":                "ansel",
	"DB_NAME":                "ansel",
	"DB_SSLMODE":             "disable",
	"DB_MAX_OPEN_CONNS":      "25",
	"DB_CONNECT_TIMEOUT":     "30s",
	"PLAID_ENV":              "sandbox",
	"PLAID_CLIENT_NAME":      "Ansel Tracker",
	"PLAID_RATE_LIMIT":       "5",
	"PLAID_TIMEOUT":          "30s",
	"REDIS_DB":               "0",
	"SCHEDULER_ENABLED":      "true",
	"SCHEDULER_SPEC":         "0 6,18 * * *",
	"SCHEDULER_WORKERS":      "5",
	"SCHEDULER_JOB_DELAY":    "1s",
	"SCHEDULER_QUEUE_SIZE":   "100",
	"OTEL_SERVICE_NAME":      "ansel-api",
	"OTEL_EXPORTER_ENDPOINT": "localhost:4317",
	"METRICS_PORT":           "9464",
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	r := reader{v: v}

	cfg := &Config{
		Env: r.getString("APP_ENV"),
		Server: ServerConfig{
			Port:           r.getString("PORT"),
			Host:           r.getString("HOST"),
			AllowedHosts:   r.getList("ALLOWED_HOSTS"),
			AllowedOrigins: r.getList("ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:           r.getString("DB_HOST"),
			Port:           r.getInt("DB_PORT"),
			User:           r.getString("DB_USER"),
			Password:       r.getString("DB_PASSWORD"),
			DBName:         r.getString("DB_NAME"),
			SSLMode:        r.getString("DB_SSLMODE"),
			MaxOpenConns:   r.getInt("DB_MAX_OPEN_CONNS"),
			ConnectTimeout: r.getDuration("DB_CONNECT_TIMEOUT"),
		},
		JWT: JWTConfig{
			Secret: r.getString("JWT_SECRET"),
		},
		Encryption: EncryptionConfig{
			Key: r.getString("ENCRYPTION_KEY"),
		},
		Plaid: PlaidConfig{
			ClientID:          r.getString("PLAID_CLIENT_ID"),
			Secret:            r.getString("PLAID_SECRET"),
			Environment:       strings.ToLower(r.getString("PLAID_ENV")),
			ClientName:        r.getString("PLAID_CLIENT_NAME"),
			RequestsPerSecond: r.getFloat("PLAID_RATE_LIMIT"),
			Timeout:           r.getDuration("PLAID_TIMEOUT"),
			LogoFile:          r.getString("PLAID_LOGO_FILE"),
		},
		Redis: RedisConfig{
			Addr:     r.getString("REDIS_ADDR"),
			Password: r.getString("REDIS_PASSWORD"),
			DB:       r.getInt("REDIS_DB"),
		},
		Scheduler: SchedulerConfig{
			Enabled:      r.getBool("SCHEDULER_ENABLED", true),
			Spec:         r.getString("SCHEDULER_SPEC"),
			WorkerCount:  r.getInt("SCHEDULER_WORKERS"),
			JobDelay:     r.getDuration("SCHEDULER_JOB_DELAY"),
			QueueSize:    r.getInt("SCHEDULER_QUEUE_SIZE"),
			RunOnStartup: r.getBool("SCHEDULER_RUN_ON_STARTUP", false),
		},
		TLS: TLSConfig{
			Enabled:      r.getBool("TLS_ENABLED", false),
			CertPath:     r.getString("TLS_CERT_PATH"),
			KeyPath:      r.getString("TLS_KEY_PATH"),
			RedirectHTTP: r.getBool("TLS_REDIRECT_HTTP", false),
		},
		Firebase: FirebaseConfig{
			CredentialsFile: r.getString("FIREBASE_CREDENTIALS_FILE"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      r.getBool("OTEL_ENABLED", false),
			ServiceName:  r.getString("OTEL_SERVICE_NAME"),
			OTLPEndpoint: r.getString("OTEL_EXPORTER_ENDPOINT"),
			MetricsPort:  r.getString("METRICS_PORT"),
		},
	}

	if err := errors.Join(r.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects missing secrets and inconsistent settings
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Encryption.Key == "" {
		return fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if len(c.Encryption.Key) != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes")
	}

	if c.Plaid.ClientID == "" || c.Plaid.Secret == "" {
		return fmt.Errorf("PLAID_CLIENT_ID and PLAID_SECRET are required")
	}
	if _, ok := plaidEnvironments[c.Plaid.Environment]; !ok {
		return fmt.Errorf("PLAID_ENV must be sandbox, development or production, got %q", c.Plaid.Environment)
	}
	if c.Plaid.RequestsPerSecond < 0 {
		return fmt.Errorf("PLAID_RATE_LIMIT must not be negative")
	}

	if c.Scheduler.Enabled {
		if c.Scheduler.Spec == "" {
			return fmt.Errorf("SCHEDULER_SPEC is required when SCHEDULER_ENABLED=true")
		}
		if c.Scheduler.WorkerCount < 1 {
			return fmt.Errorf("SCHEDULER_WORKERS must be at least 1")
		}
		if c.Scheduler.QueueSize < 1 {
			return fmt.Errorf("SCHEDULER_QUEUE_SIZE must be at least 1")
		}
	}

	if c.TLS.Enabled {
		if c.TLS.CertPath == "" {
			return fmt.Errorf("TLS_CERT_PATH is required when TLS_ENABLED=true")
		}
		if c.TLS.KeyPath == "" {
			return fmt.Errorf("TLS_KEY_PATH is required when TLS_ENABLED=true")
		}
	}

	return nil
}

// IsProduction reports whether the app runs with production settings
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ConnectionString returns a postgres:// URL usable by both the driver and
// the migrator.
func (c *DatabaseConfig) ConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// reader collects parse errors so Load reports every bad value at once.
type reader struct {
	v    *viper.Viper
	errs []error
}

func (r *reader) getString(key string) string {
	return strings.TrimSpace(r.v.GetString(key))
}

func (r *reader) getInt(key string) int {
	n, err := strconv.Atoi(r.getString(key))
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s: %w", key, err))
	}
	return n
}

func (r *reader) getFloat(key string) float64 {
	f, err := strconv.ParseFloat(r.getString(key), 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s: %w", key, err))
	}
	return f
}

func (r *reader) getDuration(key string) time.Duration {
	d, err := time.ParseDuration(r.getString(key))
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("invalid %s: %w", key, err))
	}
	return d
}

// getBool accepts true, false, 1, 0, yes, no (case-insensitive); anything else
// yields the default.
func (r *reader) getBool(key string, defaultValue bool) bool {
	switch strings.ToLower(r.getString(key)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}

func (r *reader) getList(key string) []string {
	var out []string
	for _, item := range strings.Split(r.getString(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"

	"github.com/jacksonlee411/attendance-sync/pkg/logging"
)

const Production = "production"

const (
	TokenCacheMemory = "memory"
	TokenCacheRedis  = "redis"
)

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

// LoadEnv loads the env files that exist in the working directory, or in the
// nearest ancestor holding a go.mod when none exist there.
func LoadEnv(envFiles []string) (int, error) {
	existing := existingFiles("", envFiles)
	if len(existing) == 0 {
		if root := moduleRoot(); root != "" {
			existing = existingFiles(root, envFiles)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

func existingFiles(dir string, envFiles []string) []string {
	out := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		path := file
		if dir != "" {
			path = filepath.Join(dir, file)
		}
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			out = append(out, path)
		}
	}
	return out
}

func moduleRoot() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for dir := wd; ; {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"attendance"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.Password, d.SSLMode,
	)
}

type JibbleOptions struct {
	ClientID     string        `env:"JIBBLE_CLIENT_ID"`
	ClientSecret string        `env:"JIBBLE_CLIENT_SECRET"`
	TokenURL     string        `env:"JIBBLE_TOKEN_URL" envDefault:"https://identity.prod.jibble.io/connect/token"`
	APIURL       string        `env:"JIBBLE_API_URL" envDefault:"https://time-attendance.prod.jibble.io"`
	WorkspaceURL string        `env:"JIBBLE_WORKSPACE_URL" envDefault:"https://workspace.prod.jibble.io"`
	Timeout      time.Duration `env:"JIBBLE_TIMEOUT" envDefault:"30s"`
	MaxRetries   int           `env:"JIBBLE_MAX_RETRIES" envDefault:"3"`
	RateLimit    string        `env:"JIBBLE_RATE_LIMIT" envDefault:"10-S"`
}

// Validate checks the provider settings. Credentials are only required by
// commands that talk to the provider, see RequireCredentials.
func (j *JibbleOptions) Validate() error {
	if strings.TrimSpace(j.TokenURL) == "" {
		return fmt.Errorf("JIBBLE_TOKEN_URL is required")
	}
	if strings.TrimSpace(j.APIURL) == "" {
		return fmt.Errorf("JIBBLE_API_URL is required")
	}
	if j.Timeout <= 0 {
		return fmt.Errorf("JIBBLE_TIMEOUT must be positive, got %s", j.Timeout)
	}
	if j.MaxRetries < 0 {
		return fmt.Errorf("JIBBLE_MAX_RETRIES must be non-negative, got %d", j.MaxRetries)
	}
	if _, err := limiter.NewRateFromFormatted(j.RateLimit); err != nil {
		return fmt.Errorf("invalid JIBBLE_RATE_LIMIT=%q: %w", j.RateLimit, err)
	}
	return nil
}

func (j *JibbleOptions) RequireCredentials() error {
	if strings.TrimSpace(j.ClientID) == "" || strings.TrimSpace(j.ClientSecret) == "" {
		return fmt.Errorf("JIBBLE_CLIENT_ID and JIBBLE_CLIENT_SECRET are required")
	}
	return nil
}

type TokenCacheOptions struct {
	Backend  string `env:"TOKEN_CACHE_BACKEND" envDefault:"memory"` // memory or redis
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	Key      string `env:"TOKEN_CACHE_KEY" envDefault:"attendance-sync:jibble:token"`
}

func (t *TokenCacheOptions) Validate() error {
	if t.Backend != TokenCacheMemory && t.Backend != TokenCacheRedis {
		return fmt.Errorf("TOKEN_CACHE_BACKEND must be 'memory' or 'redis', got '%s'", t.Backend)
	}
	if t.Backend == TokenCacheRedis && t.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when TOKEN_CACHE_BACKEND is 'redis'")
	}
	return nil
}

type ImportOptions struct {
	BatchSize      int `env:"IMPORT_BATCH_SIZE" envDefault:"50"`
	Workers        int `env:"IMPORT_WORKERS" envDefault:"4"`
	DayConcurrency int `env:"IMPORT_DAY_CONCURRENCY" envDefault:"8"`
}

func (i *ImportOptions) Validate() error {
	if i.BatchSize <= 0 {
		return fmt.Errorf("IMPORT_BATCH_SIZE must be positive, got %d", i.BatchSize)
	}
	if i.Workers <= 0 {
		return fmt.Errorf("IMPORT_WORKERS must be positive, got %d", i.Workers)
	}
	if i.DayConcurrency <= 0 {
		return fmt.Errorf("IMPORT_DAY_CONCURRENCY must be positive, got %d", i.DayConcurrency)
	}
	return nil
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	TempoURL    string `env:"OTEL_TEMPO_URL" envDefault:"localhost:4318"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"attendance-sync"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
	Addr    string `env:"PROMETHEUS_METRICS_ADDR" envDefault:"localhost:9464"`
}

type Configuration struct {
	Database      DatabaseOptions
	Jibble        JibbleOptions
	TokenCache    TokenCacheOptions
	Import        ImportOptions
	OpenTelemetry OpenTelemetryOptions
	Prometheus    PrometheusOptions

	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	LogPath          string `env:"LOG_PATH" envDefault:"./logs/attendance-sync.log"`

	logFile logging.Closer
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func Use() *Configuration {
	return singleton()
}

// Parse reads the environment without touching the log file. Used by tests
// and by callers that manage their own logger.
func Parse() (*Configuration, error) {
	c := &Configuration{}
	if err := env.Parse(c); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	c.Database.Opts = c.Database.ConnectionString()
	return c, nil
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}
	if err := c.validate(); err != nil {
		return err
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger

	c.Database.Opts = c.Database.ConnectionString()
	return nil
}

func (c *Configuration) validate() error {
	if err := c.Jibble.Validate(); err != nil {
		return fmt.Errorf("jibble configuration error: %w", err)
	}
	if err := c.TokenCache.Validate(); err != nil {
		return fmt.Errorf("token cache configuration error: %w", err)
	}
	if err := c.Import.Validate(); err != nil {
		return fmt.Errorf("import configuration error: %w", err)
	}
	return nil
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}

package config // package config loads application configuration from environment variables

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env  string // application environment (e.g. "dev", "production")
	Port string // HTTP port to listen on

	DBDriver   string // "mysql" or "sqlite"
	DBUser     string // database username
	DBPass     string // database password (optional)
	DBHost     string // database host address
	DBPort     string // database port number
	DBName     string // database name
	SQLitePath string // database file when DBDriver is sqlite

	MigrateOnStart bool // apply pending migrations before serving

	JWTSecret string // secret used to verify (and, in bookingctl, sign) bearer tokens

	LockBackend string        // "local" or "redis"
	LockTTL     time.Duration // lease of a distributed admission lock

	AMQPURL       string        // empty disables the broker
	NotifyQueue   string        // queue carrying status-change events
	NotifyTimeout time.Duration // upper bound for one notification attempt
	NotifyLogDir  string        // directory for the consumer's delivery log

	TelegramToken  string // optional Telegram bot token for delivery
	TelegramChatID int64  // chat receiving delivered notifications
}

// Load reads an optional .env file and then the process environment.
// Required variables are enforced by must() and missing values cause the
// program to exit with a fatal log message.
func Load() Config {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		log.Printf("config: ignoring unreadable .env: %v", err)
	}

	cfg := Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		MigrateOnStart: envBool("MIGRATE_ON_START", true),
		JWTSecret:      must("JWT_SECRET"),
		LockBackend:    strings.ToLower(envStr("LOCK_BACKEND", "local")),
		LockTTL:        envDur("LOCK_TTL", 5*time.Second),
		AMQPURL:        amqpURL(),
		NotifyQueue:    envStr("NOTIFY_QUEUE", "consultation.status"),
		NotifyTimeout:  envDur("NOTIFY_TIMEOUT", 5*time.Second),
		NotifyLogDir:   envStr("NOTIFY_LOG_DIR", "logs"),
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID: int64(envInt("TELEGRAM_CHAT_ID", 0)),
	}
	loadStore(&cfg)
	return cfg
}

// LoadStore reads only the store settings and the optional JWT secret.  The
// operator CLI uses it so that it runs without the server's variables.
func LoadStore() Config {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		log.Printf("config: ignoring unreadable .env: %v", err)
	}
	cfg := Config{Env: envStr("APP_ENV", "dev"), JWTSecret: os.Getenv("JWT_SECRET")}
	loadStore(&cfg)
	return cfg
}

func loadStore(cfg *Config) {
	cfg.DBDriver = strings.ToLower(envStr("DB_DRIVER", "mysql"))
	cfg.SQLitePath = envStr("SQLITE_PATH", "data/consultations.db")
	switch cfg.DBDriver {
	case "mysql":
		cfg.DBUser = must("DB_USER")
		cfg.DBPass = os.Getenv("DB_PASS") // empty allowed
		cfg.DBHost = must("DB_HOST")
		cfg.DBPort = must("DB_PORT")
		cfg.DBName = must("DB_NAME")
	case "sqlite":
	default:
		log.Fatalf("unsupported DB_DRIVER: %q", cfg.DBDriver)
	}
}

// IsProduction reports whether the service runs with production defaults.
func (c Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// amqpURL accepts RABBITMQ_URL as an alias of AMQP_URL.
func amqpURL() string {
	if v := os.Getenv("AMQP_URL"); v != "" {
		return v
	}
	return os.Getenv("RABBITMQ_URL")
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

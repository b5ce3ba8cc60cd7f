package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Environment string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Email       EmailConfig
	Webhook     WebhookConfig
	Realtime    RealtimeConfig
	Auth        AuthConfig
	Tickets     TicketsConfig
	Logging     LoggingConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

type DatabaseConfig struct {
	Driver        string // "postgres" or "sqlite"
	DSN           string
	MaxOpenConns  int
	MaxIdleConns  int
	MaxLifetime   time.Duration
	ConnectTries  int
	AutoMigrate   bool
	MigrationsDir string
}

// RedisConfig is optional; an empty Addr switches the registration lock to
// an in-process mutex.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers []string
	Enabled bool
	Topics  TopicConfig
}

type TopicConfig struct {
	TicketEvents string
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromName     string
	FromAddress  string
	EventName    string
	PDFFontPath  string
	Timeout      time.Duration
}

// Configured reports whether outbound mail credentials are present.
func (e EmailConfig) Configured() bool {
	return e.SMTPHost != "" && e.SMTPUsername != "" && e.SMTPPassword != ""
}

type WebhookConfig struct {
	StatusChangeURL string
	Timeout         time.Duration
}

type RealtimeConfig struct {
	Channel            string
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubUUID         string
	Timeout            time.Duration
	KeepAlive          time.Duration
}

func (r RealtimeConfig) PubNubConfigured() bool {
	return r.PubNubPublishKey != "" && r.PubNubSubscribeKey != ""
}

type AuthConfig struct {
	AdminSecret string
	SigningKey  string
	TokenTTL    time.Duration
}

type TicketsConfig struct {
	IDPrefix string
	Limits   map[string]int
	LockWait time.Duration
	LockTTL  time.Duration
}

type LoggingConfig struct {
	Level string
	Dir   string
}

func Load() *Config {
	authSecret := getEnv("ADMIN_SECRET_KEY", "")

	return &Config{
		Environment: getEnv("APP_ENV", "development"),
		Server: ServerConfig{
			Port:            getEnv("PORT", ":5000"),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    0, // SSE streams are long lived
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			MaxBodyBytes:    int64(getEnvInt("MAX_BODY_MB", 10)) << 20,
		},
		Database: DatabaseConfig{
			Driver:        strings.ToLower(getEnv("DB_DRIVER", "postgres")),
			DSN:           getEnv("DATABASE_DSN", getEnv("POSTGRES_DSN", "")),
			MaxOpenConns:  getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:   time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
			ConnectTries:  getEnvInt("DB_CONNECT_RETRIES", 5),
			AutoMigrate:   getEnvBool("AUTO_MIGRATE", false),
			MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Topics: TopicConfig{
				TicketEvents: getEnv("KAFKA_TOPIC_TICKET_EVENTS", "onfa.tickets.status"),
			},
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:     getEnvInt("SMTP_PORT", 587),
			SMTPUsername: getEnv("SMTP_USER", ""),
			SMTPPassword: getEnv("SMTP_PASS", ""),
			FromName:     getEnv("SMTP_FROM_NAME", "ONFA 2026"),
			FromAddress:  getEnv("SMTP_FROM", getEnv("SMTP_USER", "")),
			EventName:    getEnv("EVENT_NAME", "ONFA 2026"),
			PDFFontPath:  getEnv("TICKET_PDF_FONT", ""),
			Timeout:      getEnvDuration("EMAIL_TIMEOUT", 30*time.Second),
		},
		Webhook: WebhookConfig{
			StatusChangeURL: getEnv("WEBHOOK_URL", getEnv("N8N_STATUS_CHANGE_WEBHOOK_URL", "")),
			Timeout:         getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second),
		},
		Realtime: RealtimeConfig{
			Channel:            getEnv("REALTIME_CHANNEL", "check-ins"),
			PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
			PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
			PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
			PubNubUUID:         getEnv("PUBNUB_UUID", "onfa-ticket-server"),
			Timeout:            getEnvDuration("REALTIME_TIMEOUT", 5*time.Second),
			KeepAlive:          getEnvDuration("SSE_KEEPALIVE", 30*time.Second),
		},
		Auth: AuthConfig{
			AdminSecret: authSecret,
			SigningKey:  getEnv("ADMIN_TOKEN_SIGNING_KEY", authSecret),
			TokenTTL:    getEnvDuration("ADMIN_TOKEN_TTL", 12*time.Hour),
		},
		Tickets: TicketsConfig{
			IDPrefix: getEnv("TICKET_ID_PREFIX", "ONFA"),
			Limits: map[string]int{
				"supervip": getEnvLimit("SUPERVIP_LIMIT", 10),
				"vvip":     getEnvLimit("VVIP_LIMIT", 5),
				"vip":      getEnvLimit("VIP_LIMIT", 10),
			},
			LockWait: getEnvDuration("REGISTRATION_LOCK_WAIT", 3*time.Second),
			LockTTL:  getEnvDuration("REGISTRATION_LOCK_TTL", 10*time.Second),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "INFO"),
			Dir:   getEnv("LOG_DIR", "logs"),
		},
	}
}

// Validate rejects configurations the service must not start with.
func (c *Config) Validate() error {
	if c.Database.Driver != "postgres" && c.Database.Driver != "sqlite" {
		return errors.New("DB_DRIVER must be postgres or sqlite")
	}
	if c.Database.DSN == "" {
		return errors.New("DATABASE_DSN not set")
	}
	if c.Environment == "production" && c.Auth.AdminSecret == "" {
		return errors.New("ADMIN_SECRET_KEY must be set in production")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvLimit only accepts positive capacities.
func getEnvLimit(key string, defaultValue int) int {
	if v := getEnvInt(key, defaultValue); v > 0 {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

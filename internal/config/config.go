package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Logger        LoggerConfig
	Auth          AuthConfig
	Notification  NotificationConfig
	Kafka         KafkaConfig
	Escalation    EscalationConfig
	BusinessHours BusinessHoursConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// ConnectTimeout bounds the startup ping; an unreachable Redis is
	// treated as absent.
	ConnectTimeout time.Duration
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines bearer token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// NotificationConfig configures the notification channels and queue.
type NotificationConfig struct {
	EmailFrom     string
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPassword  string
	RedisChannel  string
	QueueSize     int
	Workers       int
	RetryAttempts int
	RetryBackoff  time.Duration
}

// KafkaConfig configures the audit mirror stream. Empty brokers disable it.
type KafkaConfig struct {
	Brokers      []string
	AuditTopic   string
	WriteTimeout time.Duration
	QueueSize    int
}

// EscalationConfig holds the escalation engine and scheduler settings.
type EscalationConfig struct {
	TickInterval              time.Duration
	LeaseTTL                  time.Duration
	Cooldown                  time.Duration
	ReescalationBusinessHours float64
	RoleRank                  []string
	LevelTwoRoles             []string
	LevelThreeRoles           []string
	FallbackRoles             []string
	NotifyRoles               []string
	BalancerSeed              uint64
	PolicyFile                string
	ReopenWindow              time.Duration
}

// BusinessHoursConfig describes the working window used for re-escalation.
type BusinessHoursConfig struct {
	StartHour int
	EndHour   int
	Weekdays  []string
	Timezone  string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	reescalation, err := strconv.ParseFloat(getEnv("ESCALATION_REESCALATION_BUSINESS_HOURS", "24"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ESCALATION_REESCALATION_BUSINESS_HOURS: %w", err)
	}
	seed, err := strconv.ParseUint(getEnv("ESCALATION_BALANCER_SEED", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ESCALATION_BALANCER_SEED: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "grievance-escalation-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:       os.Getenv("REDIS_PASSWORD"),
			DB:             redisDB,
			ConnectTimeout: getEnvAsDuration("REDIS_CONNECT_TIMEOUT", 2*time.Second),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Notification: NotificationConfig{
			EmailFrom:     getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			SMTPHost:      os.Getenv("NOTIFY_SMTP_HOST"),
			SMTPPort:      getEnvAsInt("NOTIFY_SMTP_PORT", 587),
			SMTPUser:      os.Getenv("NOTIFY_SMTP_USER"),
			SMTPPassword:  os.Getenv("NOTIFY_SMTP_PASSWORD"),
			RedisChannel:  getEnv("NOTIFY_REDIS_CHANNEL", "grievance:notifications"),
			QueueSize:     getEnvAsInt("NOTIFY_QUEUE_SIZE", 256),
			Workers:       getEnvAsInt("NOTIFY_WORKERS", 2),
			RetryAttempts: getEnvAsInt("NOTIFY_RETRY_ATTEMPTS", 3),
			RetryBackoff:  getEnvAsDuration("NOTIFY_RETRY_BACKOFF", 2*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:      getEnvAsList("KAFKA_BROKERS", nil),
			AuditTopic:   getEnv("KAFKA_AUDIT_TOPIC", "grievance.audit"),
			WriteTimeout: getEnvAsDuration("KAFKA_WRITE_TIMEOUT", 10*time.Second),
			QueueSize:    getEnvAsInt("KAFKA_AUDIT_QUEUE_SIZE", 1024),
		},
		Escalation: EscalationConfig{
			TickInterval:              getEnvAsDuration("ESCALATION_TICK_INTERVAL", 5*time.Minute),
			LeaseTTL:                  getEnvAsDuration("ESCALATION_LEASE_TTL", 4*time.Minute),
			Cooldown:                  getEnvAsDuration("ESCALATION_COOLDOWN", 6*time.Hour),
			ReescalationBusinessHours: reescalation,
			RoleRank:                  getEnvAsList("ESCALATION_ROLE_RANK", []string{"agent", "manager", "admin"}),
			LevelTwoRoles:             getEnvAsList("ESCALATION_LEVEL2_ROLES", []string{"manager"}),
			LevelThreeRoles:           getEnvAsList("ESCALATION_LEVEL3_ROLES", []string{"manager", "admin"}),
			FallbackRoles:             getEnvAsList("ESCALATION_FALLBACK_ROLES", []string{"manager", "admin"}),
			NotifyRoles:               getEnvAsList("ESCALATION_NOTIFY_ROLES", []string{"manager", "admin"}),
			BalancerSeed:              seed,
			PolicyFile:                os.Getenv("ESCALATION_POLICY_FILE"),
			ReopenWindow:              getEnvAsDuration("ISSUE_REOPEN_WINDOW", 7*24*time.Hour),
		},
		BusinessHours: BusinessHoursConfig{
			StartHour: getEnvAsInt("BUSINESS_HOURS_START", 9),
			EndHour:   getEnvAsInt("BUSINESS_HOURS_END", 17),
			Weekdays:  getEnvAsList("BUSINESS_HOURS_WEEKDAYS", []string{"mon", "tue", "wed", "thu", "fri", "sat"}),
			Timezone:  getEnv("BUSINESS_HOURS_TZ", "UTC"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// AccessTokenTTL returns the lifetime of minted bearer tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// Enabled reports whether an audit mirror should be started.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0 && k.AuditTopic != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

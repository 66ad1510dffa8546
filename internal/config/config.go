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
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Kafka    KafkaConfig
	Workflow WorkflowConfig
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

// RedisConfig holds Redis connection values. An empty Addr disables Redis;
// KeyPrefix namespaces the cursor and lock keys.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level    string
	Encoding string
}

// AuthConfig defines authentication parameters. ServiceAccounts is keyed by client id.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	ServiceAccounts       map[string]ServiceAccount
}

// ServiceAccount is a machine client allowed to exchange a secret for a token.
type ServiceAccount struct {
	SecretHash string
	Role       string
}

// KafkaConfig configures the outbound action outbox. No brokers disables it.
type KafkaConfig struct {
	Brokers      []string
	ActionsTopic string
	EventsTopic  string
}

// WorkflowConfig tunes the automation engine.
type WorkflowConfig struct {
	TriggersFile         string
	DisableDefaults      bool
	SLACriticalHours     int
	SLAHighHours         int
	SLAMediumHours       int
	SLALowHours          int
	SweepIntervalSeconds int
	SweepLockTTLSeconds  int
	AgentPool            []string
	ActionRetryMax       int
	ActionRetryBaseMS    int
	ActionTimeoutSeconds int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	accounts, err := parseServiceAccounts(os.Getenv("AUTH_SERVICE_ACCOUNTS"))
	if err != nil {
		return nil, err
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "crm-automation"),
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
			Addr:      os.Getenv("REDIS_ADDR"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        redisDB,
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "crm-automation"),
		},
		Logger: LoggerConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			ServiceAccounts:       accounts,
		},
		Kafka: KafkaConfig{
			Brokers:      getEnvAsList("KAFKA_BROKERS"),
			ActionsTopic: getEnv("KAFKA_ACTIONS_TOPIC", "crm-automation-actions"),
			EventsTopic:  getEnv("KAFKA_EVENTS_TOPIC", "crm-workflow-events"),
		},
		Workflow: WorkflowConfig{
			TriggersFile:         os.Getenv("WORKFLOW_TRIGGERS_FILE"),
			DisableDefaults:      getEnvAsBool("WORKFLOW_DISABLE_DEFAULT_TRIGGERS", false),
			SLACriticalHours:     getEnvAsInt("SLA_CRITICAL_HOURS", 4),
			SLAHighHours:         getEnvAsInt("SLA_HIGH_HOURS", 24),
			SLAMediumHours:       getEnvAsInt("SLA_MEDIUM_HOURS", 48),
			SLALowHours:          getEnvAsInt("SLA_LOW_HOURS", 72),
			SweepIntervalSeconds: getEnvAsInt("SLA_SWEEP_INTERVAL_SECONDS", 300),
			SweepLockTTLSeconds:  getEnvAsInt("SLA_SWEEP_LOCK_TTL_SECONDS", 120),
			AgentPool:            getEnvAsList("ASSIGNMENT_AGENT_POOL"),
			ActionRetryMax:       getEnvAsInt("ACTION_RETRY_MAX", 0),
			ActionRetryBaseMS:    getEnvAsInt("ACTION_RETRY_BASE_MS", 200),
			ActionTimeoutSeconds: getEnvAsInt("ACTION_TIMEOUT_SECONDS", 0),
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

// SweepInterval returns how often the SLA monitor runs.
func (w WorkflowConfig) SweepInterval() time.Duration {
	if w.SweepIntervalSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(w.SweepIntervalSeconds) * time.Second
}

// SweepLockTTL bounds how long one instance may hold the sweep lock.
func (w WorkflowConfig) SweepLockTTL() time.Duration {
	if w.SweepLockTTLSeconds <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(w.SweepLockTTLSeconds) * time.Second
}

// ActionTimeout returns the per-action deadline, zero meaning none.
func (w WorkflowConfig) ActionTimeout() time.Duration {
	if w.ActionTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(w.ActionTimeoutSeconds) * time.Second
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

func getEnvAsList(key string) []string {
	val := os.Getenv(key)
	if strings.TrimSpace(val) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseServiceAccounts reads "id:role:bcrypt-hash" triples separated by ';'.
// Bcrypt hashes contain '$' but never ':' or ';'.
func parseServiceAccounts(raw string) (map[string]ServiceAccount, error) {
	accounts := map[string]ServiceAccount{}
	if strings.TrimSpace(raw) == "" {
		return accounts, nil
	}
	for _, item := range strings.Split(raw, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, ":", 3)
		if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
			return nil, fmt.Errorf("invalid AUTH_SERVICE_ACCOUNTS entry %q", item)
		}
		accounts[parts[0]] = ServiceAccount{Role: parts[1], SecretHash: parts[2]}
	}
	return accounts, nil
}

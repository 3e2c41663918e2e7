package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env     string
	Server  ServerConfig
	Redis   RedisConfig
	Room    RoomConfig
	JWT     JWTConfig
	Log     LogConfig
	Kafka   KafkaConfig
	Catalog CatalogConfig
}

type ServerConfig struct {
	HTTPPort     int
	GRpcPort     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	AllowOrigins []string
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
}

type RoomConfig struct {
	SweepInterval   time.Duration
	PersistInterval time.Duration
	StaleAfter      time.Duration
	DefaultCapacity int
	MaxCapacity     int
	CodeLength      int
	PageSize        int
}

type KafkaConfig struct {
	Enabled              bool
	Brokers              []string
	ClientID             string
	ProducerRetryMax     int
	ProducerRequiredAcks int
	ConsumerGroupID      string
	ConsumerFromOldest   bool
}

type CatalogConfig struct {
	DSN string
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type LogConfig struct {
	Level    string
	Mode     string
	Encoding string
}

func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := &Config{
		Env: getEnv("ENV", "development"),
		Server: ServerConfig{
			HTTPPort:     getEnvAsInt("SERVER_HTTP_PORT", 8080),
			GRpcPort:     getEnvAsInt("SERVER_GRPC_PORT", 50056),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			AllowOrigins: getEnvAsSlice("SERVER_ALLOW_ORIGINS", []string{"http://localhost:5173"}),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "localhost:6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			MaxRetries:   getEnvAsInt("REDIS_MAX_RETRIES", 3),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
		},
		Room: RoomConfig{
			SweepInterval:   getEnvAsDuration("ROOM_SWEEP_INTERVAL", 2*time.Second),
			PersistInterval: getEnvAsDuration("ROOM_PERSIST_INTERVAL", 10*time.Second),
			StaleAfter:      getEnvAsDuration("ROOM_PARTICIPANT_STALE_AFTER", 90*time.Second),
			DefaultCapacity: getEnvAsInt("ROOM_DEFAULT_CAPACITY", 20),
			MaxCapacity:     getEnvAsInt("ROOM_MAX_CAPACITY", 100),
			CodeLength:      getEnvAsInt("ROOM_CODE_LENGTH", 6),
			PageSize:        getEnvAsInt("ROOM_PAGE_SIZE", 20),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "jwt-secret"),
			Issuer: getEnv("JWT_ISSUER", ""),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Mode:     getEnv("LOG_MODE", "development"),
			Encoding: getEnv("LOG_ENCODING", "console"),
		},
		Kafka: KafkaConfig{
			Enabled:              getEnvAsBool("KAFKA_ENABLED", false),
			Brokers:              getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			ClientID:             getEnv("KAFKA_CLIENT_ID", "listenroom"),
			ProducerRetryMax:     getEnvAsInt("KAFKA_PRODUCER_RETRY_MAX", 3),
			ProducerRequiredAcks: getEnvAsInt("KAFKA_PRODUCER_REQUIRED_ACKS", 1),
			ConsumerGroupID:      getEnv("KAFKA_CONSUMER_GROUP_ID", "listenroom-service"),
			ConsumerFromOldest:   getEnvAsBool("KAFKA_CONSUMER_FROM_OLDEST", false),
		},
		Catalog: CatalogConfig{
			DSN: getEnv("CATALOG_DSN", "file:catalog.db?_pragma=foreign_keys(1)"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http port: %d", c.Server.HTTPPort)
	}

	if c.Server.GRpcPort <= 0 || c.Server.GRpcPort > 65535 {
		return fmt.Errorf("invalid grpc port: %d", c.Server.GRpcPort)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if c.Room.SweepInterval <= 0 {
		return fmt.Errorf("room sweep interval must be positive")
	}

	if c.Room.PersistInterval < c.Room.SweepInterval {
		return fmt.Errorf("room persist interval (%s) must not be shorter than sweep interval (%s)",
			c.Room.PersistInterval, c.Room.SweepInterval)
	}

	if c.Room.DefaultCapacity <= 0 || c.Room.DefaultCapacity > c.Room.MaxCapacity {
		return fmt.Errorf("invalid default room capacity: %d", c.Room.DefaultCapacity)
	}

	if c.Room.CodeLength < 4 {
		return fmt.Errorf("room code length must be at least 4")
	}

	if c.JWT.Secret == "" || c.JWT.Secret == "jwt-secret" {
		if c.Env == "production" {
			return fmt.Errorf("JWT secret must be set in production")
		}
	}

	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required when kafka is enabled")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return defaultValue
}

// lookupEnv parses key with parse and falls back to defaultValue when the
// variable is unset or does not parse.
func lookupEnv[T any](key string, defaultValue T, parse func(string) (T, error)) T {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	value, err := parse(raw)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	return lookupEnv(key, defaultValue, strconv.Atoi)
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	return lookupEnv(key, defaultValue, time.ParseDuration)
}

func getEnvAsBool(key string, defaultValue bool) bool {
	return lookupEnv(key, defaultValue, strconv.ParseBool)
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	return lookupEnv(key, defaultValue, func(raw string) ([]string, error) {
		var out []string
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("%s has no values", key)
		}
		return out, nil
	})
}

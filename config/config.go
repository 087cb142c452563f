package config

import (
	"os"
	"strconv"
)

type Config struct {
	Server    ServerConfig
	Logger    LoggerConfig
	Storage   StorageConfig
	MySQL     MySQLConfig
	Redis     RedisConfig
	Locations LocationsConfig
	Legacy    LegacyConfig
}

type ServerConfig struct {
	AppEnv          string
	HTTPPort        string
	GRPCPort        string
	ShutdownTimeout int
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

// StorageConfig selects the persistence backend: "memory" or "mysql".
type StorageConfig struct {
	Driver  string
	Migrate bool
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LocationsConfig selects the location resolver: "static" or "redis".
type LocationsConfig struct {
	Resolver string
	Seed     bool
}

type LegacyConfig struct {
	Enabled   bool
	Workers   int
	QueueSize int
	OutputDir string
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:          getEnv("APP_ENV", "dev"),
			HTTPPort:        getEnv("HTTP_PORT", "8080"),
			GRPCPort:        getEnv("GRPC_PORT", "50051"),
			ShutdownTimeout: getEnvInt("SHUTDOWN_TIMEOUT_SECONDS", 10),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "info"),
			Encoding:          getEnv("LOGGER_ENCODING", "json"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Storage: StorageConfig{
			Driver:  getEnv("STORAGE_DRIVER", "memory"),
			Migrate: getEnvBool("STORAGE_MIGRATE", true),
		},
		MySQL: MySQLConfig{
			DSN:             getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/fulfilment?parseTime=true"),
			MaxOpenConns:    getEnvInt("MYSQL_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("MYSQL_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvInt("MYSQL_CONN_MAX_LIFETIME", 300),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Locations: LocationsConfig{
			Resolver: getEnv("LOCATION_RESOLVER", "static"),
			Seed:     getEnvBool("LOCATION_SEED", true),
		},
		Legacy: LegacyConfig{
			Enabled:   getEnvBool("LEGACY_SYNC_ENABLED", true),
			Workers:   getEnvInt("LEGACY_SYNC_WORKERS", 4),
			QueueSize: getEnvInt("LEGACY_SYNC_QUEUE_SIZE", 1000),
			OutputDir: getEnv("LEGACY_SYNC_DIR", os.TempDir()),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultEnv                  = "development"
	DefaultPort                 = "8080"
	DefaultDBDriver             = "postgres"
	DefaultTokenExpiryHours     = 24
	DefaultRememberMeExpiryDays = 30
	DefaultLoginMaxAttempts     = 5
	DefaultLoginWindowMinutes   = 15
	DefaultRateLimitBackend     = "memory"
	DefaultRedisAddr            = "localhost:6379"
	DefaultRedisDB              = 0
	DefaultKafkaTopic           = "auth.activity"
	DefaultThrottleRPS          = 10
	DefaultThrottleBurst        = 20
	DefaultAutoMigrate          = true
	DefaultShutdownTimeoutSec   = 10
)

type Config struct {
	Env                  string
	Port                 string
	DBDriver             string
	DBURL                string
	JWTSecret            string
	TokenExpiryHours     int
	RememberMeExpiryDays int
	LoginMaxAttempts     int
	LoginWindowMinutes   int
	RateLimitBackend     string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	KafkaBrokers         []string
	KafkaTopic           string
	ThrottleRPS          int
	ThrottleBurst        int
	AutoMigrate          bool
	ShutdownTimeoutSec   int
}

// IsProduction reports whether cookies must be marked Secure.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from the process environment, falling back to
// config/.env.dev or config/.env.prod (picked by ENV) and then to defaults.
// Process environment always wins over the file.
func Load() *Config {
	env := getEnv("ENV", DefaultEnv)
	src := newSource(envFile(env))

	return &Config{
		Env:                  env,
		Port:                 src.get("PORT", DefaultPort),
		DBDriver:             src.get("DB_DRIVER", DefaultDBDriver),
		DBURL:                src.mustGet("DB_URL"),
		JWTSecret:            src.mustGet("JWT_SECRET"),
		TokenExpiryHours:     src.getInt("TOKEN_EXPIRY_HOURS", DefaultTokenExpiryHours),
		RememberMeExpiryDays: src.getInt("REMEMBER_ME_EXPIRY_DAYS", DefaultRememberMeExpiryDays),
		LoginMaxAttempts:     src.getInt("LOGIN_MAX_ATTEMPTS", DefaultLoginMaxAttempts),
		LoginWindowMinutes:   src.getInt("LOGIN_WINDOW_MINUTES", DefaultLoginWindowMinutes),
		RateLimitBackend:     src.get("RATE_LIMIT_BACKEND", DefaultRateLimitBackend),
		RedisAddr:            src.get("REDIS_ADDR", DefaultRedisAddr),
		RedisPassword:        src.get("REDIS_PASSWORD", ""),
		RedisDB:              src.getInt("REDIS_DB", DefaultRedisDB),
		KafkaBrokers:         splitList(src.get("KAFKA_BROKERS", "")),
		KafkaTopic:           src.get("KAFKA_TOPIC", DefaultKafkaTopic),
		ThrottleRPS:          src.getInt("THROTTLE_RPS", DefaultThrottleRPS),
		ThrottleBurst:        src.getInt("THROTTLE_BURST", DefaultThrottleBurst),
		AutoMigrate:          src.getBool("AUTO_MIGRATE", DefaultAutoMigrate),
		ShutdownTimeoutSec:   src.getInt("SHUTDOWN_TIMEOUT_SECONDS", DefaultShutdownTimeoutSec),
	}
}

func envFile(env string) string {
	name := ".env.dev"
	if env == "production" {
		name = ".env.prod"
	}
	return filepath.Join("config", name)
}

// source resolves keys against the environment first and the env file second.
type source struct {
	file map[string]string
}

func newSource(path string) *source {
	values, err := godotenv.Read(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Could not read %s: %v", path, err)
		}
		values = map[string]string{}
	}
	return &source{file: values}
}

func (s *source) lookup(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return s.file[key]
}

func (s *source) get(key, defaultVal string) string {
	if value := s.lookup(key); value != "" {
		return value
	}
	return defaultVal
}

func (s *source) mustGet(key string) string {
	if value := s.lookup(key); value != "" {
		return value
	}
	log.Fatalf("Missing required config: %s", key)
	return ""
}

func (s *source) getInt(key string, defaultVal int) int {
	valStr := s.lookup(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		log.Printf("Invalid value for %s, using default %d", key, defaultVal)
		return defaultVal
	}
	return val
}

func (s *source) getBool(key string, defaultVal bool) bool {
	valStr := s.lookup(key)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Invalid value for %s, using default %t", key, defaultVal)
		return defaultVal
	}
	return val
}

func getEnv(key string, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

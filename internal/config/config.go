package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPPort    string
	DatabaseDSN string
	JWTSecret   string
	TokenTTL    time.Duration
	CORSOrigins string
	LogLevel    string

	// Boşsa dağıtık kilit kullanılmaz, sadece satır kilitleri devrede
	RedisAddress string
	LockTTL      time.Duration

	BOMMaxDepth          int
	ProductionTimeout    time.Duration
	ProductionMaxRetries int
}

const defaultDSN = "host=localhost user=postgres password=postgres dbname=imalat port=5432 sslmode=disable"

func Load() *Config {
	// .env yoksa sorun değil, ortam değişkenleri kullanılır
	_ = godotenv.Load()

	cfg := &Config{
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		DatabaseDSN:          getEnv("DATABASE_DSN", defaultDSN),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		TokenTTL:             getDuration("JWT_TTL", 12*time.Hour),
		CORSOrigins:          getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		RedisAddress:         getEnv("REDIS_ADDRESS", ""),
		LockTTL:              getDuration("LOCK_TTL", 10*time.Second),
		BOMMaxDepth:          getInt("BOM_MAX_DEPTH", 20),
		ProductionTimeout:    getDuration("PRODUCTION_TIMEOUT", 30*time.Second),
		ProductionMaxRetries: getInt("PRODUCTION_MAX_RETRIES", 3),
	}

	SetLogLevel(cfg.LogLevel)
	logger := GetLogger()

	// Production güvenlik kontrolleri
	if cfg.JWTSecret == "" {
		logger.Fatal("JWT_SECRET environment değişkeni tanımlanmamış! Production için zorunludur.")
	}
	if len(cfg.JWTSecret) < 32 {
		logger.Fatal("JWT_SECRET en az 32 karakter olmalıdır! Güvenlik riski.")
	}
	if cfg.TokenTTL <= 0 {
		logger.Warnf("JWT_TTL=%s geçersiz, 12h kullanılıyor", cfg.TokenTTL)
		cfg.TokenTTL = 12 * time.Hour
	}
	if cfg.DatabaseDSN == defaultDSN {
		logger.Warn("DATABASE_DSN varsayılan değer kullanılıyor, production için kendi Postgres bağlantı bilgisini tanımla.")
	}
	if cfg.BOMMaxDepth < 1 {
		logger.Warnf("BOM_MAX_DEPTH=%d geçersiz, 20 kullanılıyor", cfg.BOMMaxDepth)
		cfg.BOMMaxDepth = 20
	}
	if cfg.ProductionMaxRetries < 0 {
		cfg.ProductionMaxRetries = 0
	}

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		GetLogger().Warnf("%s=%q sayı değil, varsayılan %d kullanılıyor", key, v, def)
		return def
	}
	return n
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		GetLogger().Warnf("%s=%q süre değil, varsayılan %s kullanılıyor", key, v, def)
		return def
	}
	return d
}

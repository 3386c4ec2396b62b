// Package config reads runtime settings from the environment.
package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	DatabaseURL   string
	RedisURL      string
	SessionSecret string
	UploadDir     string
	MaxUploadMB   int
	GinMode       string
	VoteRetries   int
	MarkdownCache int
}

// Load 读取 .env（可选）和环境变量，未设置的项使用默认值
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, finding env vars from system")
	}

	return &Config{
		Port:          getEnv("PORT", "8080"),
		DatabaseURL:   getEnv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=campushub port=5432 sslmode=disable TimeZone=Asia/Shanghai"),
		RedisURL:      os.Getenv("REDIS_URL"),
		SessionSecret: getEnv("SESSION_SECRET", "secret_key_change_me"),
		UploadDir:     getEnv("UPLOAD_DIR", "./uploads"),
		MaxUploadMB:   getEnvInt("MAX_UPLOAD_MB", 25),
		GinMode:       os.Getenv("GIN_MODE"),
		VoteRetries:   getEnvInt("VOTE_MAX_RETRIES", 5),
		MarkdownCache: getEnvInt("MARKDOWN_CACHE_SIZE", 500),
	}
}

// MaxUploadBytes is the per-attachment size limit.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration sourced from the environment.
type Config struct {
	Port        int
	DatabaseDSN string
	RealtimeURL string
	JWTSecret   string
}

// Load reads configuration from a .env file (if present) and the process
// environment. A missing DSN or realtime URL is not an error here; the chat
// adapter degrades to empty reads when unconfigured.
func Load() Config {
	_ = godotenv.Load()

	port := 8080
	if v := os.Getenv("APP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			port = p
		}
	}

	dsn := os.Getenv("DB_DSN")
	if dsn == "" && os.Getenv("DB_HOST") != "" {
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
			os.Getenv("DB_USER"),
			os.Getenv("DB_PASSWORD"),
			os.Getenv("DB_HOST"),
			os.Getenv("DB_PORT"),
			os.Getenv("DB_NAME"),
		)
	}

	return Config{
		Port:        port,
		DatabaseDSN: dsn,
		RealtimeURL: os.Getenv("REALTIME_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
	}
}

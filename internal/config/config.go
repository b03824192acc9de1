package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port  string
	Env   string
	Debug bool

	// Database
	DatabaseURL string

	// LLM upstream
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	LLMModel          string
	LLMTimeoutSeconds int
	HistoryWindow     int

	// HTTP hardening
	AllowedOrigins []string
	CookieSecure   bool
	MaxBodyBytes   int64
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:              getEnvOrDefault("PORT", "8080"),
		Env:               getEnvOrDefault("ENV", "development"),
		Debug:             getEnvAsBoolOrDefault("DEBUG", false),
		DatabaseURL:       mustGetEnv("DATABASE_URL"),
		OpenAIAPIKey:      mustGetEnv("OPENAI_API_KEY"),
		OpenAIBaseURL:     getEnvOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		LLMModel:          getEnvOrDefault("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeoutSeconds: getEnvAsIntOrDefault("LLM_TIMEOUT_SECONDS", 30),
		HistoryWindow:     getEnvAsIntOrDefault("HISTORY_WINDOW", 20),
		AllowedOrigins:    splitAndTrim(getEnvOrDefault("ALLOWED_ORIGINS", "")),
		CookieSecure:      getEnvAsBoolOrDefault("COOKIE_SECURE", false),
		MaxBodyBytes:      int64(getEnvAsIntOrDefault("MAX_BODY_BYTES", 65536)),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsBoolOrDefault(key string, defaultVal bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

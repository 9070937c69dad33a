package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

type Config struct {
	Port              string
	AssemblyAIAPIKey  string
	OpenAIAPIKey      string
	OpenAIModel       string
	DataDir           string
	DBPath            string
	MaxUploadBytes    int64
	MaxProcessingTime time.Duration
}

func LoadConfig() (Config, error) {
	cfg := Config{}

	cfg.Port = envOrDefault("PORT", "8080")
	cfg.AssemblyAIAPIKey = os.Getenv("ASSEMBLYAI_API_KEY")
	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIModel = envOrDefault("OPENAI_MODEL", "gpt-4o-mini")
	cfg.DataDir = envOrDefault("DATA_DIR", "data")

	maxUploadMB, err := parseIntEnv("MAX_UPLOAD_MB", 500)
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_UPLOAD_MB: %w", err)
	}
	cfg.MaxUploadBytes = maxUploadMB * 1024 * 1024

	// Client-side polling cutoff only; orchestration runs are never
	// cancelled server side.
	maxProcessingSeconds, err := parseIntEnv("MAX_PROCESSING_SECONDS", 1800)
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_PROCESSING_SECONDS: %w", err)
	}
	cfg.MaxProcessingTime = time.Duration(maxProcessingSeconds) * time.Second

	absDataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return Config{}, fmt.Errorf("resolve data dir: %w", err)
	}
	cfg.DataDir = absDataDir
	cfg.DBPath = envOrDefault("DB_PATH", filepath.Join(cfg.DataDir, "abhiscript.db"))

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func parseIntEnv(key string, fallback int64) (int64, error) {
	value := envOrDefault(key, "")
	if value == "" {
		return fallback, nil
	}

	num, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}
	return num, nil
}

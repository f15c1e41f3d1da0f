package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Gemini AI
	GeminiAPIKeys         []string
	GeminiModel           string
	GeminiProbeModel      string
	GeminiTemperature     float32
	GeminiMaxOutputTokens int
	GeminiConcurrentReqs  int
	GenerationTimeoutSecs int
	ProcessingPollSecs    int
	ProcessingMaxWaitSecs int
	MaxKeyAttempts        int

	// Media limits
	MaxUploadMB     int
	MaxInferenceMB  int
	MaxVideoMinutes int

	// Sources
	DriveBaseURL string

	// Workers
	WorkerCount int

	// Storage
	StoragePath string

	// Frontend
	FrontendURL string
}

// fileConfig is the optional YAML file named by CONFIG_FILE.
// Environment variables take precedence over anything set here.
type fileConfig struct {
	GeminiAPIKeys   []string `yaml:"gemini_api_keys"`
	GeminiModel     string   `yaml:"gemini_model"`
	MaxUploadMB     int      `yaml:"max_upload_mb"`
	MaxInferenceMB  int      `yaml:"max_inference_mb"`
	MaxVideoMinutes int      `yaml:"max_video_minutes"`
	MaxKeyAttempts  int      `yaml:"max_key_attempts"`
	StoragePath     string   `yaml:"storage_path"`
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	file, err := loadFile(os.Getenv("CONFIG_FILE"))
	if err != nil {
		panic(err.Error())
	}

	cfg := &Config{
		Port:                  getEnvOrDefault("PORT", "8080"),
		Env:                   getEnvOrDefault("ENV", "development"),
		DatabaseURL:           mustGetEnv("DATABASE_URL"),
		RedisURL:              getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		GeminiAPIKeys:         mergeKeys(file.GeminiAPIKeys, splitList(os.Getenv("GEMINI_API_KEYS")), []string{os.Getenv("GEMINI_API_KEY")}),
		GeminiModel:           getEnvOrDefault("GEMINI_MODEL", firstNonEmpty(file.GeminiModel, "gemini-2.0-flash")),
		GeminiProbeModel:      getEnvOrDefault("GEMINI_PROBE_MODEL", "gemini-1.5-flash"),
		GeminiTemperature:     getEnvAsFloatOrDefault("GEMINI_TEMPERATURE", 0.3),
		GeminiMaxOutputTokens: getEnvAsIntOrDefault("GEMINI_MAX_OUTPUT_TOKENS", 8192),
		GeminiConcurrentReqs:  getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		GenerationTimeoutSecs: getEnvAsIntOrDefault("GENERATION_TIMEOUT_SECONDS", 600),
		ProcessingPollSecs:    getEnvAsIntOrDefault("PROCESSING_POLL_SECONDS", 2),
		ProcessingMaxWaitSecs: getEnvAsIntOrDefault("PROCESSING_MAX_WAIT_SECONDS", 600),
		MaxKeyAttempts:        getEnvAsIntOrDefault("MAX_KEY_ATTEMPTS", orDefault(file.MaxKeyAttempts, 3)),
		MaxUploadMB:           getEnvAsIntOrDefault("MAX_UPLOAD_MB", orDefault(file.MaxUploadMB, 100)),
		MaxInferenceMB:        getEnvAsIntOrDefault("MAX_INFERENCE_MB", orDefault(file.MaxInferenceMB, 500)),
		MaxVideoMinutes:       getEnvAsIntOrDefault("MAX_VIDEO_MINUTES", orDefault(file.MaxVideoMinutes, 120)),
		DriveBaseURL:          getEnvOrDefault("DRIVE_BASE_URL", "https://drive.google.com"),
		WorkerCount:           getEnvAsIntOrDefault("WORKER_COUNT", 3),
		StoragePath:           getEnvOrDefault("STORAGE_PATH", firstNonEmpty(file.StoragePath, "./uploads")),
		FrontendURL:           getEnvOrDefault("FRONTEND_URL", "http://localhost:8501"),
	}

	return cfg
}

func loadFile(path string) (fileConfig, error) {
	var fc fileConfig
	if path == "" {
		return fc, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return fc, nil
}

// mergeKeys concatenates credential sources in order, dropping blanks and duplicates.
func mergeKeys(sources ...[]string) []string {
	seen := make(map[string]bool)
	var keys []string
	for _, src := range sources {
		for _, k := range src {
			k = strings.TrimSpace(k)
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	return strings.Split(val, ",")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func orDefault(val, defaultVal int) int {
	if val > 0 {
		return val
	}
	return defaultVal
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

func getEnvAsFloatOrDefault(key string, defaultVal float32) float32 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 32)
	if err != nil {
		return defaultVal
	}
	return float32(f)
}

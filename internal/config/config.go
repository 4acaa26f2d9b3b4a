// Package config reads vidgrab settings from the environment, optionally
// seeded from a .env.local file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

type Config struct {
	// client
	ServerURL    string
	PollInterval time.Duration
	PollTimeout  time.Duration
	PollRetries  int
	PollBackoff  time.Duration

	// backend
	Port               string
	GinMode            string
	CORSAllowedOrigins string
	DownloadDir        string
	JobStore           string
	JobDataDir         string
	RedisURL           string
	JobExpireMinutes   int
	PushInterval       time.Duration

	// yt-dlp
	JSRuntime   string
	CookiesPath string
}

// Load reads .env.local (if present) and then the process environment.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		ServerURL:    getEnv("VIDGRAB_SERVER", "http://127.0.0.1:8080"),
		PollInterval: getEnvAsDuration("VIDGRAB_POLL_INTERVAL", time.Second),
		PollTimeout:  getEnvAsDuration("VIDGRAB_POLL_TIMEOUT", 10*time.Second),
		PollRetries:  getEnvAsInt("VIDGRAB_POLL_RETRIES", 0),
		PollBackoff:  getEnvAsDuration("VIDGRAB_POLL_BACKOFF", 2*time.Second),

		Port:               getEnv("PORT", "8080"),
		GinMode:            getEnv("GIN_MODE", "debug"),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", ""),
		DownloadDir:        getEnv("DOWNLOAD_DIR", "downloads"),
		JobStore:           strings.ToLower(getEnv("JOB_STORE", StoreMemory)),
		JobDataDir:         getEnv("JOB_DATA_DIR", filepath.Join(".vidgrab", "jobs")),
		RedisURL:           getEnv("REDIS_URL", ""),
		JobExpireMinutes:   getEnvAsInt("JOB_EXPIRE_MINUTES", 60),
		PushInterval:       getEnvAsDuration("PUSH_INTERVAL", 500*time.Millisecond),

		JSRuntime:   getEnv("YTDLP_JS_RUNTIME", "auto"),
		CookiesPath: getEnv("YTDLP_COOKIES", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}
	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}
	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.ServerURL) == "" {
		return fmt.Errorf("VIDGRAB_SERVER must not be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("VIDGRAB_POLL_INTERVAL must be positive")
	}
	if c.PollTimeout <= 0 {
		return fmt.Errorf("VIDGRAB_POLL_TIMEOUT must be positive")
	}
	if c.PollRetries < 0 {
		return fmt.Errorf("VIDGRAB_POLL_RETRIES must not be negative")
	}
	if c.PollBackoff < 0 {
		return fmt.Errorf("VIDGRAB_POLL_BACKOFF must not be negative")
	}
	if c.PushInterval <= 0 {
		return fmt.Errorf("PUSH_INTERVAL must be positive")
	}
	if c.JobExpireMinutes <= 0 {
		return fmt.Errorf("JOB_EXPIRE_MINUTES must be positive")
	}
	switch c.JobStore {
	case StoreMemory, StoreFile:
	case StoreRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			return fmt.Errorf("REDIS_URL is required when JOB_STORE=redis")
		}
	default:
		return fmt.Errorf("unknown JOB_STORE %q (expected memory, file, or redis)", c.JobStore)
	}
	return nil
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	out := []string{}
	for _, part := range strings.Split(c.CORSAllowedOrigins, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (c *Config) JobTTL() time.Duration {
	return time.Duration(c.JobExpireMinutes) * time.Minute
}

func (c *Config) ListenAddr() string {
	port := strings.TrimSpace(c.Port)
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}

func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("750ms") or bare seconds ("2").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}

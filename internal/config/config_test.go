package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func chdirTemp(t *testing.T) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "work")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	for _, key := range []string{
		"VIDGRAB_SERVER", "VIDGRAB_POLL_INTERVAL", "VIDGRAB_POLL_TIMEOUT", "VIDGRAB_POLL_RETRIES",
		"VIDGRAB_POLL_BACKOFF", "PORT", "JOB_STORE", "REDIS_URL", "JOB_EXPIRE_MINUTES", "PUSH_INTERVAL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerURL != "http://127.0.0.1:8080" {
		t.Fatalf("unexpected server url: %q", cfg.ServerURL)
	}
	if cfg.PollInterval != time.Second || cfg.PollTimeout != 10*time.Second {
		t.Fatalf("unexpected poll timings: %v %v", cfg.PollInterval, cfg.PollTimeout)
	}
	if cfg.PollRetries != 0 {
		t.Fatalf("expected no retries by default, got %d", cfg.PollRetries)
	}
	if cfg.JobStore != StoreMemory {
		t.Fatalf("unexpected store: %q", cfg.JobStore)
	}
	if cfg.ListenAddr() != ":8080" {
		t.Fatalf("unexpected listen addr: %q", cfg.ListenAddr())
	}
	if cfg.JobTTL() != time.Hour {
		t.Fatalf("unexpected ttl: %v", cfg.JobTTL())
	}
}

func TestLoadReadsEnvFileFromParent(t *testing.T) {
	chdirTemp(t)
	cwd, _ := os.Getwd()
	envPath := filepath.Join(filepath.Dir(cwd), ".env.local")
	if err := os.WriteFile(envPath, []byte("VIDGRAB_POLL_INTERVAL=250ms\nVIDGRAB_POLL_RETRIES=2\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	// godotenv never overrides variables already present in the environment.
	t.Setenv("VIDGRAB_POLL_INTERVAL", "")
	t.Setenv("VIDGRAB_POLL_RETRIES", "")
	os.Unsetenv("VIDGRAB_POLL_INTERVAL")
	os.Unsetenv("VIDGRAB_POLL_RETRIES")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Fatalf("expected interval from env file, got %v", cfg.PollInterval)
	}
	if cfg.PollRetries != 2 {
		t.Fatalf("expected retries from env file, got %d", cfg.PollRetries)
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{"", 3 * time.Second},
		{"750ms", 750 * time.Millisecond},
		{"2", 2 * time.Second},
		{"0.5", 500 * time.Millisecond},
		{"soon", 3 * time.Second},
	}
	for _, tc := range tests {
		t.Setenv("VIDGRAB_TEST_DURATION", tc.raw)
		if got := getEnvAsDuration("VIDGRAB_TEST_DURATION", 3*time.Second); got != tc.want {
			t.Errorf("getEnvAsDuration(%q) = %v, expected %v", tc.raw, got, tc.want)
		}
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			ServerURL:        "http://localhost:8080",
			PollInterval:     time.Second,
			PollTimeout:      time.Second,
			PushInterval:     time.Second,
			JobExpireMinutes: 10,
			JobStore:         StoreMemory,
		}
	}

	ok := base()
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cases := map[string]func(c *Config){
		"zero interval":      func(c *Config) { c.PollInterval = 0 },
		"zero timeout":       func(c *Config) { c.PollTimeout = 0 },
		"negative retries":   func(c *Config) { c.PollRetries = -1 },
		"unknown store":      func(c *Config) { c.JobStore = "sqlite" },
		"redis without url":  func(c *Config) { c.JobStore = StoreRedis },
		"empty server":       func(c *Config) { c.ServerURL = " " },
		"zero expire":        func(c *Config) { c.JobExpireMinutes = 0 },
		"zero push interval": func(c *Config) { c.PushInterval = 0 },
	}
	for name, mutate := range cases {
		c := base()
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestAllowedOrigins(t *testing.T) {
	c := Config{CORSAllowedOrigins: " http://a.test, ,http://b.test "}
	got := c.AllowedOrigins()
	if len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
		t.Fatalf("unexpected origins: %v", got)
	}
}

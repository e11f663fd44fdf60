package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, "AIMARKET_") {
			t.Setenv(key, "")
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.ListenPort != ":8080" {
		t.Errorf("ListenPort = %q, want :8080", cfg.ListenPort)
	}
	if cfg.Store != StoreMemory || cfg.EventBus != BusMemory || cfg.Mailer != MailerLog {
		t.Errorf("Store/EventBus/Mailer = %s/%s/%s, want memory/memory/log", cfg.Store, cfg.EventBus, cfg.Mailer)
	}
	if !cfg.StrictWrites {
		t.Error("StrictWrites should default to true")
	}
	if cfg.MaxBodyBytes != 64<<10 {
		t.Errorf("MaxBodyBytes = %d, want %d", cfg.MaxBodyBytes, 64<<10)
	}
	if cfg.SubmitBurst != 10 || cfg.SubmitRefillPerHr != 10 {
		t.Errorf("submit guard = %d/%d, want 10/10", cfg.SubmitBurst, cfg.SubmitRefillPerHr)
	}
	if cfg.NotifyTo != "info@ai-marketplace.fi" {
		t.Errorf("NotifyTo = %q", cfg.NotifyTo)
	}
	if cfg.NotifyDedup != 10*time.Minute {
		t.Errorf("NotifyDedup = %v, want 10m", cfg.NotifyDedup)
	}
	if cfg.PendingTTL != 0 || cfg.SweepInterval != time.Hour {
		t.Errorf("PendingTTL/SweepInterval = %v/%v, want 0/1h", cfg.PendingTTL, cfg.SweepInterval)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "*" {
		t.Errorf("CORSOrigins = %v, want [*]", cfg.CORSOrigins)
	}
	if len(cfg.AllowedCIDRS) != 2 {
		t.Errorf("AllowedCIDRS = %v, want loopback only", cfg.AllowedCIDRS)
	}
	if cfg.NeedsRedis() {
		t.Error("NeedsRedis() = true with memory store and bus")
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("AIMARKET_STORE", "SQL")
	t.Setenv("AIMARKET_SQL_DRIVER", "postgres")
	t.Setenv("AIMARKET_EVENT_BUS", "redis")
	t.Setenv("AIMARKET_REDIS_ADDR", "localhost:6379")
	t.Setenv("AIMARKET_STRICT_WRITES", "false")
	t.Setenv("AIMARKET_CORS_ORIGINS", "https://a.fi, 'https://b.fi'")

	cfg := Load()

	if cfg.Store != StoreSQL || cfg.SQLDriver != "postgres" {
		t.Errorf("Store = %s (%s), want sql (postgres)", cfg.Store, cfg.SQLDriver)
	}
	if !cfg.NeedsRedis() {
		t.Error("NeedsRedis() = false with redis bus")
	}
	if cfg.StrictWrites {
		t.Error("StrictWrites = true, want false")
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.fi" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestLoadPanics(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "unknown store", env: map[string]string{"AIMARKET_STORE": "dynamo"}},
		{name: "unknown mailer", env: map[string]string{"AIMARKET_MAILER": "pigeon"}},
		{name: "redis store without address", env: map[string]string{"AIMARKET_STORE": "redis"}},
		{name: "required password missing", env: map[string]string{"AIMARKET_REDIS_PASSWORD_REQUIRED": "true"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			defer func() {
				if r := recover(); r == nil {
					t.Errorf("Load() should have panicked")
				}
			}()
			Load()
		})
	}
}

func TestRequireOneOf(t *testing.T) {
	t.Setenv("TEST_ONE_OF", " Redis ")
	if got := requireOneOf("TEST_ONE_OF", "memory", "memory", "redis"); got != "redis" {
		t.Errorf("requireOneOf() = %q, want redis", got)
	}
	if got := requireOneOf("TEST_ONE_OF_MISSING", "memory", "memory", "redis"); got != "memory" {
		t.Errorf("requireOneOf() default = %q, want memory", got)
	}
}

func TestSplitAndTrim(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: "a", want: []string{"a"}},
		{in: " a , ,'b', \"c\" ", want: []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		got := splitAndTrim(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitAndTrim(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitAndTrim(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}

func TestMustDuration(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      time.Duration
		expected time.Duration
	}{
		{
			name:     "valid duration",
			key:      "TEST_DURATION",
			value:    "5s",
			def:      1 * time.Second,
			expected: 5 * time.Second,
		},
		{
			name:     "invalid duration uses default",
			key:      "TEST_DURATION_INVALID",
			value:    "invalid",
			def:      10 * time.Second,
			expected: 10 * time.Second,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_DURATION_MISSING",
			value:    "",
			def:      15 * time.Second,
			expected: 15 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			result := mustDuration(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustDuration() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMustBool(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		value    string
		def      bool
		expected bool
	}{
		{
			name:     "true value",
			key:      "TEST_BOOL",
			value:    "true",
			def:      false,
			expected: true,
		},
		{
			name:     "false value",
			key:      "TEST_BOOL_FALSE",
			value:    "false",
			def:      true,
			expected: false,
		},
		{
			name:     "invalid value uses default",
			key:      "TEST_BOOL_INVALID",
			value:    "invalid",
			def:      true,
			expected: true,
		},
		{
			name:     "missing variable uses default",
			key:      "TEST_BOOL_MISSING",
			value:    "",
			def:      false,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value != "" {
				if err := os.Setenv(tt.key, tt.value); err != nil {
					t.Fatalf("failed to set env var: %v", err)
				}
				defer func() {
					if err := os.Unsetenv(tt.key); err != nil {
						t.Errorf("failed to unset env var: %v", err)
					}
				}()
			}

			result := mustBool(tt.key, tt.def)
			if result != tt.expected {
				t.Errorf("mustBool() = %v, want %v", result, tt.expected)
			}
		})
	}
}

package config

import (
	"os"
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_GET_ENV", "test_value")
	defer os.Unsetenv("TEST_GET_ENV")

	t.Run("existing env var", func(t *testing.T) {
		result := getEnv("TEST_GET_ENV", "default")
		if result != "test_value" {
			t.Errorf("getEnv() = %q, want %q", result, "test_value")
		}
	})

	t.Run("missing env var", func(t *testing.T) {
		result := getEnv("TEST_MISSING_VAR", "default_value")
		if result != "default_value" {
			t.Errorf("getEnv() = %q, want %q", result, "default_value")
		}
	})

	t.Run("empty env var", func(t *testing.T) {
		os.Setenv("TEST_EMPTY_VAR", "")
		defer os.Unsetenv("TEST_EMPTY_VAR")

		result := getEnv("TEST_EMPTY_VAR", "default")
		if result != "default" {
			t.Errorf("getEnv() = %q, want %q (empty should use default)", result, "default")
		}
	})
}

func TestGetEnvInt(t *testing.T) {
	t.Run("valid integer", func(t *testing.T) {
		os.Setenv("TEST_INT", "42")
		defer os.Unsetenv("TEST_INT")

		result := getEnvInt("TEST_INT", 0)
		if result != 42 {
			t.Errorf("getEnvInt() = %d, want 42", result)
		}
	})

	t.Run("invalid integer", func(t *testing.T) {
		os.Setenv("TEST_INT_INVALID", "not-a-number")
		defer os.Unsetenv("TEST_INT_INVALID")

		result := getEnvInt("TEST_INT_INVALID", 99)
		if result != 99 {
			t.Errorf("getEnvInt() = %d, want 99 (default)", result)
		}
	})

	t.Run("missing env var", func(t *testing.T) {
		result := getEnvInt("TEST_INT_MISSING", 100)
		if result != 100 {
			t.Errorf("getEnvInt() = %d, want 100 (default)", result)
		}
	})
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected bool
	}{
		{"true lowercase", "true", true},
		{"TRUE uppercase", "TRUE", true},
		{"1", "1", true},
		{"yes lowercase", "yes", true},
		{"false lowercase", "false", false},
		{"0", "0", false},
		{"random string", "maybe", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("TEST_BOOL", tt.value)
			defer os.Unsetenv("TEST_BOOL")

			result := getEnvBool("TEST_BOOL", false)
			if result != tt.expected {
				t.Errorf("getEnvBool(%q) = %v, want %v", tt.value, result, tt.expected)
			}
		})
	}

	t.Run("missing env var uses default", func(t *testing.T) {
		if !getEnvBool("TEST_BOOL_MISSING", true) {
			t.Error("should return default true")
		}
	})
}

func TestGetEnvDuration(t *testing.T) {
	t.Run("valid duration", func(t *testing.T) {
		os.Setenv("TEST_DUR", "5m")
		defer os.Unsetenv("TEST_DUR")

		result := getEnvDuration("TEST_DUR", time.Hour)
		if result != 5*time.Minute {
			t.Errorf("getEnvDuration() = %v, want 5m", result)
		}
	})

	t.Run("invalid duration", func(t *testing.T) {
		os.Setenv("TEST_DUR_INVALID", "not-a-duration")
		defer os.Unsetenv("TEST_DUR_INVALID")

		result := getEnvDuration("TEST_DUR_INVALID", 2*time.Hour)
		if result != 2*time.Hour {
			t.Errorf("getEnvDuration() = %v, want 2h (default)", result)
		}
	})

	t.Run("missing env var", func(t *testing.T) {
		result := getEnvDuration("TEST_DUR_MISSING", 30*time.Second)
		if result != 30*time.Second {
			t.Errorf("getEnvDuration() = %v, want 30s (default)", result)
		}
	})
}

func TestGetEnvSlice(t *testing.T) {
	t.Run("comma separated values", func(t *testing.T) {
		os.Setenv("TEST_SLICE", "a,b,c")
		defer os.Unsetenv("TEST_SLICE")

		result := getEnvSlice("TEST_SLICE", []string{})
		if len(result) != 3 {
			t.Errorf("getEnvSlice() length = %d, want 3", len(result))
		}
	})

	t.Run("missing env var", func(t *testing.T) {
		defaultSlice := []string{"default1", "default2"}
		result := getEnvSlice("TEST_SLICE_MISSING", defaultSlice)
		if len(result) != 2 {
			t.Errorf("getEnvSlice() length = %d, want 2 (default)", len(result))
		}
	})
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "BASE_URL", "CORS_ORIGINS", "DEFAULT_MAX_DEPTH", "DEFAULT_MAX_PAGES",
		"WEBHOOK_DEFAULT_RETRIES",
	} {
		os.Unsetenv(key)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.DefaultMaxDepth != 3 {
		t.Errorf("DefaultMaxDepth = %d, want 3", cfg.DefaultMaxDepth)
	}
	if cfg.WebhookDefaultRetries != 3 {
		t.Errorf("WebhookDefaultRetries = %d, want 3", cfg.WebhookDefaultRetries)
	}
}

func TestLoad_RejectsOutOfRangeDefaults(t *testing.T) {
	os.Setenv("DEFAULT_MAX_DEPTH", "99")
	defer os.Unsetenv("DEFAULT_MAX_DEPTH")

	if _, err := Load(); err == nil {
		t.Error("Load() should reject DEFAULT_MAX_DEPTH outside 1..10")
	}
}

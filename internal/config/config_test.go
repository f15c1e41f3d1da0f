package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "TEST_VAR_1", "hello", "default", "hello"},
		{"uses default when empty", "TEST_VAR_2", "", "default", "default"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, result)
			}
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses integer", "TEST_INT_1", "42", 10, 42},
		{"uses default for empty", "TEST_INT_2", "", 10, 10},
		{"uses default for non-numeric", "TEST_INT_3", "abc", 10, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvAsIntOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, result)
			}
		})
	}
}

func TestMustGetEnv_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for missing required env var")
		}
	}()

	os.Unsetenv("NONEXISTENT_REQUIRED_VAR")
	mustGetEnv("NONEXISTENT_REQUIRED_VAR")
}

func TestMustGetEnv_ReturnsValue(t *testing.T) {
	os.Setenv("TEST_REQUIRED", "value123")
	defer os.Unsetenv("TEST_REQUIRED")

	result := mustGetEnv("TEST_REQUIRED")
	if result != "value123" {
		t.Errorf("Expected 'value123', got %q", result)
	}
}

func TestGetEnvAsFloatOrDefault(t *testing.T) {
	os.Setenv("TEST_FLOAT_1", "0.7")
	defer os.Unsetenv("TEST_FLOAT_1")

	if got := getEnvAsFloatOrDefault("TEST_FLOAT_1", 0.3); got != float32(0.7) {
		t.Errorf("Expected 0.7, got %v", got)
	}
	if got := getEnvAsFloatOrDefault("TEST_FLOAT_MISSING", 0.3); got != float32(0.3) {
		t.Errorf("Expected default 0.3, got %v", got)
	}
}

func TestMergeKeys(t *testing.T) {
	got := mergeKeys(
		[]string{"AIzaFromFile"},
		splitList(" AIzaOne , AIzaTwo,,AIzaFromFile"),
		[]string{""},
	)

	want := []string{"AIzaFromFile", "AIzaOne", "AIzaTwo"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Index %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "gemini_api_keys:\n  - AIzaYamlKeyNumberOne\n  - AIzaYamlKeyNumberTwo\nmax_video_minutes: 45\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	fc, err := loadFile(path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(fc.GeminiAPIKeys) != 2 {
		t.Errorf("Expected 2 keys, got %d", len(fc.GeminiAPIKeys))
	}
	if fc.MaxVideoMinutes != 45 {
		t.Errorf("Expected 45, got %d", fc.MaxVideoMinutes)
	}

	if _, err := loadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("max_upload_mb: 50\ngemini_api_keys: [AIzaFileKey000001]\n"), 0o600)

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("MAX_UPLOAD_MB", "200")
	t.Setenv("GEMINI_API_KEYS", "AIzaEnvKey0000001")
	t.Setenv("GEMINI_API_KEY", "")

	cfg := Load()
	if cfg.MaxUploadMB != 200 {
		t.Errorf("Expected env to win with 200, got %d", cfg.MaxUploadMB)
	}
	if len(cfg.GeminiAPIKeys) != 2 || cfg.GeminiAPIKeys[0] != "AIzaFileKey000001" {
		t.Errorf("Unexpected keys: %v", cfg.GeminiAPIKeys)
	}
	if cfg.ProcessingPollSecs != 2 {
		t.Errorf("Expected default poll interval 2, got %d", cfg.ProcessingPollSecs)
	}
}

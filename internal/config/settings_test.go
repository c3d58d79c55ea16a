package config

import (
	"testing"
	"time"
)

type mapSettings map[string]string

func (m mapSettings) GetSetting(key string) (string, error) {
	return m[key], nil
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		key      string
		expected string
	}{
		{key: "log.max_size_mb", expected: "FLOWCHARTS_LOG_MAX_SIZE_MB"},
		{key: "log.compress", expected: "FLOWCHARTS_LOG_COMPRESS"},
		{key: "optimize-schedule", expected: "FLOWCHARTS_OPTIMIZE_SCHEDULE"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := EnvKey(tt.key); got != tt.expected {
				t.Errorf("EnvKey(%q) = %q, want %q", tt.key, got, tt.expected)
			}
		})
	}
}

func TestEnvSettings_GetSetting(t *testing.T) {
	t.Setenv("FLOWCHARTS_LOG_MAX_BACKUPS", " 7 ")

	settings := NewEnvSettings()
	val, err := settings.GetSetting("log.max_backups")
	if err != nil {
		t.Fatalf("GetSetting returned error: %v", err)
	}
	if val != "7" {
		t.Fatalf("expected trimmed value %q, got %q", "7", val)
	}

	if val, _ := settings.GetSetting("log.unset_key"); val != "" {
		t.Fatalf("expected empty value for unset key, got %q", val)
	}
}

func TestLoader(t *testing.T) {
	loader := NewLoader(mapSettings{
		"int":      "42",
		"bad_int":  "forty-two",
		"bool":     "true",
		"false":    "false",
		"string":   "hello",
		"duration": "90s",
		"bad_dur":  "soon",
	})

	if got := loader.Int("int", 1); got != 42 {
		t.Errorf("Int = %d, want 42", got)
	}
	if got := loader.Int("bad_int", 1); got != 1 {
		t.Errorf("Int on invalid value = %d, want default 1", got)
	}
	if got := loader.Int("missing", 5); got != 5 {
		t.Errorf("Int on missing key = %d, want default 5", got)
	}
	if !loader.Bool("bool", false) {
		t.Error("Bool = false, want true")
	}
	if loader.Bool("false", true) {
		t.Error("Bool on \"false\" = true, want false")
	}
	if !loader.Bool("missing", true) {
		t.Error("Bool on missing key should return default")
	}
	if got := loader.String("string", "x"); got != "hello" {
		t.Errorf("String = %q, want hello", got)
	}
	if got := loader.String("missing", "x"); got != "x" {
		t.Errorf("String on missing key = %q, want x", got)
	}
	if got := loader.Duration("duration", time.Second); got != 90*time.Second {
		t.Errorf("Duration = %v, want 90s", got)
	}
	if got := loader.Duration("bad_dur", time.Second); got != time.Second {
		t.Errorf("Duration on invalid value = %v, want default", got)
	}
}

package config

import (
	"strings"
	"testing"
)

// envMap builds a getenv func from a map, defaulting unset keys to "".
func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

// TestDefaults verifies default values are applied when only the required
// API key is provided.
func TestDefaults(t *testing.T) {
	cfg, err := loadFromEnv(envMap(map[string]string{
		"OPENAI_API_KEY": "test-key",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4200 {
		t.Errorf("Server.Port = %d, want 4200", cfg.Server.Port)
	}
	if cfg.OpenAI.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("OpenAI.BaseURL = %q, want default", cfg.OpenAI.BaseURL)
	}
	if cfg.OpenAI.Model != "gpt-4o-mini" {
		t.Errorf("OpenAI.Model = %q, want %q", cfg.OpenAI.Model, "gpt-4o-mini")
	}
	if cfg.Pushover.URL != "https://api.pushover.net/1/messages.json" {
		t.Errorf("Pushover.URL = %q, want default", cfg.Pushover.URL)
	}
	if cfg.Profile.Dir != "personal_info" {
		t.Errorf("Profile.Dir = %q, want %q", cfg.Profile.Dir, "personal_info")
	}
	if cfg.Profile.LookingForRole != nil {
		t.Errorf("Profile.LookingForRole = %v, want nil (no override)", *cfg.Profile.LookingForRole)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
}

// TestMissingAPIKey verifies the loader refuses to produce a config without
// the OpenAI API key.
func TestMissingAPIKey(t *testing.T) {
	_, err := loadFromEnv(envMap(nil))
	if err == nil {
		t.Fatal("expected error for missing OPENAI_API_KEY, got nil")
	}
	if !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Errorf("error %q does not mention OPENAI_API_KEY", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	cfg, err := loadFromEnv(envMap(map[string]string{
		"OPENAI_API_KEY":       "test-key",
		"OPENAI_BASE_URL":      "http://localhost:9999/v1/",
		"OPENAI_MODEL":         "gpt-4o",
		"PUSHOVER_USER":        "u-key",
		"PUSHOVER_TOKEN":       "t-key",
		"LOOKING_FOR_ROLE":     "yes",
		"TWINCHAT_PORT":        "8080",
		"TWINCHAT_DATA_DIR":    "/tmp/twinchat",
		"TWINCHAT_PROFILE_DIR": "/srv/profile",
		"TWINCHAT_ADMIN_TOKEN": "admin-token",
		"TWINCHAT_LOG_LEVEL":   "debug",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.OpenAI.BaseURL != "http://localhost:9999/v1" {
		t.Errorf("OpenAI.BaseURL = %q, want trailing slash trimmed", cfg.OpenAI.BaseURL)
	}
	if cfg.OpenAI.Model != "gpt-4o" {
		t.Errorf("OpenAI.Model = %q, want %q", cfg.OpenAI.Model, "gpt-4o")
	}
	if !cfg.Pushover.Enabled() {
		t.Error("Pushover.Enabled() = false, want true with both credentials set")
	}
	if cfg.Profile.LookingForRole == nil || !*cfg.Profile.LookingForRole {
		t.Error("Profile.LookingForRole override not applied")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.AdminToken != "admin-token" {
		t.Errorf("Server.AdminToken = %q, want %q", cfg.Server.AdminToken, "admin-token")
	}
	if cfg.Storage.DataDir != "/tmp/twinchat" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/twinchat")
	}
	if cfg.Profile.Dir != "/srv/profile" {
		t.Errorf("Profile.Dir = %q, want %q", cfg.Profile.Dir, "/srv/profile")
	}
}

func TestInvalidPort(t *testing.T) {
	for _, port := range []string{"abc", "-1", "0", "70000"} {
		_, err := loadFromEnv(envMap(map[string]string{
			"OPENAI_API_KEY": "test-key",
			"TWINCHAT_PORT":  port,
		}))
		if err == nil {
			t.Errorf("TWINCHAT_PORT=%q: expected error, got nil", port)
		}
	}
}

func TestPushoverDisabledWithPartialCredentials(t *testing.T) {
	cfg, err := loadFromEnv(envMap(map[string]string{
		"OPENAI_API_KEY": "test-key",
		"PUSHOVER_USER":  "u-key",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Pushover.Enabled() {
		t.Error("Pushover.Enabled() = true with only user key set, want false")
	}
}

func TestParseBool(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{"Yes", true},
		{"y", true},
		{"on", true},
		{" true ", true},
		{"0", false},
		{"false", false},
		{"no", false},
		{"", false},
		{"maybe", false},
	}
	for _, tt := range tests {
		if got := parseBool(tt.in); got != tt.want {
			t.Errorf("parseBool(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

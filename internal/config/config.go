package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	Server   ServerConfig
	OpenAI   OpenAIConfig
	Pushover PushoverConfig
	Profile  ProfileConfig
	Storage  StorageConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port       int
	AdminToken string
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type PushoverConfig struct {
	User  string
	Token string
	URL   string
}

// Enabled reports whether both Pushover credentials are present.
// Absence disables notifications silently.
func (p PushoverConfig) Enabled() bool {
	return p.User != "" && p.Token != ""
}

type ProfileConfig struct {
	Dir string
	// LookingForRole overrides the value read from the profile directory
	// when the LOOKING_FOR_ROLE environment variable is set.
	LookingForRole *bool
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4200,
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Pushover: PushoverConfig{
			URL: "https://api.pushover.net/1/messages.json",
		},
		Profile: ProfileConfig{
			Dir: "personal_info",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(dir, ".twinchat")
	}
	return ".twinchat"
}

// Load reads configuration from defaults and environment variables.
// The application runs on hosted platforms where environment variables
// are the only secret store, so there is no config file backend.
//
// OPENAI_API_KEY is required; everything else has a default or is optional.
func Load() (Config, error) {
	return loadFromEnv(os.Getenv)
}

func loadFromEnv(getenv func(string) string) (Config, error) {
	cfg := defaults()

	if v := getenv("OPENAI_API_KEY"); v != "" {
		cfg.OpenAI.APIKey = strings.TrimSpace(v)
	}
	if v := getenv("OPENAI_BASE_URL"); v != "" {
		cfg.OpenAI.BaseURL = strings.TrimRight(v, "/")
	}
	if v := getenv("OPENAI_MODEL"); v != "" {
		cfg.OpenAI.Model = v
	}

	cfg.Pushover.User = getenv("PUSHOVER_USER")
	cfg.Pushover.Token = getenv("PUSHOVER_TOKEN")
	if v := getenv("PUSHOVER_URL"); v != "" {
		cfg.Pushover.URL = v
	}

	if v := getenv("LOOKING_FOR_ROLE"); v != "" {
		b := parseBool(v)
		cfg.Profile.LookingForRole = &b
	}
	if v := getenv("TWINCHAT_PROFILE_DIR"); v != "" {
		cfg.Profile.Dir = v
	}

	if v := getenv("TWINCHAT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid TWINCHAT_PORT %q", v)
		}
		cfg.Server.Port = port
	}
	cfg.Server.AdminToken = getenv("TWINCHAT_ADMIN_TOKEN")

	if v := getenv("TWINCHAT_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := getenv("TWINCHAT_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}

	if cfg.OpenAI.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: OpenAI API key. " +
			"Set it via environment variable OPENAI_API_KEY")
	}

	return cfg, nil
}

// parseBool accepts the truthy spellings deployment platforms produce.
func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/safecli/safecli/internal/models"
)

// Config captures runtime configuration sourced from environment variables.
type Config struct {
	Environment  string
	HTTPPort     string
	DatabasePath string
	LogDir       string
	Debug        bool
	JWTSecret    string

	// AllowAccountParam keeps the explicit account_id query parameter as an
	// identity source for operator routes when no session is present.
	AllowAccountParam bool
	// RequireEndpointToken makes agent routes demand the credential issued at registration.
	RequireEndpointToken bool
	// SweepSchedule is a cron spec for the background expiry sweep. Empty disables it.
	SweepSchedule string

	DefaultBlacklist []string
}

// BlacklistPolicy is the YAML document read from SAFECLI_DEFAULT_BLACKLIST_FILE.
type BlacklistPolicy struct {
	Commands []string `yaml:"commands"`
}

// Load reads env vars and falls back to defaults so the server can boot with zero configuration.
func Load() (Config, error) {
	cfg := Config{
		Environment:          getEnv("SAFECLI_ENV", "development"),
		HTTPPort:             getEnv("SAFECLI_HTTP_PORT", "8080"),
		DatabasePath:         getEnv("SAFECLI_DB_PATH", filepath.Join("data", "safecli.db")),
		LogDir:               getEnv("SAFECLI_LOG_DIR", filepath.Join("data", "logs")),
		Debug:                getBool("SAFECLI_DEBUG", false),
		JWTSecret:            os.Getenv("SAFECLI_JWT_SECRET"),
		AllowAccountParam:    getBool("SAFECLI_ALLOW_ACCOUNT_PARAM", true),
		RequireEndpointToken: getBool("SAFECLI_REQUIRE_ENDPOINT_TOKEN", false),
		SweepSchedule:        getEnvAllowEmpty("SAFECLI_SWEEP_SCHEDULE", "@every 10s"),
		DefaultBlacklist:     append([]string(nil), models.DefaultBlacklist...),
	}

	if cfg.JWTSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return Config{}, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.JWTSecret = secret
	}

	if path := os.Getenv("SAFECLI_DEFAULT_BLACKLIST_FILE"); path != "" {
		commands, err := loadBlacklistPolicy(path)
		if err != nil {
			return Config{}, err
		}
		cfg.DefaultBlacklist = commands
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0o755); err != nil {
		return Config{}, fmt.Errorf("ensure data directory: %w", err)
	}

	return cfg, nil
}

// IsProduction reports whether the server runs with production hardening.
func (c Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

func loadBlacklistPolicy(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read blacklist policy: %w", err)
	}
	var policy BlacklistPolicy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("parse blacklist policy: %w", err)
	}
	commands := make([]string, 0, len(policy.Commands))
	for _, cmd := range policy.Commands {
		if cmd = strings.TrimSpace(cmd); cmd != "" {
			commands = append(commands, cmd)
		}
	}
	return commands, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}

	return fallback
}

// getEnvAllowEmpty distinguishes an unset variable from one explicitly set to "".
func getEnvAllowEmpty(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(val)
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

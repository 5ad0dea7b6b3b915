// Package config provides application configuration through environment variables.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"
)

const appDirName = "glvault"

// Config holds all application configuration.
type Config struct {
	// LogLevel is the logging level (e.g., "debug", "info", "warn", "error").
	LogLevel string

	// DataDir is the directory holding the key file and the encrypted stores.
	DataDir string
	// KeyFile is the path of the key file holding the 32-byte key and 16-byte IV.
	KeyFile string
	// TrustStoreFile is the path of the encrypted certificate approval store.
	TrustStoreFile string
	// ProfilesFile is the path of the encrypted connection profile list.
	ProfilesFile string
	// LegacyProfilesFile is the path of the plaintext "[Name]" / "Key=Value" profile file.
	LegacyProfilesFile string

	// KeyWrapURI optionally seals the key file with a gocloud.dev/secrets keeper
	// (e.g. "base64key://...", "hashivault://..."). Empty keeps the raw 48-byte format.
	KeyWrapURI string

	// PromptTimeout bounds the wait for a human trust decision. Zero waits forever.
	PromptTimeout time.Duration
	// FTPTimeout is the dial timeout for FTPS connections.
	FTPTimeout time.Duration

	// MetricsEnabled indicates whether metrics collection is enabled.
	MetricsEnabled bool
	// MetricsNamespace is the namespace for the application metrics.
	MetricsNamespace string
	// MetricsHost and MetricsPort are where the status server listens while a
	// session is held open.
	MetricsHost string
	MetricsPort int
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	loadDotEnv()

	dataDir := env.GetString("DATA_DIR", defaultDataDir())

	return &Config{
		LogLevel: env.GetString("LOG_LEVEL", "info"),

		// Storage
		DataDir:            dataDir,
		KeyFile:            env.GetString("KEY_FILE", filepath.Join(dataDir, ".key")),
		TrustStoreFile:     env.GetString("TRUST_STORE_FILE", filepath.Join(dataDir, "certificates.json")),
		ProfilesFile:       env.GetString("PROFILES_FILE", filepath.Join(dataDir, "connections.json")),
		LegacyProfilesFile: env.GetString("LEGACY_PROFILES_FILE", filepath.Join(dataDir, "connections.ini")),

		// Key protection
		KeyWrapURI: env.GetString("KEY_WRAP_URI", ""),

		// Trust decisions and FTPS
		PromptTimeout: env.GetDuration("PROMPT_TIMEOUT_SECONDS", 0, time.Second),
		FTPTimeout:    env.GetDuration("FTP_TIMEOUT_SECONDS", 15, time.Second),

		// Metrics
		MetricsEnabled:   env.GetBool("METRICS_ENABLED", true),
		MetricsNamespace: env.GetString("METRICS_NAMESPACE", "glvault"),
		MetricsHost:      env.GetString("METRICS_HOST", "127.0.0.1"),
		MetricsPort:      env.GetInt("METRICS_PORT", 8081),
	}
}

// GetGinMode returns the appropriate Gin mode based on log level.
func (c *Config) GetGinMode() string {
	if c.LogLevel == "debug" {
		return "debug"
	}
	return "release"
}

// defaultDataDir returns the per-user configuration directory for the application,
// falling back to a dot directory under the working directory.
func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return "." + appDirName
	}
	return filepath.Join(dir, appDirName)
}

// loadDotEnv searches for a .env file recursively from the current directory
// up to the root directory and loads it if found.
func loadDotEnv() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
}

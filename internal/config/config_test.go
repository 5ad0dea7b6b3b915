package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "load default configuration",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "info", cfg.LogLevel)
				assert.Equal(t, ".glvault", cfg.DataDir)
				assert.Equal(t, filepath.Join(".glvault", ".key"), cfg.KeyFile)
				assert.Equal(t, filepath.Join(".glvault", "certificates.json"), cfg.TrustStoreFile)
				assert.Equal(t, filepath.Join(".glvault", "connections.json"), cfg.ProfilesFile)
				assert.Equal(t, filepath.Join(".glvault", "connections.ini"), cfg.LegacyProfilesFile)
				assert.Empty(t, cfg.KeyWrapURI)
				assert.Equal(t, time.Duration(0), cfg.PromptTimeout)
				assert.Equal(t, 15*time.Second, cfg.FTPTimeout)
				assert.True(t, cfg.MetricsEnabled)
				assert.Equal(t, "glvault", cfg.MetricsNamespace)
				assert.Equal(t, "127.0.0.1", cfg.MetricsHost)
				assert.Equal(t, 8081, cfg.MetricsPort)
			},
		},
		{
			name: "data dir drives default file locations",
			envVars: map[string]string{
				"DATA_DIR": "/var/lib/glvault",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/var/lib/glvault", cfg.DataDir)
				assert.Equal(t, filepath.Join("/var/lib/glvault", ".key"), cfg.KeyFile)
				assert.Equal(t, filepath.Join("/var/lib/glvault", "certificates.json"), cfg.TrustStoreFile)
			},
		},
		{
			name: "explicit file locations override data dir",
			envVars: map[string]string{
				"DATA_DIR":         "/var/lib/glvault",
				"KEY_FILE":         "/secure/key.bin",
				"TRUST_STORE_FILE": "/secure/trust.json",
				"PROFILES_FILE":    "/secure/profiles.json",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "/secure/key.bin", cfg.KeyFile)
				assert.Equal(t, "/secure/trust.json", cfg.TrustStoreFile)
				assert.Equal(t, "/secure/profiles.json", cfg.ProfilesFile)
			},
		},
		{
			name: "load custom trust and ftp configuration",
			envVars: map[string]string{
				"PROMPT_TIMEOUT_SECONDS": "120",
				"FTP_TIMEOUT_SECONDS":    "5",
				"KEY_WRAP_URI":           "base64key://",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 120*time.Second, cfg.PromptTimeout)
				assert.Equal(t, 5*time.Second, cfg.FTPTimeout)
				assert.Equal(t, "base64key://", cfg.KeyWrapURI)
			},
		},
		{
			name: "load custom metrics and logging configuration",
			envVars: map[string]string{
				"METRICS_ENABLED":   "false",
				"METRICS_NAMESPACE": "admin",
				"LOG_LEVEL":         "debug",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.MetricsEnabled)
				assert.Equal(t, "admin", cfg.MetricsNamespace)
				assert.Equal(t, "debug", cfg.LogLevel)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			for key, value := range tt.envVars {
				err := os.Setenv(key, value)
				require.NoError(t, err)
			}

			cfg := Load()

			tt.validate(t, cfg)
		})
	}
}

func TestGetGinMode(t *testing.T) {
	assert.Equal(t, "debug", (&Config{LogLevel: "debug"}).GetGinMode())
	assert.Equal(t, "release", (&Config{LogLevel: "info"}).GetGinMode())
	assert.Equal(t, "release", (&Config{LogLevel: "bogus"}).GetGinMode())
}

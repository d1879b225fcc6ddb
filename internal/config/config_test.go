package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Valid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{"database_url": "postgres://localhost/storesync", "coverage_minimum": 0.9}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/storesync", cfg.DatabaseURL)
	assert.Equal(t, 0.9, cfg.CoverageMinimum)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"coverage out of range", Config{CoverageMinimum: 1.5}, true},
		{"negative timeout", Config{PageTimeoutSecs: -1}, true},
		{"short session key", Config{SessionKey: "abcd"}, true},
		{"full session key", Config{SessionKey: string(make([]byte, 64))}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_MergeWithDefaults(t *testing.T) {
	cfg := Config{DatabaseURL: "postgres://flag"}
	merged := cfg.MergeWithDefaults(Config{
		DatabaseURL:     "postgres://env",
		SessionDir:      "/var/lib/storesync",
		CoverageMinimum: 0.7,
	})

	assert.Equal(t, "postgres://flag", merged.DatabaseURL)
	assert.Equal(t, "/var/lib/storesync", merged.SessionDir)
	assert.Equal(t, 0.7, merged.CoverageMinimum)
	assert.Equal(t, "9999999999", merged.PhoneFallback)
	assert.Equal(t, 45, merged.PageTimeoutSecs)
}

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSyncConfig = `{
	"urls": {
		"login": "https://portal.example.com/login",
		"home": "https://portal.example.com/dashboard",
		"listing": "https://portal.example.com/orders"
	},
	"login_selectors": {
		"username": "#user",
		"password": "#pass",
		"store_code": "#store",
		"submit": "button[type=submit]"
	},
	"username": "ops-bln01",
	"password": "secret",
	"auth_marker": "BLN01"
}`

func TestParseSyncConfig_Valid(t *testing.T) {
	cfg, err := ParseSyncConfig("BLN01", "Berlin Central", "CC-BLN", "metro", []byte(validSyncConfig))
	require.NoError(t, err)

	assert.Equal(t, "BLN01", cfg.StoreCode)
	assert.Equal(t, "CC-BLN", cfg.CostCenter)
	assert.Equal(t, "https://portal.example.com/orders", cfg.URLs.Listing)
	assert.Equal(t, "BLN01", cfg.AuthMarker)
	assert.True(t, cfg.HasCredentials())
	assert.True(t, cfg.HasLoginSelectors())
}

func TestParseSyncConfig_MissingURLs(t *testing.T) {
	_, err := ParseSyncConfig("BLN01", "", "CC-BLN", "", []byte(`{"username": "x"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sync_config")
}

func TestParseSyncConfig_BadURL(t *testing.T) {
	raw := `{"urls": {"login": "not a url", "home": "https://portal.example.com"}}`
	_, err := ParseSyncConfig("BLN01", "", "CC-BLN", "", []byte(raw))
	require.Error(t, err)
}

func TestParseSyncConfig_Empty(t *testing.T) {
	_, err := ParseSyncConfig("BLN01", "", "CC-BLN", "", nil)
	require.Error(t, err)
}

func TestParseSyncConfig_NoCredentials(t *testing.T) {
	// Credentials may be absent at load time; the login state machine fails
	// fast only when an interactive login is actually needed.
	raw := `{"urls": {"login": "https://p.example.com/login", "home": "https://p.example.com/home"}}`
	cfg, err := ParseSyncConfig("MUM02", "", "CC-MUM", "", []byte(raw))
	require.NoError(t, err)

	assert.False(t, cfg.HasCredentials())
	assert.False(t, cfg.HasLoginSelectors())
	assert.Equal(t, "MUM02", cfg.AuthMarker)
}

func TestParseSyncConfig_MissingCostCenter(t *testing.T) {
	_, err := ParseSyncConfig("BLN01", "", "", "", []byte(validSyncConfig))
	require.Error(t, err)
}

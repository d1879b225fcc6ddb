package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func sampleState() *State {
	return &State{
		StoreCode: "BLN01",
		SavedAt:   time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Cookies: []Cookie{
			{Name: "sid", Value: "abc123", Domain: "portal.example.com", Path: "/", Secure: true, HTTPOnly: true},
		},
		LocalStorage: map[string]map[string]string{
			"https://portal.example.com": {"auth_token": "Bearer xyz"},
		},
	}
}

func TestStore_RoundTrip_Plain(t *testing.T) {
	store, err := NewStore(t.TempDir(), "")
	require.NoError(t, err)

	state := sampleState()
	require.NoError(t, store.Save(state))

	loaded, err := store.Load("BLN01")
	require.NoError(t, err)
	assert.Equal(t, state, loaded)
}

func TestStore_RoundTrip_Encrypted(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, testKey)
	require.NoError(t, err)

	state := sampleState()
	require.NoError(t, store.Save(state))

	// On-disk blob must not leak the cookie value.
	raw, err := os.ReadFile(filepath.Join(dir, "BLN01.session"))
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(raw), "abc123"))

	loaded, err := store.Load("BLN01")
	require.NoError(t, err)
	assert.Equal(t, state, loaded)
}

func TestStore_Load_Missing(t *testing.T) {
	store, err := NewStore(t.TempDir(), "")
	require.NoError(t, err)

	loaded, err := store.Load("NOPE")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStore_Save_Overwrites(t *testing.T) {
	store, err := NewStore(t.TempDir(), "")
	require.NoError(t, err)

	first := sampleState()
	require.NoError(t, store.Save(first))

	second := sampleState()
	second.Cookies[0].Value = "rotated"
	require.NoError(t, store.Save(second))

	loaded, err := store.Load("BLN01")
	require.NoError(t, err)
	assert.Equal(t, "rotated", loaded.Cookies[0].Value)
}

func TestStore_BadKey(t *testing.T) {
	_, err := NewStore(t.TempDir(), "zz")
	assert.Error(t, err)
}

func TestStore_WrongKeyFailsDecryption(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, testKey)
	require.NoError(t, err)
	require.NoError(t, store.Save(sampleState()))

	otherKey := strings.Repeat("ff", 32)
	other, err := NewStore(dir, otherKey)
	require.NoError(t, err)

	_, err = other.Load("BLN01")
	assert.Error(t, err)
}

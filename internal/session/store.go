package session

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// Store persists one session blob per store code under a directory. Blobs
// hold live auth cookies, so they are encrypted at rest with NaCl secretbox
// when a key is configured. Saved state round-trips byte-for-byte.
type Store struct {
	dir string
	key *[32]byte
}

// NewStore creates a session store rooted at dir. hexKey is an optional
// 64-character hex encoding of a 32-byte secretbox key; when empty, blobs are
// stored as plain JSON.
func NewStore(dir, hexKey string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("session directory is empty")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create session directory %s: %w", dir, err)
	}

	s := &Store{dir: dir}
	if hexKey != "" {
		raw, err := hex.DecodeString(hexKey)
		if err != nil || len(raw) != 32 {
			return nil, fmt.Errorf("session key must be 64 hex characters (32 bytes)")
		}
		var key [32]byte
		copy(key[:], raw)
		s.key = &key
	}
	return s, nil
}

// Load reads the saved session for a store code. Returns (nil, nil) when no
// session has been saved yet.
func (s *Store) Load(storeCode string) (*State, error) {
	data, err := os.ReadFile(s.path(storeCode))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session for %s: %w", storeCode, err)
	}

	if s.key != nil {
		data, err = s.open(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt session for %s: %w", storeCode, err)
		}
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse session for %s: %w", storeCode, err)
	}
	return &state, nil
}

// Save writes the session for a store code, unconditionally overwriting any
// prior state.
func (s *Store) Save(state *State) error {
	if state == nil || state.StoreCode == "" {
		return fmt.Errorf("session state has no store code")
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session for %s: %w", state.StoreCode, err)
	}

	if s.key != nil {
		data, err = s.seal(data)
		if err != nil {
			return fmt.Errorf("failed to encrypt session for %s: %w", state.StoreCode, err)
		}
	}

	path := s.path(state.StoreCode)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write session for %s: %w", state.StoreCode, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace session for %s: %w", state.StoreCode, err)
	}
	return nil
}

// Delete removes a store's saved session. Missing files are not an error.
func (s *Store) Delete(storeCode string) error {
	err := os.Remove(s.path(storeCode))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session for %s: %w", storeCode, err)
	}
	return nil
}

func (s *Store) path(storeCode string) string {
	return filepath.Join(s.dir, storeCode+".session")
}

func (s *Store) seal(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, s.key), nil
}

func (s *Store) open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("blob too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plaintext, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, s.key)
	if !ok {
		return nil, fmt.Errorf("decryption failed (wrong key or corrupt blob)")
	}
	return plaintext, nil
}

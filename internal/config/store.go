package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
)

// syncConfigSchema constrains the raw sync_config blob before decoding. The
// blob arrives as a loosely-typed nested document from the store registry;
// shape problems are caught here, once, instead of deep in the pipeline.
const syncConfigSchema = `{
  "type": "object",
  "required": ["urls"],
  "properties": {
    "urls": {
      "type": "object",
      "required": ["login", "home"],
      "properties": {
        "login":   {"type": "string", "minLength": 1},
        "home":    {"type": "string", "minLength": 1},
        "listing": {"type": "string"},
        "api":     {"type": "string"}
      }
    },
    "login_selectors": {
      "type": "object",
      "properties": {
        "username":   {"type": "string"},
        "password":   {"type": "string"},
        "store_code": {"type": "string"},
        "submit":     {"type": "string"},
        "landmark":   {"type": "string"}
      }
    },
    "username":    {"type": "string"},
    "password":    {"type": "string"},
    "auth_marker": {"type": "string"}
  }
}`

// StoreURLs are the portal entry points for a store.
type StoreURLs struct {
	Login   string `json:"login" validate:"required,url"`
	Home    string `json:"home" validate:"required,url"`
	Listing string `json:"listing" validate:"omitempty,url"`
	API     string `json:"api" validate:"omitempty,url"` // JSON API base, required for API-mode extraction
}

// LoginSelectors locate the login form controls on the portal's login page.
// Presence is checked at login time, not load time: a store with a valid
// saved session never needs them.
type LoginSelectors struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	StoreCode string `json:"store_code"`
	Submit    string `json:"submit"`
	Landmark  string `json:"landmark"` // post-login element proving authentication
}

// StoreConfig is the typed, immutable per-store configuration consumed by the
// rest of the pipeline. It is built once from the registry row plus its raw
// sync_config blob.
type StoreConfig struct {
	StoreCode   string `validate:"required"`
	DisplayName string
	CostCenter  string `validate:"required"`
	SyncGroup   string
	URLs        StoreURLs
	Selectors   LoginSelectors
	Username    string
	Password    string
	// AuthMarker is a store-specific substring of an authenticated URL or a
	// DOM selector proving a live session. Defaults to the store code.
	AuthMarker string
}

// HasCredentials reports whether the store can attempt an interactive login.
func (s *StoreConfig) HasCredentials() bool {
	return s.Username != "" && s.Password != ""
}

// HasLoginSelectors reports whether the required form selectors are present.
// The store-code selector is optional (single-tenant portals have no such
// field).
func (s *StoreConfig) HasLoginSelectors() bool {
	return s.Selectors.Username != "" && s.Selectors.Password != "" && s.Selectors.Submit != ""
}

// syncConfigDoc mirrors the raw blob layout.
type syncConfigDoc struct {
	URLs       StoreURLs      `json:"urls"`
	Selectors  LoginSelectors `json:"login_selectors"`
	Username   string         `json:"username"`
	Password   string         `json:"password"`
	AuthMarker string         `json:"auth_marker"`
}

var validate = validator.New()

// ParseSyncConfig validates and decodes a raw sync_config blob into a typed
// StoreConfig. The blob is first checked against the JSON schema, then the
// assembled struct is validated. Any failure is a configuration error for
// that store — never retried.
func ParseSyncConfig(storeCode, displayName, costCenter, syncGroup string, raw []byte) (*StoreConfig, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("store %s: sync_config is empty", storeCode)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(syncConfigSchema),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return nil, fmt.Errorf("store %s: failed to validate sync_config: %w", storeCode, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("store %s: invalid sync_config: %s", storeCode, strings.Join(msgs, "; "))
	}

	var doc syncConfigDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("store %s: failed to decode sync_config: %w", storeCode, err)
	}

	cfg := &StoreConfig{
		StoreCode:   storeCode,
		DisplayName: displayName,
		CostCenter:  costCenter,
		SyncGroup:   syncGroup,
		URLs:        doc.URLs,
		Selectors:   doc.Selectors,
		Username:    doc.Username,
		Password:    doc.Password,
		AuthMarker:  doc.AuthMarker,
	}
	if cfg.AuthMarker == "" {
		cfg.AuthMarker = storeCode
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("store %s: invalid store config: %w", storeCode, err)
	}

	return cfg, nil
}

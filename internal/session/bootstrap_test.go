package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyNavigationError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCert bool
	}{
		{"cert authority invalid", errors.New("page load error net::ERR_CERT_AUTHORITY_INVALID"), true},
		{"ssl protocol error", errors.New("page load error net::ERR_SSL_PROTOCOL_ERROR"), true},
		{"certificate verify", errors.New("x509: certificate signed by unknown authority"), true},
		{"timeout", errors.New("context deadline exceeded"), false},
		{"connection refused", errors.New("net::ERR_CONNECTION_REFUSED"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := classifyNavigationError("BLN01", tt.err)
			assert.Equal(t, tt.wantCert, IsCertificateError(out))
		})
	}
}

func TestClassifyNavigationError_Nil(t *testing.T) {
	assert.NoError(t, classifyNavigationError("BLN01", nil))
}

func TestFindProviderError(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"invalid password", "Sorry, Invalid Password. Please try again.", "invalid password"},
		{"account locked", "Your ACCOUNT LOCKED after 5 attempts", "account locked"},
		{"no error", "Welcome to the dashboard", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, findProviderError(tt.text))
		})
	}
}

func TestMarkerInURL(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		marker string
		want   bool
	}{
		{"marker in path", "https://portal.example.com/bln01/dashboard", "BLN01", true},
		{"marker in query", "https://portal.example.com/home?store=BLN01", "bln01", true},
		{"login page", "https://portal.example.com/login", "BLN01", false},
		{"empty marker", "https://portal.example.com/bln01", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MarkerInURL(tt.url, tt.marker))
		})
	}
}

func TestLoginFailedError_Message(t *testing.T) {
	err := &LoginFailedError{StoreCode: "BLN01", Reason: "provider reported \"invalid password\""}
	assert.Contains(t, err.Error(), "BLN01")
	assert.Contains(t, err.Error(), "invalid password")

	ambiguous := &LoginFailedError{StoreCode: "BLN01", Reason: "timeout", Ambiguous: true}
	assert.Contains(t, ambiguous.Error(), "ambiguous")
}

// Package session provides persisted browser sessions and the login state
// machine that turns a store configuration into an authenticated page.
package session

import (
	"errors"
	"fmt"
	"strings"
)

// MissingCredentialsError indicates a store cannot attempt an interactive
// login because credentials or required form selectors are absent. This is a
// configuration error, never retried.
type MissingCredentialsError struct {
	StoreCode string
	Missing   string
}

func (e *MissingCredentialsError) Error() string {
	return fmt.Sprintf("store %s: cannot log in: missing %s", e.StoreCode, e.Missing)
}

// LoginFailedError indicates the login attempt did not produce an
// authenticated page. Ambiguous means no explicit provider error text was
// found; the attempt timed out without a definitive signal.
type LoginFailedError struct {
	StoreCode string
	Reason    string
	Ambiguous bool
}

func (e *LoginFailedError) Error() string {
	if e.Ambiguous {
		return fmt.Sprintf("store %s: login outcome ambiguous: %s", e.StoreCode, e.Reason)
	}
	return fmt.Sprintf("store %s: login failed: %s", e.StoreCode, e.Reason)
}

// CertificateError indicates a TLS/certificate failure during navigation.
// Fatal and non-retryable at every layer: it signals a network/MITM
// condition, not a flaky page.
type CertificateError struct {
	StoreCode string
	Cause     error
}

func (e *CertificateError) Error() string {
	return fmt.Sprintf("store %s: navigation certificate error: %v", e.StoreCode, e.Cause)
}

func (e *CertificateError) Unwrap() error {
	return e.Cause
}

// IsCertificateError reports whether err is (or wraps) a CertificateError.
func IsCertificateError(err error) bool {
	var ce *CertificateError
	return errors.As(err, &ce)
}

// classifyNavigationError wraps TLS/certificate navigation failures in a
// CertificateError; other errors pass through unchanged.
func classifyNavigationError(storeCode string, err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "err_cert") ||
		strings.Contains(msg, "err_ssl") ||
		strings.Contains(msg, "certificate") {
		return &CertificateError{StoreCode: storeCode, Cause: err}
	}
	return err
}

// providerErrorPhrases are explicit login-rejection messages portals render.
// Finding one after a timeout means the credentials are wrong; no retry.
var providerErrorPhrases = []string{
	"invalid password",
	"invalid username",
	"invalid credentials",
	"incorrect password",
	"incorrect username",
	"login failed",
	"account locked",
	"user not found",
}

// findProviderError returns the first explicit rejection phrase found in the
// page text, or "" if none is present.
func findProviderError(pageText string) string {
	lower := strings.ToLower(pageText)
	for _, phrase := range providerErrorPhrases {
		if strings.Contains(lower, phrase) {
			return phrase
		}
	}
	return ""
}

package extract

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/golang-jwt/jwt/v5"
)

// TokenResolver resolves the bearer token for API-mode extraction. Production
// resolution scans in-page browser storage; tests return canned tokens.
type TokenResolver interface {
	ResolveSessionToken(ctx context.Context) (string, error)
}

// storageScanScript looks through localStorage and sessionStorage for keys
// whose names suggest a token and whose values look like a bearer/JWT. JSON
// payloads get one level of unwrapping for the usual token field names.
const storageScanScript = `(() => {
	const keyPat = /(token|auth|jwt)/i;
	const valPat = /^(Bearer\s+)?[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]*$/;
	const scan = (store) => {
		for (let i = 0; i < store.length; i++) {
			const k = store.key(i);
			if (!keyPat.test(k)) continue;
			const v = store.getItem(k);
			if (!v) continue;
			try {
				const obj = JSON.parse(v);
				if (obj && typeof obj === "object") {
					for (const field of ["access_token", "token", "jwt", "id_token"]) {
						if (typeof obj[field] === "string" && valPat.test(obj[field])) return obj[field];
					}
				}
			} catch (e) {}
			if (valPat.test(v)) return v;
		}
		return "";
	};
	return scan(localStorage) || scan(sessionStorage);
})()`

// StorageTokenResolver resolves tokens by scanning the browser context's
// storage. The tab must be on an authenticated portal page.
type StorageTokenResolver struct{}

// ResolveSessionToken returns the first usable token found, or "" when the
// page holds none (not an error; the caller falls back to in-browser
// requests).
func (StorageTokenResolver) ResolveSessionToken(ctx context.Context) (string, error) {
	var raw string
	if err := chromedp.Run(ctx, chromedp.Evaluate(storageScanScript, &raw)); err != nil {
		return "", err
	}
	token := NormalizeBearer(raw)
	if token == "" || !TokenUsable(token, time.Now()) {
		return "", nil
	}
	return token, nil
}

// NormalizeBearer strips the "Bearer " prefix and surrounding whitespace.
func NormalizeBearer(raw string) string {
	token := strings.TrimSpace(raw)
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}

// TokenUsable reports whether a token is worth sending. JWTs with a readable
// exp claim in the past are rejected; opaque tokens and JWTs without exp are
// assumed usable — the 401 fallback handles the rest.
func TokenUsable(token string, now time.Time) bool {
	if token == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		// Not a JWT; nothing to check.
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return exp.Time.After(now)
}

package v1

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"
)

// AuthConfig controls how the caller's identity is established.
// With an empty Secret the X-User-ID header is trusted as is (development only).
type AuthConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

type JWTClaims struct {
	Issuer    string `json:"iss,omitempty"`
	Subject   string `json:"sub,omitempty"`
	Audience  any    `json:"aud,omitempty"` // string or []string
	ExpiresAt int64  `json:"exp,omitempty"`
	NotBefore int64  `json:"nbf,omitempty"`
	IssuedAt  int64  `json:"iat,omitempty"`
}

type ctxKey string

const ctxKeyOwner ctxKey = "owner"

// headerUserID carries the identity when no JWT secret is configured.
const headerUserID = "X-User-ID"

// ownerFrom returns the authenticated identity, or "" when there is none.
func ownerFrom(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyOwner).(string)
	return v
}

func parseBearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	if !strings.HasPrefix(h, "Bearer ") && !strings.HasPrefix(h, "bearer ") {
		return "", false
	}
	return strings.TrimSpace(h[len("Bearer "):]), true
}

func base64URLDecode(s string) ([]byte, error) {
	// JWT uses base64url without padding
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}

func verifyHS256(token, secret string) (JWTClaims, error) {
	var empty JWTClaims
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return empty, errors.New("invalid token format")
	}
	headerB, err := base64URLDecode(parts[0])
	if err != nil {
		return empty, errors.New("bad header b64")
	}
	payloadB, err := base64URLDecode(parts[1])
	if err != nil {
		return empty, errors.New("bad payload b64")
	}
	sigB, err := base64URLDecode(parts[2])
	if err != nil {
		return empty, errors.New("bad signature b64")
	}

	// Expect alg HS256
	var hdr struct{ Alg, Typ string }
	if err := json.Unmarshal(headerB, &hdr); err != nil {
		return empty, errors.New("bad header json")
	}
	if !strings.EqualFold(hdr.Alg, "HS256") {
		return empty, errors.New("unsupported alg")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(parts[0] + "." + parts[1]))
	if !hmac.Equal(sigB, mac.Sum(nil)) {
		return empty, errors.New("invalid signature")
	}

	var claims JWTClaims
	if err := json.Unmarshal(payloadB, &claims); err != nil {
		return empty, errors.New("bad claims json")
	}
	return claims, nil
}

func audContains(aud any, expected string) bool {
	if expected == "" {
		return true
	}
	switch v := aud.(type) {
	case string:
		return strings.EqualFold(v, expected)
	case []any:
		for _, it := range v {
			if s, ok := it.(string); ok && strings.EqualFold(s, expected) {
				return true
			}
		}
	}
	return false
}

func (c AuthConfig) validate(claims JWTClaims, now time.Time) error {
	unix := now.Unix()
	switch {
	case claims.Subject == "":
		return errors.New("missing subject")
	case claims.NotBefore != 0 && unix < claims.NotBefore:
		return errors.New("token not yet valid")
	case claims.ExpiresAt != 0 && unix >= claims.ExpiresAt:
		return errors.New("token expired")
	case c.Issuer != "" && !strings.EqualFold(claims.Issuer, c.Issuer):
		return errors.New("issuer mismatch")
	case !audContains(claims.Audience, c.Audience):
		return errors.New("audience mismatch")
	}
	return nil
}

// authenticate stores the caller's identity in the request context.
// With a secret configured it enforces Authorization: Bearer JWT (HS256) and
// uses the subject claim; otherwise it reads the X-User-ID header.
func authenticate(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// allow unauthenticated for health, metrics and dictionaries
			switch r.URL.Path {
			case "/healthz", "/readyz", "/metrics":
				next.ServeHTTP(w, r)
				return
			}
			if strings.HasPrefix(r.URL.Path, "/v1/dictionary/") {
				next.ServeHTTP(w, r)
				return
			}
			var owner string
			if cfg.Secret == "" {
				owner = strings.TrimSpace(r.Header.Get(headerUserID))
			} else {
				tok, ok := parseBearerToken(r)
				if !ok {
					writeErr(w, http.StatusUnauthorized, "missing bearer token", "unauthorized")
					return
				}
				claims, err := verifyHS256(tok, cfg.Secret)
				if err == nil {
					err = cfg.validate(claims, time.Now())
				}
				if err != nil {
					writeErr(w, http.StatusUnauthorized, err.Error(), "unauthorized")
					return
				}
				owner = claims.Subject
			}
			ctx := context.WithValue(r.Context(), ctxKeyOwner, owner)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Package auth identifies the acting user of a request. The actor id travels
// as an HMAC-signed token, either as a bearer token or in the session cookie.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/diewo77/go-quotations/httpx"
)

type ctxKey string

const (
	sessionCookieName = "session"
	actorHeader       = "X-Actor-ID"
	userIDCtxKey      = ctxKey("userID")
)

// trustActorHeader lets local tooling pass a bare X-Actor-ID. Dev only.
var trustActorHeader bool

// TrustActorHeader enables or disables the unsigned X-Actor-ID header.
func TrustActorHeader(on bool) { trustActorHeader = on }

// Secret returns SESSION_SECRET or default dev value.
func Secret() string {
	if s := os.Getenv("SESSION_SECRET"); s != "" {
		return s
	}
	return "devsessionsecret"
}

func sign(uidStr string) string {
	mac := hmac.New(sha256.New, []byte(Secret()))
	mac.Write([]byte(uidStr))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Token returns the signed token for userID, "<id>.<signature>".
func Token(userID uint) string {
	uidStr := strconv.FormatUint(uint64(userID), 10)
	return uidStr + "." + sign(uidStr)
}

// ParseToken validates a token produced by Token and returns its user id.
func ParseToken(token string) (uint, bool) {
	uidStr, sig, ok := strings.Cut(token, ".")
	if !ok || uidStr == "" || sig == "" {
		return 0, false
	}
	if !hmac.Equal([]byte(sig), []byte(sign(uidStr))) {
		return 0, false
	}
	id64, err := strconv.ParseUint(uidStr, 10, 64)
	if err != nil || id64 == 0 {
		return 0, false
	}
	return uint(id64), true
}

// ParseRequest resolves the actor from the Authorization header, then the
// session cookie, then (when trusted) the X-Actor-ID header.
func ParseRequest(r *http.Request) (uint, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		token, found := strings.CutPrefix(h, "Bearer ")
		if !found {
			return 0, false
		}
		return ParseToken(strings.TrimSpace(token))
	}
	if c, err := r.Cookie(sessionCookieName); err == nil && c.Value != "" {
		return ParseToken(c.Value)
	}
	if trustActorHeader {
		if v := r.Header.Get(actorHeader); v != "" {
			id64, err := strconv.ParseUint(v, 10, 64)
			if err != nil || id64 == 0 {
				return 0, false
			}
			return uint(id64), true
		}
	}
	return 0, false
}

// WithUserID stores user id in context.
func WithUserID(ctx context.Context, userID uint) context.Context {
	return context.WithValue(ctx, userIDCtxKey, userID)
}

// UserIDFromContext extracts user id.
func UserIDFromContext(ctx context.Context) (uint, bool) {
	v := ctx.Value(userIDCtxKey)
	if v == nil {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// Middleware attaches user id to request context if present.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if uid, ok := ParseRequest(r); ok {
			r = r.WithContext(WithUserID(r.Context(), uid))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth answers 401 JSON when no actor was resolved.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserIDFromContext(r.Context()); !ok {
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Package identity carries the platform-supplied user ID through requests.
package identity

import (
	"context"
	"net/http"
	"strconv"
	"strings"
)

const (
	// UserHeaderName carries the caller's platform user ID.
	UserHeaderName = "X-Trivia-User-ID"
	// UserQueryParam is the fallback for clients that can't set headers,
	// such as browser WebSockets.
	UserQueryParam = "user_id"
)

type contextKey int

const userIDKey contextKey = iota

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(userIDKey).(int64)
	return v, ok
}

// ParseUserID parses a positive decimal user ID.
func ParseUserID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func userIDFromRequest(r *http.Request) string {
	if v := r.Header.Get(UserHeaderName); v != "" {
		return v
	}
	return r.URL.Query().Get(UserQueryParam)
}

// Middleware stores the caller's user ID in the request context when one is
// supplied. Malformed IDs are rejected; absent IDs pass through.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := userIDFromRequest(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		userID, ok := ParseUserID(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid user id")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

// Require rejects requests that reached it without a user ID.
func Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserIDFromContext(r.Context()); !ok {
			writeError(w, http.StatusUnauthorized, "user id required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}

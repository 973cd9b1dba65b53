package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// Keys are the API keys accepted by the trigger endpoints.
type Keys struct {
	Public []string
	Admin  []string
}

// APIKey returns the key presented as a bearer token or X-API-Key header.
func APIKey(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func hasKey(given string, set []string) bool {
	if given == "" {
		return false
	}
	found := false
	for _, k := range set {
		if subtle.ConstantTimeCompare([]byte(k), []byte(given)) == 1 {
			found = true
		}
	}
	return found
}

// RequireAny admits a public or admin key. With no keys configured every
// request passes (local dev).
func RequireAny(keys Keys) func(http.Handler) http.Handler {
	if len(keys.Public) == 0 && len(keys.Admin) == 0 {
		return passthrough
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := APIKey(r)
			if hasKey(key, keys.Public) || hasKey(key, keys.Admin) {
				next.ServeHTTP(w, r)
				return
			}
			Error(w, http.StatusUnauthorized, "unauthorized")
		})
	}
}

// RequireAdmin admits admin keys only: 401 without a key, 403 with a
// non-admin one. With no admin keys configured every request passes.
func RequireAdmin(keys Keys) func(http.Handler) http.Handler {
	if len(keys.Admin) == 0 {
		return passthrough
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := APIKey(r)
			switch {
			case hasKey(key, keys.Admin):
				next.ServeHTTP(w, r)
			case key == "":
				Error(w, http.StatusUnauthorized, "unauthorized")
			default:
				Error(w, http.StatusForbidden, "forbidden")
			}
		})
	}
}

func passthrough(next http.Handler) http.Handler { return next }

// Error writes {"error": msg} with status.
func Error(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

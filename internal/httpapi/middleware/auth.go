package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// Keys holds the status API credentials. Admin keys may also read.
type Keys struct {
	Public []string
	Admin  []string
}

// readAuth accepts "Authorization: Bearer <key>" or "X-API-Key: <key>".
func readAuth(r *http.Request) string {
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func hasKey(given string, sets ...[]string) bool {
	if given == "" {
		return false
	}
	for _, set := range sets {
		for _, k := range set {
			if subtle.ConstantTimeCompare([]byte(k), []byte(given)) == 1 {
				return true
			}
		}
	}
	return false
}

// gate lets a request through when its key is in one of sets. A missing key
// is 401, a key without the needed role 403. With no keys configured the
// gate is open.
func gate(sets ...[]string) func(http.Handler) http.Handler {
	enabled := false
	for _, s := range sets {
		enabled = enabled || len(s) > 0
	}
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := readAuth(r)
			if hasKey(key, sets...) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			if key == "" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"forbidden"}`))
		})
	}
}

// RequireAny allows requests that present either a public or admin key.
// If no keys are configured, it allows all requests (handy for local dev).
func RequireAny(keys Keys) func(http.Handler) http.Handler {
	return gate(keys.Public, keys.Admin)
}

// RequireAdmin only permits requests that present an admin key.
func RequireAdmin(keys Keys) func(http.Handler) http.Handler {
	return gate(keys.Admin)
}

package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"mercator-hq/relay/pkg/proxy/types"
)

// AuthMiddleware enforces API-key authentication on the completion
// surface. Keys are presented as "Authorization: Bearer <key>"; an
// empty key set disables the check entirely.
func AuthMiddleware(keys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented, ok := bearerToken(r)
			if !ok || !keyMatches(keys, presented) {
				slog.WarnContext(r.Context(), "rejected unauthenticated request",
					"request_id", GetRequestID(r.Context()),
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path,
				)

				errResp := types.NewErrorResponse(
					"Incorrect or missing API key.",
					types.ErrorTypeInvalidRequest,
					"",
					"invalid_api_key",
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(errResp)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the bearer credential from the Authorization
// header.
func bearerToken(r *http.Request) (string, bool) {
	value := r.Header.Get("Authorization")
	if value == "" {
		return "", false
	}
	token, found := strings.CutPrefix(value, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}

// keyMatches compares the presented key against every configured key in
// constant time.
func keyMatches(keys []string, presented string) bool {
	matched := false
	for _, key := range keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(presented)) == 1 {
			matched = true
		}
	}
	return matched
}

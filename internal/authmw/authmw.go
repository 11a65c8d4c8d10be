// Package authmw provides HTTP middleware for device token authentication.
package authmw

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const deviceTokenHeader = "X-Device-Token"

// DeviceToken returns middleware that validates the caller's token against the
// expected value. Wearable firmware sends the token in the X-Device-Token
// header; other clients use a standard Bearer Authorization header. Comparison
// uses constant-time equality to prevent timing side-channel attacks.
func DeviceToken(token string) func(http.Handler) http.Handler {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := requestToken(r)
			if !ok {
				http.Error(w, `{"error":"missing or malformed credentials"}`, http.StatusUnauthorized)
				return
			}

			if subtle.ConstantTimeCompare(got, expected) != 1 {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func requestToken(r *http.Request) ([]byte, bool) {
	if v := r.Header.Get(deviceTokenHeader); v != "" {
		return []byte(v), true
	}
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return nil, false
	}
	return []byte(auth[len("Bearer "):]), true
}

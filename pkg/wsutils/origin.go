package wsutils

import (
	"net/http"
	"slices"
)

// CheckOrigin builds an Upgrader.CheckOrigin for the allowed origins, "*"
// allows any. Requests without an Origin header are not issued by browsers
// and are accepted.
func CheckOrigin(allowed []string) func(r *http.Request) bool {
	if slices.Contains(allowed, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, origin)
	}
}

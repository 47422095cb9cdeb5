package middleware

import (
	"net/http"
	"strings"
)

// extensionOrigins are echoed back so credentialed requests from the
// extension pages work. Any other caller gets the wildcard.
var extensionOrigins = []string{"chrome-extension://", "moz-extension://", "http://localhost", "http://127.0.0.1"}

func allowedOrigin(origin string) string {
	for _, prefix := range extensionOrigins {
		if strings.HasPrefix(origin, prefix) {
			return origin
		}
	}
	return "*"
}

// CORS adds Cross-Origin Resource Sharing headers and answers preflight
// requests.
func CORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		origin := allowedOrigin(r.Header.Get("Origin"))
		h.Set("Access-Control-Allow-Origin", origin)
		if origin != "*" {
			h.Add("Vary", "Origin")
		}
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

package middleware

import (
	"fmt"
	"net/http"

	"github.com/cloo-solutions/aura/internal/api"
)

// MaxBodyBytes caps the request body at limit bytes. A declared
// Content-Length over the cap is answered with 413 before the handler runs;
// an undeclared one surfaces as *http.MaxBytesError when the handler reads
// past the cap. A non-positive limit disables the check.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	tooLarge := fmt.Sprintf("request body exceeds %d bytes", limit)

	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				api.Error(w, http.StatusRequestEntityTooLarge, tooLarge)
				return
			}
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}

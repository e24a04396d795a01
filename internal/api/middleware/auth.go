package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/cloo-solutions/aura/internal/api"
)

type contextKey string

const (
	UserIDKey contextKey = "user_id"

	// UserIDHeader carries the learner identity set by the fronting gateway.
	UserIDHeader = "X-User-ID"

	maxUserIDLength = 128
)

// RequireUser rejects requests without a learner identity and stores it in
// the request context.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID == "" {
			api.Error(w, http.StatusUnauthorized, "missing "+UserIDHeader+" header")
			return
		}
		if len(userID) > maxUserIDLength {
			api.Error(w, http.StatusUnauthorized, "invalid "+UserIDHeader+" header")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}

// WithUserID returns ctx carrying userID, as RequireUser would set it.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

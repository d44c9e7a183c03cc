package auth

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is unexported so other packages cannot collide with it.
type contextKey string

const userIDKey contextKey = "user_id"

// GetUserID extracts the authenticated user id from the context. It
// returns "" when the request never passed RequireAuth.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// WithUserID returns a context carrying a user id. Exposed for tests.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// RequireAuth validates the Bearer token on each request and stores the
// user id in the request context. Requests without a valid token get a
// 401 and never reach next.
func RequireAuth(manager *JWTManager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorized(w, ErrMissingToken.Error())
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			unauthorized(w, ErrInvalidToken.Error())
			return
		}

		claims, err := manager.Validate(parts[1])
		if err != nil {
			unauthorized(w, ErrInvalidToken.Error())
			return
		}

		ctx := WithUserID(r.Context(), claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"success":false,"message":"` + message + `","code":"unauthorized"}`))
}

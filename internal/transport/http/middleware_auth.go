package http

import (
	"context"
	"net/http"
	"strings"

	"accountd/internal/domain"
	"accountd/internal/service"
)

type authCtxKey string

const ctxKeyUserID authCtxKey = "user_id"

// requireAuth validates the bearer access token and puts the subject user id
// into the request context. Missing or invalid tokens are a 403, matching
// the rest of the error contract.
func requireAuth(tokens service.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeError(w, http.StatusForbidden, "Token not provided or incorrect", "forbidden")
				return
			}
			userID, err := tokens.VerifyAccess(r.Context(), token)
			if err != nil {
				writeError(w, http.StatusForbidden, "Token not provided or incorrect", "forbidden")
				return
			}
			ctx := context.WithValue(r.Context(), ctxKeyUserID, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func userIDFromContext(ctx context.Context) (domain.UserID, bool) {
	id, ok := ctx.Value(ctxKeyUserID).(domain.UserID)
	return id, ok
}

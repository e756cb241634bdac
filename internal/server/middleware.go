package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/nutriplan/nutriplan-backend/internal/models"
)

type contextKey string

const userContextKey contextKey = "user"

// authMiddleware resolves the bearer token to a user account. Tokens
// are issued by the account service; this backend only validates them
// against the users table.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			s.writeError(w, http.StatusUnauthorized, "token de autenticação ausente")
			return
		}

		user, err := s.users.FindByToken(r.Context(), token)
		if err != nil {
			s.log.Error("token lookup failed", "err", err)
			s.writeError(w, http.StatusInternalServerError, "erro interno")
			return
		}
		if user == nil {
			s.writeError(w, http.StatusUnauthorized, "token inválido")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	return ""
}

func userFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey).(*models.User)
	return user
}

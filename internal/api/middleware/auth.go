package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	apiContext "projecthub/internal/api/context"
	"projecthub/internal/engine/identity"
	"projecthub/internal/pkg/errors"
)

type AuthMiddleware struct {
	verifier *identity.Verifier
}

func NewAuthMiddleware(verifier *identity.Verifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

func (m *AuthMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthenticated, "Missing authorization header", nil)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthenticated, "Invalid authorization header format", nil)
			return
		}

		cred, err := m.verifier.Verify(parts[1])
		if err != nil {
			if err == errors.ErrUnauthenticated {
				errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthenticated, "Invalid or expired credential", nil)
				return
			}
			log.Error().Err(err).Msg("credential verification failed")
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeUpstreamFailure, "Authentication unavailable", nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Credential, cred)
		next(w, r.WithContext(ctx))
	}
}

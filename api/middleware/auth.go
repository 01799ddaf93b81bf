package middleware

import (
	"net/http"
	"strings"

	"github.com/codebrew/pos-backend/api/responses"
	pkgAuth "github.com/codebrew/pos-backend/pkg/auth"
	"github.com/codebrew/pos-backend/pkg/config"
	pkgerrors "github.com/codebrew/pos-backend/pkg/errors"
	"github.com/codebrew/pos-backend/pkg/logger"
)

// Auth verifies the bearer token and seeds the request context with the actor.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithActor(r.Context(), Actor{
				UserID:   claims.UserID,
				Role:     claims.Role,
				BranchID: claims.BranchID,
			})
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID.String())
				ctx = logg.WithActorRole(ctx, string(claims.Role))
				if claims.BranchID != nil {
					ctx = logg.WithBranchID(ctx, claims.BranchID.String())
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) string {
	raw := strings.TrimSpace(header)
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		return strings.TrimSpace(raw[7:])
	}
	return ""
}

package authn

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	resp "identity_service/internal/lib/api/response"
	jwtlib "identity_service/internal/lib/jwt"
	sl "identity_service/internal/lib/logger"

	"github.com/go-chi/render"
	"github.com/google/uuid"
)

// tokenExpiredHeader tells clients to run the refresh flow instead of
// re-authenticating from scratch.
const tokenExpiredHeader = "Token-Expired"

type contextKey struct{}

type Identity struct {
	UserID uuid.UUID
	Name   string
}

// New verifies the bearer token on every request: signature, issuer, audience
// and lifetime. Expiry is the one failure distinguished to the client, via
// the Token-Expired header, set exactly once.
func New(log *slog.Logger, policy jwtlib.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.authn.New"

			log := log.With(slog.String("op", op))

			header := r.Header.Get("Authorization")

			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				unauthorized(w, r)
				return
			}

			claims, err := policy.Parse(token)
			if err != nil {
				if errors.Is(err, jwtlib.ErrTokenExpired) {
					if w.Header().Get(tokenExpiredHeader) == "" {
						w.Header().Set(tokenExpiredHeader, "true")
					}
				} else {
					log.Debug("bearer token rejected", sl.Err(err))
				}

				unauthorized(w, r)
				return
			}

			userID, err := uuid.Parse(claims.Subject)
			if err != nil {
				log.Warn("bearer token with malformed subject", sl.Err(err))
				unauthorized(w, r)
				return
			}

			identity := Identity{
				UserID: userID,
				Name:   claims.Name,
			}

			ctx := context.WithValue(r.Context(), contextKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		}

		return http.HandlerFunc(fn)
	}
}

// FromContext returns the identity stored by the middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(contextKey{}).(Identity)
	return identity, ok
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, resp.Error("invalid credentials"))
}

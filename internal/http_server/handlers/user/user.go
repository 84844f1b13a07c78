package user

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"identity_service/internal/auth"
	"identity_service/internal/http_server/middleware/authn"
	resp "identity_service/internal/lib/api/response"
	sl "identity_service/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	ID             string `json:"id"`
	Email          string `json:"email"`
	EmailConfirmed bool   `json:"email_confirmed"`
	CreatedAt      string `json:"created_at"`
}

type IDResponse struct {
	resp.Response
	ID string `json:"id"`
}

type NameResponse struct {
	resp.Response
	Name string `json:"name"`
}

// New returns the authenticated user's record.
func New(
	log *slog.Logger,
	authService *auth.Auth,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.user.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		identity, ok := authn.FromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("invalid credentials"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		u, err := authService.User(ctx, identity.UserID)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("invalid credentials"))

				return
			}

			log.Error("failed to load user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, Response{
			Response:       resp.OK(),
			ID:             u.ID.String(),
			Email:          u.Email,
			EmailConfirmed: u.EmailConfirmed,
			CreatedAt:      u.CreatedAt.Format(time.RFC3339),
		})
	}
}

// ID serves the user id straight from the verified claims, no store lookup.
func ID(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := authn.FromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("invalid credentials"))

			return
		}

		render.JSON(w, r, IDResponse{
			Response: resp.OK(),
			ID:       identity.UserID.String(),
		})
	}
}

// Name serves the display name claim.
func Name(log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := authn.FromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("invalid credentials"))

			return
		}

		render.JSON(w, r, NameResponse{
			Response: resp.OK(),
			Name:     identity.Name,
		})
	}
}

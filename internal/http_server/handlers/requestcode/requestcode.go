package requestcode

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"identity_service/internal/auth"
	resp "identity_service/internal/lib/api/response"
	sl "identity_service/internal/lib/logger"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type Request struct {
	Email    string `json:"email" validate:"required,email"`
	DeviceID string `json:"device_id" validate:"required,uuid"`
}

type Response struct {
	resp.Response
}

// New handles access code requests. The response is the same whether or not a
// user exists for the address; the code only ever travels out-of-band.
func New(
	log *slog.Logger,
	validate *validator.Validate,
	authService *auth.Auth,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.requestcode.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		log.Info("Request body decoded")

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		deviceID, err := uuid.Parse(req.DeviceID)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Invalid device id"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if _, err := authService.RequestAccessCode(ctx, req.Email, deviceID); err != nil {
			if errors.Is(err, auth.ErrCodeRequestThrottled) {
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, resp.Error("Too many requests"))

				return
			}

			log.Error("failed to request access code", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("Access code requested")

		ResponseOK(w, r)
	}
}

func ResponseOK(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, Response{
		Response: resp.OK(),
	})
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sl "identity_service/internal/lib/logger"
	"identity_service/internal/models"
	"identity_service/internal/storage"

	"github.com/google/uuid"
)

// ValidateAndConsume burns the access code matching (code, device) and
// resolves its owner. Consumption is destructive: once exactly one record
// matched, it is gone no matter what happens afterwards — an expired code and
// a code whose email has no user are both spent and rejected. Zero matches
// and ambiguous matches fail without consuming anything. All failures look
// the same to the caller.
func (a *Auth) ValidateAndConsume(
	ctx context.Context,
	code string,
	deviceID uuid.UUID,
) (models.User, error) {
	const op = "auth.ValidateAndConsume"

	log := a.log.With(slog.String("op", op))

	req, err := a.codeStore.ConsumeAccessCode(ctx, code, deviceID)
	if err != nil {
		if errors.Is(err, storage.ErrAccessCodeInvalid) {
			log.Info("no unique access code match")
			return models.User{}, ErrInvalidCredentials
		}

		log.Error("failed to consume access code", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	if time.Now().After(req.ExpiresAt) {
		log.Info("access code expired", slog.String("request_id", req.ID.String()))
		return models.User{}, ErrInvalidCredentials
	}

	user, err := a.usrProvider.UserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("access code consumed for unknown user")
			return models.User{}, ErrInvalidCredentials
		}

		log.Error("failed to resolve user", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	// A consumed code proves control of the address.
	if !user.EmailConfirmed {
		if err := a.usrProvider.SetEmailConfirmed(ctx, user.ID); err != nil {
			log.Warn("failed to mark email confirmed", sl.Err(err))
		} else {
			user.EmailConfirmed = true
		}
	}

	log.Info("access code validated", slog.String("uid", user.ID.String()))

	return user, nil
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sl "identity_service/internal/lib/logger"
	"identity_service/internal/models"
	"identity_service/internal/storage"

	"github.com/google/uuid"
)

// ValidateRefreshToken succeeds only when the original bearer token, the
// refresh secret and the device id all point at one live grant. The caller
// is never told which part of the triple was wrong.
func (a *Auth) ValidateRefreshToken(
	ctx context.Context,
	originalToken, refreshSecret string,
	deviceID uuid.UUID,
) error {
	const op = "auth.ValidateRefreshToken"

	log := a.log.With(slog.String("op", op))

	_, err := a.refreshStore.FindRefreshToken(ctx, hashValue(originalToken), hashValue(refreshSecret), deviceID)
	if err != nil {
		if errors.Is(err, storage.ErrRefreshTokenNotFound) {
			log.Info("refresh triple mismatch")
			return ErrInvalidCredentials
		}

		log.Error("failed to look up refresh token", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Rotate deletes the grant keyed by the refresh secret alone and returns its
// owner so the caller can mint a fresh pair. Device and original token are
// deliberately not re-checked here; the boundary enforces the full triple via
// ValidateRefreshToken before rotating, and logout needs nothing beyond the
// secret. The delete is atomic, so one of two racing rotations always loses.
func (a *Auth) Rotate(ctx context.Context, refreshSecret string) (models.User, error) {
	const op = "auth.Rotate"

	log := a.log.With(slog.String("op", op))

	rt, err := a.refreshStore.DeleteRefreshToken(ctx, hashValue(refreshSecret))
	if err != nil {
		if errors.Is(err, storage.ErrRefreshTokenNotFound) {
			log.Info("unknown refresh secret")
			return models.User{}, ErrInvalidCredentials
		}

		log.Error("failed to delete refresh token", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := a.usrProvider.UserByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("refresh token for unknown user", slog.String("uid", rt.UserID.String()))
			return models.User{}, ErrInvalidCredentials
		}

		log.Error("failed to load user", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("refresh token rotated", slog.String("uid", user.ID.String()))

	return user, nil
}

// Refresh validates the full triple, rotates the grant and issues a new
// bearer+refresh pair bound to the same device.
func (a *Auth) Refresh(
	ctx context.Context,
	originalToken, refreshSecret string,
	deviceID uuid.UUID,
) (accessToken string, newRefreshSecret string, err error) {
	const op = "auth.Refresh"

	if err := a.ValidateRefreshToken(ctx, originalToken, refreshSecret, deviceID); err != nil {
		return "", "", err
	}

	user, err := a.Rotate(ctx, refreshSecret)
	if err != nil {
		return "", "", err
	}

	accessToken, newRefreshSecret, err = a.IssueBearerToken(ctx, user, deviceID)
	if err != nil {
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	return accessToken, newRefreshSecret, nil
}

// Logout is a rotation without reissue.
func (a *Auth) Logout(ctx context.Context, refreshSecret string) error {
	const op = "auth.Logout"

	log := a.log.With(slog.String("op", op))

	if _, err := a.Rotate(ctx, refreshSecret); err != nil {
		return err
	}

	log.Info("logout successful")

	return nil
}

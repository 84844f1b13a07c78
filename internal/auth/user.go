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

// User resolves the user behind an authenticated request.
func (a *Auth) User(ctx context.Context, id uuid.UUID) (models.User, error) {
	const op = "auth.User"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("authenticated user no longer exists", slog.String("uid", id.String()))
			return models.User{}, ErrInvalidCredentials
		}

		log.Error("failed to load user", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

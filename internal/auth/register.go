package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sl "identity_service/internal/lib/logger"
	"identity_service/internal/models"
	"identity_service/internal/storage"
)

var ErrUserExists = errors.New("user already exists")

// RegisterNewUser creates an unconfirmed user for the email. The store
// enforces email uniqueness; the address is confirmed later by consuming a
// quick access code.
func (a *Auth) RegisterNewUser(ctx context.Context, email string) (models.User, error) {
	const op = "auth.RegisterNewUser"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrSaver.SaveUser(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("user already exists")
			return models.User{}, ErrUserExists
		}

		log.Error("failed to save user", sl.Err(err))
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered", slog.String("uid", user.ID.String()))

	return user, nil
}

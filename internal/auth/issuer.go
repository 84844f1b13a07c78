package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	sl "identity_service/internal/lib/logger"
	"identity_service/internal/lib/random"
	"identity_service/internal/models"

	"github.com/google/uuid"
)

const quickAccessCodeLength = 6

const codeEmailSubject = "Your quick access code"

// RequestAccessCode generates a quick access code for the email, persists it
// and hands it to the notifier. Nothing stops several live codes coexisting
// for the same (email, device) pair; the validator's exact-match rule deals
// with the ambiguity. The caller learns nothing about whether a user exists
// for the address.
func (a *Auth) RequestAccessCode(
	ctx context.Context,
	email string,
	deviceID uuid.UUID,
) (models.AccessCodeRequest, error) {
	const op = "auth.RequestAccessCode"

	log := a.log.With(slog.String("op", op))

	if a.notifier == nil {
		log.Error("no notifier configured")
		return models.AccessCodeRequest{}, ErrNotifierNotConfigured
	}

	if a.limiter != nil {
		allowed, err := a.limiter.AllowCodeRequest(ctx, email, deviceID, a.codeCooldown)
		if err != nil {
			log.Error("failed to check code cooldown", sl.Err(err))
			return models.AccessCodeRequest{}, fmt.Errorf("%s: %w", op, err)
		}
		if !allowed {
			log.Info("code request throttled")
			return models.AccessCodeRequest{}, ErrCodeRequestThrottled
		}
	}

	code, err := random.NumericCode(quickAccessCodeLength)
	if err != nil {
		log.Error("failed to generate access code", sl.Err(err))
		a.releaseCooldown(ctx, log, email, deviceID)
		return models.AccessCodeRequest{}, fmt.Errorf("%s: %w", op, err)
	}

	req := models.AccessCodeRequest{
		ID:              uuid.New(),
		Email:           email,
		QuickAccessCode: code,
		LoginCode:       uuid.New(),
		ExpiresAt:       time.Now().Add(a.accessCodeTTL),
		DeviceID:        deviceID,
	}

	if err := a.codeStore.SaveAccessCode(ctx, req); err != nil {
		log.Error("failed to save access code", sl.Err(err))
		a.releaseCooldown(ctx, log, email, deviceID)
		return models.AccessCodeRequest{}, fmt.Errorf("%s: %w", op, err)
	}

	body := fmt.Sprintf("Your quick access code is %s. It expires in %s.",
		code, a.accessCodeTTL)

	mergeFields := map[string]string{
		"quick_access_code": code,
		"login_code":        req.LoginCode.String(),
	}

	if err := a.notifier.Deliver(ctx, email, codeEmailSubject, body, mergeFields); err != nil {
		log.Error("failed to deliver access code", sl.Err(err))
		a.releaseCooldown(ctx, log, email, deviceID)
		return models.AccessCodeRequest{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("access code issued", slog.String("request_id", req.ID.String()))

	return req, nil
}

// releaseCooldown drops a claimed cooldown window after a failed request, so
// the user can retry without a code in hand. Reset failures are logged, not
// returned: the original error is what the caller needs.
func (a *Auth) releaseCooldown(ctx context.Context, log *slog.Logger, email string, deviceID uuid.UUID) {
	if a.limiter == nil {
		return
	}

	if err := a.limiter.ResetCodeRequest(ctx, email, deviceID); err != nil {
		log.Warn("failed to reset code cooldown", sl.Err(err))
	}
}

// IssueBearerToken signs a bearer token for the user and persists a refresh
// grant bound to the device and to this exact bearer token. The returned
// refresh secret is shown to the client once and stored only as a digest.
func (a *Auth) IssueBearerToken(
	ctx context.Context,
	user models.User,
	deviceID uuid.UUID,
) (accessToken string, refreshSecret string, err error) {
	const op = "auth.IssueBearerToken"

	log := a.log.With(slog.String("op", op))

	accessToken, err = a.policy.NewToken(user)
	if err != nil {
		log.Error("failed to sign bearer token", sl.Err(err))
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	refreshSecret, err = random.Secret(32)
	if err != nil {
		log.Error("failed to generate refresh secret", sl.Err(err))
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	rt := models.RefreshToken{
		ID:           uuid.New(),
		UserID:       user.ID,
		DeviceID:     deviceID,
		OriginalHash: hashValue(accessToken),
		SecretHash:   hashValue(refreshSecret),
	}

	if err := a.refreshStore.SaveRefreshToken(ctx, rt); err != nil {
		log.Error("failed to save refresh token", sl.Err(err))
		return "", "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("bearer token issued", slog.String("uid", user.ID.String()))

	return accessToken, refreshSecret, nil
}

package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	jwtlib "identity_service/internal/lib/jwt"
	"identity_service/internal/models"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrNotifierNotConfigured = errors.New("notifier not configured")
	ErrCodeRequestThrottled  = errors.New("code request throttled")
)

type Auth struct {
	log           *slog.Logger
	usrSaver      UserSaver
	usrProvider   UserProvider
	codeStore     AccessCodeStore
	refreshStore  RefreshTokenStore
	notifier      Notifier
	limiter       CodeLimiter
	policy        jwtlib.Policy
	accessCodeTTL time.Duration
	codeCooldown  time.Duration
}

type UserSaver interface {
	SaveUser(ctx context.Context, email string) (models.User, error)
}

type UserProvider interface {
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, id uuid.UUID) (models.User, error)
	SetEmailConfirmed(ctx context.Context, userID uuid.UUID) error
}

type AccessCodeStore interface {
	SaveAccessCode(ctx context.Context, req models.AccessCodeRequest) error
	ConsumeAccessCode(ctx context.Context, code string, deviceID uuid.UUID) (models.AccessCodeRequest, error)
}

type RefreshTokenStore interface {
	SaveRefreshToken(ctx context.Context, rt models.RefreshToken) error
	FindRefreshToken(ctx context.Context, originalHash, secretHash string, deviceID uuid.UUID) (models.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, secretHash string) (models.RefreshToken, error)
}

// Notifier delivers the access code out-of-band. Delivery is fire-and-forget:
// failures propagate to the caller, the core never retries.
type Notifier interface {
	Deliver(ctx context.Context, to, subject, body string, mergeFields map[string]string) error
}

// CodeLimiter throttles code requests per (email, device). Optional.
// ResetCodeRequest gives a claimed window back when the request dies before a
// code reaches the user.
type CodeLimiter interface {
	AllowCodeRequest(ctx context.Context, email string, deviceID uuid.UUID, window time.Duration) (bool, error)
	ResetCodeRequest(ctx context.Context, email string, deviceID uuid.UUID) error
}

func New(
	log *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	codeStore AccessCodeStore,
	refreshStore RefreshTokenStore,
	notifier Notifier,
	limiter CodeLimiter,
	policy jwtlib.Policy,
	accessCodeTTL time.Duration,
	codeCooldown time.Duration,
) *Auth {
	return &Auth{
		log:           log,
		usrSaver:      userSaver,
		usrProvider:   userProvider,
		codeStore:     codeStore,
		refreshStore:  refreshStore,
		notifier:      notifier,
		limiter:       limiter,
		policy:        policy,
		accessCodeTTL: accessCodeTTL,
		codeCooldown:  codeCooldown,
	}
}

// hashValue is the digest stored instead of raw secrets and bearer tokens.
// sha256 keeps lookups deterministic.
func hashValue(value string) string {
	hash := sha256.Sum256([]byte(value))
	return hex.EncodeToString(hash[:])
}

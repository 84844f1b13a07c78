package authn

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtlib "identity_service/internal/lib/jwt"
	"identity_service/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() jwtlib.Policy {
	return jwtlib.Policy{
		Secret:   "test-secret-key",
		Issuer:   "identity_service",
		Audience: "identity_clients",
		TokenTTL: time.Minute,
	}
}

func newProtected(t *testing.T, policy jwtlib.Policy) (http.Handler, *Identity) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	var seen Identity

	probe := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := FromContext(r.Context())
		require.True(t, ok)
		seen = identity
		w.WriteHeader(http.StatusOK)
	})

	return New(log, policy)(probe), &seen
}

func TestAuthn_ValidToken(t *testing.T) {
	policy := testPolicy()
	handler, seen := newProtected(t, policy)

	user := models.User{ID: uuid.New(), Email: "user@example.com"}
	token, err := policy.NewToken(user)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/user", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user.ID, seen.UserID)
	assert.Equal(t, user.Email, seen.Name)
	assert.Empty(t, rec.Header().Get("Token-Expired"))
}

func TestAuthn_MissingHeader(t *testing.T) {
	handler, _ := newProtected(t, testPolicy())

	req := httptest.NewRequest(http.MethodGet, "/user", nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Header().Get("Token-Expired"))
}

func TestAuthn_ExpiredTokenSetsHeaderOnce(t *testing.T) {
	policy := testPolicy()

	expiredPolicy := policy
	expiredPolicy.TokenTTL = -time.Minute

	token, err := expiredPolicy.NewToken(models.User{ID: uuid.New(), Email: "user@example.com"})
	require.NoError(t, err)

	handler, _ := newProtected(t, policy)

	req := httptest.NewRequest(http.MethodGet, "/user", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, []string{"true"}, rec.Header().Values("Token-Expired"))
}

func TestAuthn_WrongSignatureNoExpiryHeader(t *testing.T) {
	otherPolicy := testPolicy()
	otherPolicy.Secret = "other-secret"

	token, err := otherPolicy.NewToken(models.User{ID: uuid.New(), Email: "user@example.com"})
	require.NoError(t, err)

	handler, _ := newProtected(t, testPolicy())

	req := httptest.NewRequest(http.MethodGet, "/user", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Header().Get("Token-Expired"),
		"only expiry may be distinguished from other failures")
}

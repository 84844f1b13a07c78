package login_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"identity_service/internal/auth"
	"identity_service/internal/http_server/handlers/login"
	jwtlib "identity_service/internal/lib/jwt"
	"identity_service/internal/models"
	"identity_service/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu     sync.Mutex
	users  map[uuid.UUID]models.User
	codes  map[uuid.UUID]models.AccessCodeRequest
	tokens map[string]models.RefreshToken
}

func newMemStore() *memStore {
	return &memStore{
		users:  make(map[uuid.UUID]models.User),
		codes:  make(map[uuid.UUID]models.AccessCodeRequest),
		tokens: make(map[string]models.RefreshToken),
	}
}

func (s *memStore) SaveUser(ctx context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := models.User{ID: uuid.New(), Email: email, CreatedAt: time.Now()}
	s.users[u.ID] = u
	return u, nil
}

func (s *memStore) UserByEmail(ctx context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, storage.ErrUserNotFound
}

func (s *memStore) UserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}
	return u, nil
}

func (s *memStore) SetEmailConfirmed(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.users[userID]
	u.EmailConfirmed = true
	s.users[userID] = u
	return nil
}

func (s *memStore) SaveAccessCode(ctx context.Context, req models.AccessCodeRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.codes[req.ID] = req
	return nil
}

func (s *memStore) ConsumeAccessCode(ctx context.Context, code string, deviceID uuid.UUID) (models.AccessCodeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matches []models.AccessCodeRequest
	for _, req := range s.codes {
		if req.QuickAccessCode == code && req.DeviceID == deviceID {
			matches = append(matches, req)
		}
	}
	if len(matches) != 1 {
		return models.AccessCodeRequest{}, storage.ErrAccessCodeInvalid
	}

	delete(s.codes, matches[0].ID)
	return matches[0], nil
}

func (s *memStore) SaveRefreshToken(ctx context.Context, rt models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[rt.SecretHash] = rt
	return nil
}

func (s *memStore) FindRefreshToken(ctx context.Context, originalHash, secretHash string, deviceID uuid.UUID) (models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rt, ok := s.tokens[secretHash]
	if !ok || rt.OriginalHash != originalHash || rt.DeviceID != deviceID {
		return models.RefreshToken{}, storage.ErrRefreshTokenNotFound
	}
	return rt, nil
}

func (s *memStore) DeleteRefreshToken(ctx context.Context, secretHash string) (models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rt, ok := s.tokens[secretHash]
	if !ok {
		return models.RefreshToken{}, storage.ErrRefreshTokenNotFound
	}
	delete(s.tokens, secretHash)
	return rt, nil
}

type noopNotifier struct{}

func (noopNotifier) Deliver(ctx context.Context, to, subject, body string, mergeFields map[string]string) error {
	return nil
}

func newHandler(t *testing.T) (http.HandlerFunc, *auth.Auth, *memStore) {
	t.Helper()

	store := newMemStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	policy := jwtlib.Policy{
		Secret:   "test-secret-key",
		Issuer:   "identity_service",
		Audience: "identity_clients",
		TokenTTL: time.Minute,
	}

	a := auth.New(log, store, store, store, store, noopNotifier{}, nil, policy, 30*time.Minute, time.Minute)

	return login.New(log, validator.New(), a), a, store
}

func postLogin(t *testing.T, handler http.HandlerFunc, body map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

func TestLogin_Success(t *testing.T) {
	handler, a, store := newHandler(t)

	_, err := store.SaveUser(context.Background(), "user@example.com")
	require.NoError(t, err)

	deviceID := uuid.New()
	code, err := a.RequestAccessCode(context.Background(), "user@example.com", deviceID)
	require.NoError(t, err)

	rec := postLogin(t, handler, map[string]string{
		"code":      code.QuickAccessCode,
		"device_id": deviceID.String(),
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var body login.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.NotEmpty(t, body.AccessToken)
	assert.NotEmpty(t, body.RefreshToken)
}

func TestLogin_WrongCodeGenericFailure(t *testing.T) {
	handler, a, store := newHandler(t)

	_, err := store.SaveUser(context.Background(), "user@example.com")
	require.NoError(t, err)

	deviceID := uuid.New()
	_, err = a.RequestAccessCode(context.Background(), "user@example.com", deviceID)
	require.NoError(t, err)

	rec := postLogin(t, handler, map[string]string{
		"code":      "000000",
		"device_id": deviceID.String(),
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid credentials")
}

func TestLogin_CodeIsSingleUse(t *testing.T) {
	handler, a, store := newHandler(t)

	_, err := store.SaveUser(context.Background(), "user@example.com")
	require.NoError(t, err)

	deviceID := uuid.New()
	code, err := a.RequestAccessCode(context.Background(), "user@example.com", deviceID)
	require.NoError(t, err)

	body := map[string]string{
		"code":      code.QuickAccessCode,
		"device_id": deviceID.String(),
	}

	rec := postLogin(t, handler, body)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postLogin(t, handler, body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_MalformedCodeRejected(t *testing.T) {
	handler, _, _ := newHandler(t)

	rec := postLogin(t, handler, map[string]string{
		"code":      "abc123",
		"device_id": uuid.New().String(),
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

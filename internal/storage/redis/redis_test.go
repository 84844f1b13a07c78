package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) (*RedisRepo, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	repo := &RedisRepo{client: redislib.NewClient(&redislib.Options{Addr: mr.Addr()})}
	t.Cleanup(repo.Close)

	return repo, mr
}

func TestAllowCodeRequest_FirstCallWins(t *testing.T) {
	repo, _ := newTestRepo(t)

	email := "user@example.com"
	deviceID := uuid.New()

	allowed, err := repo.AllowCodeRequest(context.Background(), email, deviceID, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = repo.AllowCodeRequest(context.Background(), email, deviceID, time.Minute)
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestAllowCodeRequest_IndependentPairs(t *testing.T) {
	repo, _ := newTestRepo(t)

	email := "user@example.com"

	allowed, err := repo.AllowCodeRequest(context.Background(), email, uuid.New(), time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)

	// same email, different device
	allowed, err = repo.AllowCodeRequest(context.Background(), email, uuid.New(), time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestAllowCodeRequest_WindowExpires(t *testing.T) {
	repo, mr := newTestRepo(t)

	email := "user@example.com"
	deviceID := uuid.New()

	allowed, err := repo.AllowCodeRequest(context.Background(), email, deviceID, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)

	mr.FastForward(2 * time.Minute)

	allowed, err = repo.AllowCodeRequest(context.Background(), email, deviceID, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestResetCodeRequest(t *testing.T) {
	repo, _ := newTestRepo(t)

	email := "user@example.com"
	deviceID := uuid.New()

	allowed, err := repo.AllowCodeRequest(context.Background(), email, deviceID, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)

	require.NoError(t, repo.ResetCodeRequest(context.Background(), email, deviceID))

	allowed, err = repo.AllowCodeRequest(context.Background(), email, deviceID, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)
}

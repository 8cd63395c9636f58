package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartrestaurant/gateway/internal/models"
)

func newSession(hash string, expiresAt time.Time) *models.Session {
	return &models.Session{
		ID:          "sess-" + hash,
		TokenHash:   hash,
		Subject:     "sub-1",
		Email:       "ana@example.com",
		Claims:      map[string]any{"email_verified": true},
		Authorities: []string{"CLIENT"},
		CreatedAt:   time.Now(),
		ExpiresAt:   expiresAt,
	}
}

func TestLRUSessionRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewLRUSessionRepository(10, time.Hour)

	session := newSession("abc", time.Now().Add(time.Hour))
	require.NoError(t, repo.Create(ctx, session))

	got, err := repo.GetByTokenHash(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", got.Email)
	assert.Equal(t, []string{"CLIENT"}, got.Authorities)

	// stored value is isolated from the caller's copy
	session.Authorities[0] = "ADMIN"
	got, err = repo.GetByTokenHash(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, []string{"CLIENT"}, got.Authorities)

	require.NoError(t, repo.Delete(ctx, "abc"))
	_, err = repo.GetByTokenHash(ctx, "abc")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestLRUSessionRepository_ExpiredSession(t *testing.T) {
	ctx := context.Background()
	repo := NewLRUSessionRepository(10, time.Hour)
	now := time.Now()
	repo.now = func() time.Time { return now }

	require.NoError(t, repo.Create(ctx, newSession("old", now.Add(time.Minute))))

	repo.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err := repo.GetByTokenHash(ctx, "old")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 0, repo.Len())
}

func TestLRUSessionRepository_Eviction(t *testing.T) {
	ctx := context.Background()
	repo := NewLRUSessionRepository(2, time.Hour)
	exp := time.Now().Add(time.Hour)

	require.NoError(t, repo.Create(ctx, newSession("a", exp)))
	require.NoError(t, repo.Create(ctx, newSession("b", exp)))
	require.NoError(t, repo.Create(ctx, newSession("c", exp)))

	_, err := repo.GetByTokenHash(ctx, "a")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 2, repo.Len())
}

func TestRedisSessionRepository(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := NewRedisSessionRepository(client)

	require.NoError(t, repo.Create(ctx, newSession("abc", time.Now().Add(time.Hour))))
	assert.True(t, mr.Exists("session:abc"))
	assert.Greater(t, mr.TTL("session:abc"), 59*time.Minute)

	got, err := repo.GetByTokenHash(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", got.Subject)
	assert.Equal(t, true, got.Claims["email_verified"])

	mr.FastForward(2 * time.Hour)
	_, err = repo.GetByTokenHash(ctx, "abc")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisSessionRepository_Delete(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	repo := NewRedisSessionRepository(client)

	require.NoError(t, repo.Create(ctx, newSession("abc", time.Now().Add(time.Hour))))
	require.NoError(t, repo.Delete(ctx, "abc"))
	assert.False(t, mr.Exists("session:abc"))

	err := repo.Create(ctx, newSession("late", time.Now().Add(-time.Second)))
	require.Error(t, err)
}

func TestNewRedisClient_InvalidURL(t *testing.T) {
	_, err := NewRedisClient("not-a-url")
	require.Error(t, err)
}

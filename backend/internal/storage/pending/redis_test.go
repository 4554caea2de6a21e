package pending

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vpportal/vpportal/shared/config"
	"github.com/vpportal/vpportal/shared/domain"
)

func setupTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	db, err := NewRedisClient(context.Background(), config.Redis{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewRedis(db, 30*time.Minute), mr
}

func TestRedis_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	store, mr := setupTestRedis(t)

	expires := time.Now().Add(10 * time.Minute).Truncate(time.Second)
	p := domain.PendingRegistration{
		Email:    "Student@Woxsen.edu.in",
		Name:     "Asha",
		PassHash: "$2a$10$hash",
		Role:     "student",
		OTPHash:  "otp-hash",
		Expires:  expires,
		UserId:   "u1",
	}
	require.NoError(t, store.Put(ctx, p))
	assert.True(t, mr.Exists("pending:student@woxsen.edu.in"))

	ttl := mr.TTL("pending:student@woxsen.edu.in")
	assert.InDelta(t, (40 * time.Minute).Seconds(), ttl.Seconds(), 5)

	got, err := store.Get(ctx, "student@woxsen.edu.in ")
	require.NoError(t, err)
	assert.Equal(t, "student@woxsen.edu.in", got.Email)
	assert.Equal(t, "u1", got.UserId)
	assert.True(t, expires.Equal(got.Expires))

	require.NoError(t, store.Delete(ctx, "student@woxsen.edu.in"))
	_, err = store.Get(ctx, "student@woxsen.edu.in")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedis_EntryVanishesAfterGrace(t *testing.T) {
	ctx := context.Background()
	store, mr := setupTestRedis(t)

	require.NoError(t, store.Put(ctx, domain.PendingRegistration{Email: "a@woxsen.edu.in", Expires: time.Now().Add(10 * time.Minute)}))

	mr.FastForward(11 * time.Minute)
	_, err := store.Get(ctx, "a@woxsen.edu.in")
	require.NoError(t, err, "still visible inside the grace period")

	mr.FastForward(30 * time.Minute)
	_, err = store.Get(ctx, "a@woxsen.edu.in")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedis_PutAlreadyForgotten(t *testing.T) {
	ctx := context.Background()
	store, mr := setupTestRedis(t)

	require.NoError(t, store.Put(ctx, domain.PendingRegistration{Email: "a@woxsen.edu.in", Expires: time.Now().Add(-time.Hour)}))
	assert.False(t, mr.Exists("pending:a@woxsen.edu.in"))
}

func TestRedis_CorruptValue(t *testing.T) {
	ctx := context.Background()
	store, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("pending:bad@woxsen.edu.in", "not-json"))

	_, err := store.Get(ctx, "bad@woxsen.edu.in")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

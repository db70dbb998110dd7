package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

func TestIdempotencyRepository_PostgresCreateGetAndMarkDone(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewIdempotencyRepository(store, time.Hour)

	key := "commit-sale-key"
	ttl := time.Now().UTC().Add(2 * time.Hour).Round(time.Second)

	created, err := repo.CreateProcessing(key, "req-hash-1", ttl)
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusProcessing, created.Status)
	require.True(t, created.TTLAt.Equal(ttl))

	require.NoError(t, repo.MarkDone(key, []byte(`{"orderNumber":1}`), 201))

	got, err := repo.Get(key)
	require.NoError(t, err)
	require.Equal(t, "req-hash-1", got.RequestHash)
	require.Equal(t, domain.IdempotencyStatusDone, got.Status)
	require.Equal(t, 201, got.HTTPStatus)
	require.JSONEq(t, `{"orderNumber":1}`, string(got.ResponseBody))
	require.True(t, got.TTLAt.Equal(ttl), "ttl mismatch: expected %s, got %s", ttl, got.TTLAt)
}

func TestIdempotencyRepository_PostgresConflictAndHashMismatch(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewIdempotencyRepository(store, time.Hour)

	_, err := repo.CreateProcessing("void-sale-key", "req-hash-a", time.Time{})
	require.NoError(t, err)

	existing, err := repo.CreateProcessing("void-sale-key", "req-hash-a", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)
	require.Equal(t, domain.IdempotencyStatusProcessing, existing.Status)

	_, err = repo.CreateProcessing("void-sale-key", "req-hash-b", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)

	require.ErrorIs(t, repo.MarkFailed("missing-key", nil, 500), domain.ErrIdempotencyKeyNotFound)
	_, err = repo.Get(" ")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyRequired)
}

func TestIdempotencyRepository_PostgresExpiredKeyIsReused(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewIdempotencyRepository(store, time.Hour)

	_, err := repo.CreateProcessing("reused-key", "old-hash", time.Now().UTC().Add(-time.Minute))
	require.NoError(t, err)
	require.NoError(t, repo.MarkDone("reused-key", []byte(`{}`), 200))

	record, err := repo.CreateProcessing("reused-key", "new-hash", time.Time{})
	require.NoError(t, err)
	require.Equal(t, "new-hash", record.RequestHash)
	require.Equal(t, domain.IdempotencyStatusProcessing, record.Status)
	require.Empty(t, record.ResponseBody)
	require.Zero(t, record.HTTPStatus)
}

func TestIdempotencyRepository_PostgresDeleteExpired(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewIdempotencyRepository(store, time.Hour)

	now := time.Now().UTC()
	for i, key := range []string{"expired-1", "expired-2", "expired-3"} {
		_, err := repo.CreateProcessing(key, "h", now.Add(-time.Duration(5-i)*time.Minute))
		require.NoError(t, err)
	}
	_, err := repo.CreateProcessing("active-1", "h", now.Add(time.Hour))
	require.NoError(t, err)

	removed, err := repo.DeleteExpired(now, 2)
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	removed, err = repo.DeleteExpired(now, 0)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	_, err = repo.Get("active-1")
	require.NoError(t, err)
}

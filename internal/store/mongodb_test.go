package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"textanalysis/internal/testinfra"
	apperrors "textanalysis/pkg/errors"
)

func setupRepository(t *testing.T) *MongoDBRepository {
	infra := testinfra.Setup(t, testinfra.Options{Mongo: true})
	repo := NewRepository(infra.MongoDB, "processed_messages")
	require.NoError(t, EnsureIndexes(context.Background(), repo.Collection()))
	return repo
}

func TestMongoDBRepository_UpsertReplacesWholeDocument(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	first := Document{
		ID:             "1",
		UserID:         strPtr("u1"),
		OriginalText:   "first",
		Timestamp:      strPtr("2025-01-01T00:00:00Z"),
		ProcessingTime: 2.5,
		ToxicityScore:  90,
		IsToxic:        true,
		ProcessedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, repo.Upsert(ctx, first))

	second := Document{
		ID:             "1",
		OriginalText:   "second",
		ProcessingTime: 3.1,
		ToxicityScore:  10,
		ProcessedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	require.NoError(t, repo.Upsert(ctx, second))

	got, err := repo.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, second, got)
	assert.Nil(t, got.UserID)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestMongoDBRepository_DeleteIsIdempotent(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, Document{ID: "2", OriginalText: "x"}))
	require.NoError(t, repo.Delete(ctx, "2"))

	_, err := repo.Get(ctx, "2")
	assert.True(t, apperrors.IsNotFound(err))

	require.NoError(t, repo.Delete(ctx, "never-existed"))
	require.NoError(t, repo.Delete(ctx, "never-existed"))
}

func TestMongoDBRepository_ConcurrentSameIDUpserts(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(score int) {
			defer wg.Done()
			assert.NoError(t, repo.Upsert(ctx, Document{ID: "same", ToxicityScore: score}))
		}(i)
	}
	wg.Wait()

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestMongoDBRepository_DeleteAll(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Upsert(ctx, Document{ID: id}))
	}

	deleted, err := repo.DeleteAll(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, deleted)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEnsureIndexes_UniqueID(t *testing.T) {
	repo := setupRepository(t)
	ctx := context.Background()

	require.NoError(t, EnsureIndexes(ctx, repo.Collection()))

	_, err := repo.Collection().InsertOne(ctx, bson.M{"id": "dup"})
	require.NoError(t, err)
	_, err = repo.Collection().InsertOne(ctx, bson.M{"id": "dup"})
	assert.Error(t, err)
}

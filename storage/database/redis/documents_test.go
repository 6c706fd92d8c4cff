package redisdb

import (
	"context"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ilmlab/core"
)

// newTestStore uses the server at TEST_REDIS_ADDRESS, or an in-process one when it is not set.
func newTestStore(t *testing.T) *DocumentStore {
	t.Helper()
	conf := core.NewTestConfig()
	conf.Redis.Address = os.Getenv("TEST_REDIS_ADDRESS")
	if conf.Redis.Address == "" {
		conf.Redis.Address = miniredis.RunT(t).Addr()
	}

	rdb, err := Connect(context.Background(), conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	// unique prefix per test
	return NewDocumentStore(rdb, "test:"+uuid.NewString()+":", "xp")
}

func TestDocumentStore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Get(ctx, "users", "u1")
	assert.Equal(t, core.ErrDocumentNotFound, err)
	assert.Equal(t, core.ErrDocumentNotFound, store.Update(ctx, "users", "u1", core.Fields{"xp": 1}))

	require.NoError(t, store.Set(ctx, "users", "u1", core.Fields{"xp": 10, "streak": 2}, core.SetOptions{Merge: true}))
	require.NoError(t, store.Set(ctx, "users", "u1", core.Fields{"xp": 20}, core.SetOptions{Merge: true}))

	doc, err := store.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, float64(20), doc.Number("xp"))
	assert.Equal(t, float64(2), doc.Number("streak"))
	assert.False(t, doc.Has(idField))

	require.NoError(t, store.Set(ctx, "users", "u1", core.Fields{"xp": 30}, core.SetOptions{}))
	doc, err = store.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.False(t, doc.Has("streak"))

	require.NoError(t, store.Update(ctx, "users", "u1", core.Fields{"streak": 1}))
	doc, err = store.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, float64(30), doc.Number("xp"))
}

func TestDocumentStore_Rank(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for id, xp := range map[string]interface{}{"a": 10, "b": 30, "c": 20, "d": "oops"} {
		require.NoError(t, store.Set(ctx, "users", id, core.Fields{"xp": xp}, core.SetOptions{}))
	}

	docs, err := store.Rank(ctx, "users", "xp", 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "b", docs[0].ID)
	assert.Equal(t, "c", docs[1].ID)

	docs, err = store.Rank(ctx, "users", "xp", 0)
	require.NoError(t, err)
	assert.Len(t, docs, 3)

	_, err = store.Rank(ctx, "users", "streak", 2)
	assert.Equal(t, core.ErrRankingUnsupported, err)
}

func TestDocumentStore_UpdateAbsent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	assert.Equal(t, core.ErrDocumentNotFound, store.Update(ctx, "users", "ghost", core.Fields{"xp": 50}))
	_, err := store.Get(ctx, "users", "ghost")
	assert.Equal(t, core.ErrDocumentNotFound, err)

	docs, err := store.Rank(ctx, "users", "xp", 0)
	require.NoError(t, err)
	assert.Empty(t, docs, "a failed update must not rank the document")
}

func TestDocumentStore_RankMirror(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rankedIDs := func() []string {
		t.Helper()
		docs, err := store.Rank(ctx, "users", "xp", 0)
		require.NoError(t, err)
		ids := make([]string, 0, len(docs))
		for _, d := range docs {
			ids = append(ids, d.ID)
		}
		return ids
	}

	require.NoError(t, store.Set(ctx, "users", "a", core.Fields{"xp": 10, "name": "A"}, core.SetOptions{}))
	require.NoError(t, store.Set(ctx, "users", "b", core.Fields{"xp": 20}, core.SetOptions{}))
	assert.Equal(t, []string{"b", "a"}, rankedIDs())

	// updates move the score
	require.NoError(t, store.Update(ctx, "users", "a", core.Fields{"xp": 30}))
	assert.Equal(t, []string{"a", "b"}, rankedIDs())

	// merges without the rank field keep it
	require.NoError(t, store.Set(ctx, "users", "a", core.Fields{"name": "Ada"}, core.SetOptions{Merge: true}))
	assert.Equal(t, []string{"a", "b"}, rankedIDs())

	// replacing without a numeric xp unranks
	require.NoError(t, store.Set(ctx, "users", "a", core.Fields{"xp": "oops"}, core.SetOptions{}))
	assert.Equal(t, []string{"b"}, rankedIDs())
	require.NoError(t, store.Set(ctx, "users", "b", core.Fields{"name": "B"}, core.SetOptions{}))
	assert.Empty(t, rankedIDs())

	// collections rank apart
	require.NoError(t, store.Set(ctx, "teams", "t1", core.Fields{"xp": 5}, core.SetOptions{}))
	assert.Empty(t, rankedIDs())
}

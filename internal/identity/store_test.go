package identity

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jstittsworth/player-valuation/internal/models"
	"github.com/jstittsworth/player-valuation/internal/testutil"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestStoreUpsertSwapsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := NewStore(testutil.NewSQLiteDB(t), quietLogger())

	before := store.Snapshot()
	assert.Equal(t, 0, before.Len())

	written, err := store.Upsert(ctx, []models.IdentityMapping{
		{Platform: models.PlatformYahoo, PlatformPlayerID: "10621", CanonicalID: 545361, DisplayName: "Mike Trout"},
		{Platform: models.PlatformESPN, PlatformPlayerID: "30836", CanonicalID: 545361, DisplayName: "Mike Trout"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, written)

	after := store.Snapshot()
	assert.Equal(t, 2, after.Len())
	assert.False(t, after.LoadedAt().IsZero())
	assert.Equal(t, 0, before.Len(), "old snapshots are immutable")

	id, ok := after.Lookup(models.PlatformESPN, "30836")
	assert.True(t, ok)
	assert.Equal(t, 545361, id)
}

func TestStoreConcurrentReadersDuringReload(t *testing.T) {
	ctx := context.Background()
	store := NewStore(testutil.NewSQLiteDB(t), quietLogger())
	_, err := store.Upsert(ctx, []models.IdentityMapping{
		{Platform: models.PlatformYahoo, PlatformPlayerID: "1", CanonicalID: 100},
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				id, ok := NewResolver(store.Snapshot(), nil).Resolve(models.PlatformYahoo, "1", "")
				assert.True(t, ok)
				assert.Equal(t, 100, id)
			}
		}()
	}
	for i := 0; i < 5; i++ {
		_, err := store.Reload(ctx)
		require.NoError(t, err)
	}
	wg.Wait()
}

package app

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/pos/internal/lock"
	"github.com/vladislavdragonenkov/pos/internal/service/catalog"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
)

func TestSeedCatalog_OnlyWhenEmpty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memory.NewProductRepository()
	svc := catalog.NewService(repo, lock.NewKeyed())
	logger := log.WithField("test", "seed")

	require.NoError(t, seedCatalog(ctx, svc, logger))
	products, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, products, len(demoCatalog))

	// Повторный запуск не дублирует витрину.
	require.NoError(t, seedCatalog(ctx, svc, logger))
	products, err = svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, products, len(demoCatalog))
}

func TestDemoDrafts_AreValid(t *testing.T) {
	t.Parallel()

	for _, draft := range demoDrafts() {
		require.NotEmpty(t, draft.Name)
		require.NotNil(t, draft.Price)
		require.True(t, draft.Price.IsPositive(), draft.Name)
		require.NotNil(t, draft.Stock)
		require.False(t, draft.Stock.IsNegative(), draft.Name)
	}
}

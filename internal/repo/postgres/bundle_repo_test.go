package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ivankudzin/tgdrop/internal/domain/model"
	"github.com/ivankudzin/tgdrop/internal/repo/storetest"
)

// Set TGDROP_TEST_POSTGRES_DSN to a disposable database to run these.
func TestBundleRepoContract(t *testing.T) {
	dsn := os.Getenv("TGDROP_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TGDROP_TEST_POSTGRES_DSN is not set")
	}

	storetest.Run(t, func(t *testing.T) storetest.Store {
		ctx := context.Background()
		pool, err := NewPool(ctx, dsn)
		require.NoError(t, err)
		t.Cleanup(pool.Close)

		_, err = pool.Exec(ctx, `DROP TABLE IF EXISTS bundles`)
		require.NoError(t, err)
		require.NoError(t, EnsureSchema(ctx, pool))
		return NewBundleRepo(pool)
	})
}

func TestBundleRepoNilPool(t *testing.T) {
	repo := NewBundleRepo(nil)

	_, err := repo.GetByID(context.Background(), 1)
	require.Error(t, err)

	_, err = repo.Create(context.Background(), model.NewBundle{CoverRef: "c", VideoRefs: []model.MediaRef{"v"}})
	require.Error(t, err)
}

func TestNewPoolRequiresDSN(t *testing.T) {
	_, err := NewPool(context.Background(), "")
	require.Error(t, err)
}

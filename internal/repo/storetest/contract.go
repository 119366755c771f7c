// Package storetest holds the behaviour every bundle store must share.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ivankudzin/tgdrop/internal/domain/model"
)

type Store interface {
	Create(context.Context, model.NewBundle) (model.Bundle, error)
	GetByID(context.Context, int64) (model.Bundle, error)
	List(context.Context) ([]model.Bundle, error)
	Count(context.Context) (int, error)
}

// Run exercises a store built fresh by open for every subtest.
func Run(t *testing.T, open func(t *testing.T) Store) {
	t.Helper()

	t.Run("create assigns increasing ids", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		first, err := store.Create(ctx, bundle("c1", "v1"))
		require.NoError(t, err)
		second, err := store.Create(ctx, bundle("c2", "v2", "v3"))
		require.NoError(t, err)

		require.Greater(t, first.ID, int64(0))
		require.Greater(t, second.ID, first.ID)
	})

	t.Run("get returns stored order", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		created, err := store.Create(ctx, bundle("cover", "a", "b", "c"))
		require.NoError(t, err)

		got, err := store.GetByID(ctx, created.ID)
		require.NoError(t, err)
		require.Equal(t, created.ID, got.ID)
		require.Equal(t, model.MediaRef("cover"), got.CoverRef)
		require.Equal(t, []model.MediaRef{"a", "b", "c"}, got.VideoRefs)
	})

	t.Run("unknown id is not found", func(t *testing.T) {
		store := open(t)
		_, err := store.GetByID(context.Background(), 404)
		require.ErrorIs(t, err, model.ErrBundleNotFound)
	})

	t.Run("invalid bundle is rejected", func(t *testing.T) {
		store := open(t)
		_, err := store.Create(context.Background(), model.NewBundle{CoverRef: "c"})
		require.Error(t, err)

		count, err := store.Count(context.Background())
		require.NoError(t, err)
		require.Zero(t, count)
	})

	t.Run("list and count", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			_, err := store.Create(ctx, bundle("c", "v"))
			require.NoError(t, err)
		}

		list, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		require.Less(t, list[0].ID, list[2].ID)

		count, err := store.Count(ctx)
		require.NoError(t, err)
		require.Equal(t, 3, count)
	})

	t.Run("concurrent creates never share an id", func(t *testing.T) {
		store := open(t)
		ctx := context.Background()

		const n = 8
		ids := make(chan int64, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				created, err := store.Create(ctx, bundle("c", "v"))
				if err == nil {
					ids <- created.ID
				}
			}()
		}
		wg.Wait()
		close(ids)

		seen := make(map[int64]struct{}, n)
		for id := range ids {
			_, dup := seen[id]
			require.False(t, dup, "id %d handed out twice", id)
			seen[id] = struct{}{}
		}
		require.Len(t, seen, n)
	})
}

func bundle(cover string, videos ...string) model.NewBundle {
	refs := make([]model.MediaRef, 0, len(videos))
	for _, v := range videos {
		refs = append(refs, model.MediaRef(v))
	}
	return model.NewBundle{CoverRef: model.MediaRef(cover), VideoRefs: refs}
}

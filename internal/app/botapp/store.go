package botapp

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ivankudzin/tgdrop/internal/config"
	"github.com/ivankudzin/tgdrop/internal/domain/model"
	s3infra "github.com/ivankudzin/tgdrop/internal/infra/s3"
	"github.com/ivankudzin/tgdrop/internal/repo/filestore"
	pgrepo "github.com/ivankudzin/tgdrop/internal/repo/postgres"
	"github.com/ivankudzin/tgdrop/internal/repo/s3store"
	"github.com/ivankudzin/tgdrop/internal/repo/sqlite"
)

// BundleStore is the content store every driver implements.
type BundleStore interface {
	Create(context.Context, model.NewBundle) (model.Bundle, error)
	GetByID(context.Context, int64) (model.Bundle, error)
	List(context.Context) ([]model.Bundle, error)
	Count(context.Context) (int, error)
	Ping(context.Context) error
	Close() error
}

// OpenStore builds the bundle store selected by cfg.Store.Driver.
func OpenStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (BundleStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Store.Driver {
	case config.StoreFile, "":
		store, err := filestore.New(cfg.Store.DataFile, logger)
		if err != nil {
			return nil, fmt.Errorf("open file store: %w", err)
		}
		return store, nil
	case config.StoreSQLite:
		store, err := sqlite.Open(ctx, cfg.Store.SQLitePath, logger)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, nil
	case config.StorePostgres:
		pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		if err := pgrepo.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return pgrepo.NewBundleRepo(pool), nil
	case config.StoreS3:
		client, err := s3infra.NewClient(s3infra.Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("open s3 store: %w", err)
		}
		objects := s3store.NewMinioObjects(client, cfg.S3.Bucket)
		return s3store.New(objects, cfg.S3.ObjectKey, logger), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

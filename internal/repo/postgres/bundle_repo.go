package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/tgdrop/internal/domain/model"
)

var ErrInvalidBundle = errors.New("bundle needs a cover and 1..10 videos")

type BundleRepo struct {
	pool *pgxpool.Pool
}

func NewBundleRepo(pool *pgxpool.Pool) *BundleRepo {
	return &BundleRepo{pool: pool}
}

func (r *BundleRepo) Create(ctx context.Context, bundle model.NewBundle) (model.Bundle, error) {
	if !bundle.Valid() {
		return model.Bundle{}, ErrInvalidBundle
	}

	var created model.Bundle
	err := WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		var createdAt time.Time
		if err := tx.QueryRow(ctx, `
INSERT INTO bundles (cover_ref, video_refs)
VALUES ($1, $2)
RETURNING id, created_at
`, string(bundle.CoverRef), refsToStrings(bundle.VideoRefs)).Scan(&created.ID, &createdAt); err != nil {
			return fmt.Errorf("insert bundle: %w", err)
		}
		created.CoverRef = bundle.CoverRef
		created.VideoRefs = append([]model.MediaRef(nil), bundle.VideoRefs...)
		created.CreatedAt = createdAt.UTC()
		return nil
	})
	if err != nil {
		return model.Bundle{}, err
	}
	return created, nil
}

func (r *BundleRepo) GetByID(ctx context.Context, id int64) (model.Bundle, error) {
	if r.pool == nil {
		return model.Bundle{}, errors.New("postgres pool is nil")
	}

	row := r.pool.QueryRow(ctx, `
SELECT id, cover_ref, video_refs, created_at
FROM bundles
WHERE id = $1
`, id)
	bundle, err := scanBundle(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Bundle{}, model.ErrBundleNotFound
	}
	if err != nil {
		return model.Bundle{}, fmt.Errorf("get bundle %d: %w", id, err)
	}
	return bundle, nil
}

func (r *BundleRepo) List(ctx context.Context) ([]model.Bundle, error) {
	if r.pool == nil {
		return nil, errors.New("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, cover_ref, video_refs, created_at
FROM bundles
ORDER BY id
`)
	if err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}
	defer rows.Close()

	bundles := make([]model.Bundle, 0)
	for rows.Next() {
		bundle, err := scanBundle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bundle: %w", err)
		}
		bundles = append(bundles, bundle)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bundles: %w", err)
	}
	return bundles, nil
}

func (r *BundleRepo) Count(ctx context.Context) (int, error) {
	if r.pool == nil {
		return 0, errors.New("postgres pool is nil")
	}
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bundles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count bundles: %w", err)
	}
	return n, nil
}

func (r *BundleRepo) Ping(ctx context.Context) error {
	if r.pool == nil {
		return errors.New("postgres pool is nil")
	}
	return r.pool.Ping(ctx)
}

func (r *BundleRepo) Close() error {
	if r.pool != nil {
		r.pool.Close()
	}
	return nil
}

func scanBundle(row pgx.Row) (model.Bundle, error) {
	var (
		bundle    model.Bundle
		cover     string
		refs      []string
		createdAt time.Time
	)
	if err := row.Scan(&bundle.ID, &cover, &refs, &createdAt); err != nil {
		return model.Bundle{}, err
	}
	bundle.CoverRef = model.MediaRef(cover)
	bundle.VideoRefs = make([]model.MediaRef, 0, len(refs))
	for _, ref := range refs {
		bundle.VideoRefs = append(bundle.VideoRefs, model.MediaRef(ref))
	}
	bundle.CreatedAt = createdAt.UTC()
	return bundle, nil
}

func refsToStrings(refs []model.MediaRef) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		out = append(out, string(ref))
	}
	return out
}

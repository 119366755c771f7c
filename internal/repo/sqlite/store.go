package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/ivankudzin/tgdrop/internal/domain/model"
)

var ErrInvalidBundle = errors.New("bundle needs a cover and 1..10 videos")

// Store keeps bundles in SQLite. IDs come from AUTOINCREMENT and are never reused.
type Store struct {
	db     *sql.DB
	path   string
	now    func() time.Time
	logger *zap.Logger
}

func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection keeps the pragmas below in effect for every statement.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	store := &Store{
		db:     db,
		path:   path,
		now:    time.Now,
		logger: logger.With(zap.String("component", "sqlite")),
	}
	if err := store.applyMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Create(ctx context.Context, bundle model.NewBundle) (model.Bundle, error) {
	if !bundle.Valid() {
		return model.Bundle{}, ErrInvalidBundle
	}

	createdAt := s.now().UTC()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Bundle{}, fmt.Errorf("begin create tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO bundles (cover_ref, created_at) VALUES (?, ?)`,
		string(bundle.CoverRef), createdAt.Format(time.RFC3339Nano))
	if err != nil {
		return model.Bundle{}, fmt.Errorf("insert bundle: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Bundle{}, fmt.Errorf("last insert id: %w", err)
	}

	for position, ref := range bundle.VideoRefs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO bundle_videos (bundle_id, position, video_ref) VALUES (?, ?, ?)`,
			id, position, string(ref)); err != nil {
			return model.Bundle{}, fmt.Errorf("insert bundle video %d: %w", position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return model.Bundle{}, fmt.Errorf("commit bundle: %w", err)
	}

	s.logger.Info("bundle stored", zap.Int64("bundle_id", id))
	return model.Bundle{
		ID:        id,
		CoverRef:  bundle.CoverRef,
		VideoRefs: append([]model.MediaRef(nil), bundle.VideoRefs...),
		CreatedAt: createdAt,
	}, nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (model.Bundle, error) {
	var (
		bundle    model.Bundle
		cover     string
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, cover_ref, created_at FROM bundles WHERE id = ?`, id).
		Scan(&bundle.ID, &cover, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Bundle{}, model.ErrBundleNotFound
	}
	if err != nil {
		return model.Bundle{}, fmt.Errorf("get bundle %d: %w", id, err)
	}
	bundle.CoverRef = model.MediaRef(cover)
	bundle.CreatedAt = parseTime(createdAt)

	refs, err := s.videoRefs(ctx, id)
	if err != nil {
		return model.Bundle{}, err
	}
	bundle.VideoRefs = refs
	return bundle, nil
}

func (s *Store) List(ctx context.Context) ([]model.Bundle, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, cover_ref, created_at FROM bundles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list bundles: %w", err)
	}

	bundles := make([]model.Bundle, 0)
	for rows.Next() {
		var (
			bundle    model.Bundle
			cover     string
			createdAt string
		)
		if err := rows.Scan(&bundle.ID, &cover, &createdAt); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan bundle: %w", err)
		}
		bundle.CoverRef = model.MediaRef(cover)
		bundle.CreatedAt = parseTime(createdAt)
		bundles = append(bundles, bundle)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate bundles: %w", err)
	}
	_ = rows.Close()

	// The single connection must be released before the per-bundle queries.
	for i := range bundles {
		refs, err := s.videoRefs(ctx, bundles[i].ID)
		if err != nil {
			return nil, err
		}
		bundles[i].VideoRefs = refs
	}
	return bundles, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM bundles`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count bundles: %w", err)
	}
	return n, nil
}

func (s *Store) videoRefs(ctx context.Context, id int64) ([]model.MediaRef, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT video_ref FROM bundle_videos WHERE bundle_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("list bundle videos: %w", err)
	}
	defer rows.Close()

	refs := make([]model.MediaRef, 0, model.MaxBundleVideos)
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, fmt.Errorf("scan bundle video: %w", err)
		}
		refs = append(refs, model.MediaRef(ref))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bundle videos: %w", err)
	}
	return refs, nil
}

func parseTime(raw string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return ts
}

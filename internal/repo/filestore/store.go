// Package filestore keeps bundles in a single JSON file. Writers hold both a
// process mutex and an exclusive file lock, so two bot processes sharing the
// file never hand out the same ID.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/ivankudzin/tgdrop/internal/domain/model"
	"github.com/ivankudzin/tgdrop/internal/repo/catalog"
)

type Store struct {
	path   string
	lock   *flock.Flock
	mu     sync.Mutex
	now    func() time.Time
	logger *zap.Logger
}

func New(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("data file path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	return &Store{
		path:   path,
		lock:   flock.New(path + ".lock"),
		now:    time.Now,
		logger: logger.With(zap.String("component", "filestore")),
	}, nil
}

func (s *Store) Create(_ context.Context, bundle model.NewBundle) (model.Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return model.Bundle{}, fmt.Errorf("lock data file: %w", err)
	}
	defer func() {
		_ = s.lock.Unlock()
	}()

	doc, corrupt := s.load()
	if corrupt {
		s.quarantine()
	}
	created, err := doc.Add(bundle, s.now())
	if err != nil {
		return model.Bundle{}, err
	}
	if err := s.save(doc); err != nil {
		return model.Bundle{}, fmt.Errorf("persist bundle %d: %w", created.ID, err)
	}

	s.logger.Info("bundle stored", zap.Int64("bundle_id", created.ID), zap.String("path", s.path))
	return created, nil
}

func (s *Store) GetByID(_ context.Context, id int64) (model.Bundle, error) {
	doc, err := s.read()
	if err != nil {
		return model.Bundle{}, err
	}
	return doc.Get(id)
}

func (s *Store) List(_ context.Context) ([]model.Bundle, error) {
	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return doc.List(), nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	doc, err := s.read()
	if err != nil {
		return 0, err
	}
	return doc.Count(), nil
}

// Ping reports whether the data directory is reachable.
func (s *Store) Ping(_ context.Context) error {
	if _, err := os.Stat(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("stat data directory: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) read() (catalog.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.RLock(); err != nil {
		return catalog.Document{}, fmt.Errorf("lock data file: %w", err)
	}
	defer func() {
		_ = s.lock.Unlock()
	}()

	doc, _ := s.load()
	return doc, nil
}

// load reads the document. A missing or unreadable file is an empty catalog;
// corrupt reports a file that exists but does not parse.
func (s *Store) load() (doc catalog.Document, corrupt bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Error("read data file, starting with an empty catalog", zap.Error(err))
		}
		return catalog.Empty(), false
	}

	doc, err = catalog.Decode(data)
	if err != nil {
		s.logger.Error("data file is corrupt, starting with an empty catalog",
			zap.String("path", s.path),
			zap.Error(err))
		return catalog.Empty(), true
	}
	return doc, false
}

// quarantine moves a corrupt data file aside before it is overwritten.
func (s *Store) quarantine() {
	target := fmt.Sprintf("%s.corrupt-%d", s.path, s.now().Unix())
	if err := os.Rename(s.path, target); err != nil {
		s.logger.Warn("keep corrupt data file", zap.Error(err))
		return
	}
	s.logger.Warn("corrupt data file moved aside", zap.String("path", target))
}

// save writes the document atomically via a temp file.
func (s *Store) save(doc catalog.Document) error {
	data, err := doc.Encode()
	if err != nil {
		return err
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Package s3store keeps the bundle catalog as one JSON object in a bucket.
// Writes are serialised inside the process only; run a single bot replica
// against a given object.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"

	"github.com/ivankudzin/tgdrop/internal/domain/model"
	"github.com/ivankudzin/tgdrop/internal/repo/catalog"
)

const DefaultObjectKey = "tgdrop/catalog.json"

var errObjectNotFound = errors.New("catalog object not found")

// Objects is the slice of the S3 API the store needs.
type Objects interface {
	EnsureBucket(ctx context.Context) error
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}

type Store struct {
	objects Objects
	key     string
	mu      sync.Mutex
	now     func() time.Time
	logger  *zap.Logger
}

func New(objects Objects, key string, logger *zap.Logger) *Store {
	if key = strings.TrimSpace(key); key == "" {
		key = DefaultObjectKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		objects: objects,
		key:     key,
		now:     time.Now,
		logger:  logger.With(zap.String("component", "s3store")),
	}
}

func (s *Store) Create(ctx context.Context, bundle model.NewBundle) (model.Bundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(ctx)
	if err != nil {
		return model.Bundle{}, err
	}
	created, err := doc.Add(bundle, s.now())
	if err != nil {
		return model.Bundle{}, err
	}

	data, err := doc.Encode()
	if err != nil {
		return model.Bundle{}, err
	}
	if err := s.objects.Put(ctx, s.key, data); err != nil {
		return model.Bundle{}, fmt.Errorf("persist bundle %d: %w", created.ID, err)
	}

	s.logger.Info("bundle stored", zap.Int64("bundle_id", created.ID), zap.String("key", s.key))
	return created, nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (model.Bundle, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return model.Bundle{}, err
	}
	return doc.Get(id)
}

func (s *Store) List(ctx context.Context) ([]model.Bundle, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	return doc.List(), nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	doc, err := s.read(ctx)
	if err != nil {
		return 0, err
	}
	return doc.Count(), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.objects.EnsureBucket(ctx)
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) read(ctx context.Context) (catalog.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// load fetches the catalog. A missing object or a corrupt one is an empty
// catalog; transport errors are returned so a flaky bucket never resets IDs.
func (s *Store) load(ctx context.Context) (catalog.Document, error) {
	if err := s.objects.EnsureBucket(ctx); err != nil {
		return catalog.Document{}, err
	}

	data, err := s.objects.Get(ctx, s.key)
	if errors.Is(err, errObjectNotFound) {
		return catalog.Empty(), nil
	}
	if err != nil {
		return catalog.Document{}, fmt.Errorf("load catalog: %w", err)
	}

	doc, err := catalog.Decode(data)
	if err != nil {
		s.logger.Error("catalog object is corrupt, starting with an empty catalog",
			zap.String("key", s.key),
			zap.Error(err))
		return catalog.Empty(), nil
	}
	return doc, nil
}

// MinioObjects adapts a minio client and bucket to Objects.
type MinioObjects struct {
	client *minio.Client
	bucket string

	ensureOnce sync.Once
	ensureErr  error
}

func NewMinioObjects(client *minio.Client, bucket string) *MinioObjects {
	return &MinioObjects{client: client, bucket: strings.TrimSpace(bucket)}
}

func (o *MinioObjects) EnsureBucket(ctx context.Context) error {
	if o.client == nil {
		return fmt.Errorf("s3 client is nil")
	}
	if o.bucket == "" {
		return fmt.Errorf("s3 bucket is empty")
	}

	o.ensureOnce.Do(func() {
		exists, err := o.client.BucketExists(ctx, o.bucket)
		if err != nil {
			o.ensureErr = err
			return
		}
		if exists {
			return
		}
		o.ensureErr = o.client.MakeBucket(ctx, o.bucket, minio.MakeBucketOptions{})
	})

	if o.ensureErr != nil {
		return fmt.Errorf("ensure s3 bucket %q: %w", o.bucket, o.ensureErr)
	}
	return nil
}

func (o *MinioObjects) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := o.client.GetObject(ctx, o.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, translateErr(err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, translateErr(err)
	}
	return data, nil
}

func (o *MinioObjects) Put(ctx context.Context, key string, data []byte) error {
	_, err := o.client.PutObject(ctx, o.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("put object to s3: %w", err)
	}
	return nil
}

func translateErr(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return errObjectNotFound
	}
	return err
}

package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/go-logr/logr"

	"github.com/imamik/calcifer/internal/platform/s3"
)

// Artifact names shared by the tasks that produce and consume them.
const (
	ArtifactKubeconfig    = "kubeconfig_admin.yaml"
	ArtifactJoinCommand   = "join_command.sh"
	artifactFileMode      = 0o600
	artifactDirectoryMode = 0o700
)

// ObjectStore is the subset of the S3 client the store mirrors to.
type ObjectStore interface {
	EnsureBucket(ctx context.Context, bucket string) error
	PutObject(ctx context.Context, bucket, key string, data []byte) error
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// Store keeps artifacts in a local directory and optionally mirrors them to
// object storage under <prefix>/<cluster>/<name>.
type Store struct {
	dir    string
	remote ObjectStore
	bucket string
	prefix string
	log    logr.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithMirror uploads every saved artifact to bucket. Keys are
// prefix/cluster/name.
func WithMirror(remote ObjectStore, bucket, prefix, cluster string) StoreOption {
	return func(s *Store) {
		s.remote = remote
		s.bucket = bucket
		s.prefix = path.Join(prefix, cluster)
	}
}

// WithStoreLogger sets the diagnostic logger.
func WithStoreLogger(l logr.Logger) StoreOption {
	return func(s *Store) { s.log = l }
}

// NewStore returns a store rooted at dir.
func NewStore(dir string, opts ...StoreOption) *Store {
	s := &Store{dir: dir, log: logr.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the local path of name.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Save writes data to the local directory with mode 0600 and uploads it
// when a mirror is configured. A failed upload fails the save.
func (s *Store) Save(ctx context.Context, name string, data []byte) (string, error) {
	p := s.Path(name)
	if err := os.MkdirAll(s.dir, artifactDirectoryMode); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(p, data, artifactFileMode); err != nil {
		return "", fmt.Errorf("failed to write artifact %s: %w", name, err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(p, artifactFileMode); err != nil {
		return "", fmt.Errorf("failed to restrict artifact %s: %w", name, err)
	}

	if s.remote == nil {
		return p, nil
	}
	if err := s.remote.EnsureBucket(ctx, s.bucket); err != nil {
		return p, fmt.Errorf("failed to prepare bucket %s: %w", s.bucket, err)
	}
	key := s.key(name)
	if err := s.remote.PutObject(ctx, s.bucket, key, data); err != nil {
		return p, fmt.Errorf("failed to mirror artifact %s: %w", name, err)
	}
	s.log.V(1).Info("artifact mirrored", "name", name, "bucket", s.bucket, "key", key)
	return p, nil
}

// Load reads name from the local directory. When it is missing locally and a
// mirror is configured, the object is downloaded and cached.
func (s *Store) Load(ctx context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(name))
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, os.ErrNotExist) || s.remote == nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", name, err)
	}

	data, rerr := s.remote.GetObject(ctx, s.bucket, s.key(name))
	if rerr != nil {
		if s3.IsNotFound(rerr) {
			return nil, fmt.Errorf("artifact %s not found locally or in bucket %s: %w", name, s.bucket, os.ErrNotExist)
		}
		return nil, rerr
	}
	if _, err := s.Save(ctx, name, data); err != nil {
		s.log.Info("failed to cache downloaded artifact", "name", name, "error", err.Error())
	}
	return data, nil
}

func (s *Store) key(name string) string {
	return path.Join(s.prefix, name)
}

package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryBucket struct {
	mu      sync.Mutex
	buckets map[string]bool
	objects map[string][]byte
	putErr  error
}

func newMemoryBucket() *memoryBucket {
	return &memoryBucket{buckets: map[string]bool{}, objects: map[string][]byte{}}
}

func (m *memoryBucket) EnsureBucket(_ context.Context, bucket string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buckets[bucket] = true
	return nil
}

func (m *memoryBucket) PutObject(_ context.Context, bucket, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[bucket+"/"+key] = append([]byte(nil), data...)
	return nil
}

func (m *memoryBucket) GetObject(_ context.Context, bucket, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return data, nil
}

func TestStore_SaveWritesPrivateFile(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "inventory")
	s := NewStore(dir)

	p, err := s.Save(context.Background(), ArtifactKubeconfig, []byte("kubeconfig"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, ArtifactKubeconfig), p)

	info, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := s.Load(context.Background(), ArtifactKubeconfig)
	require.NoError(t, err)
	assert.Equal(t, "kubeconfig", string(data))
}

func TestStore_SaveTightensExistingMode(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := filepath.Join(dir, ArtifactJoinCommand)
	require.NoError(t, os.WriteFile(p, []byte("old"), 0o644))

	_, err := NewStore(dir).Save(context.Background(), ArtifactJoinCommand, []byte("new"))
	require.NoError(t, err)

	info, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestStore_Mirror(t *testing.T) {
	t.Parallel()

	bucket := newMemoryBucket()
	s := NewStore(t.TempDir(), WithMirror(bucket, "artifacts", "calcifer", "prod"))

	_, err := s.Save(context.Background(), ArtifactKubeconfig, []byte("kc"))
	require.NoError(t, err)

	assert.True(t, bucket.buckets["artifacts"])
	assert.Equal(t, []byte("kc"), bucket.objects["artifacts/calcifer/prod/"+ArtifactKubeconfig])
}

func TestStore_MirrorFailureFailsSave(t *testing.T) {
	t.Parallel()

	bucket := newMemoryBucket()
	bucket.putErr = errors.New("access denied")
	s := NewStore(t.TempDir(), WithMirror(bucket, "artifacts", "", "prod"))

	_, err := s.Save(context.Background(), ArtifactJoinCommand, []byte("kubeadm join"))
	assert.ErrorContains(t, err, "access denied")
}

func TestStore_LoadFallsBackToMirror(t *testing.T) {
	t.Parallel()

	bucket := newMemoryBucket()
	bucket.objects["artifacts/prod/"+ArtifactJoinCommand] = []byte("kubeadm join 10.0.0.1:6443")

	dir := t.TempDir()
	s := NewStore(dir, WithMirror(bucket, "artifacts", "", "prod"))

	data, err := s.Load(context.Background(), ArtifactJoinCommand)
	require.NoError(t, err)
	assert.Equal(t, "kubeadm join 10.0.0.1:6443", string(data))

	cached, err := os.ReadFile(filepath.Join(dir, ArtifactJoinCommand))
	require.NoError(t, err)
	assert.Equal(t, data, cached)
}

func TestStore_LoadMissing(t *testing.T) {
	t.Parallel()

	_, err := NewStore(t.TempDir()).Load(context.Background(), ArtifactKubeconfig)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = NewStore(t.TempDir(), WithMirror(newMemoryBucket(), "artifacts", "", "prod")).Load(context.Background(), ArtifactKubeconfig)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

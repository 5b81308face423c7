package testing

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// MemoryArtifacts is an in-memory artifact store. Path points into Dir so
// tasks that hand a path to a subprocess still get something plausible.
type MemoryArtifacts struct {
	Dir string

	mu    sync.Mutex
	items map[string][]byte
}

// NewMemoryArtifacts returns an empty store rooted at dir.
func NewMemoryArtifacts(dir string) *MemoryArtifacts {
	return &MemoryArtifacts{Dir: dir, items: make(map[string][]byte)}
}

// Save stores a copy of data.
func (a *MemoryArtifacts) Save(_ context.Context, name string, data []byte) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items[name] = append([]byte(nil), data...)
	return a.Path(name), nil
}

// Load returns the stored data or an error wrapping os.ErrNotExist.
func (a *MemoryArtifacts) Load(_ context.Context, name string) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.items[name]
	if !ok {
		return nil, fmt.Errorf("artifact %s: %w", name, os.ErrNotExist)
	}
	return append([]byte(nil), data...), nil
}

// Path returns Dir/name.
func (a *MemoryArtifacts) Path(name string) string {
	return filepath.Join(a.Dir, name)
}

// Has reports whether name was saved.
func (a *MemoryArtifacts) Has(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.items[name]
	return ok
}

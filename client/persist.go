package client

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Persister is durable key-value storage for one serialized state.
// Load returns nil data when nothing was saved.
type Persister interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// FilePersister stores the state in a single file, replaced atomically.
type FilePersister struct {
	path string
}

func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

func (p *FilePersister) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(p.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p.path, err)
	}
	return data, nil
}

func (p *FilePersister) Save(ctx context.Context, data []byte) error {
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".auth-state-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write auth state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write auth state: %w", err)
	}
	if err := os.Rename(tmp.Name(), p.path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", p.path, err)
	}
	return nil
}

// MemoryPersister keeps the state in process. Useful in tests and for
// clients that do not need to survive a restart.
type MemoryPersister struct {
	mu     sync.Mutex
	data   []byte
	writes int
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

func (p *MemoryPersister) Load(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.data == nil {
		return nil, nil
	}
	return append([]byte(nil), p.data...), nil
}

func (p *MemoryPersister) Save(ctx context.Context, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = append([]byte(nil), data...)
	p.writes++
	return nil
}

// Writes reports how many times Save was called.
func (p *MemoryPersister) Writes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes
}

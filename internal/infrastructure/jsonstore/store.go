package jsonstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/Zhima-Mochi/storefront-bot/internal/domain/inventory"
)

// InventoryStore persists the catalog as one JSON document. Every call reads
// the file again; nothing is cached between operations. Writes go to a temp
// file in the same directory and are renamed over the target, so a reader
// sees either the old document or the new one.
type InventoryStore struct {
	mu   sync.Mutex
	path string
}

func NewInventoryStore(path string) (*InventoryStore, error) {
	if path == "" {
		return nil, errors.New("jsonstore: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("jsonstore: prepare dir: %w", err)
	}
	return &InventoryStore{path: path}, nil
}

func (s *InventoryStore) Path() string { return s.path }

func (s *InventoryStore) Read(ctx context.Context) (inventory.Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *InventoryStore) Write(ctx context.Context, c inventory.Catalog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(c)
}

// Update runs fn against the freshly read catalog and persists the result
// when fn returns nil. The lock is held for the whole cycle.
// A corrupt document fails the update instead of being overwritten.
func (s *InventoryStore) Update(ctx context.Context, fn func(inventory.Catalog) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(c); err != nil {
		return err
	}
	return s.write(c)
}

func (s *InventoryStore) read() (inventory.Catalog, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return inventory.Catalog{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jsonstore: read %s: %w", s.path, err)
	}
	return inventory.Decode(data)
}

func (s *InventoryStore) write(c inventory.Catalog) error {
	data, err := inventory.Encode(c)
	if err != nil {
		return fmt.Errorf("jsonstore: encode: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".inventory-*.json")
	if err != nil {
		return fmt.Errorf("jsonstore: temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("jsonstore: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("jsonstore: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("jsonstore: close: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("jsonstore: replace: %w", err)
	}
	return nil
}

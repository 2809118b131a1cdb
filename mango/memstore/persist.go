package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mango-odm/mango/mango"
)

// loadWithLock reads the backing file under the cross-process lock. A
// missing file is an empty store.
func (s *Store) loadWithLock() error {
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	if err := s.acquireLock(ctx); err != nil {
		return err
	}
	defer s.releaseLock()

	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", s.path, err)
	}
	if len(raw) == 0 {
		return nil
	}
	var data storeData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("parsing %s: %w", s.path, err)
	}
	if data.Collections == nil {
		data.Collections = make(map[string][]mango.M)
	}
	s.data = &data
	return nil
}

// persist writes the store to its backing file atomically (temp file plus
// rename) under the cross-process lock. Memory-only stores are a no-op.
func (s *Store) persist() error {
	if s.path == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	if err := s.acquireLock(ctx); err != nil {
		return err
	}
	defer s.releaseLock()

	s.data.Metadata.UpdatedAt = s.timeFunc()
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding store: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".memstore-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}
	return nil
}

// persistLocked is persist for callers already holding s.mu.
func (s *Store) persistLocked() error {
	return s.persist()
}

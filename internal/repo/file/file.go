// Package file stores each source's state as its own JSON document.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/hamed0406/sourcewatch/internal/domain"
	"github.com/hamed0406/sourcewatch/internal/repo"
)

var _ repo.StateStore = (*Store)(nil)

type Store struct {
	dir string
	mu  sync.Mutex // serializes writers; each source already owns its own file
}

func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("state dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Path is the file that holds sourceID's record.
func (s *Store) Path(sourceID string) string {
	return filepath.Join(s.dir, url.PathEscape(sourceID)+".json")
}

func (s *Store) Get(ctx context.Context, sourceID string) (*domain.SourceState, error) {
	b, err := os.ReadFile(s.Path(sourceID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	var st domain.SourceState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", sourceID, err)
	}
	return &st, nil
}

func (s *Store) Put(ctx context.Context, sourceID string, st domain.SourceState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := atomicWriteJSON(s.Path(sourceID), st); err != nil {
		return fmt.Errorf("write state %s: %w", sourceID, err)
	}
	return nil
}

func (s *Store) Close() error { return nil }

// atomicWriteJSON writes to a temp file in the same directory and renames it
// over the target, so readers never observe a partial document.
func atomicWriteJSON(filePath string, data any) error {
	bs, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(filePath)
	tmp, err := os.CreateTemp(dir, filepath.Base(filePath)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(bs); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		cleanup()
		return err
	}
	return nil
}

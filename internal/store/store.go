// Package store keeps the named text artifacts the service works from:
// the configuration template, IP lists and the user registry.
package store

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

const (
	KeyTemplate   = "template.yaml"
	KeyDefaultIPs = "ips/default.csv"
	KeyUsers      = "users.yaml"
)

// KeyUserIPs is the dedicated IP list key for one user.
func KeyUserIPs(userID string) string {
	return "ips/users/" + userID + ".csv"
}

// TextStore is a key/value store of text blobs. Save and Delete are atomic
// with respect to concurrent Load calls.
type TextStore interface {
	Load(key string) (text string, ok bool, err error)
	Save(key, text string) error
	Delete(key string) error
}

var ErrInvalidKey = errors.New("invalid store key")

// NormalizeKey cleans key and rejects absolute or escaping paths.
func NormalizeKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" || strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return clean, nil
}

// FileStore maps keys to files under Root. Writers serialize per key; a
// write lands through temp file + rename, so readers (which never lock) see
// either the old or the new content, never a partial file.
type FileStore struct {
	Root string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewFileStore(root string) *FileStore {
	return &FileStore{Root: root, locks: make(map[string]*sync.Mutex)}
}

func (s *FileStore) lockFor(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks == nil {
		s.locks = make(map[string]*sync.Mutex)
	}
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

func (s *FileStore) path(key string) (string, string, error) {
	k, err := NormalizeKey(key)
	if err != nil {
		return "", "", err
	}
	return k, filepath.Join(s.Root, filepath.FromSlash(k)), nil
}

func (s *FileStore) Load(key string) (string, bool, error) {
	_, p, err := s.path(key)
	if err != nil {
		return "", false, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load %s: %w", key, err)
	}
	return string(b), true, nil
}

func (s *FileStore) Save(key, text string) error {
	k, p, err := s.path(key)
	if err != nil {
		return err
	}
	l := s.lockFor(k)
	l.Lock()
	defer l.Unlock()

	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(p)+".tmp-*")
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once renamed
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.WriteString(text); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("save %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("save %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (s *FileStore) Delete(key string) error {
	k, p, err := s.path(key)
	if err != nil {
		return err
	}
	l := s.lockFor(k)
	l.Lock()
	defer l.Unlock()

	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// MemStore is an in-memory TextStore.
type MemStore struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{m: make(map[string]string)}
}

func (s *MemStore) Load(key string) (string, bool, error) {
	k, err := NormalizeKey(key)
	if err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[k]
	return v, ok, nil
}

func (s *MemStore) Save(key, text string) error {
	k, err := NormalizeKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = make(map[string]string)
	}
	s.m[k] = text
	return nil
}

func (s *MemStore) Delete(key string) error {
	k, err := NormalizeKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, k)
	return nil
}

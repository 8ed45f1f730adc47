package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const fileExt = ".snap.json"

// FileStore keeps one JSON envelope per key under dir/<namespace>/.
// Writes go through a temp file and rename so a crash never leaves a
// half-written snapshot behind.
type FileStore struct {
	dir    string
	mu     sync.RWMutex
	closed bool
}

type fileEnvelope struct {
	Revision  int       `json:"revision"`
	UpdatedAt time.Time `json:"updated_at"`
	Data      []byte    `json:"data"`
}

// NewFileStore creates the directory if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("file store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(namespace, key string) string {
	return filepath.Join(f.dir, url.PathEscape(namespace), url.PathEscape(key)+fileExt)
}

func (f *FileStore) read(namespace, key string) (*fileEnvelope, error) {
	raw, err := os.ReadFile(f.path(namespace, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var env fileEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &env, nil
}

// Put implements Store.
func (f *FileStore) Put(namespace, key string, data []byte) error {
	if err := validate(namespace, key); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStoreClosed
	}

	revision := 1
	if prev, err := f.read(namespace, key); err == nil {
		revision = prev.Revision + 1
	}

	raw, err := json.Marshal(fileEnvelope{
		Revision:  revision,
		UpdatedAt: time.Now().UTC(),
		Data:      data,
	})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	target := f.path(namespace, key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create namespace dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Get implements Store.
func (f *FileStore) Get(namespace, key string) ([]byte, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStoreClosed
	}

	env, err := f.read(namespace, key)
	if err != nil {
		return nil, err
	}
	if env.Data == nil {
		return []byte{}, nil
	}
	return env.Data, nil
}

// List implements Store.
func (f *FileStore) List(namespace string) ([]Info, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		return nil, ErrStoreClosed
	}

	entries, err := os.ReadDir(filepath.Join(f.dir, url.PathEscape(namespace)))
	if errors.Is(err, fs.ErrNotExist) {
		return []Info{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	infos := make([]Info, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, fileExt))
		if err != nil {
			continue
		}
		env, err := f.read(namespace, key)
		if err != nil {
			return nil, err
		}
		infos = append(infos, Info{
			Namespace: namespace,
			Key:       key,
			Revision:  env.Revision,
			UpdatedAt: env.UpdatedAt,
			Size:      int64(len(env.Data)),
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Key < infos[j].Key
	})
	return infos, nil
}

// Delete implements Store.
func (f *FileStore) Delete(namespace, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStoreClosed
	}

	err := os.Remove(f.path(namespace, key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// DeleteNamespace implements Store.
func (f *FileStore) DeleteNamespace(namespace string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return ErrStoreClosed
	}

	if err := os.RemoveAll(filepath.Join(f.dir, url.PathEscape(namespace))); err != nil {
		return fmt.Errorf("delete namespace: %w", err)
	}
	return nil
}

// Close implements Store.
func (f *FileStore) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

package storage

import (
	"context"
	"os"
	"path/filepath"
)

// FileStore simpan dokumen di filesystem lokal. Dipakai untuk dev mode
// dan test, drop-in pengganti MinIO.
type FileStore struct {
	root string
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// Put writes bytes under root/key; contentType diabaikan
func (s *FileStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return key, nil
}

// Ping makes sure root masih bisa ditulis
func (s *FileStore) Ping(ctx context.Context) error {
	return os.MkdirAll(s.root, 0o755)
}

// Fetch reads the file stored under ref
func (s *FileStore) Fetch(ctx context.Context, ref string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.root, filepath.FromSlash(ref)))
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes blobs under a directory that the HTTP server exposes
// at publicBase.
type LocalStore struct {
	dir        string
	publicBase string
}

func NewLocalStore(dir, publicBase string) (*LocalStore, error) {
	if dir == "" {
		return nil, errors.New("local storage directory is empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{dir: dir, publicBase: strings.TrimSuffix(publicBase, "/")}, nil
}

func (s *LocalStore) Upload(ctx context.Context, key string, r io.Reader, contentType string) (*Object, error) {
	if !validKey(key) {
		return nil, fmt.Errorf("invalid storage key %q", key)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dst := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return nil, err
	}

	// O_EXCL: keys are random and must never overwrite an existing photo
	f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dst)
		return nil, err
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return nil, err
	}

	return &Object{Key: key, URL: s.publicURL(key)}, nil
}

func (s *LocalStore) publicURL(key string) string {
	return s.publicBase + "/" + key
}

func (s *LocalStore) Remove(ctx context.Context, key string) error {
	if !validKey(key) {
		return fmt.Errorf("invalid storage key %q", key)
	}
	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

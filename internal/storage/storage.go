package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/buildvault/backend/internal/config"
	"github.com/google/uuid"
)

// Object describes a stored blob.
type Object struct {
	Key string // opaque path used for later removal
	URL string // public URL served to clients
}

// BlobStore holds photo bytes. Remove is best effort from the caller's side.
type BlobStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (*Object, error)
	Remove(ctx context.Context, key string) error
}

// New builds the store selected by cfg.Driver.
func New(cfg *config.StorageConfig) (BlobStore, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStore(cfg.LocalDir, cfg.PublicBase)
	case "cloudinary":
		return NewCloudinaryStore(&cfg.Cloudinary)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}

// PhotoKey returns "<siteID>/<random>.<ext>" for a new upload.
func PhotoKey(siteID, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = "jpg"
	}
	return path.Join(siteID, uuid.NewString()+"."+ext)
}

func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}

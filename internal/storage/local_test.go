package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/buildvault/backend/internal/config"
)

func TestPhotoKey(t *testing.T) {
	tests := []struct {
		ext     string
		wantExt string
	}{
		{".JPG", ".jpg"},
		{"png", ".png"},
		{"", ".jpg"},
	}
	for _, tt := range tests {
		key := PhotoKey("site-1", tt.ext)
		if !strings.HasPrefix(key, "site-1/") {
			t.Errorf("key %q missing site prefix", key)
		}
		if !strings.HasSuffix(key, tt.wantExt) {
			t.Errorf("key %q, want suffix %q", key, tt.wantExt)
		}
	}
	if PhotoKey("s", "jpg") == PhotoKey("s", "jpg") {
		t.Error("keys should be random")
	}
}

func TestValidKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"site/a.jpg", true},
		{"", false},
		{"/etc/passwd", false},
		{"site/../../x", false},
		{"site//a.jpg", false},
		{`site\a.jpg`, false},
	}
	for _, tt := range tests {
		if got := validKey(tt.key); got != tt.want {
			t.Errorf("validKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestLocalStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "/files/")
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	ctx := context.Background()
	obj, err := store.Upload(ctx, "site-1/photo.jpg", strings.NewReader("jpeg-bytes"), "image/jpeg")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if obj.URL != "/files/site-1/photo.jpg" {
		t.Errorf("URL = %q", obj.URL)
	}

	data, err := os.ReadFile(filepath.Join(dir, "site-1", "photo.jpg"))
	if err != nil || string(data) != "jpeg-bytes" {
		t.Fatalf("stored content = %q, err = %v", data, err)
	}

	if _, err := store.Upload(ctx, "site-1/photo.jpg", strings.NewReader("other"), "image/jpeg"); err == nil {
		t.Error("second upload to same key should fail")
	}

	if err := store.Remove(ctx, obj.Key); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := store.Remove(ctx, obj.Key); err != nil {
		t.Errorf("removing a missing blob should succeed, got %v", err)
	}
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, _ := NewLocalStore(t.TempDir(), "/files")
	if _, err := store.Upload(context.Background(), "../escape.jpg", strings.NewReader("x"), "image/jpeg"); err == nil {
		t.Error("expected traversal key to be rejected")
	}
}

func TestNewUnknownDriver(t *testing.T) {
	if _, err := New(&config.StorageConfig{Driver: "ftp"}); err == nil {
		t.Error("expected error for unknown driver")
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseRedisURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		addr     string
		password string
		db       int
	}{
		{"host only", "redis://localhost:6379", "localhost:6379", "", 0},
		{"with db", "redis://cache:6380/2", "cache:6380", "", 2},
		{"with password", "redis://:s3cret@cache:6379/1", "cache:6379", "s3cret", 1},
		{"user and password", "redis://user:pw@cache:6379", "cache:6379", "pw", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			c.parseRedisURL(tt.url)
			if c.Redis.Addr != tt.addr {
				t.Errorf("addr = %q, want %q", c.Redis.Addr, tt.addr)
			}
			if c.Redis.Password != tt.password {
				t.Errorf("password = %q, want %q", c.Redis.Password, tt.password)
			}
			if c.Redis.DB != tt.db {
				t.Errorf("db = %d, want %d", c.Redis.DB, tt.db)
			}
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "cloudinary")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %q, want sqlite", cfg.Database.Driver)
	}
	if cfg.Storage.Driver != "cloudinary" {
		t.Errorf("storage driver = %q, want env override", cfg.Storage.Driver)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cors origins = %v", cfg.Server.CORSOrigins)
	}
	if GlobalConfig != cfg {
		t.Error("GlobalConfig not set")
	}
}

func TestLoadFileKeepsUnsetDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("server:\n  port: \"9090\"\n  mode: release\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != "9090" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
	if !cfg.IsProduction() {
		t.Error("release mode should be production")
	}
	if cfg.Upload.MaxFileSizeMB != 20 {
		t.Errorf("upload default lost: %d", cfg.Upload.MaxFileSizeMB)
	}
}

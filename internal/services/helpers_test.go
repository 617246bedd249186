package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/buildvault/backend/internal/config"
	"github.com/buildvault/backend/internal/models"
	"github.com/buildvault/backend/internal/storage"
	"github.com/buildvault/backend/pkg/response"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := models.Open(&config.DatabaseConfig{Driver: "sqlite", DSN: dsn}, gormlogger.Silent)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func seedProfile(t *testing.T, db *gorm.DB, email string, role models.Role, status models.Status) *models.Profile {
	t.Helper()
	user := &models.User{Email: email, Password: "x"}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	profile := &models.Profile{ID: user.ID, Email: email, Role: role, Status: status}
	if err := db.Create(profile).Error; err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	return profile
}

func seedProject(t *testing.T, db *gorm.DB, name, createdBy string) *models.Project {
	t.Helper()
	project := &models.Project{Name: name, CreatedBy: createdBy}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return project
}

func seedPhoto(t *testing.T, db *gorm.DB, siteID, uploadedBy string) *models.Photo {
	t.Helper()
	photo := &models.Photo{
		SiteID:      siteID,
		URL:         "/files/" + siteID + "/x.jpg",
		StoragePath: siteID + "/" + uuid.NewString() + ".jpg",
		FileName:    "x.jpg",
		UploadedBy:  uploadedBy,
	}
	if err := db.Create(photo).Error; err != nil {
		t.Fatalf("seed photo: %v", err)
	}
	return photo
}

func grant(t *testing.T, db *gorm.DB, userID string, siteIDs ...string) {
	t.Helper()
	for _, id := range siteIDs {
		if err := db.Create(&models.ProjectAccessGrant{UserID: userID, SiteID: id}).Error; err != nil {
			t.Fatalf("seed grant: %v", err)
		}
	}
}

func expectAppError(t *testing.T, err error, status int) *response.AppError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status %d, got nil", status)
	}
	var appErr *response.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *response.AppError, got %T: %v", err, err)
	}
	if appErr.HTTPStatus != status {
		t.Fatalf("status = %d, expected %d (%s)", appErr.HTTPStatus, status, appErr.Message)
	}
	return appErr
}

// memStore is an in-memory storage.BlobStore.
type memStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	failUpload map[string]bool // by file content prefix
	failRemove bool
	removed    []string
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}, failUpload: map[string]bool{}}
}

func (m *memStore) Upload(ctx context.Context, key string, r io.Reader, contentType string) (*storage.Object, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for prefix := range m.failUpload {
		if strings.HasSuffix(string(data), prefix) {
			return nil, errors.New("storage quota exceeded")
		}
	}
	m.objects[key] = data
	return &storage.Object{Key: key, URL: "https://blobs.test/" + key}, nil
}

func (m *memStore) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removed = append(m.removed, key)
	if m.failRemove {
		return errors.New("blob store unavailable")
	}
	delete(m.objects, key)
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }

func memFile(name string, data []byte) UploadFile {
	return UploadFile{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadSeekCloser, error) {
			return nopCloser{bytes.NewReader(data)}, nil
		},
	}
}

func pngFile(name, marker string) UploadFile {
	data := append(append([]byte{}, pngHeader...), []byte(marker)...)
	return memFile(name, data)
}

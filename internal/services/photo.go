package services

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/buildvault/backend/internal/config"
	"github.com/buildvault/backend/internal/models"
	"github.com/buildvault/backend/internal/storage"
	"github.com/buildvault/backend/pkg/logger"
	"github.com/buildvault/backend/pkg/response"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// allowedImageTypes excludes SVG, which can carry script.
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/heic": true,
	"image/heif": true,
	"image/avif": true,
	"image/bmp":  true,
	"image/tiff": true,
}

type PhotoService struct {
	db       *gorm.DB
	access   *AccessService
	blobs    storage.BlobStore
	queue    TaskQueue
	maxSize  int64
	maxFiles int
	workers  int
}

func NewPhotoService(db *gorm.DB, access *AccessService, blobs storage.BlobStore, queue TaskQueue, cfg *config.UploadConfig) *PhotoService {
	s := &PhotoService{
		db:       db,
		access:   access,
		blobs:    blobs,
		queue:    queue,
		maxSize:  int64(cfg.MaxFileSizeMB) << 20,
		maxFiles: cfg.MaxFiles,
		workers:  cfg.Concurrency,
	}
	if s.maxSize <= 0 {
		s.maxSize = 20 << 20
	}
	if s.maxFiles <= 0 {
		s.maxFiles = 20
	}
	if s.workers <= 0 {
		s.workers = 4
	}
	return s
}

// PhotoView is a photo as shown to one viewer.
type PhotoView struct {
	models.Photo
	CanDelete bool `json:"can_delete"`
}

// UploadFile is one part of a multi-file upload.
type UploadFile struct {
	Name string
	Size int64
	Open func() (io.ReadSeekCloser, error)
}

type UploadOutcome struct {
	FileName string     `json:"file_name"`
	Photo    *PhotoView `json:"photo,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// UploadResult reports every file. Error is set when at least one failed.
type UploadResult struct {
	Uploaded int             `json:"uploaded"`
	Failed   int             `json:"failed"`
	Results  []UploadOutcome `json:"results"`
	Error    string          `json:"error,omitempty"`
}

func (s *PhotoService) List(ctx context.Context, viewer *models.Profile, projectID string) ([]PhotoView, error) {
	project, err := s.visibleProject(ctx, viewer, projectID)
	if err != nil {
		return nil, err
	}

	var photos []models.Photo
	if err := s.db.WithContext(ctx).Where("site_id = ?", projectID).Order("created_at DESC").Find(&photos).Error; err != nil {
		return nil, response.NewUpstream(http.StatusInternalServerError, err)
	}

	views := make([]PhotoView, 0, len(photos))
	for i := range photos {
		views = append(views, PhotoView{
			Photo:     photos[i],
			CanDelete: CanDeletePhoto(viewer, &photos[i], project),
		})
	}
	return views, nil
}

// Upload stores each file concurrently. Files succeed or fail on their own;
// a failure never undoes another file.
func (s *PhotoService) Upload(ctx context.Context, viewer *models.Profile, projectID string, files []UploadFile, description *string) (*UploadResult, error) {
	project, err := s.visibleProject(ctx, viewer, projectID)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, response.NewBadRequest("Please select at least one photo")
	}
	if len(files) > s.maxFiles {
		return nil, response.NewBadRequest(fmt.Sprintf("At most %d photos can be uploaded at once", s.maxFiles))
	}

	desc := trimmedOrNil(description)
	outcomes := make([]UploadOutcome, len(files))

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i := range files {
		i := i
		g.Go(func() error {
			outcomes[i].FileName = files[i].Name
			photo, err := s.uploadOne(ctx, viewer, project, &files[i], desc)
			if err != nil {
				outcomes[i].Error = err.Error()
				logger.Warn().Err(err).Str("site_id", project.ID).Str("file", files[i].Name).Msg("photo upload failed")
				return nil
			}
			outcomes[i].Photo = &PhotoView{Photo: *photo, CanDelete: CanDeletePhoto(viewer, photo, project)}
			return nil
		})
	}
	_ = g.Wait()

	result := &UploadResult{Results: outcomes}
	for _, o := range outcomes {
		if o.Error != "" {
			result.Failed++
		} else {
			result.Uploaded++
		}
	}
	if result.Failed > 0 {
		result.Error = fmt.Sprintf("%d of %d photos failed to upload", result.Failed, len(files))
	}
	return result, nil
}

func (s *PhotoService) uploadOne(ctx context.Context, viewer *models.Profile, project *models.Project, f *UploadFile, description *string) (*models.Photo, error) {
	if f.Size > s.maxSize {
		return nil, fmt.Errorf("%s exceeds the %d MB limit", f.Name, s.maxSize>>20)
	}

	r, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	mtype, err := mimetype.DetectReader(r)
	if err != nil {
		return nil, err
	}
	mime := mtype.String()
	if !allowedImageTypes[mime] {
		return nil, fmt.Errorf("%s is not a supported image (%s)", f.Name, mime)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	obj, err := s.blobs.Upload(ctx, storage.PhotoKey(project.ID, mtype.Extension()), r, mime)
	if err != nil {
		return nil, err
	}

	size := f.Size
	photo := &models.Photo{
		SiteID:      project.ID,
		URL:         obj.URL,
		StoragePath: obj.Key,
		FileName:    f.Name,
		FileSize:    &size,
		MimeType:    &mime,
		Description: description,
		UploadedBy:  viewer.ID,
	}
	if err := s.db.WithContext(ctx).Create(photo).Error; err != nil {
		if rmErr := s.blobs.Remove(context.WithoutCancel(ctx), obj.Key); rmErr != nil {
			logger.Warn().Err(rmErr).Str("key", obj.Key).Msg("failed to remove orphaned blob")
		}
		return nil, err
	}

	task := &PhotoUploadedTask{PhotoID: photo.ID, SiteID: project.ID, UploadedBy: viewer.ID}
	if err := s.queue.Enqueue(ctx, task); err != nil {
		// the photo is stored; only the notifications are missing
		logger.Error().Err(err).Str("photo_id", photo.ID).Msg("failed to enqueue photo notifications")
	}

	return photo, nil
}

// Delete removes a photo when CanDeletePhoto allows it. A failed blob removal
// is logged and the row is deleted anyway.
func (s *PhotoService) Delete(ctx context.Context, viewer *models.Profile, photoID string) error {
	db := s.db.WithContext(ctx)

	var photo models.Photo
	if err := db.Where("id = ?", photoID).First(&photo).Error; err != nil {
		if isNotFound(err) {
			return response.NewNotFound("Photo not found")
		}
		return response.NewUpstream(http.StatusInternalServerError, err)
	}

	var project *models.Project
	var p models.Project
	err := db.Select("id", "created_by").Where("id = ?", photo.SiteID).First(&p).Error
	switch {
	case err == nil:
		project = &p
	case !isNotFound(err):
		return response.NewUpstream(http.StatusInternalServerError, err)
	}

	if !CanDeletePhoto(viewer, &photo, project) {
		return response.NewForbidden("You do not have permission to delete this photo")
	}

	if err := s.blobs.Remove(ctx, photo.StoragePath); err != nil {
		logger.Warn().Err(err).Str("photo_id", photo.ID).Str("key", photo.StoragePath).Msg("failed to remove photo blob")
	}

	if err := db.Where("id = ?", photo.ID).Delete(&models.Photo{}).Error; err != nil {
		return response.NewUpstream(http.StatusBadRequest, err)
	}
	return nil
}

func (s *PhotoService) visibleProject(ctx context.Context, viewer *models.Profile, projectID string) (*models.Project, error) {
	var project models.Project
	if err := s.db.WithContext(ctx).Where("id = ?", projectID).First(&project).Error; err != nil {
		if isNotFound(err) {
			return nil, response.NewNotFound("Project not found")
		}
		return nil, response.NewUpstream(http.StatusInternalServerError, err)
	}
	ok, err := s.access.CanView(ctx, viewer, projectID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, response.NewForbidden("You do not have access to this project")
	}
	return &project, nil
}

package services

import (
	"context"
	"net/http"
	"strings"

	"github.com/buildvault/backend/internal/models"
	"github.com/buildvault/backend/internal/storage"
	"github.com/buildvault/backend/pkg/logger"
	"github.com/buildvault/backend/pkg/response"
	"gorm.io/gorm"
)

type ProjectService struct {
	db     *gorm.DB
	access *AccessService
	blobs  storage.BlobStore
}

func NewProjectService(db *gorm.DB, access *AccessService, blobs storage.BlobStore) *ProjectService {
	return &ProjectService{db: db, access: access, blobs: blobs}
}

type CreateProjectRequest struct {
	Name        string  `json:"name" binding:"required,max=200"`
	Description *string `json:"description"`
	Address     *string `json:"address" binding:"omitempty,max=500"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=200"`
	Description *string `json:"description"`
	Address     *string `json:"address" binding:"omitempty,max=500"`
}

func (s *ProjectService) List(ctx context.Context, viewer *models.Profile) ([]models.Project, error) {
	return s.access.VisibleProjects(ctx, viewer)
}

// Get returns a project the viewer is allowed to see.
func (s *ProjectService) Get(ctx context.Context, viewer *models.Profile, id string) (*models.Project, error) {
	project, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.access.CanView(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, response.NewForbidden("You do not have access to this project")
	}
	return project, nil
}

func (s *ProjectService) find(ctx context.Context, id string) (*models.Project, error) {
	var project models.Project
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&project).Error; err != nil {
		if isNotFound(err) {
			return nil, response.NewNotFound("Project not found")
		}
		return nil, response.NewUpstream(http.StatusInternalServerError, err)
	}
	return &project, nil
}

func (s *ProjectService) Create(ctx context.Context, callerID string, req *CreateProjectRequest) (*models.Project, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, response.NewBadRequest("Project name is required")
	}

	project := &models.Project{
		Name:        name,
		Description: trimmedOrNil(req.Description),
		Address:     trimmedOrNil(req.Address),
		CreatedBy:   callerID,
	}
	if err := s.db.WithContext(ctx).Create(project).Error; err != nil {
		return nil, response.NewUpstream(http.StatusBadRequest, err)
	}
	return project, nil
}

// Update edits name, description and address. created_by never changes.
func (s *ProjectService) Update(ctx context.Context, id string, req *UpdateProjectRequest) (*models.Project, error) {
	project, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, response.NewBadRequest("Project name is required")
		}
		updates["name"] = name
	}
	if req.Description != nil {
		updates["description"] = trimmedOrNil(req.Description)
	}
	if req.Address != nil {
		updates["address"] = trimmedOrNil(req.Address)
	}
	if len(updates) == 0 {
		return project, nil
	}

	db := s.db.WithContext(ctx)
	if err := db.Model(project).Updates(updates).Error; err != nil {
		return nil, response.NewUpstream(http.StatusBadRequest, err)
	}
	return s.find(ctx, id)
}

// Delete removes a project with its photos and grants. Photo blobs are
// removed first on a best-effort basis.
func (s *ProjectService) Delete(ctx context.Context, id string) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}

	db := s.db.WithContext(ctx)

	var photos []models.Photo
	if err := db.Select("id", "storage_path").Where("site_id = ?", id).Find(&photos).Error; err != nil {
		return response.NewUpstream(http.StatusInternalServerError, err)
	}
	for _, p := range photos {
		if err := s.blobs.Remove(ctx, p.StoragePath); err != nil {
			logger.Warn().Err(err).Str("photo_id", p.ID).Str("key", p.StoragePath).Msg("failed to remove photo blob")
		}
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("site_id = ?", id).Delete(&models.Photo{}).Error; err != nil {
			return response.NewUpstream(http.StatusBadRequest, err)
		}
		if err := tx.Where("site_id = ?", id).Delete(&models.ProjectAccessGrant{}).Error; err != nil {
			return response.NewUpstream(http.StatusBadRequest, err)
		}
		if err := tx.Where("id = ?", id).Delete(&models.Project{}).Error; err != nil {
			return response.NewUpstream(http.StatusBadRequest, err)
		}
		return nil
	})
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/buildvault/backend/internal/models"
	"github.com/buildvault/backend/pkg/response"
	"gorm.io/gorm"
)

// AccessService resolves which projects a profile may see and maintains
// staff grant sets.
type AccessService struct {
	db *gorm.DB
}

func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{db: db}
}

// VisibleProjects returns every project for admins and managers, and only
// granted projects for staff. Newest first.
func (s *AccessService) VisibleProjects(ctx context.Context, viewer *models.Profile) ([]models.Project, error) {
	projects := []models.Project{}
	query := s.db.WithContext(ctx).Model(&models.Project{})

	if !viewer.IsAdminOrManager() {
		query = query.Where("id IN (?)",
			s.db.Model(&models.ProjectAccessGrant{}).Select("site_id").Where("user_id = ?", viewer.ID))
	}

	if err := query.Order("created_at DESC").Find(&projects).Error; err != nil {
		return nil, response.NewUpstream(http.StatusInternalServerError, err)
	}
	return projects, nil
}

// CanView reports whether viewer may see the project with the given id.
func (s *AccessService) CanView(ctx context.Context, viewer *models.Profile, projectID string) (bool, error) {
	if viewer.IsAdminOrManager() {
		return true, nil
	}
	var count int64
	err := s.db.WithContext(ctx).Model(&models.ProjectAccessGrant{}).
		Where("user_id = ? AND site_id = ?", viewer.ID, projectID).
		Count(&count).Error
	if err != nil {
		return false, response.NewUpstream(http.StatusInternalServerError, err)
	}
	return count > 0, nil
}

// GrantedProjectIDs lists the raw grant rows for a user, regardless of role.
func (s *AccessService) GrantedProjectIDs(ctx context.Context, userID string) ([]string, error) {
	ids := []string{}
	err := s.db.WithContext(ctx).Model(&models.ProjectAccessGrant{}).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Pluck("site_id", &ids).Error
	if err != nil {
		return nil, response.NewUpstream(http.StatusBadRequest, err)
	}
	return ids, nil
}

// ReplaceGrants deletes every grant of userID and, when effectiveRole is
// staff, inserts one row per unique project id. Both steps share one
// transaction.
func (s *AccessService) ReplaceGrants(ctx context.Context, userID string, effectiveRole models.Role, projectIDs []string, assignedBy string) error {
	unique := DedupeIDs(projectIDs)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return replaceGrantsTx(tx, userID, effectiveRole, unique, assignedBy)
	})
}

func replaceGrantsTx(tx *gorm.DB, userID string, effectiveRole models.Role, unique []string, assignedBy string) error {
	if err := tx.Where("user_id = ?", userID).Delete(&models.ProjectAccessGrant{}).Error; err != nil {
		return response.NewUpstream(http.StatusBadRequest, err)
	}

	if effectiveRole != models.RoleStaff || len(unique) == 0 {
		return nil
	}

	var found int64
	if err := tx.Model(&models.Project{}).Where("id IN ?", unique).Count(&found).Error; err != nil {
		return response.NewUpstream(http.StatusBadRequest, err)
	}
	if int(found) != len(unique) {
		return response.NewBadRequest("siteIds contains an unknown project")
	}

	var assigner *string
	if assignedBy != "" {
		assigner = &assignedBy
	}

	grants := make([]models.ProjectAccessGrant, 0, len(unique))
	for _, id := range unique {
		grants = append(grants, models.ProjectAccessGrant{
			UserID:     userID,
			SiteID:     id,
			AssignedBy: assigner,
		})
	}
	if err := tx.Create(&grants).Error; err != nil {
		return response.NewUpstream(http.StatusBadRequest, err)
	}
	return nil
}

// DedupeIDs drops repeated ids, keeping first-seen order. Empty ids are kept
// so the unknown-project check rejects them.
func DedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

package services

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/buildvault/backend/internal/models"
	"github.com/buildvault/backend/pkg/response"
	"gorm.io/gorm"
)

// ProfileService backs the user management endpoints. Every method assumes
// the caller already passed the AdminOrManager guard.
type ProfileService struct {
	db     *gorm.DB
	access *AccessService
}

func NewProfileService(db *gorm.DB, access *AccessService) *ProfileService {
	return &ProfileService{db: db, access: access}
}

type ProfileListRequest struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	Status   string `form:"status"`
	Role     string `form:"role"`
	Query    string `form:"q"`
}

type ProfileListResponse struct {
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Items    []models.Profile `json:"items"`
}

// ProfileDetail is the body of GET /api/admin/users/:id.
type ProfileDetail struct {
	Profile *models.Profile `json:"profile"`
	SiteIDs []string        `json:"siteIds"`
}

func (s *ProfileService) List(ctx context.Context, req *ProfileListRequest) (*ProfileListResponse, error) {
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 || req.PageSize > 200 {
		req.PageSize = 50
	}

	query := s.db.WithContext(ctx).Model(&models.Profile{})
	if req.Status != "" {
		if !models.Status(req.Status).Valid() {
			return nil, response.NewBadRequest("Invalid status")
		}
		query = query.Where("status = ?", req.Status)
	}
	if req.Role != "" {
		if !models.Role(req.Role).Valid() {
			return nil, response.NewBadRequest("Invalid role")
		}
		query = query.Where("role = ?", req.Role)
	}
	if q := strings.TrimSpace(req.Query); q != "" {
		like := "%" + q + "%"
		query = query.Where("email LIKE ? OR full_name LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, response.NewUpstream(http.StatusInternalServerError, err)
	}

	items := []models.Profile{}
	offset := (req.Page - 1) * req.PageSize
	if err := query.Order("created_at DESC").Offset(offset).Limit(req.PageSize).Find(&items).Error; err != nil {
		return nil, response.NewUpstream(http.StatusInternalServerError, err)
	}

	return &ProfileListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    items,
	}, nil
}

func (s *ProfileService) Get(ctx context.Context, id string) (*ProfileDetail, error) {
	var profile models.Profile
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		if isNotFound(err) {
			return nil, response.NewNotFound("User profile not found")
		}
		return nil, response.NewUpstream(http.StatusBadRequest, err)
	}

	siteIDs, err := s.access.GrantedProjectIDs(ctx, id)
	if err != nil {
		return nil, err
	}

	return &ProfileDetail{Profile: &profile, SiteIDs: siteIDs}, nil
}

// ProfilePatch is the narrowed form of a PATCH body. Nil pointers and unset
// flags mean "leave unchanged".
type ProfilePatch struct {
	FullName    *string
	FullNameSet bool
	Role        *models.Role
	Status      *models.Status
	SiteIDs     []string
	SiteIDsSet  bool
}

// Empty reports whether the patch changes nothing at all.
func (p *ProfilePatch) Empty() bool {
	return !p.FullNameSet && p.Role == nil && p.Status == nil && !p.SiteIDsSet
}

// ParseProfilePatch narrows a raw JSON body. A body that is not a JSON
// object is treated as empty. full_name is applied only when it is a string;
// role, status and siteIds are rejected when present but malformed.
func ParseProfilePatch(body []byte) (*ProfilePatch, error) {
	patch := &ProfilePatch{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return patch, nil
	}

	if raw, ok := fields["full_name"]; ok {
		var name string
		if json.Unmarshal(raw, &name) == nil {
			patch.FullNameSet = true
			if trimmed := strings.TrimSpace(name); trimmed != "" {
				patch.FullName = &trimmed
			}
		}
	}

	if raw, ok := fields["role"]; ok {
		var role string
		if err := json.Unmarshal(raw, &role); err != nil || !models.Role(role).Valid() {
			return nil, response.NewBadRequest("Invalid role")
		}
		r := models.Role(role)
		patch.Role = &r
	}

	if raw, ok := fields["status"]; ok {
		var status string
		if err := json.Unmarshal(raw, &status); err != nil || !models.Status(status).Valid() {
			return nil, response.NewBadRequest("Invalid status")
		}
		st := models.Status(status)
		patch.Status = &st
	}

	if raw, ok := fields["siteIds"]; ok {
		var ids []string
		if err := json.Unmarshal(raw, &ids); err != nil || ids == nil {
			return nil, response.NewBadRequest("siteIds must be an array of strings")
		}
		patch.SiteIDs = ids
		patch.SiteIDsSet = true
	}

	return patch, nil
}

// Update applies a patch on behalf of callerID. Any status change stamps
// approved_by and approved_at with the caller and the current time.
//
// The profile update and the grant replacement are separate statements;
// if the process dies between them the new role is stored with the old
// grant set until the next edit.
func (s *ProfileService) Update(ctx context.Context, callerID, targetID string, patch *ProfilePatch) error {
	if patch.Empty() {
		return nil
	}

	db := s.db.WithContext(ctx)

	updates := make(map[string]interface{})
	if patch.FullNameSet {
		updates["full_name"] = patch.FullName
	}
	if patch.Role != nil {
		updates["role"] = *patch.Role
	}
	if patch.Status != nil {
		updates["status"] = *patch.Status
		updates["approved_by"] = callerID
		updates["approved_at"] = time.Now()
	}

	if len(updates) > 0 {
		result := db.Model(&models.Profile{}).Where("id = ?", targetID).Updates(updates)
		if result.Error != nil {
			return response.NewUpstream(http.StatusBadRequest, result.Error)
		}
		if result.RowsAffected == 0 {
			return response.NewNotFound("User profile not found")
		}
	}

	if !patch.SiteIDsSet {
		return nil
	}

	effectiveRole, err := s.effectiveRole(ctx, targetID, patch.Role)
	if err != nil {
		return err
	}

	return s.access.ReplaceGrants(ctx, targetID, effectiveRole, patch.SiteIDs, callerID)
}

// effectiveRole is the role after the edit: the patched one, or the stored
// one when the patch leaves role alone.
func (s *ProfileService) effectiveRole(ctx context.Context, targetID string, patched *models.Role) (models.Role, error) {
	if patched != nil {
		return *patched, nil
	}

	var profile models.Profile
	err := s.db.WithContext(ctx).Select("id", "role").Where("id = ?", targetID).First(&profile).Error
	if isNotFound(err) {
		return "", response.NewBadRequest("User profile not found")
	}
	if err != nil {
		return "", response.NewUpstream(http.StatusBadRequest, err)
	}
	return profile.Role, nil
}

// Delete removes an identity together with its profile, grants, refresh
// tokens and notifications. Callers may not delete themselves.
func (s *ProfileService) Delete(ctx context.Context, callerID, targetID string) error {
	if callerID == targetID {
		return response.NewInvalidOperation("You cannot delete your own account")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", targetID).Delete(&models.User{})
		if result.Error != nil {
			return response.NewUpstream(http.StatusBadRequest, result.Error)
		}
		if result.RowsAffected == 0 {
			return response.NewNotFound("User not found")
		}

		for _, model := range []interface{}{
			&models.ProjectAccessGrant{},
			&models.RefreshToken{},
			&models.Notification{},
		} {
			if err := tx.Where("user_id = ?", targetID).Delete(model).Error; err != nil {
				return response.NewUpstream(http.StatusBadRequest, err)
			}
		}

		if err := tx.Where("id = ?", targetID).Delete(&models.Profile{}).Error; err != nil {
			return response.NewUpstream(http.StatusBadRequest, err)
		}
		return nil
	})
}

package services

import (
	"context"
	"errors"
	"net/http"

	"github.com/buildvault/backend/internal/models"
	"github.com/buildvault/backend/pkg/response"
	"gorm.io/gorm"
)

// Capability is a rule evaluated against a freshly loaded, approved profile.
type Capability struct {
	Name  string
	allow func(caller *models.Profile) bool
}

// Allows reports whether an approved caller satisfies the capability.
func (c Capability) Allows(caller *models.Profile) bool {
	return c.allow(caller)
}

var (
	AnyApproved = Capability{
		Name:  "any_approved",
		allow: func(*models.Profile) bool { return true },
	}
	AdminOrManager = Capability{
		Name:  "admin_or_manager",
		allow: (*models.Profile).IsAdminOrManager,
	}
)

func SelfOrAdminOrManager(targetID string) Capability {
	return Capability{
		Name: "self_or_admin_or_manager",
		allow: func(caller *models.Profile) bool {
			return caller.ID == targetID || caller.IsAdminOrManager()
		},
	}
}

// Guard re-derives the caller's role and status from the database on every
// check. Token claims never carry either.
type Guard struct {
	db *gorm.DB
}

func NewGuard(db *gorm.DB) *Guard {
	return &Guard{db: db}
}

// LoadProfile returns the stored profile, or nil when none exists.
func (g *Guard) LoadProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	err := g.db.WithContext(ctx).Where("id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, response.NewUpstream(http.StatusInternalServerError, err)
	}
	return &profile, nil
}

// Require loads the caller's profile and checks it against capability.
func (g *Guard) Require(ctx context.Context, callerID string, capability Capability) (*models.Profile, error) {
	if callerID == "" {
		return nil, response.NewUnauthorized("Not authenticated")
	}

	profile, err := g.LoadProfile(ctx, callerID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, response.NewForbidden("Forbidden")
	}
	if !profile.IsApproved() {
		return nil, response.NewForbidden("Forbidden").WithDebug("status", profile.Status)
	}
	if !capability.Allows(profile) {
		return nil, response.NewForbidden("Forbidden").WithDebug("capability", capability.Name)
	}
	return profile, nil
}

// CanDeletePhoto is the single photo deletion rule. It drives both the
// can_delete flag in listings and the DELETE endpoint.
// project may be nil when the photo's project row is gone.
func CanDeletePhoto(viewer *models.Profile, photo *models.Photo, project *models.Project) bool {
	if viewer == nil || photo == nil || !viewer.IsApproved() {
		return false
	}
	if viewer.IsAdminOrManager() {
		return true
	}
	if project != nil && project.CreatedBy == viewer.ID {
		return true
	}
	return photo.UploadedBy == viewer.ID
}

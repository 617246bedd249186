package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Project is a construction site. CreatedBy is fixed at creation.
type Project struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:200;not null" json:"name"`
	Description *string   `gorm:"type:text" json:"description"`
	Address     *string   `gorm:"size:500" json:"address"`
	CreatedBy   string    `gorm:"size:36;not null;index" json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Project) TableName() string { return "sites" }

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// ProjectSummary is the site shape embedded in notification listings.
type ProjectSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProjectAccessGrant lets a staff user see one project.
// Rows for a user are always replaced as a set, never edited.
type ProjectAccessGrant struct {
	UserID     string    `gorm:"primaryKey;size:36" json:"user_id"`
	SiteID     string    `gorm:"primaryKey;size:36;index" json:"site_id"`
	AssignedBy *string   `gorm:"size:36" json:"assigned_by"`
	CreatedAt  time.Time `json:"created_at"`
}

func (ProjectAccessGrant) TableName() string { return "user_site_access" }

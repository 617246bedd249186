package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Photo is the metadata half of a blob/row pair. StoragePath is the blob key.
type Photo struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	SiteID      string    `gorm:"size:36;not null;index" json:"site_id"`
	URL         string    `gorm:"size:1000;not null" json:"url"`
	StoragePath string    `gorm:"size:500;not null" json:"-"`
	FileName    string    `gorm:"size:255;not null" json:"file_name"`
	FileSize    *int64    `json:"file_size"`
	MimeType    *string   `gorm:"size:100" json:"mime_type"`
	Description *string   `gorm:"type:text" json:"description"`
	UploadedBy  string    `gorm:"size:36;not null;index" json:"uploaded_by"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

func (Photo) TableName() string { return "photos" }

func (p *Photo) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

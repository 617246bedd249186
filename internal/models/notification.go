package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const NotificationTypePhotoUploaded = "photo_uploaded"

// Notification is addressed to one admin or manager. ReadAt is set once.
type Notification struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	UserID     string     `gorm:"size:36;not null;index:idx_notifications_user_read" json:"user_id"`
	Type       string     `gorm:"size:50;not null" json:"type"`
	Title      string     `gorm:"size:255;not null" json:"title"`
	Message    string     `gorm:"type:text" json:"message"`
	SiteID     *string    `gorm:"size:36" json:"site_id"`
	PhotoID    *string    `gorm:"size:36" json:"photo_id"`
	UploadedBy *string    `gorm:"size:36" json:"uploaded_by"`
	ReadAt     *time.Time `gorm:"index:idx_notifications_user_read" json:"read_at"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}

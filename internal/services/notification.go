package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/buildvault/backend/internal/models"
	"github.com/buildvault/backend/pkg/logger"
	"github.com/buildvault/backend/pkg/response"
	"gorm.io/gorm"
)

// FeedLimit caps the notifications returned by one feed fetch.
const FeedLimit = 50

// NotificationService creates photo notifications and tracks their read state.
type NotificationService struct {
	db  *gorm.DB
	hub *SSEHub
}

// NewNotificationService wires the service; hub may be nil to skip live pushes.
func NewNotificationService(db *gorm.DB, hub *SSEHub) *NotificationService {
	return &NotificationService{db: db, hub: hub}
}

// NotificationView is one feed entry with its project and uploader attached.
type NotificationView struct {
	models.Notification
	Sites    *models.ProjectSummary `json:"sites"`
	Uploader *models.ProfileSummary `json:"uploader"`
}

type NotificationFeed struct {
	Notifications []NotificationView `json:"notifications"`
	UnreadCount   int64              `json:"unreadCount"`
}

// FanOutPhotoUploaded writes one notification per admin/manager profile,
// never to the uploader. Recipients are resolved at call time. Only approved
// recipients get a live event; the others see the row once approved.
// Running it twice for the same photo inserts nothing the second time.
func (s *NotificationService) FanOutPhotoUploaded(ctx context.Context, task *PhotoUploadedTask) error {
	var created []models.Notification
	live := make(map[string]bool)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.Notification{}).
			Where("photo_id = ? AND type = ?", task.PhotoID, models.NotificationTypePhotoUploaded).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}

		var recipients []models.Profile
		if err := tx.Select("id", "status").
			Where("role IN ? AND id <> ?", []models.Role{models.RoleAdmin, models.RoleManager}, task.UploadedBy).
			Find(&recipients).Error; err != nil {
			return err
		}
		if len(recipients) == 0 {
			return nil
		}

		title, message := s.describeUpload(tx, task)

		siteID, photoID, uploadedBy := task.SiteID, task.PhotoID, task.UploadedBy
		created = make([]models.Notification, 0, len(recipients))
		for _, r := range recipients {
			if r.IsApproved() {
				live[r.ID] = true
			}
			created = append(created, models.Notification{
				UserID:     r.ID,
				Type:       models.NotificationTypePhotoUploaded,
				Title:      title,
				Message:    message,
				SiteID:     &siteID,
				PhotoID:    &photoID,
				UploadedBy: &uploadedBy,
			})
		}
		return tx.Create(&created).Error
	})
	if err != nil {
		return fmt.Errorf("fan out photo %s: %w", task.PhotoID, err)
	}

	if len(created) > 0 {
		logger.Debug().Str("photo_id", task.PhotoID).Int("recipients", len(created)).Msg("photo notifications created")
	}

	if s.hub != nil {
		for _, n := range created {
			if !live[n.UserID] {
				continue
			}
			s.hub.PublishTo(n.UserID, NotificationEvent{
				ID:         n.ID,
				Type:       n.Type,
				Title:      n.Title,
				Message:    n.Message,
				SiteID:     n.SiteID,
				PhotoID:    n.PhotoID,
				UploadedBy: n.UploadedBy,
				CreatedAt:  n.CreatedAt,
			})
		}
	}
	return nil
}

func (s *NotificationService) describeUpload(tx *gorm.DB, task *PhotoUploadedTask) (string, string) {
	uploader := "Someone"
	var profile models.Profile
	if err := tx.Select("id", "email", "full_name").Where("id = ?", task.UploadedBy).First(&profile).Error; err == nil {
		uploader = profile.Email
		if profile.FullName != nil {
			uploader = *profile.FullName
		}
	}

	site := "a project"
	var project models.Project
	if err := tx.Select("id", "name").Where("id = ?", task.SiteID).First(&project).Error; err == nil {
		site = project.Name
	}

	return "New photo uploaded", fmt.Sprintf("%s uploaded a photo to %s", uploader, site)
}

// Feed returns the newest notifications for viewer plus the unread count.
// Only approved admins and managers receive notifications; everyone else
// gets an empty feed.
func (s *NotificationService) Feed(ctx context.Context, viewer *models.Profile) (*NotificationFeed, error) {
	feed := &NotificationFeed{Notifications: []NotificationView{}}
	if viewer == nil || !viewer.IsApproved() || !viewer.IsAdminOrManager() {
		return feed, nil
	}

	db := s.db.WithContext(ctx)

	var rows []models.Notification
	if err := db.Where("user_id = ?", viewer.ID).
		Order("created_at DESC").
		Limit(FeedLimit).
		Find(&rows).Error; err != nil {
		return nil, response.NewUpstream(http.StatusInternalServerError, err)
	}

	sites, uploaders, err := s.loadRelated(db, rows)
	if err != nil {
		return nil, response.NewUpstream(http.StatusInternalServerError, err)
	}

	for _, n := range rows {
		view := NotificationView{Notification: n}
		if n.SiteID != nil {
			view.Sites = sites[*n.SiteID]
		}
		if n.UploadedBy != nil {
			view.Uploader = uploaders[*n.UploadedBy]
		}
		feed.Notifications = append(feed.Notifications, view)
	}

	count, err := s.UnreadCount(ctx, viewer.ID)
	if err != nil {
		return nil, err
	}
	feed.UnreadCount = count
	return feed, nil
}

func (s *NotificationService) loadRelated(db *gorm.DB, rows []models.Notification) (map[string]*models.ProjectSummary, map[string]*models.ProfileSummary, error) {
	var siteIDs, uploaderIDs []string
	for _, n := range rows {
		if n.SiteID != nil {
			siteIDs = append(siteIDs, *n.SiteID)
		}
		if n.UploadedBy != nil {
			uploaderIDs = append(uploaderIDs, *n.UploadedBy)
		}
	}
	siteIDs = DedupeIDs(siteIDs)
	uploaderIDs = DedupeIDs(uploaderIDs)

	sites := make(map[string]*models.ProjectSummary, len(siteIDs))
	if len(siteIDs) > 0 {
		var projects []models.Project
		if err := db.Select("id", "name").Where("id IN ?", siteIDs).Find(&projects).Error; err != nil {
			return nil, nil, err
		}
		for _, p := range projects {
			sites[p.ID] = &models.ProjectSummary{ID: p.ID, Name: p.Name}
		}
	}

	uploaders := make(map[string]*models.ProfileSummary, len(uploaderIDs))
	if len(uploaderIDs) > 0 {
		var profiles []models.Profile
		if err := db.Select("id", "email", "full_name").Where("id IN ?", uploaderIDs).Find(&profiles).Error; err != nil {
			return nil, nil, err
		}
		for _, p := range profiles {
			uploaders[p.ID] = &models.ProfileSummary{ID: p.ID, FullName: p.FullName, Email: p.Email}
		}
	}

	return sites, uploaders, nil
}

// UnreadCount is computed from the table on every call.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Count(&count).Error; err != nil {
		return 0, response.NewUpstream(http.StatusInternalServerError, err)
	}
	return count, nil
}

// MarkRead stamps read_at on one of the caller's notifications. An already
// read notification keeps its first timestamp.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	db := s.db.WithContext(ctx)

	result := db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND read_at IS NULL", id, userID).
		Update("read_at", time.Now())
	if result.Error != nil {
		return response.NewUpstream(http.StatusInternalServerError, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := db.Model(&models.Notification{}).Where("id = ? AND user_id = ?", id, userID).Count(&count).Error; err != nil {
		return response.NewUpstream(http.StatusInternalServerError, err)
	}
	if count == 0 {
		return response.NewNotFound("Notification not found")
	}
	return nil
}

// MarkAllRead stamps every unread notification of the caller and returns
// how many changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", time.Now())
	if result.Error != nil {
		return 0, response.NewUpstream(http.StatusInternalServerError, result.Error)
	}
	return result.RowsAffected, nil
}

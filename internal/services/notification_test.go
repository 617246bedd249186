package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/buildvault/backend/internal/models"
)

func countNotifications(t *testing.T, svc *NotificationService, userID string) int64 {
	t.Helper()
	var n int64
	if err := svc.db.Model(&models.Notification{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestNotificationService_FanOutRecipients(t *testing.T) {
	db := newTestDB(t)
	hub := NewSSEHub()
	svc := NewNotificationService(db, hub)
	ctx := context.Background()

	admin := seedProfile(t, db, "admin@test", models.RoleAdmin, models.StatusApproved)
	manager := seedProfile(t, db, "manager@test", models.RoleManager, models.StatusApproved)
	pendingManager := seedProfile(t, db, "pm@test", models.RoleManager, models.StatusPending)
	staff := seedProfile(t, db, "staff@test", models.RoleStaff, models.StatusApproved)
	project := seedProject(t, db, "Harbor", admin.ID)

	events := hub.Subscribe("client-1", manager.ID)
	defer hub.Unsubscribe("client-1")

	photo := seedPhoto(t, db, project.ID, staff.ID)
	task := &PhotoUploadedTask{PhotoID: photo.ID, SiteID: project.ID, UploadedBy: staff.ID}
	if err := svc.FanOutPhotoUploaded(ctx, task); err != nil {
		t.Fatalf("FanOutPhotoUploaded() error = %v", err)
	}

	want := map[string]int64{admin.ID: 1, manager.ID: 1, pendingManager.ID: 1, staff.ID: 0}
	for id, n := range want {
		if got := countNotifications(t, svc, id); got != n {
			t.Errorf("notifications for %s = %d, expected %d", id, got, n)
		}
	}

	select {
	case ev := <-events:
		if ev.PhotoID == nil || *ev.PhotoID != photo.ID {
			t.Errorf("event photo = %v, expected %s", ev.PhotoID, photo.ID)
		}
		if ev.Message != "staff@test uploaded a photo to Harbor" {
			t.Errorf("event message = %q", ev.Message)
		}
	case <-time.After(time.Second):
		t.Fatal("no live event for manager")
	}

	// a retried task writes nothing new
	if err := svc.FanOutPhotoUploaded(ctx, task); err != nil {
		t.Fatalf("repeat FanOutPhotoUploaded() error = %v", err)
	}
	if got := countNotifications(t, svc, admin.ID); got != 1 {
		t.Errorf("admin notifications after retry = %d, expected 1", got)
	}
}

func TestNotificationService_LiveEventsOnlyForApproved(t *testing.T) {
	db := newTestDB(t)
	hub := NewSSEHub()
	svc := NewNotificationService(db, hub)
	profiles := NewProfileService(db, NewAccessService(db))
	ctx := context.Background()

	admin := seedProfile(t, db, "admin@test", models.RoleAdmin, models.StatusApproved)
	manager := seedProfile(t, db, "manager@test", models.RoleManager, models.StatusApproved)
	pendingManager := seedProfile(t, db, "pm@test", models.RoleManager, models.StatusPending)
	staff := seedProfile(t, db, "staff@test", models.RoleStaff, models.StatusApproved)
	project := seedProject(t, db, "Harbor", admin.ID)

	managerEvents := hub.Subscribe("manager-stream", manager.ID)
	defer hub.Unsubscribe("manager-stream")
	pendingEvents := hub.Subscribe("pending-stream", pendingManager.ID)
	defer hub.Unsubscribe("pending-stream")

	// rejected after the stream was opened
	rejected := models.StatusRejected
	if err := profiles.Update(ctx, admin.ID, manager.ID, &ProfilePatch{Status: &rejected}); err != nil {
		t.Fatalf("reject manager: %v", err)
	}

	photo := seedPhoto(t, db, project.ID, staff.ID)
	if err := svc.FanOutPhotoUploaded(ctx, &PhotoUploadedTask{PhotoID: photo.ID, SiteID: project.ID, UploadedBy: staff.ID}); err != nil {
		t.Fatalf("FanOutPhotoUploaded() error = %v", err)
	}

	for name, ch := range map[string]<-chan NotificationEvent{"rejected manager": managerEvents, "pending manager": pendingEvents} {
		select {
		case ev := <-ch:
			t.Errorf("%s received live event %q", name, ev.Message)
		default:
		}
	}

	// rows are still written and become visible after approval
	if got := countNotifications(t, svc, manager.ID); got != 1 {
		t.Errorf("rejected manager notifications = %d, expected 1", got)
	}
	if got := countNotifications(t, svc, pendingManager.ID); got != 1 {
		t.Errorf("pending manager notifications = %d, expected 1", got)
	}
}

func TestNotificationService_UploaderNeverNotified(t *testing.T) {
	db := newTestDB(t)
	svc := NewNotificationService(db, nil)
	ctx := context.Background()

	admin := seedProfile(t, db, "admin@test", models.RoleAdmin, models.StatusApproved)
	manager := seedProfile(t, db, "manager@test", models.RoleManager, models.StatusApproved)
	project := seedProject(t, db, "Harbor", admin.ID)

	photo := seedPhoto(t, db, project.ID, admin.ID)
	if err := svc.FanOutPhotoUploaded(ctx, &PhotoUploadedTask{PhotoID: photo.ID, SiteID: project.ID, UploadedBy: admin.ID}); err != nil {
		t.Fatalf("FanOutPhotoUploaded() error = %v", err)
	}

	if got := countNotifications(t, svc, admin.ID); got != 0 {
		t.Errorf("uploader notifications = %d, expected 0", got)
	}
	if got := countNotifications(t, svc, manager.ID); got != 1 {
		t.Errorf("manager notifications = %d, expected 1", got)
	}

	// role changes after the fact do not rewrite history
	db.Model(&models.Profile{}).Where("id = ?", manager.ID).Update("role", models.RoleStaff)
	if got := countNotifications(t, svc, manager.ID); got != 1 {
		t.Errorf("manager notifications after demotion = %d, expected 1", got)
	}
}

func TestNotificationService_FeedAndReadState(t *testing.T) {
	db := newTestDB(t)
	svc := NewNotificationService(db, nil)
	ctx := context.Background()

	admin := seedProfile(t, db, "admin@test", models.RoleAdmin, models.StatusApproved)
	manager := seedProfile(t, db, "manager@test", models.RoleManager, models.StatusApproved)
	staff := seedProfile(t, db, "staff@test", models.RoleStaff, models.StatusApproved)
	project := seedProject(t, db, "Harbor", admin.ID)

	for i := 0; i < 3; i++ {
		photo := seedPhoto(t, db, project.ID, staff.ID)
		if err := svc.FanOutPhotoUploaded(ctx, &PhotoUploadedTask{PhotoID: photo.ID, SiteID: project.ID, UploadedBy: staff.ID}); err != nil {
			t.Fatalf("FanOutPhotoUploaded() error = %v", err)
		}
	}

	feed, err := svc.Feed(ctx, manager)
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if len(feed.Notifications) != 3 || feed.UnreadCount != 3 {
		t.Fatalf("feed = %d items, %d unread, expected 3/3", len(feed.Notifications), feed.UnreadCount)
	}
	first := feed.Notifications[0]
	if first.Sites == nil || first.Sites.Name != "Harbor" {
		t.Errorf("Sites = %+v, expected Harbor", first.Sites)
	}
	if first.Uploader == nil || first.Uploader.Email != "staff@test" {
		t.Errorf("Uploader = %+v, expected staff@test", first.Uploader)
	}

	// staff never receive a feed
	staffFeed, err := svc.Feed(ctx, staff)
	if err != nil {
		t.Fatalf("Feed(staff) error = %v", err)
	}
	if len(staffFeed.Notifications) != 0 || staffFeed.UnreadCount != 0 {
		t.Errorf("staff feed = %+v, expected empty", staffFeed)
	}

	// marking one decrements by exactly one
	if err := svc.MarkRead(ctx, manager.ID, first.ID); err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	if n, _ := svc.UnreadCount(ctx, manager.ID); n != 2 {
		t.Errorf("unread after MarkRead = %d, expected 2", n)
	}
	var marked models.Notification
	db.Where("id = ?", first.ID).First(&marked)
	if marked.ReadAt == nil {
		t.Fatal("read_at not stamped")
	}
	readAt := *marked.ReadAt

	// idempotent for an already read row
	if err := svc.MarkRead(ctx, manager.ID, first.ID); err != nil {
		t.Fatalf("repeat MarkRead() error = %v", err)
	}

	// another user's notification looks missing
	err = svc.MarkRead(ctx, admin.ID, first.ID)
	expectAppError(t, err, http.StatusNotFound)

	changed, err := svc.MarkAllRead(ctx, manager.ID)
	if err != nil {
		t.Fatalf("MarkAllRead() error = %v", err)
	}
	if changed != 2 {
		t.Errorf("MarkAllRead() changed %d, expected 2", changed)
	}
	if n, _ := svc.UnreadCount(ctx, manager.ID); n != 0 {
		t.Errorf("unread after MarkAllRead = %d, expected 0", n)
	}

	db.Where("id = ?", first.ID).First(&marked)
	if marked.ReadAt == nil || !marked.ReadAt.Equal(readAt) {
		t.Errorf("read_at changed from %v to %v", readAt, marked.ReadAt)
	}

	// admin's own rows were untouched
	if n, _ := svc.UnreadCount(ctx, admin.ID); n != 3 {
		t.Errorf("admin unread = %d, expected 3", n)
	}
}

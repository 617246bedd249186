package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/buildvault/backend/internal/models"
)

func TestProjectService_CreateUpdate(t *testing.T) {
	db := newTestDB(t)
	projects := NewProjectService(db, NewAccessService(db), newMemStore())
	ctx := context.Background()

	admin := seedProfile(t, db, "admin@test", models.RoleAdmin, models.StatusApproved)

	_, err := projects.Create(ctx, admin.ID, &CreateProjectRequest{Name: "   "})
	expectAppError(t, err, http.StatusBadRequest)

	desc := " riverside "
	project, err := projects.Create(ctx, admin.ID, &CreateProjectRequest{Name: " Pier 4 ", Description: &desc})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if project.Name != "Pier 4" || project.CreatedBy != admin.ID {
		t.Errorf("project = %+v", project)
	}
	if project.Description == nil || *project.Description != "riverside" {
		t.Errorf("Description = %v", project.Description)
	}

	blank := ""
	address := "1 Dock Rd"
	updated, err := projects.Update(ctx, project.ID, &UpdateProjectRequest{Description: &blank, Address: &address})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Name != "Pier 4" {
		t.Errorf("Name = %q, expected unchanged", updated.Name)
	}
	if updated.Description != nil {
		t.Errorf("Description = %v, expected cleared", *updated.Description)
	}
	if updated.Address == nil || *updated.Address != address {
		t.Errorf("Address = %v", updated.Address)
	}

	_, err = projects.Update(ctx, "missing", &UpdateProjectRequest{Address: &address})
	expectAppError(t, err, http.StatusNotFound)
}

func TestProjectService_GetChecksAccess(t *testing.T) {
	db := newTestDB(t)
	projects := NewProjectService(db, NewAccessService(db), newMemStore())
	ctx := context.Background()

	admin := seedProfile(t, db, "admin@test", models.RoleAdmin, models.StatusApproved)
	staff := seedProfile(t, db, "staff@test", models.RoleStaff, models.StatusApproved)
	project := seedProject(t, db, "Pier", admin.ID)

	_, err := projects.Get(ctx, staff, project.ID)
	expectAppError(t, err, http.StatusForbidden)

	grant(t, db, staff.ID, project.ID)
	if _, err := projects.Get(ctx, staff, project.ID); err != nil {
		t.Errorf("Get() after grant error = %v", err)
	}

	_, err = projects.Get(ctx, admin, "missing")
	expectAppError(t, err, http.StatusNotFound)
}

func TestProjectService_DeleteCascades(t *testing.T) {
	db := newTestDB(t)
	store := newMemStore()
	projects := NewProjectService(db, NewAccessService(db), store)
	ctx := context.Background()

	admin := seedProfile(t, db, "admin@test", models.RoleAdmin, models.StatusApproved)
	staff := seedProfile(t, db, "staff@test", models.RoleStaff, models.StatusApproved)
	project := seedProject(t, db, "Pier", admin.ID)
	other := seedProject(t, db, "Other", admin.ID)
	grant(t, db, staff.ID, project.ID, other.ID)
	seedPhoto(t, db, project.ID, staff.ID)
	seedPhoto(t, db, project.ID, staff.ID)
	kept := seedPhoto(t, db, other.ID, staff.ID)

	if err := projects.Delete(ctx, project.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if len(store.removed) != 2 {
		t.Errorf("removed blobs = %d, expected 2", len(store.removed))
	}

	var photos, grants int64
	db.Model(&models.Photo{}).Where("site_id = ?", project.ID).Count(&photos)
	db.Model(&models.ProjectAccessGrant{}).Where("site_id = ?", project.ID).Count(&grants)
	if photos != 0 || grants != 0 {
		t.Errorf("leftover photos=%d grants=%d", photos, grants)
	}

	var survivor models.Photo
	if err := db.Where("id = ?", kept.ID).First(&survivor).Error; err != nil {
		t.Errorf("photo in another project was removed: %v", err)
	}

	err := projects.Delete(ctx, project.ID)
	expectAppError(t, err, http.StatusNotFound)
}

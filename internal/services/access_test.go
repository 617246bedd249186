package services

import (
	"context"
	"net/http"
	"reflect"
	"sort"
	"testing"

	"github.com/buildvault/backend/internal/models"
)

func projectIDs(projects []models.Project) []string {
	ids := make([]string, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}
	sort.Strings(ids)
	return ids
}

func sorted(ids ...string) []string {
	out := append([]string{}, ids...)
	sort.Strings(out)
	return out
}

func TestAccessService_VisibleProjects(t *testing.T) {
	db := newTestDB(t)
	access := NewAccessService(db)
	ctx := context.Background()

	admin := seedProfile(t, db, "admin@test", models.RoleAdmin, models.StatusApproved)
	manager := seedProfile(t, db, "manager@test", models.RoleManager, models.StatusApproved)
	staff := seedProfile(t, db, "staff@test", models.RoleStaff, models.StatusApproved)
	loner := seedProfile(t, db, "loner@test", models.RoleStaff, models.StatusApproved)

	p1 := seedProject(t, db, "Tower", admin.ID)
	p2 := seedProject(t, db, "Bridge", admin.ID)
	p3 := seedProject(t, db, "Depot", admin.ID)

	grant(t, db, staff.ID, p1.ID, p3.ID)
	// grants on a manager are ignored for visibility
	grant(t, db, manager.ID, p1.ID)

	all := sorted(p1.ID, p2.ID, p3.ID)
	tests := []struct {
		name   string
		viewer *models.Profile
		want   []string
	}{
		{"admin sees all without grants", admin, all},
		{"manager sees all", manager, all},
		{"staff sees exactly its grants", staff, sorted(p1.ID, p3.ID)},
		{"staff without grants sees nothing", loner, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			projects, err := access.VisibleProjects(ctx, tt.viewer)
			if err != nil {
				t.Fatalf("VisibleProjects() error = %v", err)
			}
			if got := projectIDs(projects); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("VisibleProjects() = %v, expected %v", got, tt.want)
			}
			for _, id := range all {
				ok, err := access.CanView(ctx, tt.viewer, id)
				if err != nil {
					t.Fatalf("CanView() error = %v", err)
				}
				want := false
				for _, w := range tt.want {
					if w == id {
						want = true
					}
				}
				if ok != want {
					t.Errorf("CanView(%s) = %v, expected %v", id, ok, want)
				}
			}
		})
	}
}

func TestAccessService_ReplaceGrants(t *testing.T) {
	db := newTestDB(t)
	access := NewAccessService(db)
	ctx := context.Background()

	admin := seedProfile(t, db, "admin@test", models.RoleAdmin, models.StatusApproved)
	staff := seedProfile(t, db, "staff@test", models.RoleStaff, models.StatusApproved)
	p1 := seedProject(t, db, "One", admin.ID)
	p2 := seedProject(t, db, "Two", admin.ID)

	granted := func() []string {
		ids, err := access.GrantedProjectIDs(ctx, staff.ID)
		if err != nil {
			t.Fatalf("GrantedProjectIDs() error = %v", err)
		}
		sort.Strings(ids)
		return ids
	}

	if err := access.ReplaceGrants(ctx, staff.ID, models.RoleStaff, []string{p1.ID, p2.ID, p1.ID}, admin.ID); err != nil {
		t.Fatalf("ReplaceGrants() error = %v", err)
	}
	if got := granted(); !reflect.DeepEqual(got, sorted(p1.ID, p2.ID)) {
		t.Errorf("grants = %v, expected deduplicated pair", got)
	}

	// same input again leaves the same set
	if err := access.ReplaceGrants(ctx, staff.ID, models.RoleStaff, []string{p2.ID, p1.ID}, admin.ID); err != nil {
		t.Fatalf("repeat ReplaceGrants() error = %v", err)
	}
	if got := granted(); !reflect.DeepEqual(got, sorted(p1.ID, p2.ID)) {
		t.Errorf("grants after repeat = %v", got)
	}

	// an unknown id fails and the previous set survives
	err := access.ReplaceGrants(ctx, staff.ID, models.RoleStaff, []string{p1.ID, "missing"}, admin.ID)
	expectAppError(t, err, http.StatusBadRequest)
	if got := granted(); !reflect.DeepEqual(got, sorted(p1.ID, p2.ID)) {
		t.Errorf("grants after failed replace = %v, expected unchanged", got)
	}

	// an empty id is an unknown project, not a no-op
	err = access.ReplaceGrants(ctx, staff.ID, models.RoleStaff, []string{""}, admin.ID)
	expectAppError(t, err, http.StatusBadRequest)
	if got := granted(); !reflect.DeepEqual(got, sorted(p1.ID, p2.ID)) {
		t.Errorf("grants after empty id = %v, expected unchanged", got)
	}

	// a non-staff effective role clears everything
	if err := access.ReplaceGrants(ctx, staff.ID, models.RoleManager, []string{p1.ID}, admin.ID); err != nil {
		t.Fatalf("ReplaceGrants(manager) error = %v", err)
	}
	if got := granted(); len(got) != 0 {
		t.Errorf("grants for manager = %v, expected none", got)
	}
}

func TestDedupeIDs(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{nil, []string{}},
		{[]string{"a", "b", "a", "c", "b"}, []string{"a", "b", "c"}},
		{[]string{"", "a", ""}, []string{"", "a"}},
	}
	for _, tt := range tests {
		if got := DedupeIDs(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("DedupeIDs(%v) = %v, expected %v", tt.in, got, tt.want)
		}
	}
}

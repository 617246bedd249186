package models

import "time"

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleStaff:
		return true
	}
	return false
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Profile holds a user's role and approval state. ID equals the User ID.
// ApprovedBy/ApprovedAt record the last administrative status decision,
// whichever direction it went.
type Profile struct {
	ID         string     `gorm:"primaryKey;size:36" json:"id"`
	Email      string     `gorm:"size:255;not null" json:"email"`
	FullName   *string    `gorm:"size:255" json:"full_name"`
	Role       Role       `gorm:"size:20;not null;default:staff;index" json:"role"`
	Status     Status     `gorm:"size:20;not null;default:pending;index" json:"status"`
	ApprovedBy *string    `gorm:"size:36" json:"approved_by"`
	ApprovedAt *time.Time `json:"approved_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (Profile) TableName() string { return "user_profiles" }

func (p *Profile) IsApproved() bool {
	return p.Status == StatusApproved
}

// IsAdminOrManager ignores status; callers combine it with IsApproved.
func (p *Profile) IsAdminOrManager() bool {
	return p.Role == RoleAdmin || p.Role == RoleManager
}

// ProfileSummary is the uploader shape embedded in notification listings.
type ProfileSummary struct {
	ID       string  `json:"id"`
	FullName *string `json:"full_name"`
	Email    string  `json:"email"`
}

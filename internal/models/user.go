package models

import (
	"time"

	"gorm.io/datatypes"
)

// Role is the privilege level a user acts with. Admin is not a role: it is a
// capability held in the role_grants table.
type Role string

const (
	RoleResident        Role = "resident"
	RoleDesigner        Role = "designer"
	RoleContractor      Role = "contractor"
	RoleCommunityWorker Role = "communityWorker"
	RoleGovernment      Role = "government"
)

// CertificationStatus tracks a role-elevation request
type CertificationStatus string

const (
	CertificationPending  CertificationStatus = "pending"
	CertificationApproved CertificationStatus = "approved"
	CertificationRejected CertificationStatus = "rejected"
	CertificationRemoved  CertificationStatus = "removed"
)

// CertifiableRoles lists the roles a resident may apply for, with the info
// fields each application must carry.
var CertifiableRoles = map[Role][]string{
	RoleDesigner:        {"realName", "organization", "portfolio"},
	RoleContractor:      {"companyName", "licenseNumber", "contactPhone"},
	RoleCommunityWorker: {"realName", "community", "workId"},
}

// Badges shown next to a certified user's name
var Badges = map[Role]string{
	RoleDesigner:        "certified-designer",
	RoleContractor:      "certified-contractor",
	RoleCommunityWorker: "community-worker",
}

// CertificationApplication is the single embedded application slot. An empty
// Status means no application was ever filed.
type CertificationApplication struct {
	Type         Role                `json:"type,omitempty" gorm:"size:30"`
	Info         datatypes.JSONMap   `json:"info,omitempty"`
	Status       CertificationStatus `json:"status,omitempty" gorm:"size:20;index"`
	ApplyTime    *time.Time          `json:"apply_time,omitempty"`
	ReviewTime   *time.Time          `json:"review_time,omitempty"`
	ReviewerID   *uint               `json:"reviewer_id,omitempty"`
	RejectReason string              `json:"reject_reason,omitempty"`
}

// Open reports whether a new application may be filed
func (a CertificationApplication) Open() bool {
	return a.Status != CertificationPending
}

// UserStats are derived counters; the follows and likes tables are the truth
type UserStats struct {
	FollowingCount int64 `json:"following_count" gorm:"not null;default:0"`
	FollowersCount int64 `json:"followers_count" gorm:"not null;default:0"`
	LikesCount     int64 `json:"likes_count" gorm:"not null;default:0"`
}

// StatField names one counter column
type StatField string

const (
	StatFollowing StatField = "following_count"
	StatFollowers StatField = "followers_count"
	StatLikes     StatField = "likes_count"
)

type User struct {
	ID                  uint                     `json:"id" gorm:"primaryKey"`
	FirebaseUID         string                   `json:"-" gorm:"uniqueIndex;size:128"` // opaque identity from the identity provider
	DisplayName         string                   `json:"display_name"`
	AvatarURL           string                   `json:"avatar_url,omitempty"`
	Role                Role                     `json:"role" gorm:"size:30;default:'resident'"`
	Badge               string                   `json:"badge,omitempty"`
	Certification       CertificationApplication `json:"certification" gorm:"embedded;embeddedPrefix:cert_"`
	ProfessionalProfile datatypes.JSONMap        `json:"professional_profile,omitempty"`
	Stats               UserStats                `json:"stats" gorm:"embedded"`
	CreatedAt           time.Time                `json:"created_at"`
	UpdatedAt           time.Time                `json:"updated_at"`
}

// UserCompact is the public projection attached to notifications and comments
type UserCompact struct {
	ID          uint   `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Role        Role   `json:"role"`
	Badge       string `json:"badge,omitempty"`
}

func (u *User) ToCompact() UserCompact {
	return UserCompact{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
		Role:        u.Role,
		Badge:       u.Badge,
	}
}

// UpdateProfileRequest defines the request body for editing a profile
type UpdateProfileRequest struct {
	DisplayName string `json:"display_name,omitempty" validate:"omitempty,min=1,max=50"`
	AvatarURL   string `json:"avatar_url,omitempty" validate:"omitempty,url"`
}

// ApplyCertificationRequest defines the request body for a role-elevation request
type ApplyCertificationRequest struct {
	Type Role              `json:"type" validate:"required,oneof=designer contractor communityWorker"`
	Info map[string]string `json:"info" validate:"required"`
}

// ReviewCertificationRequest defines the admin decision payload
type ReviewCertificationRequest struct {
	Decision     CertificationStatus `json:"decision" validate:"required,oneof=approved rejected"`
	RejectReason string              `json:"reject_reason,omitempty" validate:"max=500"`
}

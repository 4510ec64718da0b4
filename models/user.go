package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Roles understood by the admin area. Checks are set membership, not a hierarchy.
const (
	RoleAdmin     = "administrador"
	RolePublisher = "publicador"
	RoleAnnouncer = "locutor"
)

// AllRoles lists every assignable role in display order.
var AllRoles = []string{RoleAdmin, RolePublisher, RoleAnnouncer}

// ValidRole reports whether role is one of AllRoles.
func ValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// User represents a portal account. Identity normally comes from an OAuth provider;
// PasswordHash is only set for accounts that opted into credentials login.
type User struct {
	ID           uint                       `gorm:"primaryKey" json:"id"`
	Name         string                     `gorm:"size:128" json:"name"`
	Email        string                     `gorm:"size:255;index" json:"email"`
	Image        string                     `gorm:"size:512" json:"image"`
	Roles        datatypes.JSONSlice[string] `json:"roles"`
	IsActive     bool                       `gorm:"not null;default:true" json:"is_active"`
	Provider     string                     `gorm:"size:32" json:"provider"`
	ProviderID   string                     `gorm:"size:255;index" json:"-"`
	PasswordHash string                     `gorm:"size:255" json:"-"`
	CreatedAt    time.Time                  `json:"created_at"`
	UpdatedAt    time.Time                  `json:"updated_at"`
}

// BeforeCreate hook ensures timestamps are set and roles are never stored as null.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.Roles == nil {
		u.Roles = datatypes.JSONSlice[string]{}
	}
	return nil
}

// BeforeUpdate ensures the UpdatedAt timestamp is refreshed.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}

// HasRole reports whether the user currently holds role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// ToggleRole adds role when absent and removes it when present.
func (u *User) ToggleRole(role string) {
	next := make(datatypes.JSONSlice[string], 0, len(u.Roles)+1)
	found := false
	for _, r := range u.Roles {
		if r == role {
			found = true
			continue
		}
		next = append(next, r)
	}
	if !found {
		next = append(next, role)
	}
	u.Roles = next
}

// Principal returns the authorization view of the user.
func (u *User) Principal() Principal {
	return Principal{UserID: u.ID, Roles: append([]string(nil), u.Roles...)}
}

package models

import "time"

// Vault represents a shared, invite-gated collection of memories.
type Vault struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name        string  `gorm:"not null" json:"name"`
	Description string  `json:"description"`
	ThemeColor  string  `gorm:"default:'#3b82f6'" json:"theme_color"`
	CoverImage  *string `json:"cover_image,omitempty"`
	InviteCode  string  `gorm:"uniqueIndex;not null" json:"invite_code"`

	// Relations
	Members    []VaultMember   `gorm:"foreignKey:VaultID;constraint:OnDelete:CASCADE" json:"members,omitempty"`
	Media      []Media         `gorm:"foreignKey:VaultID;constraint:OnDelete:CASCADE" json:"media,omitempty"`
	Notes      []Note          `gorm:"foreignKey:VaultID;constraint:OnDelete:CASCADE" json:"notes,omitempty"`
	Activities []VaultActivity `gorm:"foreignKey:VaultID;constraint:OnDelete:CASCADE" json:"activities,omitempty"`
}

// Role is the membership role within a vault.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleMember   Role = "MEMBER"
	RoleReadOnly Role = "READ_ONLY"
)

// ValidRole reports whether s is one of the three membership roles.
func ValidRole(s string) bool {
	switch Role(s) {
	case RoleAdmin, RoleMember, RoleReadOnly:
		return true
	}
	return false
}

// VaultMember joins a user to a vault with a role. A user belongs to a
// vault at most once, enforced by the composite unique index.
type VaultMember struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	VaultID uint `gorm:"not null;uniqueIndex:idx_vault_member" json:"vault_id"`
	UserID  uint `gorm:"not null;uniqueIndex:idx_vault_member" json:"user_id"`
	Role    Role `gorm:"default:'MEMBER'" json:"role"`

	// Relations
	Vault Vault `json:"-"`
	User  User  `json:"user,omitempty"`
}

package models

import "time"

// User represents a registered account.
//
// Models declare their ID/timestamp columns explicitly instead of embedding
// gorm.Model: memberships and media are hard-deleted (leave, purge), and a
// lingering soft-delete column would collide with the composite unique
// indexes below when a user rejoins a vault or re-votes.
type User struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Email        string  `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string  `gorm:"not null" json:"-"`
	Name         string  `json:"name"`
	AvatarURL    *string `json:"avatar_url,omitempty"`
	DarkMode     bool    `gorm:"default:false" json:"dark_mode"`

	// Relations
	Memberships []VaultMember `gorm:"foreignKey:UserID" json:"memberships,omitempty"`
}

// DisplayName is used in activity log entries.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

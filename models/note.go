package models

import "time"

// Note is a written memory owned by a vault. Private notes are visible
// only to their author until they stop being private (typically via a
// time-capsule unlock).
type Note struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	VaultID  uint `gorm:"not null;index" json:"vault_id"`
	AuthorID uint `gorm:"not null;index" json:"author_id"`

	Title     *string `json:"title,omitempty"`
	Content   string  `gorm:"type:text;not null" json:"content"`
	IsPrivate bool    `gorm:"default:false" json:"is_private"`

	// Time-capsule state
	IsLocked bool       `gorm:"default:false" json:"is_locked"`
	UnlockAt *time.Time `json:"unlock_at,omitempty"`

	// Relations
	Vault  Vault `json:"-"`
	Author User  `json:"author,omitempty"`
}

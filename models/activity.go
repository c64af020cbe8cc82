package models

import (
	"time"

	"gorm.io/gorm"
)

// Activity action tags.
const (
	ActivityMediaDeleted      = "MEDIA_DELETED"
	ActivityMemberLeft        = "MEMBER_LEFT"
	ActivityMemberRoleChanged = "MEMBER_ROLE_CHANGED"
	ActivityMemberRemoved     = "MEMBER_REMOVED"
	ActivityVaultUpdated      = "VAULT_UPDATED"
)

// VaultActivity is one append-only audit record. Rows are never updated
// or deleted; they are read newest first, capped by the caller.
type VaultActivity struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	VaultID uint   `gorm:"not null;index" json:"vault_id"`
	UserID  uint   `gorm:"not null" json:"user_id"`
	Action  string `gorm:"not null" json:"action"`
	Details string `gorm:"type:text" json:"details"`

	// Relations
	User User `json:"user,omitempty"`
}

// RecordActivity appends an audit record for a state-changing action.
// The db handle may be a transaction so the record commits or rolls back
// with the mutation it describes.
func RecordActivity(db *gorm.DB, vaultID, userID uint, action, details string) error {
	return db.Create(&VaultActivity{
		VaultID: vaultID,
		UserID:  userID,
		Action:  action,
		Details: details,
	}).Error
}

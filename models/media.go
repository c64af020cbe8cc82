package models

import "time"

// MediaType classifies an uploaded file.
type MediaType string

const (
	MediaImage MediaType = "IMAGE"
	MediaAudio MediaType = "AUDIO"
	MediaVideo MediaType = "VIDEO"
)

// Media is a photo, audio clip or video owned by a vault.
//
// DeletedAt is a plain nullable column, not gorm's soft-delete type: trash
// is an application state with its own listing, restore and purge rules,
// so queries must see trashed rows explicitly.
type Media struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	VaultID    uint `gorm:"not null;index" json:"vault_id"`
	UploaderID uint `gorm:"not null;index" json:"uploader_id"`

	FileURL  string    `gorm:"not null" json:"file_url"`
	FileName string    `gorm:"not null" json:"file_name"`
	FileSize int64     `gorm:"not null" json:"file_size"`
	Type     MediaType `gorm:"not null" json:"type"`

	Caption   *string `json:"caption,omitempty"`
	AICaption *string `json:"ai_caption,omitempty"`

	// Moderation state
	Approved  bool       `gorm:"default:false" json:"approved"`
	DeletedAt *time.Time `gorm:"index" json:"deleted_at,omitempty"`

	// Time-capsule state, orthogonal to moderation
	IsLocked bool       `gorm:"default:false" json:"is_locked"`
	UnlockAt *time.Time `json:"unlock_at,omitempty"`

	// Relations
	Vault    Vault     `json:"-"`
	Uploader User      `json:"uploader,omitempty"`
	Votes    []Vote    `gorm:"foreignKey:MediaID;constraint:OnDelete:CASCADE" json:"votes,omitempty"`
	Comments []Comment `gorm:"foreignKey:MediaID;constraint:OnDelete:CASCADE" json:"comments,omitempty"`
}

// IsTrashed reports whether the media sits in the reversible trash state.
func (m *Media) IsTrashed() bool {
	return m.DeletedAt != nil
}

// MajorityReached reports whether votesForDeletion is a strict majority of
// the vault's current member count. A tie is not a majority, and the
// threshold is recomputed against the membership as it stands at vote
// time, so earlier votes keep counting if the vault shrinks or grows.
func MajorityReached(votesForDeletion, totalMembers int) bool {
	return float64(votesForDeletion) > float64(totalMembers)/2
}

// Vote is one member's request to delete a media item. At most one vote
// per (media, voter) pair exists; a repeat request is a no-op.
type Vote struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	MediaID uint    `gorm:"not null;uniqueIndex:idx_media_voter" json:"media_id"`
	VoterID uint    `gorm:"not null;uniqueIndex:idx_media_voter" json:"voter_id"`
	Value   bool    `gorm:"not null" json:"value"`
	Reason  *string `json:"reason,omitempty"`

	// Relations
	Voter User `json:"voter,omitempty"`
}

// Comment is free text attached to a media item. Multiple comments per
// user per media are allowed.
type Comment struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	MediaID  uint   `gorm:"not null;index" json:"media_id"`
	AuthorID uint   `gorm:"not null;index" json:"author_id"`
	Content  string `gorm:"type:text;not null" json:"content"`

	// Relations
	Author User `json:"author,omitempty"`
}

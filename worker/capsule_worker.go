package worker

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"legacy/config"
	"legacy/models"
	"legacy/utils"
)

// CapsuleWorker runs the background sweeps: unlocking due time capsules
// and purging trashed media past the retention window. Both sweeps are
// idempotent, so overlapping runs or restarts are harmless.
type CapsuleWorker struct {
	DB     *gorm.DB
	Store  utils.FileStore
	Logger *log.Logger
}

func NewCapsuleWorker(db *gorm.DB, store utils.FileStore, logger *log.Logger) *CapsuleWorker {
	return &CapsuleWorker{
		DB:     db,
		Store:  store,
		Logger: logger,
	}
}

func (cw *CapsuleWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	time.Sleep(10 * time.Second)

	cw.Logger.Println("Capsule worker started")

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cw.Logger.Println("Capsule worker shutting down...")
			return
		case <-ticker.C:
			if err := cw.UnlockDueCapsules(); err != nil {
				cw.Logger.Printf("Error unlocking capsules: %v", err)
			}
			if err := cw.PurgeExpiredTrash(); err != nil {
				cw.Logger.Printf("Error purging trash: %v", err)
			}
		}
	}
}

// UnlockDueCapsules bulk-unlocks every capsule whose unlock time has
// passed, regardless of owner. Media becomes approved and visible; notes
// stop being private.
func (cw *CapsuleWorker) UnlockDueCapsules() error {
	now := time.Now()

	result := cw.DB.Model(&models.Media{}).
		Where("is_locked = ? AND unlock_at IS NOT NULL AND unlock_at <= ?", true, now).
		Updates(map[string]interface{}{
			"is_locked": false,
			"approved":  true,
			"unlock_at": nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		cw.Logger.Printf("Unlocked %d media capsules", result.RowsAffected)
	}

	result = cw.DB.Model(&models.Note{}).
		Where("is_locked = ? AND unlock_at IS NOT NULL AND unlock_at <= ?", true, now).
		Updates(map[string]interface{}{
			"is_locked":  false,
			"is_private": false,
			"unlock_at":  nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		cw.Logger.Printf("Unlocked %d note capsules", result.RowsAffected)
	}

	return nil
}

// PurgeExpiredTrash permanently removes media trashed longer than the
// retention window. Backing files are deleted best effort; a storage
// failure never keeps the row alive.
func (cw *CapsuleWorker) PurgeExpiredTrash() error {
	cutoff := time.Now().Add(-config.AppConfig.TrashRetention)

	var expired []models.Media
	if err := cw.DB.
		Where("deleted_at IS NOT NULL AND deleted_at <= ?", cutoff).
		Find(&expired).Error; err != nil {
		return err
	}

	for _, media := range expired {
		if cw.Store != nil {
			key := utils.StorageKeyFromURL(media.VaultID, media.FileURL)
			if err := cw.Store.Delete(context.Background(), key); err != nil {
				cw.Logger.Printf("Failed to delete file for media %d: %v", media.ID, err)
			}
		}

		err := cw.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("media_id = ?", media.ID).Delete(&models.Vote{}).Error; err != nil {
				return err
			}
			if err := tx.Where("media_id = ?", media.ID).Delete(&models.Comment{}).Error; err != nil {
				return err
			}
			return tx.Delete(&models.Media{}, media.ID).Error
		})
		if err != nil {
			cw.Logger.Printf("Failed to purge media %d: %v", media.ID, err)
			continue
		}
	}

	if len(expired) > 0 {
		cw.Logger.Printf("Purged %d expired trash items", len(expired))
	}
	return nil
}

package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"legacy/models"
	"legacy/utils"
)

// MaxUploadSize caps a single media file at 50MB.
const MaxUploadSize = 50 * 1024 * 1024

type MediaController struct {
	DB        *gorm.DB
	Logger    *log.Logger
	Store     utils.FileStore
	Captioner utils.CaptionGenerator
}

func NewMediaController(db *gorm.DB, logger *log.Logger, store utils.FileStore, captioner utils.CaptionGenerator) *MediaController {
	return &MediaController{DB: db, Logger: logger, Store: store, Captioner: captioner}
}

type UpdateMediaRequest struct {
	Action  string `json:"action" validate:"required,oneof=approve restore updateCaption"`
	Caption string `json:"caption"`
}

type CreateCommentRequest struct {
	Content string `json:"content" validate:"required,max=1000"`
}

type DeleteMediaRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// mediaTypeFromContentType maps a MIME type to a media kind. Anything
// outside the three supported families is rejected.
func mediaTypeFromContentType(contentType string) (models.MediaType, bool) {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.MediaImage, true
	case strings.HasPrefix(contentType, "audio/"):
		return models.MediaAudio, true
	case strings.HasPrefix(contentType, "video/"):
		return models.MediaVideo, true
	default:
		return "", false
	}
}

// findVaultMedia loads a media row scoped to its vault.
func findVaultMedia(db *gorm.DB, vaultID, mediaID uint) (*models.Media, error) {
	var media models.Media
	err := db.Where("vault_id = ?", vaultID).First(&media, mediaID).Error
	if err != nil {
		return nil, err
	}
	return &media, nil
}

func (mc *MediaController) UploadMedia(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	vaultID := utils.ParseUint(c.Params("id"))

	member, err := findMembership(mc.DB, vaultID, user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to check membership",
		})
	}
	if member == nil || !models.RoleCan(member.Role, models.ActionUploadContent) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Forbidden",
		})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "File is required",
		})
	}
	if fileHeader.Size > MaxUploadSize {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "File exceeds the 50MB limit",
		})
	}

	contentType := fileHeader.Header.Get("Content-Type")
	mediaType, ok := mediaTypeFromContentType(contentType)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unsupported file type",
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read file",
		})
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadSize))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read file",
		})
	}

	key := utils.MediaStorageKey(vaultID, fileHeader.Filename)
	fileURL, err := mc.Store.Upload(c.Context(), key, contentType, data)
	if err != nil {
		utils.LogError("storage_upload_failed", err, map[string]interface{}{
			"vault_id": vaultID,
			"user_id":  user.ID,
		})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store file",
		})
	}

	media := models.Media{
		VaultID:    vaultID,
		UploaderID: user.ID,
		FileURL:    fileURL,
		FileName:   fileHeader.Filename,
		FileSize:   fileHeader.Size,
		Type:       mediaType,
		// Admin uploads skip moderation; everyone else waits for approval.
		Approved: member.Role == models.RoleAdmin,
	}

	if caption := c.FormValue("caption"); caption != "" {
		media.Caption = utils.Pointer(caption)
	}

	// Captioning is best effort. A provider failure never fails the upload.
	if mc.Captioner != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if caption, err := mc.Captioner.Caption(ctx, fileURL, mediaType); err == nil {
			media.AICaption = utils.Pointer(caption)
		} else {
			utils.LogEvent("caption_skipped", map[string]interface{}{
				"vault_id": vaultID,
				"reason":   err.Error(),
			})
		}
	}

	if err := mc.DB.Create(&media).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save media",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"media": media})
}

// UpdateMedia dispatches the approve, restore and updateCaption actions.
func (mc *MediaController) UpdateMedia(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	vaultID := utils.ParseUint(c.Params("id"))
	mediaID := utils.ParseUint(c.Params("mediaId"))

	member, err := findMembership(mc.DB, vaultID, user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to check membership",
		})
	}
	if member == nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Forbidden",
		})
	}

	var req UpdateMediaRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	media, err := findVaultMedia(mc.DB, vaultID, mediaID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Media not found",
		})
	}

	isUploader := media.UploaderID == user.ID

	switch req.Action {
	case "approve":
		if !models.RoleCan(member.Role, models.ActionApproveMedia) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Forbidden",
			})
		}
		if media.IsLocked {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Cannot approve a locked capsule",
			})
		}
		if media.IsTrashed() {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Cannot approve trashed media",
			})
		}
		err = mc.DB.Model(media).Update("approved", true).Error

	case "restore":
		if !isUploader && !models.RoleCan(member.Role, models.ActionModerateContent) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Forbidden",
			})
		}
		if !media.IsTrashed() {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "Media is not in trash",
			})
		}
		// Only the trash marker is cleared; captions, comments and the
		// deletion votes all survive the round trip untouched.
		err = mc.DB.Model(media).Update("deleted_at", nil).Error

	case "updateCaption":
		if !isUploader && !models.RoleCan(member.Role, models.ActionModerateContent) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Forbidden",
			})
		}
		err = mc.DB.Model(media).Update("caption", req.Caption).Error
	}

	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update media",
		})
	}

	if err := mc.DB.First(media, media.ID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load media",
		})
	}
	return c.JSON(fiber.Map{"media": media})
}

// DeleteMedia moves media to trash. The uploader or an admin trashes it
// directly; anyone else casts a deletion vote, and the media is trashed
// once a strict majority of current members has voted.
func (mc *MediaController) DeleteMedia(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	vaultID := utils.ParseUint(c.Params("id"))
	mediaID := utils.ParseUint(c.Params("mediaId"))

	member, err := findMembership(mc.DB, vaultID, user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to check membership",
		})
	}
	if member == nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Forbidden",
		})
	}

	var req DeleteMediaRequest
	// A body is optional for delete requests.
	_ = c.BodyParser(&req)
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var (
		trashed   bool
		voteCount int64
		required  int64
	)

	err = mc.DB.Transaction(func(tx *gorm.DB) error {
		media, err := findVaultMedia(tx, vaultID, mediaID)
		if err != nil {
			return err
		}
		if media.IsTrashed() {
			return errAlreadyTrashed
		}

		now := time.Now()

		// Uploader and admins skip the vote entirely.
		if media.UploaderID == user.ID || member.Role == models.RoleAdmin {
			trashed = true
			return tx.Model(media).Update("deleted_at", &now).Error
		}

		vote := models.Vote{
			MediaID: media.ID,
			VoterID: user.ID,
			Value:   true,
		}
		if req.Reason != "" {
			vote.Reason = utils.Pointer(req.Reason)
		}
		// The unique index makes a repeat vote a no-op.
		if err := tx.Where("media_id = ? AND voter_id = ?", media.ID, user.ID).
			FirstOrCreate(&vote).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Vote{}).
			Where("media_id = ? AND value = ?", media.ID, true).
			Count(&voteCount).Error; err != nil {
			return err
		}

		var totalMembers int64
		if err := tx.Model(&models.VaultMember{}).
			Where("vault_id = ?", vaultID).
			Count(&totalMembers).Error; err != nil {
			return err
		}
		required = totalMembers/2 + 1

		if models.MajorityReached(int(voteCount), int(totalMembers)) {
			trashed = true
			return tx.Model(media).Update("deleted_at", &now).Error
		}
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Media not found",
		})
	}
	if errors.Is(err, errAlreadyTrashed) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Media is already in trash",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete media",
		})
	}

	if trashed {
		return c.JSON(fiber.Map{"deleted": true})
	}
	return c.JSON(fiber.Map{
		"deleted":        false,
		"votes":          voteCount,
		"votes_required": required,
	})
}

var errAlreadyTrashed = errors.New("media already trashed")

// PermanentDeleteMedia removes trashed media for good. Only admins may do
// this, and only from the trash. The backing file is removed best effort;
// a storage failure does not keep the row alive.
func (mc *MediaController) PermanentDeleteMedia(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	vaultID := utils.ParseUint(c.Params("id"))
	mediaID := utils.ParseUint(c.Params("mediaId"))

	member, err := findMembership(mc.DB, vaultID, user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to check membership",
		})
	}
	if member == nil || !models.RoleCan(member.Role, models.ActionModerateContent) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Forbidden",
		})
	}

	media, err := findVaultMedia(mc.DB, vaultID, mediaID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Media not found",
		})
	}
	if !media.IsTrashed() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Media must be in trash before permanent deletion",
		})
	}

	if err := mc.Store.Delete(c.Context(), utils.StorageKeyFromURL(vaultID, media.FileURL)); err != nil {
		utils.LogError("storage_delete_failed", err, map[string]interface{}{
			"vault_id": vaultID,
			"media_id": media.ID,
		})
	}

	err = mc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("media_id = ?", media.ID).Delete(&models.Vote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("media_id = ?", media.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(media).Error; err != nil {
			return err
		}
		return models.RecordActivity(tx, vaultID, user.ID, models.ActivityMediaDeleted,
			fmt.Sprintf("Permanently deleted %s", media.FileName))
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete media",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

// GetTrash lists the vault's trashed media, newest deletion first.
func (mc *MediaController) GetTrash(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	vaultID := utils.ParseUint(c.Params("id"))

	member, err := findMembership(mc.DB, vaultID, user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to check membership",
		})
	}
	if member == nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Forbidden",
		})
	}

	var media []models.Media
	if err := mc.DB.
		Preload("Uploader").
		Where("vault_id = ? AND deleted_at IS NOT NULL", vaultID).
		Order("deleted_at DESC").
		Find(&media).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch trash",
		})
	}

	return c.JSON(fiber.Map{"media": media})
}

func (mc *MediaController) CreateComment(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	vaultID := utils.ParseUint(c.Params("id"))
	mediaID := utils.ParseUint(c.Params("mediaId"))

	member, err := findMembership(mc.DB, vaultID, user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to check membership",
		})
	}
	if member == nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Forbidden",
		})
	}

	var req CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	media, err := findVaultMedia(mc.DB, vaultID, mediaID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Media not found",
		})
	}
	if media.IsTrashed() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Cannot comment on trashed media",
		})
	}

	comment := models.Comment{
		MediaID:  media.ID,
		AuthorID: user.ID,
		Content:  req.Content,
	}
	if err := mc.DB.Create(&comment).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create comment",
		})
	}

	mc.DB.Preload("Author").First(&comment, comment.ID)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"comment": comment})
}

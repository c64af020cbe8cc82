package controller

import (
	"io"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"legacy/models"
	"legacy/utils"
)

// CapsuleController handles time-capsule creation and unlocking. Capsule
// media stays locked and unapproved until its unlock time; capsule notes
// stay locked and private.
type CapsuleController struct {
	DB     *gorm.DB
	Logger *log.Logger
	Store  utils.FileStore
}

func NewCapsuleController(db *gorm.DB, logger *log.Logger, store utils.FileStore) *CapsuleController {
	return &CapsuleController{DB: db, Logger: logger, Store: store}
}

type CreateCapsuleNoteRequest struct {
	Title    *string `json:"title" validate:"omitempty,max=200"`
	Content  string  `json:"content" validate:"required"`
	UnlockAt string  `json:"unlock_at" validate:"required"`
}

// Capsule uploads take an exact MIME whitelist rather than the prefix
// match regular uploads use, since locked files cannot be previewed or
// moderated before they surface.
var capsuleMimeTypes = map[string]models.MediaType{
	"image/jpeg": models.MediaImage,
	"image/png":  models.MediaImage,
	"image/gif":  models.MediaImage,
	"image/webp": models.MediaImage,
	"video/mp4":  models.MediaVideo,
	"video/webm": models.MediaVideo,
	"audio/mpeg": models.MediaAudio,
	"audio/wav":  models.MediaAudio,
}

// parseUnlockAt validates that the unlock time parses and is in the
// future.
func parseUnlockAt(value string) (time.Time, bool) {
	unlockAt, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false
	}
	if !unlockAt.After(time.Now()) {
		return time.Time{}, false
	}
	return unlockAt, true
}

func (cc *CapsuleController) CreateCapsuleMedia(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	vaultID := utils.ParseUint(c.Params("id"))

	member, err := findMembership(cc.DB, vaultID, user.ID)
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

	unlockAt, ok := parseUnlockAt(c.FormValue("unlock_at"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unlock_at must be a valid future timestamp",
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
	mediaType, ok := capsuleMimeTypes[contentType]
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unsupported file type for a time capsule",
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
	fileURL, err := cc.Store.Upload(c.Context(), key, contentType, data)
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
		Approved:   false,
		IsLocked:   true,
		UnlockAt:   &unlockAt,
	}
	if caption := c.FormValue("caption"); caption != "" {
		media.Caption = utils.Pointer(caption)
	}

	if err := cc.DB.Create(&media).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save capsule",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"media": media})
}

func (cc *CapsuleController) CreateCapsuleNote(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	vaultID := utils.ParseUint(c.Params("id"))

	member, err := findMembership(cc.DB, vaultID, user.ID)
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

	var req CreateCapsuleNoteRequest
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

	unlockAt, ok := parseUnlockAt(req.UnlockAt)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "unlock_at must be a valid future timestamp",
		})
	}

	note := models.Note{
		VaultID:   vaultID,
		AuthorID:  user.ID,
		Title:     req.Title,
		Content:   req.Content,
		IsPrivate: true,
		IsLocked:  true,
		UnlockAt:  &unlockAt,
	}
	if err := cc.DB.Create(&note).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save capsule",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"note": note})
}

// UnlockMedia opens a media capsule. Only the uploader may unlock, and
// only once the unlock time has passed.
func (cc *CapsuleController) UnlockMedia(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	vaultID := utils.ParseUint(c.Params("id"))
	mediaID := utils.ParseUint(c.Params("mediaId"))

	media, err := findVaultMedia(cc.DB, vaultID, mediaID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Capsule not found",
		})
	}

	if media.UploaderID != user.ID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Only the owner can unlock a capsule",
		})
	}
	if !media.IsLocked {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Capsule is already unlocked",
		})
	}
	if media.UnlockAt != nil && media.UnlockAt.After(time.Now()) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Capsule is not yet due",
		})
	}

	err = cc.DB.Model(media).Updates(map[string]interface{}{
		"is_locked": false,
		"approved":  true,
		"unlock_at": nil,
	}).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to unlock capsule",
		})
	}

	cc.DB.First(media, media.ID)
	return c.JSON(fiber.Map{"media": media})
}

// UnlockNote opens a note capsule, making the note public to the vault.
func (cc *CapsuleController) UnlockNote(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	vaultID := utils.ParseUint(c.Params("id"))
	noteID := utils.ParseUint(c.Params("noteId"))

	var note models.Note
	if err := cc.DB.Where("vault_id = ?", vaultID).First(&note, noteID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Capsule not found",
		})
	}

	if note.AuthorID != user.ID {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Only the owner can unlock a capsule",
		})
	}
	if !note.IsLocked {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Capsule is already unlocked",
		})
	}
	if note.UnlockAt != nil && note.UnlockAt.After(time.Now()) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Capsule is not yet due",
		})
	}

	err := cc.DB.Model(&note).Updates(map[string]interface{}{
		"is_locked":  false,
		"is_private": false,
		"unlock_at":  nil,
	}).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to unlock capsule",
		})
	}

	cc.DB.First(&note, note.ID)
	return c.JSON(fiber.Map{"note": note})
}

// GetCapsules lists the caller's own locked capsules in a vault.
func (cc *CapsuleController) GetCapsules(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	vaultID := utils.ParseUint(c.Params("id"))

	member, err := findMembership(cc.DB, vaultID, user.ID)
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
	if err := cc.DB.
		Where("vault_id = ? AND uploader_id = ? AND is_locked = ?", vaultID, user.ID, true).
		Order("unlock_at ASC").
		Find(&media).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch capsules",
		})
	}

	var notes []models.Note
	if err := cc.DB.
		Where("vault_id = ? AND author_id = ? AND is_locked = ?", vaultID, user.ID, true).
		Order("unlock_at ASC").
		Find(&notes).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch capsules",
		})
	}

	return c.JSON(fiber.Map{"media": media, "notes": notes})
}

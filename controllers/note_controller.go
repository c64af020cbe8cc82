package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"legacy/models"
	"legacy/utils"
)

type NoteController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewNoteController(db *gorm.DB, logger *log.Logger) *NoteController {
	return &NoteController{DB: db, Logger: logger}
}

type CreateNoteRequest struct {
	Title     *string `json:"title" validate:"omitempty,max=200"`
	Content   string  `json:"content" validate:"required"`
	IsPrivate bool    `json:"is_private"`
}

func (nc *NoteController) CreateNote(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	vaultID := utils.ParseUint(c.Params("id"))

	member, err := findMembership(nc.DB, vaultID, user.ID)
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

	var req CreateNoteRequest
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

	note := models.Note{
		VaultID:   vaultID,
		AuthorID:  user.ID,
		Title:     req.Title,
		Content:   req.Content,
		IsPrivate: req.IsPrivate,
	}
	if err := nc.DB.Create(&note).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create note",
		})
	}

	nc.DB.Preload("Author").First(&note, note.ID)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"note": note})
}

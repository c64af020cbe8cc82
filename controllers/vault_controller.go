package controller

import (
	"errors"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"legacy/models"
	"legacy/utils"
)

type VaultController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewVaultController(db *gorm.DB, logger *log.Logger) *VaultController {
	return &VaultController{DB: db, Logger: logger}
}

type CreateVaultRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Description string  `json:"description" validate:"max=500"`
	ThemeColor  string  `json:"theme_color"`
	CoverImage  *string `json:"cover_image"`
}

type JoinVaultRequest struct {
	InviteCode string `json:"invite_code" validate:"required"`
}

type UpdateMemberRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=ADMIN MEMBER READ_ONLY"`
}

// findMembership resolves the caller's membership row for a vault, or nil
// if the user does not belong to it.
func findMembership(db *gorm.DB, vaultID, userID uint) (*models.VaultMember, error) {
	var member models.VaultMember
	err := db.Where("vault_id = ? AND user_id = ?", vaultID, userID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (vc *VaultController) CreateVault(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req CreateVaultRequest
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

	themeColor := req.ThemeColor
	if themeColor == "" {
		themeColor = "#3b82f6"
	}

	vault := models.Vault{
		Name:        req.Name,
		Description: req.Description,
		ThemeColor:  themeColor,
		CoverImage:  req.CoverImage,
		InviteCode:  utils.GenerateInviteCode(),
	}

	// The creator becomes the vault's first admin in the same transaction.
	err := vc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&vault).Error; err != nil {
			return err
		}
		return tx.Create(&models.VaultMember{
			VaultID: vault.ID,
			UserID:  user.ID,
			Role:    models.RoleAdmin,
		}).Error
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create vault",
		})
	}

	if err := vc.DB.Preload("Members.User").First(&vault, vault.ID).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load vault",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"vault": vault})
}

func (vc *VaultController) GetVaults(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var vaults []models.Vault
	err := vc.DB.
		Joins("JOIN vault_members ON vault_members.vault_id = vaults.id").
		Where("vault_members.user_id = ?", user.ID).
		Preload("Members.User").
		Find(&vaults).Error
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch vaults",
		})
	}

	result := make([]fiber.Map, 0, len(vaults))
	for _, vault := range vaults {
		var mediaCount, noteCount int64
		vc.DB.Model(&models.Media{}).Where("vault_id = ? AND deleted_at IS NULL", vault.ID).Count(&mediaCount)
		vc.DB.Model(&models.Note{}).Where("vault_id = ?", vault.ID).Count(&noteCount)
		result = append(result, fiber.Map{
			"vault":       vault,
			"media_count": mediaCount,
			"note_count":  noteCount,
		})
	}

	return c.JSON(fiber.Map{"vaults": result})
}

func (vc *VaultController) GetVault(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	vaultID := utils.ParseUint(c.Params("id"))

	member, err := findMembership(vc.DB, vaultID, user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to check membership",
		})
	}
	if member == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Vault not found",
		})
	}

	// Trashed media is served by the trash endpoint; locked capsules and
	// private notes stay hidden unless the caller owns them.
	var vault models.Vault
	err = vc.DB.
		Preload("Members.User").
		Preload("Media", func(db *gorm.DB) *gorm.DB {
			return db.Where("deleted_at IS NULL AND (is_locked = ? OR uploader_id = ?)", false, user.ID).
				Order("created_at DESC")
		}).
		Preload("Media.Uploader").
		Preload("Media.Votes.Voter").
		Preload("Media.Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC")
		}).
		Preload("Media.Comments.Author").
		Preload("Notes", func(db *gorm.DB) *gorm.DB {
			return db.Where("(is_private = ? OR author_id = ?) AND (is_locked = ? OR author_id = ?)", false, user.ID, false, user.ID).
				Order("created_at DESC")
		}).
		Preload("Notes.Author").
		First(&vault, vaultID).Error
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Vault not found",
		})
	}

	return c.JSON(fiber.Map{"vault": vault})
}

func (vc *VaultController) UpdateVault(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	vaultID := utils.ParseUint(c.Params("id"))

	member, err := findMembership(vc.DB, vaultID, user.ID)
	if err != nil || member == nil || !models.RoleCan(member.Role, models.ActionUpdateVault) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Forbidden",
		})
	}

	var req CreateVaultRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	var vault models.Vault
	if err := vc.DB.First(&vault, vaultID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Vault not found",
		})
	}

	// Only touch the fields the request actually carries.
	updates := map[string]interface{}{}
	if req.Name != "" {
		updates["name"] = req.Name
	}
	if req.Description != "" {
		updates["description"] = req.Description
	}
	if req.ThemeColor != "" {
		updates["theme_color"] = req.ThemeColor
	}
	if req.CoverImage != nil {
		updates["cover_image"] = req.CoverImage
	}

	err = vc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&vault).Updates(updates).Error; err != nil {
			return err
		}
		return models.RecordActivity(tx, vaultID, user.ID, models.ActivityVaultUpdated, "Updated vault settings")
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update vault",
		})
	}

	return c.JSON(fiber.Map{"vault": vault})
}

func (vc *VaultController) DeleteVault(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	vaultID := utils.ParseUint(c.Params("id"))

	member, err := findMembership(vc.DB, vaultID, user.ID)
	if err != nil || member == nil || !models.RoleCan(member.Role, models.ActionDeleteVault) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Forbidden",
		})
	}

	var vault models.Vault
	if err := vc.DB.First(&vault, vaultID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Vault not found",
		})
	}

	if err := vc.DB.Select(clause.Associations).Delete(&vault).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete vault",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

// GetVaultInfo serves the public invite preview, no authentication needed.
func (vc *VaultController) GetVaultInfo(c *fiber.Ctx) error {
	code := c.Params("code")

	var vault models.Vault
	if err := vc.DB.Where("invite_code = ?", code).First(&vault).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Vault not found",
		})
	}

	var memberCount int64
	vc.DB.Model(&models.VaultMember{}).Where("vault_id = ?", vault.ID).Count(&memberCount)

	return c.JSON(fiber.Map{
		"vault": fiber.Map{
			"id":           vault.ID,
			"name":         vault.Name,
			"description":  vault.Description,
			"theme_color":  vault.ThemeColor,
			"cover_image":  vault.CoverImage,
			"member_count": memberCount,
		},
	})
}

func (vc *VaultController) JoinVault(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req JoinVaultRequest
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

	var vault models.Vault
	if err := vc.DB.Where("invite_code = ?", req.InviteCode).First(&vault).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Invalid invite code",
		})
	}

	existing, err := findMembership(vc.DB, vault.ID, user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to check membership",
		})
	}
	if existing != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Already a member",
		})
	}

	if err := vc.DB.Create(&models.VaultMember{
		VaultID: vault.ID,
		UserID:  user.ID,
		Role:    models.RoleMember,
	}).Error; err != nil {
		// The unique index backstops concurrent joins.
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Already a member",
		})
	}

	return c.JSON(fiber.Map{"success": true, "vault_id": vault.ID})
}

func (vc *VaultController) LeaveVault(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	vaultID := utils.ParseUint(c.Params("id"))

	member, err := findMembership(vc.DB, vaultID, user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to check membership",
		})
	}
	if member == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Not a member of this vault",
		})
	}

	err = vc.DB.Transaction(func(tx *gorm.DB) error {
		// Prevent last admin from leaving
		if member.Role == models.RoleAdmin {
			var adminCount int64
			if err := tx.Model(&models.VaultMember{}).
				Where("vault_id = ? AND role = ?", vaultID, models.RoleAdmin).
				Count(&adminCount).Error; err != nil {
				return err
			}
			if adminCount == 1 {
				return errLastAdmin
			}
		}

		if err := tx.Delete(&models.VaultMember{}, member.ID).Error; err != nil {
			return err
		}

		return models.RecordActivity(tx, vaultID, user.ID, models.ActivityMemberLeft,
			fmt.Sprintf("%s left the vault", user.DisplayName()))
	})
	if errors.Is(err, errLastAdmin) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Cannot leave vault as the last admin",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to leave vault",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

var errLastAdmin = errors.New("vault would be left without an admin")

func (vc *VaultController) UpdateMemberRole(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	vaultID := utils.ParseUint(c.Params("id"))
	memberID := utils.ParseUint(c.Params("memberId"))

	caller, err := findMembership(vc.DB, vaultID, user.ID)
	if err != nil || caller == nil || !models.RoleCan(caller.Role, models.ActionManageMembers) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Forbidden",
		})
	}

	var req UpdateMemberRoleRequest
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
	newRole := models.Role(req.Role)

	var target models.VaultMember
	if err := vc.DB.Preload("User").Where("vault_id = ?", vaultID).First(&target, memberID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Member not found",
		})
	}

	err = vc.DB.Transaction(func(tx *gorm.DB) error {
		// Demoting the last admin would strand the vault.
		if target.Role == models.RoleAdmin && newRole != models.RoleAdmin {
			var adminCount int64
			if err := tx.Model(&models.VaultMember{}).
				Where("vault_id = ? AND role = ?", vaultID, models.RoleAdmin).
				Count(&adminCount).Error; err != nil {
				return err
			}
			if adminCount == 1 {
				return errLastAdmin
			}
		}

		if err := tx.Model(&models.VaultMember{}).Where("id = ?", target.ID).
			Update("role", newRole).Error; err != nil {
			return err
		}

		return models.RecordActivity(tx, vaultID, user.ID, models.ActivityMemberRoleChanged,
			fmt.Sprintf("Changed %s's role to %s", target.User.DisplayName(), newRole))
	})
	if errors.Is(err, errLastAdmin) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Vault must keep at least one admin",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update member role",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

func (vc *VaultController) RemoveMember(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	vaultID := utils.ParseUint(c.Params("id"))
	memberID := utils.ParseUint(c.Params("memberId"))

	caller, err := findMembership(vc.DB, vaultID, user.ID)
	if err != nil || caller == nil || !models.RoleCan(caller.Role, models.ActionManageMembers) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Forbidden",
		})
	}

	var target models.VaultMember
	if err := vc.DB.Preload("User").Where("vault_id = ?", vaultID).First(&target, memberID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Member not found",
		})
	}

	err = vc.DB.Transaction(func(tx *gorm.DB) error {
		if target.Role == models.RoleAdmin {
			var adminCount, memberCount int64
			if err := tx.Model(&models.VaultMember{}).
				Where("vault_id = ? AND role = ?", vaultID, models.RoleAdmin).
				Count(&adminCount).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.VaultMember{}).
				Where("vault_id = ?", vaultID).
				Count(&memberCount).Error; err != nil {
				return err
			}
			// Removing the last admin strands remaining members.
			if adminCount == 1 && memberCount > 1 {
				return errLastAdmin
			}
		}

		if err := tx.Delete(&models.VaultMember{}, target.ID).Error; err != nil {
			return err
		}

		return models.RecordActivity(tx, vaultID, user.ID, models.ActivityMemberRemoved,
			fmt.Sprintf("Removed %s from the vault", target.User.DisplayName()))
	})
	if errors.Is(err, errLastAdmin) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Vault must keep at least one admin",
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to remove member",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}

func (vc *VaultController) GetActivities(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	vaultID := utils.ParseUint(c.Params("id"))

	member, err := findMembership(vc.DB, vaultID, user.ID)
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

	var activities []models.VaultActivity
	if err := vc.DB.
		Preload("User").
		Where("vault_id = ?", vaultID).
		Order("created_at DESC").
		Limit(50).
		Find(&activities).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch activities",
		})
	}

	return c.JSON(fiber.Map{"activities": activities})
}

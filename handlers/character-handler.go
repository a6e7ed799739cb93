package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/josh-vincent/roast-me-characters-sub001/background"
	"github.com/josh-vincent/roast-me-characters-sub001/middleware"
	"github.com/josh-vincent/roast-me-characters-sub001/models"
	"gorm.io/gorm"
)

func (h *Handler) findCharacter(c *fiber.Ctx) (*models.Character, error) {
	var character models.Character
	err := h.db.WithContext(c.UserContext()).First(&character, "id = ?", c.Params("id")).Error
	if err != nil {
		return nil, err
	}
	return &character, nil
}

// GetCharacterStatus is polled by the client while a character renders.
func (h *Handler) GetCharacterStatus(c *fiber.Ctx) error {
	character, err := h.findCharacter(c)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Character not found"})
	}
	if err != nil {
		slog.ErrorContext(c.UserContext(), "failed to load character", "id", c.Params("id"), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}

	return c.JSON(fiber.Map{"character": character})
}

// GetCharacter serves the share page data. Private characters are only
// visible to their verified owner.
func (h *Handler) GetCharacter(c *fiber.Ctx) error {
	character, err := h.findCharacter(c)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		slog.ErrorContext(c.UserContext(), "failed to load character", "id", c.Params("id"), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
	if character == nil || !character.VisibleTo(middleware.CurrentIdentity(c).UserID) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Character not found"})
	}

	id := character.ID
	background.Go("character views", background.DefaultTimeout, func(ctx context.Context) error {
		return h.db.WithContext(ctx).
			Model(&models.Character{}).
			Where("id = ?", id).
			UpdateColumn("views_count", gorm.Expr("views_count + ?", 1)).Error
	})

	return c.JSON(fiber.Map{"character": character})
}

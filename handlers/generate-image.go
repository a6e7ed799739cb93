package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/josh-vincent/roast-me-characters-sub001/middleware"
	"github.com/josh-vincent/roast-me-characters-sub001/models"
)

// GenerateCharacter runs the whole pipeline for one photo.
func (h *Handler) GenerateCharacter(c *fiber.Ctx) error {
	in, closeInput, err := imageInput(c)
	defer closeInput()
	if err != nil {
		status, message := errorBody(c, err)
		return c.Status(status).JSON(fiber.Map{
			"success": false,
			"error":   message,
		})
	}

	character, err := h.pipeline.Run(c.UserContext(), in)
	if err != nil {
		status, message := errorBody(c, err)
		return c.Status(status).JSON(fiber.Map{
			"success": false,
			"error":   message,
		})
	}

	if character.Status() == models.StatusFailed {
		slog.WarnContext(c.UserContext(), "generation recorded as failed",
			"character_id", character.ID, "error", character.Params().Error)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success":   false,
			"error":     "Failed to generate character",
			"character": character,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":   true,
		"character": character,
	})
}

// RetryGeneration re-runs generation for an existing character.
func (h *Handler) RetryGeneration(c *fiber.Ctx) error {
	var req struct {
		CharacterID string `json:"characterId"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	character, err := h.pipeline.Retry(c.UserContext(), req.CharacterID, middleware.CurrentIdentity(c))
	if err != nil {
		status, message := errorBody(c, err)
		return c.Status(status).JSON(fiber.Map{
			"success": false,
			"error":   message,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":  true,
		"imageUrl": character.GeneratedImageURL,
		"message":  "Character regenerated successfully",
	})
}

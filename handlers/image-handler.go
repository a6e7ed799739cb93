package handler

import (
	"github.com/gofiber/fiber/v2"
)

// AnalyzeImage uploads a photo (or records a remote URL) and returns the
// vision analysis without generating a character.
func (h *Handler) AnalyzeImage(c *fiber.Ctx) error {
	in, closeInput, err := imageInput(c)
	defer closeInput()
	if err != nil {
		status, message := errorBody(c, err)
		return c.Status(status).JSON(fiber.Map{"error": message})
	}

	analysis, upload, err := h.pipeline.AnalyzeOnly(c.UserContext(), in)
	if err != nil {
		status, message := errorBody(c, err)
		return c.Status(status).JSON(fiber.Map{"error": message})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":     true,
		"analysis":    analysis,
		"imageRecord": upload,
	})
}

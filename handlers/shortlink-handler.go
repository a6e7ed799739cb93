package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/josh-vincent/roast-me-characters-sub001/middleware"
	"github.com/josh-vincent/roast-me-characters-sub001/shortlink"
)

const maxShareDays = 365

// RedirectShortLink answers /s/:shortCode in a single hop.
func (h *Handler) RedirectShortLink(c *fiber.Ctx) error {
	decision := h.links.Redirect(c.UserContext(), utils.CopyString(c.Params("shortCode")))
	return c.Redirect(decision.Location, decision.Status)
}

// ShareCharacter publishes a character and returns its short link.
func (h *Handler) ShareCharacter(c *fiber.Ctx) error {
	var req struct {
		ExpiresInDays int `json:"expiresInDays"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
	}
	if req.ExpiresInDays < 0 || req.ExpiresInDays > maxShareDays {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "expiresInDays must be between 0 and 365",
		})
	}

	ttl := time.Duration(req.ExpiresInDays) * 24 * time.Hour
	link, err := h.links.Create(c.UserContext(), c.Params("id"), middleware.CurrentIdentity(c), ttl)
	switch {
	case errors.Is(err, shortlink.ErrCharacterNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Character not found"})
	case errors.Is(err, shortlink.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "You do not have access to this character"})
	case err != nil:
		slog.ErrorContext(c.UserContext(), "failed to create short link", "character_id", c.Params("id"), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create short link"})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"shortCode": link.ShortCode,
		"shortUrl":  h.links.URL(link.ShortCode),
		"expiresAt": link.ExpiresAt,
	})
}

package handler

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/josh-vincent/roast-me-characters-sub001/middleware"
)

func (h *Handler) GetCreditPackages(c *fiber.Ctx) error {
	return c.JSON(h.catalog)
}

func (h *Handler) GetCreditPackage(c *fiber.Ctx) error {
	pkg, ok := h.catalog.Find(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Credit package not found"})
	}
	return c.JSON(fiber.Map{"package": pkg, "provider": h.catalog.Provider})
}

// GetCreditBalance expects RequireUser to run first.
func (h *Handler) GetCreditBalance(c *fiber.Ctx) error {
	identity := middleware.CurrentIdentity(c)

	balance, err := h.ledger.Balance(c.UserContext(), identity.UserID)
	if err != nil {
		slog.ErrorContext(c.UserContext(), "failed to read credit balance", "user_id", identity.UserID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load credit balance"})
	}

	return c.JSON(fiber.Map{"balance": balance})
}

// GetCreditHistory lists the caller's ledger entries, newest first.
func (h *Handler) GetCreditHistory(c *fiber.Ctx) error {
	identity := middleware.CurrentIdentity(c)

	entries, err := h.ledger.History(c.UserContext(), identity.UserID, c.QueryInt("limit"))
	if err != nil {
		slog.ErrorContext(c.UserContext(), "failed to read credit history", "user_id", identity.UserID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to load credit history"})
	}

	return c.JSON(fiber.Map{"transactions": entries})
}

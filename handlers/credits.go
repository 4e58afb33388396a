// handlers/credits.go
package handlers

import (
	"errors"
	"log"
	"typerush/middleware"
	"typerush/services"

	"github.com/gofiber/fiber/v2"
)

type CreditsHandler struct {
	ledger *services.CreditLedger
}

func NewCreditsHandler(ledger *services.CreditLedger) *CreditsHandler {
	return &CreditsHandler{ledger: ledger}
}

// Consume deducts one credit from the caller. Insufficient credits is a
// distinct condition so the UI can prompt a purchase.
func (h *CreditsHandler) Consume(c *fiber.Ctx) error {
	whopUserID, err := middleware.GetWhopUserID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": err.Error()})
	}

	credits, err := h.ledger.Consume(whopUserID, 1)
	if errors.Is(err, services.ErrInsufficientCredits) {
		return c.Status(402).JSON(fiber.Map{"error": "Not enough credits"})
	}
	if errors.Is(err, services.ErrUserNotFound) {
		return c.Status(404).JSON(fiber.Map{"error": "User not found"})
	}
	if err != nil {
		log.Printf("Failed to consume credit for %s: %v", whopUserID, err)
		return c.Status(500).JSON(fiber.Map{"error": "Failed to consume credit"})
	}

	return c.JSON(fiber.Map{"credits": credits})
}

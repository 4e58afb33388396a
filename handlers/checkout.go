// handlers/checkout.go
package handlers

import (
	"log"
	"typerush/middleware"
	"typerush/services"

	"github.com/gofiber/fiber/v2"
)

type CheckoutHandler struct {
	whop *services.WhopClient
}

func NewCheckoutHandler(whop *services.WhopClient) *CheckoutHandler {
	return &CheckoutHandler{whop: whop}
}

// Create returns the hosted checkout URL for the credit plan. Credits land
// later via the payment webhook, not here.
func (h *CheckoutHandler) Create(c *fiber.Ctx) error {
	if _, err := middleware.GetWhopUserID(c); err != nil {
		return c.Status(401).JSON(fiber.Map{"error": err.Error()})
	}

	url, err := h.whop.CheckoutURL()
	if err != nil {
		log.Printf("Failed to create checkout session: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "Failed to start checkout"})
	}

	return c.JSON(fiber.Map{"checkout_url": url})
}

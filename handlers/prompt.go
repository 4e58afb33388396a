// handlers/prompt.go
package handlers

import (
	"typerush/services"

	"github.com/gofiber/fiber/v2"
)

type PromptHandler struct {
	bank *services.PromptBank
}

func NewPromptHandler(bank *services.PromptBank) *PromptHandler {
	return &PromptHandler{bank: bank}
}

// Generate hands out a fresh prompt for a new test.
func (h *PromptHandler) Generate(c *fiber.Ctx) error {
	count := c.QueryInt("count", services.DefaultPromptWordCount)
	if count < 1 || count > 500 {
		count = services.DefaultPromptWordCount
	}

	return c.JSON(fiber.Map{
		"words":    h.bank.Generate(count),
		"duration": services.DefaultTestDurationSeconds,
	})
}

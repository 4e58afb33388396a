// handlers/player.go
package handlers

import (
	"log"
	"typerush/middleware"
	"typerush/services"

	"github.com/gofiber/fiber/v2"
)

type PlayerHandler struct {
	players         *services.PlayerService
	targetCompanyID string
}

func NewPlayerHandler(players *services.PlayerService, targetCompanyID string) *PlayerHandler {
	return &PlayerHandler{players: players, targetCompanyID: targetCompanyID}
}

// GetPlayer ensures the caller's user row exists, refreshes the company cache
// when stale and returns the profile with derived earnings.
func (h *PlayerHandler) GetPlayer(c *fiber.Ctx) error {
	whopUserID, err := middleware.GetWhopUserID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": err.Error()})
	}

	user, err := h.players.EnsureUser(whopUserID)
	if err != nil {
		log.Printf("Failed to ensure user record for %s: %v", whopUserID, err)
		return c.Status(500).JSON(fiber.Map{"error": "Failed to ensure user record"})
	}

	user = h.players.SyncCompany(user)

	total, perTier, err := h.players.Earnings(user.ID)
	if err != nil {
		// The profile is still useful without earnings.
		log.Printf("Failed to load rewards for user %s: %v", user.ID, err)
		total, perTier = 0, map[string]float64{}
	}

	companyID := h.targetCompanyID
	if user.CompanyID != nil {
		companyID = *user.CompanyID
	}

	return c.JSON(fiber.Map{
		"whop_user_id":       user.WhopUserID,
		"user_id":            user.ID,
		"username":           user.Username,
		"credits":            user.Credits,
		"total_earnings":     total,
		"earned_reward_keys": perTier,
		"company": fiber.Map{
			"id":             companyID,
			"title":          user.CompanyTitle,
			"route":          user.CompanyRoute,
			"owner_user_id":  user.CompanyOwnerUserID,
			"owner_username": user.CompanyOwnerUsername,
			"owner_name":     user.CompanyOwnerName,
		},
	})
}

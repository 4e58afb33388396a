// handlers/runs.go
package handlers

import (
	"errors"
	"log"
	"typerush/middleware"
	"typerush/models"
	"typerush/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const historyPageSize = 100

type RecordRunRequest struct {
	Typed  []string `json:"typed"`
	Prompt []string `json:"prompt"`
}

type RunsHandler struct {
	db       *gorm.DB
	players  *services.PlayerService
	recorder *services.RunRecorder
}

func NewRunsHandler(db *gorm.DB, players *services.PlayerService, recorder *services.RunRecorder) *RunsHandler {
	return &RunsHandler{db: db, players: players, recorder: recorder}
}

// Record runs the full finish-run pipeline for the caller.
func (h *RunsHandler) Record(c *fiber.Ctx) error {
	whopUserID, err := middleware.GetWhopUserID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": err.Error()})
	}

	var req RecordRunRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if len(req.Prompt) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "Prompt is required"})
	}

	user, err := h.players.EnsureUser(whopUserID)
	if err != nil {
		log.Printf("Failed to ensure user record for %s: %v", whopUserID, err)
		return c.Status(500).JSON(fiber.Map{"error": "Failed to ensure user record"})
	}

	outcome, err := h.recorder.Record(user, req.Typed, req.Prompt)
	if errors.Is(err, services.ErrInsufficientCredits) {
		return c.Status(402).JSON(fiber.Map{"error": "Not enough credits"})
	}
	if err != nil {
		log.Printf("Failed to record run for %s: %v", whopUserID, err)
		return c.Status(500).JSON(fiber.Map{"error": "Failed to record run"})
	}

	return c.JSON(fiber.Map{
		"success":        true,
		"result_id":      outcome.Result.ID,
		"wpm":            outcome.Score.WPM,
		"accuracy":       outcome.Score.Accuracy,
		"correct_words":  outcome.Score.CorrectWords,
		"credits":        outcome.Credits,
		"personal_best":  outcome.PersonalBest,
		"awards":         outcome.Awards,
		"total_awarded":  outcome.TotalAwarded,
		"total_earnings": outcome.TotalEarnings,
	})
}

// History returns the latest runs across all players with their reward
// summaries, newest first.
func (h *RunsHandler) History(c *fiber.Ctx) error {
	var results []models.Result
	err := h.db.Preload("User").Preload("Rewards").
		Order("created_at DESC").
		Limit(historyPageSize).
		Find(&results).Error
	if err != nil {
		log.Printf("Failed to load run history: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "Failed to load run history"})
	}

	rows := make([]fiber.Map, 0, len(results))
	for _, result := range results {
		username := "Unknown player"
		if result.User != nil {
			username = result.User.Username
		}

		rewardEarned := 0.0
		rewards := make([]fiber.Map, 0, len(result.Rewards))
		for _, reward := range result.Rewards {
			rewardEarned += reward.Amount
			rewards = append(rewards, fiber.Map{
				"reward_key": reward.RewardKey,
				"amount":     reward.Amount,
			})
		}

		rows = append(rows, fiber.Map{
			"id":            result.ID,
			"username":      username,
			"wpm":           result.WPM,
			"accuracy":      result.Accuracy,
			"reward_earned": rewardEarned,
			"rewards":       rewards,
			"created_at":    result.CreatedAt,
		})
	}

	return c.JSON(fiber.Map{"success": true, "history": rows})
}

// Best returns the caller's best run.
func (h *RunsHandler) Best(c *fiber.Ctx) error {
	whopUserID, err := middleware.GetWhopUserID(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": err.Error()})
	}

	var user models.User
	if err := h.db.Where("whop_user_id = ?", whopUserID).First(&user).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "User not found"})
	}

	var best models.Result
	err = h.db.Where("user_id = ?", user.ID).Order("wpm DESC").Limit(1).First(&best).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.JSON(fiber.Map{"success": true, "best": nil})
	}
	if err != nil {
		log.Printf("Failed to load best run for %s: %v", whopUserID, err)
		return c.Status(500).JSON(fiber.Map{"error": "Failed to load best run"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"best": fiber.Map{
			"id":         best.ID,
			"wpm":        best.WPM,
			"accuracy":   best.Accuracy,
			"created_at": best.CreatedAt,
		},
	})
}

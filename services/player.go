// services/player.go - Player Record Management
package services

import (
	"errors"
	"fmt"
	"log"
	"typerush/models"

	"gorm.io/gorm"
)

// PlayerService owns the user record lifecycle: first-access creation keyed by
// the Whop user id, username refresh, the read-through company cache and the
// derived earnings aggregate. Users are never deleted by the system.
type PlayerService struct {
	db              *gorm.DB
	whop            *WhopClient
	initialCredits  int
	targetCompanyID string
}

func NewPlayerService(db *gorm.DB, whop *WhopClient, initialCredits int, targetCompanyID string) *PlayerService {
	return &PlayerService{
		db:              db,
		whop:            whop,
		initialCredits:  initialCredits,
		targetCompanyID: targetCompanyID,
	}
}

// EnsureUser returns the user row for a Whop user id, creating it on first
// authenticated access. The Whop username lookup is best-effort; without it a
// name is derived from the id. A concurrent first access losing the insert
// race falls back to re-selecting the winner's row.
func (s *PlayerService) EnsureUser(whopUserID string) (*models.User, error) {
	username := ""
	if s.whop != nil {
		fetched, err := s.whop.GetUsername(whopUserID)
		if err != nil {
			log.Printf("Unable to fetch Whop username for %s: %v", whopUserID, err)
		} else {
			username = fetched
		}
	}

	var user models.User
	err := s.db.Where("whop_user_id = ?", whopUserID).First(&user).Error
	if err == nil {
		if username != "" && user.Username != username {
			if err := s.db.Model(&user).Update("username", username).Error; err != nil {
				return nil, fmt.Errorf("failed to update username: %w", err)
			}
			user.Username = username
		}
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if username == "" {
		username = derivedUsername(whopUserID)
	}

	user = models.User{
		WhopUserID: whopUserID,
		Username:   username,
		Credits:    s.initialCredits,
	}
	if err := s.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var existing models.User
			if selErr := s.db.Where("whop_user_id = ?", whopUserID).First(&existing).Error; selErr != nil {
				return nil, fmt.Errorf("failed to load user after insert conflict: %w", selErr)
			}
			return &existing, nil
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return &user, nil
}

// SyncCompany refreshes the cached company metadata when it is missing or
// points at a different company than the configured target. Failures are
// logged and the stale record is returned; the caller's request still
// succeeds.
func (s *PlayerService) SyncCompany(user *models.User) *models.User {
	if s.targetCompanyID == "" || s.whop == nil {
		return user
	}

	if !s.companyCacheStale(user) {
		return user
	}

	details := s.whop.GetCompany(s.targetCompanyID)
	if details == nil {
		return user
	}

	updates := BuildCompanyUpdate(details, s.targetCompanyID)
	if len(updates) == 0 {
		return user
	}

	if err := s.db.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		log.Printf("Failed to update company information for user %s: %v", user.ID, err)
		return user
	}

	var refreshed models.User
	if err := s.db.First(&refreshed, "id = ?", user.ID).Error; err != nil {
		log.Printf("Failed to reload user %s after company sync: %v", user.ID, err)
		return user
	}
	return &refreshed
}

// PersistCompany stores webhook-provided company details against a user row,
// best-effort.
func (s *PlayerService) PersistCompany(whopUserID string, details *CompanyDetails) {
	if details == nil {
		return
	}

	updates := BuildCompanyUpdate(details, "")
	if len(updates) == 0 {
		return
	}

	if err := s.db.Model(&models.User{}).Where("whop_user_id = ?", whopUserID).Updates(updates).Error; err != nil {
		log.Printf("Failed to persist company details for user %s: %v", whopUserID, err)
	}
}

// Earnings sums the user's reward rows into a cumulative total and a per-tier
// map. Non-finite amounts are skipped rather than poisoning the total.
func (s *PlayerService) Earnings(userID string) (float64, map[string]float64, error) {
	var rewards []models.Reward
	if err := s.db.Where("user_id = ?", userID).Find(&rewards).Error; err != nil {
		return 0, nil, fmt.Errorf("failed to load rewards: %w", err)
	}

	total := 0.0
	perTier := make(map[string]float64, len(rewards))
	for _, reward := range rewards {
		if !isFinite(reward.Amount) {
			continue
		}
		total += reward.Amount
		if reward.RewardKey != "" {
			perTier[reward.RewardKey] += reward.Amount
		}
	}

	return round2(total), perTier, nil
}

func (s *PlayerService) companyCacheStale(user *models.User) bool {
	return user.CompanyID == nil || *user.CompanyID != s.targetCompanyID ||
		user.CompanyTitle == nil ||
		user.CompanyRoute == nil ||
		user.CompanyOwnerUserID == nil ||
		user.CompanyOwnerUsername == nil ||
		user.CompanyOwnerName == nil
}

func derivedUsername(whopUserID string) string {
	n := len(whopUserID)
	if n > 8 {
		n = 8
	}
	return "whop-" + whopUserID[:n]
}

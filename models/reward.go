// models/reward.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Reward is the cumulative payout for one (user, tier) pair. The composite
// unique index is the invariant that makes tier crediting additive: a second
// qualifying run increments the existing row instead of inserting a duplicate.
type Reward struct {
	ID        string `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string `gorm:"type:uuid;not null;uniqueIndex:idx_rewards_user_tier" json:"user_id"`
	User      *User  `gorm:"foreignKey:UserID" json:"-"`
	RewardKey string `gorm:"not null;size:50;uniqueIndex:idx_rewards_user_tier" json:"reward_key"`

	// Cumulative amount earned for this tier, monotonically non-decreasing.
	Amount float64 `gorm:"not null;default:0" json:"amount"`

	// Snapshot of the latest run that touched this row.
	ResultID string  `gorm:"type:uuid;index" json:"result_id"`
	Username string  `gorm:"size:100" json:"username"`
	WPM      float64 `json:"wpm"`
	Accuracy float64 `json:"accuracy"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Reward) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// RewardTier is one entry of the static reward configuration loaded at
// startup. A run qualifies iff wpm >= MinWPM and accuracy >= MinAccuracy;
// every qualifying run re-awards the full flat Amount.
type RewardTier struct {
	ID          string  `json:"id"`
	MinWPM      float64 `json:"minWpm"`
	MinAccuracy float64 `json:"minAccuracy"`
	Amount      float64 `json:"amount"`
}

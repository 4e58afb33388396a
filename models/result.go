// models/result.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Result is one completed timed typing run. Immutable once created; exactly
// one row is written per successful credit consumption, even for a zero score.
type Result struct {
	ID       string  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID   string  `gorm:"type:uuid;not null;index" json:"user_id"`
	User     *User   `gorm:"foreignKey:UserID" json:"user,omitempty"`
	WPM      float64 `gorm:"not null" json:"wpm"`      // one decimal
	Accuracy float64 `gorm:"not null" json:"accuracy"` // 0-100, two decimals

	CreatedAt time.Time `json:"created_at"`

	Rewards []Reward `gorm:"foreignKey:ResultID" json:"rewards,omitempty"`
}

func (r *Result) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// models/payment.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentEvent records a processed payment webhook so that a retried delivery
// carrying the same payment id grants credits only once. Deliveries without a
// payment id cannot be deduplicated and are processed best-effort.
type PaymentEvent struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	PaymentID  string    `gorm:"uniqueIndex;not null;size:128" json:"payment_id"`
	WhopUserID string    `gorm:"not null;size:64;index" json:"whop_user_id"`
	Action     string    `gorm:"size:50" json:"action"`
	Amount     float64   `json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}

func (p *PaymentEvent) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

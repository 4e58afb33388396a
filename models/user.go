// models/user.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a Whop member known to the game. Rows are keyed internally by uuid
// but looked up by the stable Whop user id. Cumulative earnings are derived
// from Reward rows and never stored here.
type User struct {
	ID         string `gorm:"type:uuid;primaryKey" json:"id"`
	WhopUserID string `gorm:"uniqueIndex;not null;size:64" json:"whop_user_id"`
	Username   string `gorm:"not null;size:100" json:"username"`
	Credits    int    `gorm:"not null;default:0" json:"credits"`

	// Cached company affiliation, refreshed from Whop when stale. Pointers
	// distinguish "never fetched" from an explicit null in the upstream payload.
	CompanyID            *string `gorm:"size:64;index" json:"company_id,omitempty"`
	CompanyTitle         *string `gorm:"size:200" json:"company_title,omitempty"`
	CompanyRoute         *string `gorm:"size:200" json:"company_route,omitempty"`
	CompanyOwnerUserID   *string `gorm:"size:64" json:"company_owner_user_id,omitempty"`
	CompanyOwnerUsername *string `gorm:"size:100" json:"company_owner_username,omitempty"`
	CompanyOwnerName     *string `gorm:"size:200" json:"company_owner_name,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Results []Result `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"results,omitempty"`
	Rewards []Reward `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"rewards,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// services/ledger.go - Credit Ledger
package services

import (
	"errors"
	"fmt"
	"typerush/models"

	"gorm.io/gorm"
)

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrUserNotFound        = errors.New("user not found")
)

// CreditLedger owns the per-user credit balance. Both mutations are single
// conditional UPDATE statements so that gameplay consumes and webhook grants
// can race across sessions without the balance ever going negative.
type CreditLedger struct {
	db *gorm.DB
}

func NewCreditLedger(db *gorm.DB) *CreditLedger {
	return &CreditLedger{db: db}
}

// Consume atomically deducts amount credits and returns the new balance.
// Returns ErrInsufficientCredits when the deduction would go below zero; the
// balance is left untouched in that case.
func (l *CreditLedger) Consume(whopUserID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("consume amount must be positive, got %d", amount)
	}

	res := l.db.Model(&models.User{}).
		Where("whop_user_id = ? AND credits >= ?", whopUserID, amount).
		UpdateColumn("credits", gorm.Expr("credits - ?", amount))
	if res.Error != nil {
		return 0, fmt.Errorf("failed to consume credits: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		// Either the user does not exist or the balance is too low.
		balance, err := l.Balance(whopUserID)
		if err != nil {
			return 0, err
		}
		return balance, ErrInsufficientCredits
	}

	return l.Balance(whopUserID)
}

// Grant atomically adds amount credits and returns the new balance.
func (l *CreditLedger) Grant(whopUserID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("grant amount must be positive, got %d", amount)
	}

	res := l.db.Model(&models.User{}).
		Where("whop_user_id = ?", whopUserID).
		UpdateColumn("credits", gorm.Expr("credits + ?", amount))
	if res.Error != nil {
		return 0, fmt.Errorf("failed to grant credits: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		return 0, ErrUserNotFound
	}

	return l.Balance(whopUserID)
}

// Balance reads the current balance.
func (l *CreditLedger) Balance(whopUserID string) (int, error) {
	var user models.User
	err := l.db.Select("credits").Where("whop_user_id = ?", whopUserID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return user.Credits, nil
}

package credits

import (
	"context"
	"errors"
	"fmt"

	"github.com/josh-vincent/roast-me-characters-sub001/models"
	"gorm.io/gorm"
)

// Ledger reads and appends credit transactions.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Balance is the sum of every ledger entry for the user.
func (l *Ledger) Balance(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, errors.New("credits: user id is required")
	}

	var total int64
	err := l.db.WithContext(ctx).
		Model(&models.CreditTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("credits: balance: %w", err)
	}
	return int(total), nil
}

// Grant adds credits, e.g. after a confirmed purchase.
func (l *Ledger) Grant(ctx context.Context, userID string, amount int, kind, reference string) error {
	if userID == "" {
		return errors.New("credits: user id is required")
	}
	if amount <= 0 {
		return fmt.Errorf("credits: grant amount must be positive, got %d", amount)
	}

	entry := models.CreditTransaction{
		UserID:    userID,
		Amount:    amount,
		Kind:      kind,
		Reference: reference,
	}
	if err := l.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("credits: grant: %w", err)
	}
	return nil
}

// ChargeGeneration debits cost for a character unless that character was
// already charged. It reports whether a debit was written.
func (l *Ledger) ChargeGeneration(ctx context.Context, userID, characterID string, cost int) (bool, error) {
	if cost <= 0 {
		return false, nil
	}

	var existing int64
	err := l.db.WithContext(ctx).
		Model(&models.CreditTransaction{}).
		Where("character_id = ? AND kind = ?", characterID, models.CreditGeneration).
		Count(&existing).Error
	if err != nil {
		return false, fmt.Errorf("credits: check existing charge: %w", err)
	}
	if existing > 0 {
		return false, nil
	}

	entry := models.CreditTransaction{
		UserID:      userID,
		Amount:      -cost,
		Kind:        models.CreditGeneration,
		CharacterID: &characterID,
		Reference:   "character:" + characterID,
	}
	if err := l.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return false, fmt.Errorf("credits: charge: %w", err)
	}
	return true, nil
}

// History lists the most recent entries for a user, newest first.
func (l *Ledger) History(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	var entries []models.CreditTransaction
	err := l.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("credits: history: %w", err)
	}
	return entries, nil
}

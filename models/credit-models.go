package models

import "time"

// Ledger entry kinds.
const (
	CreditPurchase   = "purchase"
	CreditGeneration = "generation"
	CreditGrant      = "grant"
	CreditRefund     = "refund"
)

// CreditTransaction is one signed ledger entry; a user's balance is the sum of
// their amounts.
type CreditTransaction struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UserID      string    `json:"user_id" gorm:"size:64;not null;index"`
	Amount      int       `json:"amount" gorm:"not null"`
	Kind        string    `json:"kind" gorm:"size:16;not null"`
	CharacterID *string   `json:"character_id,omitempty" gorm:"size:36;index"`
	Reference   string    `json:"reference,omitempty" gorm:"size:255"`
	CreatedAt   time.Time `json:"created_at"`
}

func (CreditTransaction) TableName() string {
	return "credit_transactions"
}

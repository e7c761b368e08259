package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TypeEarned TransactionType = "earned"
	TypeSpent  TransactionType = "spent"
	TypePayout TransactionType = "payout"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TypeEarned, TypeSpent, TypePayout:
		return true
	}
	return false
}

// AmountPlaces is the fixed scale of every stored amount.
const AmountPlaces = 2

// Transaction is immutable once stored; ingestion is keyed by ID.
type Transaction struct {
	ID        string          `gorm:"column:id;primaryKey" json:"id"`
	UserID    string          `gorm:"column:user_id;index;not null" json:"userId"`
	CreatedAt time.Time       `gorm:"column:created_at;index" json:"createdAt"`
	Type      TransactionType `gorm:"column:type;not null" json:"type"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	SyncedAt  time.Time       `gorm:"column:synced_at" json:"syncedAt"`
	SyncRunID string          `gorm:"column:sync_run_id;index" json:"syncRunId,omitempty"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// Validate rejects items that can never be stored: blank keys, unknown types and
// negative amounts.
func (t *Transaction) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("transaction id is empty")
	}
	if t.UserID == "" {
		return fmt.Errorf("transaction %s: user id is empty", t.ID)
	}
	if !t.Type.Valid() {
		return fmt.Errorf("transaction %s: unknown type %q", t.ID, t.Type)
	}
	if t.Amount.IsNegative() {
		return fmt.Errorf("transaction %s: negative amount %s", t.ID, t.Amount)
	}
	return nil
}

// UserSummary is the materialized aggregate of one user's transactions.
type UserSummary struct {
	UserID           string          `gorm:"column:user_id;primaryKey" json:"userId"`
	Balance          decimal.Decimal `gorm:"column:balance;type:numeric(14,2);not null" json:"balance"`
	Earned           decimal.Decimal `gorm:"column:earned;type:numeric(14,2);not null" json:"earned"`
	Spent            decimal.Decimal `gorm:"column:spent;type:numeric(14,2);not null" json:"spent"`
	Payout           decimal.Decimal `gorm:"column:payout;type:numeric(14,2);not null;index" json:"payout"`
	PaidOut          decimal.Decimal `gorm:"column:paid_out;type:numeric(14,2);not null" json:"paidOut"`
	TransactionCount int64           `gorm:"column:transaction_count;not null" json:"transactionCount"`
	CreatedAt        time.Time       `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt        time.Time       `gorm:"column:updated_at" json:"updatedAt"`
}

func (UserSummary) TableName() string {
	return "user_summaries"
}

// NewUserSummary returns the zero aggregate for a user seen for the first time.
func NewUserSummary(userID string) *UserSummary {
	return &UserSummary{
		UserID:  userID,
		Balance: decimal.Zero,
		Earned:  decimal.Zero,
		Spent:   decimal.Zero,
		Payout:  decimal.Zero,
		PaidOut: decimal.Zero,
	}
}

type PayoutSummary struct {
	UserID       string          `json:"userId"`
	PayoutAmount decimal.Decimal `json:"payoutAmount"`
}

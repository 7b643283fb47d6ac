package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the net open holding of one symbol for one user, tracked at
// weighted-average cost. Exactly one row exists per (user, symbol); a position
// whose quantity would reach zero is deleted, never stored.
type Position struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	UserID         uint            `gorm:"not null;index:idx_user_symbol,unique" json:"user_id"`
	Symbol         string          `gorm:"size:30;not null;index:idx_user_symbol,unique" json:"symbol"`
	Quantity       int64           `gorm:"not null" json:"quantity"`
	AvgPrice       decimal.Decimal `gorm:"type:decimal(20,2)" json:"avg_price"`
	CurrentPrice   decimal.Decimal `gorm:"type:decimal(20,2)" json:"current_price"`
	Pnl            decimal.Decimal `gorm:"type:decimal(20,2)" json:"pnl"`
	PnlPercentage  decimal.Decimal `gorm:"type:decimal(10,2)" json:"pnl_percentage"`
	InvestedAmount decimal.Decimal `gorm:"type:decimal(20,2)" json:"invested_amount"`
	CurrentValue   decimal.Decimal `gorm:"type:decimal(20,2)" json:"current_value"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// TableName allows you to control the exact table name for positions.
func (Position) TableName() string {
	return "positions"
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User holds one virtual trading account. The balance is only ever mutated by
// the trading service as the side effect of a filled order.
type User struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Email          string          `gorm:"size:255;uniqueIndex" json:"email"`
	DisplayName    string          `gorm:"size:100" json:"display_name"`
	VirtualBalance decimal.Decimal `gorm:"type:decimal(20,2)" json:"virtual_balance"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

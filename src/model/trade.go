package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TradeSideBuy  = "BUY"
	TradeSideSell = "SELL"

	TradeStatusOpen   = "OPEN"
	TradeStatusClosed = "CLOSED"
)

// Trade is the immutable record of one executed order. Rows are append-only;
// the only permitted mutation is the OPEN -> CLOSED transition performed by a
// square-off, which stamps the closing timestamp and realized P&L.
type Trade struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Reference   string          `gorm:"size:40;uniqueIndex" json:"reference"`
	UserID      uint            `gorm:"not null;index" json:"user_id"`
	Symbol      string          `gorm:"size:30;not null;index" json:"symbol"`
	Side        string          `gorm:"size:10;not null" json:"side"`
	Quantity    int64           `gorm:"not null" json:"quantity"`
	Price       decimal.Decimal `gorm:"type:decimal(20,2)" json:"price"`
	Brokerage   decimal.Decimal `gorm:"type:decimal(20,2)" json:"brokerage"`
	GrossAmount decimal.Decimal `gorm:"type:decimal(20,2)" json:"gross_amount"`
	NetAmount   decimal.Decimal `gorm:"type:decimal(20,2)" json:"net_amount"`
	RealizedPnl decimal.Decimal `gorm:"type:decimal(20,2)" json:"realized_pnl"`
	Status      string          `gorm:"size:10;not null;default:OPEN;index" json:"status"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
	ClosedAt    *time.Time      `json:"closed_at,omitempty"`
}

// TableName allows you to control the exact table name for trades.
func (Trade) TableName() string {
	return "trades"
}

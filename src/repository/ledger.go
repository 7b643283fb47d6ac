package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"papertrader/src/model"
)

// Ledger is the narrow storage interface the trading service executes
// against: cash balances, positions and trade records. LedgerRepository is
// the gorm-backed implementation; tests substitute in-memory stubs.
type Ledger interface {
	GetUser(ctx context.Context, userID uint) (*model.User, error)
	GetBalance(ctx context.Context, userID uint) (decimal.Decimal, error)
	SetBalance(ctx context.Context, userID uint, balance decimal.Decimal) error

	GetPosition(ctx context.Context, userID uint, symbol string) (*model.Position, error)
	UpsertPosition(ctx context.Context, position *model.Position) error
	DeletePosition(ctx context.Context, userID uint, symbol string) error
	ListPositions(ctx context.Context, userID uint) ([]model.Position, error)

	InsertTrade(ctx context.Context, trade *model.Trade) error
	CloseOpenTrades(ctx context.Context, userID uint, symbol string, closedAt time.Time, realizedPnl decimal.Decimal) (int64, error)
	ListTrades(ctx context.Context, userID uint, limit int) ([]model.Trade, error)
	ListTradesSince(ctx context.Context, userID uint, since time.Time) ([]model.Trade, error)
	SumBrokerage(ctx context.Context, userID uint) (decimal.Decimal, error)

	GetSettings(ctx context.Context, userID uint) (*model.UserSettings, error)
	SaveSettings(ctx context.Context, settings *model.UserSettings) error

	// Transaction runs fn against a ledger bound to a database transaction;
	// an error rolls back every mutation fn performed.
	Transaction(ctx context.Context, fn func(tx Ledger) error) error
}

var _ Ledger = (*LedgerRepository)(nil)

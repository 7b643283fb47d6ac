package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"papertrader/src/database"
	"papertrader/src/model"
)

// LedgerRepository handles read/write operations for accounts (virtual
// balances), positions and trade records. It is the single durable store the
// trading service talks to.
type LedgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new repository instance using the main
// read/write database.
func NewLedgerRepository() *LedgerRepository {
	logger.WithField("component", "LedgerRepository").
		Info("Creating new LedgerRepository with MainDB")

	return &LedgerRepository{
		db: database.MainDB,
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *LedgerRepository) WithDB(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Transaction runs fn inside a database transaction. The ledger passed to fn
// is bound to that transaction; any error returned rolls everything back.
func (r *LedgerRepository) Transaction(ctx context.Context, fn func(tx Ledger) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithDB(tx))
	})
}

// ---------------------------------------------------
// Account methods
// ---------------------------------------------------

// GetUser fetches a user by ID. Returns (nil, nil) if the user is not found.
func (r *LedgerRepository) GetUser(ctx context.Context, userID uint) (*model.User, error) {
	var user model.User

	err := r.db.WithContext(ctx).First(&user, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo":    "LedgerRepository",
			"op":      "GetUser",
			"user_id": userID,
		}).WithError(err).Error("Failed to fetch user")
		return nil, err
	}

	return &user, nil
}

// CreateUser inserts a new account row.
func (r *LedgerRepository) CreateUser(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "LedgerRepository",
			"op":    "CreateUser",
			"email": user.Email,
		}).WithError(err).Error("Failed to create user")
		return err
	}
	return nil
}

// GetBalance returns the current virtual cash balance for a user.
func (r *LedgerRepository) GetBalance(ctx context.Context, userID uint) (decimal.Decimal, error) {
	var user model.User

	err := r.db.WithContext(ctx).
		Select("id", "virtual_balance").
		First(&user, userID).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "LedgerRepository",
			"op":      "GetBalance",
			"user_id": userID,
		}).WithError(err).Error("Failed to fetch balance")
		return decimal.Zero, err
	}

	return user.VirtualBalance, nil
}

// SetBalance overwrites the virtual cash balance for a user.
func (r *LedgerRepository) SetBalance(ctx context.Context, userID uint, balance decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", userID).
		Update("virtual_balance", balance)

	if result.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "LedgerRepository",
			"op":      "SetBalance",
			"user_id": userID,
		}).WithError(result.Error).Error("Failed to update balance")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	return nil
}

// ---------------------------------------------------
// Position methods
// ---------------------------------------------------

// GetPosition fetches the open position for (user, symbol).
// Returns (nil, nil) if no position exists.
func (r *LedgerRepository) GetPosition(ctx context.Context, userID uint, symbol string) (*model.Position, error) {
	var position model.Position

	err := r.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ?", userID, symbol).
		First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo":    "LedgerRepository",
			"op":      "GetPosition",
			"user_id": userID,
			"symbol":  symbol,
		}).WithError(err).Error("Failed to fetch position")
		return nil, err
	}

	return &position, nil
}

// UpsertPosition inserts the position or, when a row already exists for
// (user, symbol), updates its quantity, prices and P&L figures in place.
func (r *LedgerRepository) UpsertPosition(ctx context.Context, position *model.Position) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"quantity", "avg_price", "current_price",
				"pnl", "pnl_percentage", "invested_amount", "current_value",
				"updated_at",
			}),
		}).
		Create(position).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "LedgerRepository",
			"op":      "UpsertPosition",
			"user_id": position.UserID,
			"symbol":  position.Symbol,
			"qty":     position.Quantity,
		}).WithError(err).Error("Failed to upsert position")
		return err
	}

	return nil
}

// DeletePosition removes the position row for (user, symbol). Deleting an
// already-absent position is not an error.
func (r *LedgerRepository) DeletePosition(ctx context.Context, userID uint, symbol string) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ?", userID, symbol).
		Delete(&model.Position{}).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "LedgerRepository",
			"op":      "DeletePosition",
			"user_id": userID,
			"symbol":  symbol,
		}).WithError(err).Error("Failed to delete position")
		return err
	}

	return nil
}

// ListPositions returns all open positions for a user, newest first.
func (r *LedgerRepository) ListPositions(ctx context.Context, userID uint) ([]model.Position, error) {
	var positions []model.Position

	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&positions).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "LedgerRepository",
			"op":      "ListPositions",
			"user_id": userID,
		}).WithError(err).Error("Failed to list positions")
		return nil, err
	}

	return positions, nil
}

// ---------------------------------------------------
// Trade methods
// ---------------------------------------------------

// InsertTrade appends a new trade record. The given trade is updated with the
// generated ID and timestamps.
func (r *LedgerRepository) InsertTrade(ctx context.Context, trade *model.Trade) error {
	logger.WithFields(map[string]interface{}{
		"repo":   "LedgerRepository",
		"op":     "InsertTrade",
		"symbol": trade.Symbol,
		"side":   trade.Side,
		"qty":    trade.Quantity,
	}).Debug("Inserting trade record")

	if err := r.db.WithContext(ctx).Create(trade).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "LedgerRepository",
			"op":   "InsertTrade",
		}).WithError(err).Error("Failed to insert trade")
		return err
	}

	return nil
}

// CloseOpenTrades transitions every OPEN trade for (user, symbol) to CLOSED,
// stamping the closing timestamp and realized P&L. Returns the number of
// trades closed.
func (r *LedgerRepository) CloseOpenTrades(ctx context.Context, userID uint, symbol string, closedAt time.Time, realizedPnl decimal.Decimal) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Trade{}).
		Where("user_id = ? AND symbol = ? AND status = ?", userID, symbol, model.TradeStatusOpen).
		Updates(map[string]interface{}{
			"status":       model.TradeStatusClosed,
			"closed_at":    closedAt,
			"realized_pnl": realizedPnl,
		})

	if result.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "LedgerRepository",
			"op":      "CloseOpenTrades",
			"user_id": userID,
			"symbol":  symbol,
		}).WithError(result.Error).Error("Failed to close open trades")
		return 0, result.Error
	}

	return result.RowsAffected, nil
}

// ListTrades returns the most recent trades for a user, newest first.
// limit <= 0 means no limit.
func (r *LedgerRepository) ListTrades(ctx context.Context, userID uint, limit int) ([]model.Trade, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var trades []model.Trade
	if err := query.Find(&trades).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "LedgerRepository",
			"op":      "ListTrades",
			"user_id": userID,
		}).WithError(err).Error("Failed to list trades")
		return nil, err
	}

	return trades, nil
}

// ListTradesSince returns the trades executed at or after the given instant,
// oldest first. Used for the day P&L estimate.
func (r *LedgerRepository) ListTradesSince(ctx context.Context, userID uint, since time.Time) ([]model.Trade, error) {
	var trades []model.Trade

	err := r.db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", userID, since).
		Order("created_at ASC, id ASC").
		Find(&trades).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "LedgerRepository",
			"op":      "ListTradesSince",
			"user_id": userID,
		}).WithError(err).Error("Failed to list trades since")
		return nil, err
	}

	return trades, nil
}

// SumBrokerage totals the brokerage charged across all of a user's trades,
// open and closed.
func (r *LedgerRepository) SumBrokerage(ctx context.Context, userID uint) (decimal.Decimal, error) {
	var total decimal.NullDecimal

	err := r.db.WithContext(ctx).
		Model(&model.Trade{}).
		Select("SUM(brokerage)").
		Where("user_id = ?", userID).
		Scan(&total).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "LedgerRepository",
			"op":      "SumBrokerage",
			"user_id": userID,
		}).WithError(err).Error("Failed to sum brokerage")
		return decimal.Zero, err
	}

	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

// ---------------------------------------------------
// Settings methods
// ---------------------------------------------------

// GetSettings fetches the user's simulation settings, returning defaults when
// no row exists yet.
func (r *LedgerRepository) GetSettings(ctx context.Context, userID uint) (*model.UserSettings, error) {
	var settings model.UserSettings

	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &model.UserSettings{
				UserID:               userID,
				BrokerageSimulation:  true,
				NotificationsEnabled: true,
			}, nil
		}
		logger.WithFields(map[string]interface{}{
			"repo":    "LedgerRepository",
			"op":      "GetSettings",
			"user_id": userID,
		}).WithError(err).Error("Failed to fetch user settings")
		return nil, err
	}

	return &settings, nil
}

// SaveSettings upserts the user's simulation settings.
func (r *LedgerRepository) SaveSettings(ctx context.Context, settings *model.UserSettings) error {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"brokerage_simulation", "dark_mode", "notifications_enabled", "updated_at",
			}),
		}).
		Create(settings).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":    "LedgerRepository",
			"op":      "SaveSettings",
			"user_id": settings.UserID,
		}).WithError(err).Error("Failed to save user settings")
		return err
	}

	return nil
}

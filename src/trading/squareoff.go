package trading

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"papertrader/src/model"
)

// SquareOff fully liquidates one open position at the current market price
// and marks every OPEN trade for the symbol CLOSED, stamping the closing
// timestamp and the position's P&L at the moment of liquidation.
func (s *Service) SquareOff(ctx context.Context, userID uint, symbol string) (*TradeResult, error) {
	position, err := s.ledger.GetPosition(ctx, userID, symbol)
	if err != nil {
		return nil, storeErr(err)
	}
	if position == nil {
		return nil, ErrPositionNotFound
	}

	currentPrice, err := s.feed.GetPrice(ctx, symbol)
	if err != nil {
		s.logger.WithError(err).WithField("symbol", symbol).
			Warn("No live quote, squaring off at last-seen price")
		currentPrice = position.CurrentPrice
	}

	settings, err := s.ledger.GetSettings(ctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}

	realizedPnl := RealizedPnl(position.AvgPrice, currentPrice, position.Quantity)

	result, err := s.ExecuteTrade(ctx, TradeRequest{
		UserID:           userID,
		Symbol:           symbol,
		Side:             model.TradeSideSell,
		Quantity:         position.Quantity,
		Price:            currentPrice,
		BrokerageEnabled: settings.BrokerageSimulation,
	})
	if err != nil {
		return nil, err
	}

	closed, err := s.ledger.CloseOpenTrades(ctx, userID, symbol, s.now(), realizedPnl)
	if err != nil {
		// The liquidation itself committed; the status stamp did not. Surface
		// the inconsistency loudly for reconciliation instead of hiding it.
		s.logger.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"symbol":  symbol,
		}).Error("Square-off executed but open trades were not marked closed")
		return nil, storeErr(err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":       userID,
		"symbol":        symbol,
		"trades_closed": closed,
		"realized_pnl":  realizedPnl,
	}).Info("Position squared off")

	result.Message = fmt.Sprintf("Position squared off successfully. P&L: ₹%s", realizedPnl.StringFixed(2))
	result.RealizedPnl = realizedPnl
	return result, nil
}
